package txn_filter

import (
	"testing"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/stretchr/testify/assert"
)

func testRecords() []commtypes.Record {
	return []commtypes.Record{
		{Version: 10, Kind: commtypes.TxnBlockMetadata},
		{Version: 11, Kind: commtypes.TxnUser, Sender: "0xa", EntryFunctionAddress: "0x1"},
		{Version: 12, Kind: commtypes.TxnUser, Sender: "0xdead", EntryFunctionAddress: "0x1"},
		{Version: 13, Kind: commtypes.TxnUser, Sender: "0xb", EntryFunctionAddress: "0x2"},
		{Version: 14, Kind: commtypes.TxnUser, Sender: "0xc"},
		{Version: 15, Kind: commtypes.TxnStateCheckpoint},
	}
}

func versions(recs []commtypes.Record) []uint64 {
	out := make([]uint64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Version)
	}
	return out
}

func TestFilterCriteria(t *testing.T) {
	tests := []struct {
		name string
		cfg  FilterConfig
		want []uint64
	}{
		{"empty", FilterConfig{}, []uint64{10, 11, 12, 13, 14, 15}},
		{"focus user", FilterConfig{FocusUserTransactions: true}, []uint64{11, 12, 13, 14}},
		{"skip sender", FilterConfig{SkipSenderAddresses: []string{"0xdead"}}, []uint64{10, 11, 13, 14, 15}},
		{"focus contract", FilterConfig{FocusContractAddresses: []string{"0x1"}}, []uint64{10, 11, 12, 14, 15}},
		{"combined", FilterConfig{
			FocusContractAddresses: []string{"0x1"},
			SkipSenderAddresses:    []string{"0xdead"},
			FocusUserTransactions:  true,
		}, []uint64{11, 14}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := commtypes.NewRecordBatch(1, testRecords(), 0)
			assert.NoError(t, err)
			dropped := NewTransactionFilter(tt.cfg).Apply(&b)
			assert.Equal(t, tt.want, versions(b.Records))
			assert.Equal(t, 6-len(tt.want), dropped)
			assert.Equal(t, uint64(10), b.StartVersion)
			assert.Equal(t, uint64(15), b.EndVersion)
		})
	}
}

func TestFilterCanEmptyBatch(t *testing.T) {
	b, err := commtypes.NewRecordBatch(1, []commtypes.Record{{Version: 7, Kind: commtypes.TxnValidator}}, 0)
	assert.NoError(t, err)
	NewTransactionFilter(FilterConfig{FocusUserTransactions: true}).Apply(&b)
	assert.Empty(t, b.Records)
	assert.Equal(t, uint64(1), b.NumVersions())
}
