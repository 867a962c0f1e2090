package commtypes

import (
	"encoding/json"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"golang.org/x/xerrors"
)

type TxnKind uint8

const (
	TxnUnknown TxnKind = iota
	TxnGenesis
	TxnBlockMetadata
	TxnStateCheckpoint
	TxnUser
	TxnValidator
	TxnBlockEpilogue
)

type Event struct {
	AccountAddress string `json:"account_address" msg:"addr"`
	SequenceNumber uint64 `json:"sequence_number" msg:"seq"`
	Type           string `json:"type" msg:"type"`
	Data           string `json:"data" msg:"data"`
}

// Record is one versioned entry of the stream. Only Version and TimestampUs
// matter to the ingestion engine; the remaining fields are for processors.
type Record struct {
	Version              uint64  `json:"version" msg:"v"`
	TimestampUs          int64   `json:"timestamp_us" msg:"ts"`
	Kind                 TxnKind `json:"kind" msg:"k"`
	Sender               string  `json:"sender,omitempty" msg:"sender,omitempty"`
	EntryFunctionAddress string  `json:"entry_function_address,omitempty" msg:"efa,omitempty"`
	Events               []Event `json:"events,omitempty" msg:"events,omitempty"`
	Payload              []byte  `json:"payload,omitempty" msg:"payload,omitempty"`
}

// RecordBatch is a contiguous slice of the stream. Filtering may drop
// records, but StartVersion and EndVersion always describe the range that
// was received.
type RecordBatch struct {
	ChainID      uint64   `json:"chain_id"`
	StartVersion uint64   `json:"start_version"`
	EndVersion   uint64   `json:"end_version"`
	Records      []Record `json:"records"`
	SizeInBytes  uint64   `json:"size_in_bytes"`
}

// NewRecordBatch builds a batch from records delivered in stream order.
func NewRecordBatch(chainID uint64, records []Record, sizeInBytes uint64) (RecordBatch, error) {
	if len(records) == 0 {
		return RecordBatch{}, common_errors.ErrEmptyBatch
	}
	b := RecordBatch{
		ChainID:      chainID,
		StartVersion: records[0].Version,
		EndVersion:   records[len(records)-1].Version,
		Records:      records,
		SizeInBytes:  sizeInBytes,
	}
	return b, b.Validate()
}

// Validate checks that the batch covers a dense version range with no
// internal gaps.
func (b *RecordBatch) Validate() error {
	if len(b.Records) == 0 {
		return common_errors.ErrEmptyBatch
	}
	if b.EndVersion < b.StartVersion || b.EndVersion-b.StartVersion+1 != uint64(len(b.Records)) {
		return xerrors.Errorf("%w: batch [%d, %d] holds %d records",
			common_errors.ErrContinuityViolation, b.StartVersion, b.EndVersion, len(b.Records))
	}
	for i := range b.Records {
		if b.Records[i].Version != b.StartVersion+uint64(i) {
			return xerrors.Errorf("%w: record %d of batch [%d, %d] has version %d",
				common_errors.ErrContinuityViolation, i, b.StartVersion, b.EndVersion, b.Records[i].Version)
		}
	}
	return nil
}

func (b *RecordBatch) NumVersions() uint64 {
	return b.EndVersion - b.StartVersion + 1
}

// LastTimestampUs is the timestamp of the final record still in the batch.
func (b *RecordBatch) LastTimestampUs() int64 {
	if len(b.Records) == 0 {
		return 0
	}
	return b.Records[len(b.Records)-1].TimestampUs
}

type (
	RecordJSONSerdeG struct{}
	RecordMsgpSerdeG struct{}
)

var (
	_ = SerdeG[Record](RecordJSONSerdeG{})
	_ = SerdeG[Record](RecordMsgpSerdeG{})
)

func (s RecordJSONSerdeG) Encode(v Record) ([]byte, error) {
	return json.Marshal(&v)
}

func (s RecordJSONSerdeG) Decode(value []byte) (Record, error) {
	v := Record{}
	if err := json.Unmarshal(value, &v); err != nil {
		return Record{}, err
	}
	return v, nil
}

func (s RecordMsgpSerdeG) Encode(v Record) ([]byte, error) {
	return v.MarshalMsg(nil)
}

func (s RecordMsgpSerdeG) Decode(value []byte) (Record, error) {
	v := Record{}
	if _, err := v.UnmarshalMsg(value); err != nil {
		return Record{}, err
	}
	return v, nil
}

func GetRecordSerdeG(serdeFormat SerdeFormat) (SerdeG[Record], error) {
	switch serdeFormat {
	case JSON:
		return RecordJSONSerdeG{}, nil
	case MSGP:
		return RecordMsgpSerdeG{}, nil
	default:
		return nil, common_errors.ErrUnrecognizedSerdeFormat
	}
}

type (
	EventJSONSerdeG struct{}
	EventMsgpSerdeG struct{}
)

var (
	_ = SerdeG[Event](EventJSONSerdeG{})
	_ = SerdeG[Event](EventMsgpSerdeG{})
)

func (s EventJSONSerdeG) Encode(v Event) ([]byte, error) {
	return json.Marshal(&v)
}

func (s EventJSONSerdeG) Decode(value []byte) (Event, error) {
	v := Event{}
	if err := json.Unmarshal(value, &v); err != nil {
		return Event{}, err
	}
	return v, nil
}

func (s EventMsgpSerdeG) Encode(v Event) ([]byte, error) {
	return v.MarshalMsg(nil)
}

func (s EventMsgpSerdeG) Decode(value []byte) (Event, error) {
	v := Event{}
	if _, err := v.UnmarshalMsg(value); err != nil {
		return Event{}, err
	}
	return v, nil
}

func GetEventSerdeG(serdeFormat SerdeFormat) (SerdeG[Event], error) {
	switch serdeFormat {
	case JSON:
		return EventJSONSerdeG{}, nil
	case MSGP:
		return EventMsgpSerdeG{}, nil
	default:
		return nil, common_errors.ErrUnrecognizedSerdeFormat
	}
}
