package txn_filter

import (
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/zhangyunhao116/skipset"
)

type FilterConfig struct {
	// Only user transactions calling entry functions of these addresses pass.
	FocusContractAddresses []string
	// User transactions sent by these addresses are dropped.
	SkipSenderAddresses []string
	// Drop everything that is not a user transaction.
	FocusUserTransactions bool
}

func (c FilterConfig) IsEmpty() bool {
	return len(c.FocusContractAddresses) == 0 && len(c.SkipSenderAddresses) == 0 && !c.FocusUserTransactions
}

// TransactionFilter drops records processors are not interested in. All
// criteria must hold for a record to be kept; unset criteria are ignored.
type TransactionFilter struct {
	focusContracts *skipset.StringSet
	skipSenders    *skipset.StringSet
	focusUserTxns  bool
}

func NewTransactionFilter(cfg FilterConfig) *TransactionFilter {
	f := &TransactionFilter{focusUserTxns: cfg.FocusUserTransactions}
	if len(cfg.FocusContractAddresses) > 0 {
		f.focusContracts = skipset.NewString()
		for _, addr := range cfg.FocusContractAddresses {
			f.focusContracts.Add(addr)
		}
	}
	if len(cfg.SkipSenderAddresses) > 0 {
		f.skipSenders = skipset.NewString()
		for _, addr := range cfg.SkipSenderAddresses {
			f.skipSenders.Add(addr)
		}
	}
	return f
}

// Include reports whether r should reach the processors.
func (f *TransactionFilter) Include(r *commtypes.Record) bool {
	isUser := r.Kind == commtypes.TxnUser
	if f.focusUserTxns && !isUser {
		return false
	}
	if !isUser {
		return true
	}
	if f.skipSenders != nil && f.skipSenders.Contains(r.Sender) {
		return false
	}
	// records that do not call an entry function carry no address to match
	if f.focusContracts != nil && r.EntryFunctionAddress != "" &&
		!f.focusContracts.Contains(r.EntryFunctionAddress) {
		return false
	}
	return true
}

// Apply removes excluded records in place and returns how many were
// dropped. The batch keeps its version range so the checkpoint still moves
// past the dropped records.
func (f *TransactionFilter) Apply(batch *commtypes.RecordBatch) int {
	kept := batch.Records[:0]
	for i := range batch.Records {
		if f.Include(&batch.Records[i]) {
			kept = append(kept, batch.Records[i])
		}
	}
	dropped := len(batch.Records) - len(kept)
	batch.Records = kept
	return dropped
}
