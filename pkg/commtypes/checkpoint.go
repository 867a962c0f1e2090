package commtypes

import (
	"encoding/json"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
)

type BackfillStatus string

const (
	BACKFILL_IN_PROGRESS BackfillStatus = "in_progress"
	BACKFILL_COMPLETE    BackfillStatus = "complete"
)

// CheckpointRecord is the durable progress of one job. The backfill fields
// are only set for Backfill jobs.
type CheckpointRecord struct {
	Job                   string         `json:"job" msg:"job"`
	LastSuccessVersion    uint64         `json:"lsv" msg:"lsv"`
	LastUpdatedAtUs       int64          `json:"lua" msg:"lua"`
	LastRecordTimestampUs int64          `json:"lrts,omitempty" msg:"lrts,omitempty"`
	BackfillStatus        BackfillStatus `json:"bfs,omitempty" msg:"bfs,omitempty"`
	BackfillStartVersion  uint64         `json:"bfsv,omitempty" msg:"bfsv,omitempty"`
	BackfillEndVersion    uint64         `json:"bfev,omitempty" msg:"bfev,omitempty"`
}

// BackfillStatusAt is the status of a backfill ending at end once its
// watermark reached watermark.
func BackfillStatusAt(watermark uint64, end uint64) BackfillStatus {
	if watermark >= end {
		return BACKFILL_COMPLETE
	}
	return BACKFILL_IN_PROGRESS
}

type (
	CheckpointRecordJSONSerdeG struct{}
	CheckpointRecordMsgpSerdeG struct{}
)

var (
	_ = SerdeG[CheckpointRecord](CheckpointRecordJSONSerdeG{})
	_ = SerdeG[CheckpointRecord](CheckpointRecordMsgpSerdeG{})
)

func (s CheckpointRecordJSONSerdeG) Encode(v CheckpointRecord) ([]byte, error) {
	return json.Marshal(&v)
}

func (s CheckpointRecordJSONSerdeG) Decode(value []byte) (CheckpointRecord, error) {
	v := CheckpointRecord{}
	if err := json.Unmarshal(value, &v); err != nil {
		return CheckpointRecord{}, err
	}
	return v, nil
}

func (s CheckpointRecordMsgpSerdeG) Encode(v CheckpointRecord) ([]byte, error) {
	return v.MarshalMsg(nil)
}

func (s CheckpointRecordMsgpSerdeG) Decode(value []byte) (CheckpointRecord, error) {
	v := CheckpointRecord{}
	if _, err := v.UnmarshalMsg(value); err != nil {
		return CheckpointRecord{}, err
	}
	return v, nil
}

func GetCheckpointRecordSerdeG(serdeFormat SerdeFormat) (SerdeG[CheckpointRecord], error) {
	switch serdeFormat {
	case JSON:
		return CheckpointRecordJSONSerdeG{}, nil
	case MSGP:
		return CheckpointRecordMsgpSerdeG{}, nil
	default:
		return nil, common_errors.ErrUnrecognizedSerdeFormat
	}
}
