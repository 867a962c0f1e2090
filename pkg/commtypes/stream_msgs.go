package commtypes

import (
	"encoding/json"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
)

// GetTransactionsRequest asks the data service for records starting at
// StartingVersion. A zero TransactionsCount with HasCount unset streams
// without end.
type GetTransactionsRequest struct {
	StartingVersion   uint64 `json:"starting_version" msg:"sv"`
	TransactionsCount uint64 `json:"transactions_count,omitempty" msg:"cnt,omitempty"`
	HasCount          bool   `json:"has_count,omitempty" msg:"hc,omitempty"`
}

type TransactionsResponse struct {
	ChainID uint64   `json:"chain_id" msg:"chain"`
	Records []Record `json:"records" msg:"records"`
}

type (
	GetTransactionsRequestJSONSerdeG struct{}
	GetTransactionsRequestMsgpSerdeG struct{}
	TransactionsResponseJSONSerdeG   struct{}
	TransactionsResponseMsgpSerdeG   struct{}
)

var (
	_ = SerdeG[GetTransactionsRequest](GetTransactionsRequestJSONSerdeG{})
	_ = SerdeG[GetTransactionsRequest](GetTransactionsRequestMsgpSerdeG{})
	_ = SerdeG[TransactionsResponse](TransactionsResponseJSONSerdeG{})
	_ = SerdeG[TransactionsResponse](TransactionsResponseMsgpSerdeG{})
)

func (s GetTransactionsRequestJSONSerdeG) Encode(v GetTransactionsRequest) ([]byte, error) {
	return json.Marshal(&v)
}

func (s GetTransactionsRequestJSONSerdeG) Decode(value []byte) (GetTransactionsRequest, error) {
	v := GetTransactionsRequest{}
	if err := json.Unmarshal(value, &v); err != nil {
		return GetTransactionsRequest{}, err
	}
	return v, nil
}

func (s GetTransactionsRequestMsgpSerdeG) Encode(v GetTransactionsRequest) ([]byte, error) {
	return v.MarshalMsg(nil)
}

func (s GetTransactionsRequestMsgpSerdeG) Decode(value []byte) (GetTransactionsRequest, error) {
	v := GetTransactionsRequest{}
	if _, err := v.UnmarshalMsg(value); err != nil {
		return GetTransactionsRequest{}, err
	}
	return v, nil
}

func (s TransactionsResponseJSONSerdeG) Encode(v TransactionsResponse) ([]byte, error) {
	return json.Marshal(&v)
}

func (s TransactionsResponseJSONSerdeG) Decode(value []byte) (TransactionsResponse, error) {
	v := TransactionsResponse{}
	if err := json.Unmarshal(value, &v); err != nil {
		return TransactionsResponse{}, err
	}
	return v, nil
}

func (s TransactionsResponseMsgpSerdeG) Encode(v TransactionsResponse) ([]byte, error) {
	return v.MarshalMsg(nil)
}

func (s TransactionsResponseMsgpSerdeG) Decode(value []byte) (TransactionsResponse, error) {
	v := TransactionsResponse{}
	if _, err := v.UnmarshalMsg(value); err != nil {
		return TransactionsResponse{}, err
	}
	return v, nil
}

func GetGetTransactionsRequestSerdeG(serdeFormat SerdeFormat) (SerdeG[GetTransactionsRequest], error) {
	switch serdeFormat {
	case JSON:
		return GetTransactionsRequestJSONSerdeG{}, nil
	case MSGP:
		return GetTransactionsRequestMsgpSerdeG{}, nil
	default:
		return nil, common_errors.ErrUnrecognizedSerdeFormat
	}
}

func GetTransactionsResponseSerdeG(serdeFormat SerdeFormat) (SerdeG[TransactionsResponse], error) {
	switch serdeFormat {
	case JSON:
		return TransactionsResponseJSONSerdeG{}, nil
	case MSGP:
		return TransactionsResponseMsgpSerdeG{}, nil
	default:
		return nil, common_errors.ErrUnrecognizedSerdeFormat
	}
}
