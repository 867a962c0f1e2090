package stream_client

import (
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"google.golang.org/grpc"
)

const (
	RawData_ServiceName                    = "aptos.indexer.v1.RawData"
	RawData_GetTransactions_FullMethodName = "/aptos.indexer.v1.RawData/GetTransactions"
)

// RawDataServer is the server side of the data service. The engine only
// consumes the stream; the server half exists for local fakes and tests.
type RawDataServer interface {
	GetTransactions(*commtypes.GetTransactionsRequest, RawData_GetTransactionsServer) error
}

type RawData_GetTransactionsServer interface {
	Send(*commtypes.TransactionsResponse) error
	grpc.ServerStream
}

type rawDataGetTransactionsServer struct {
	grpc.ServerStream
}

func (x *rawDataGetTransactionsServer) Send(m *commtypes.TransactionsResponse) error {
	return x.ServerStream.SendMsg(m)
}

func _RawData_GetTransactions_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(commtypes.GetTransactionsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(RawDataServer).GetTransactions(m, &rawDataGetTransactionsServer{stream})
}

var RawData_ServiceDesc = grpc.ServiceDesc{
	ServiceName: RawData_ServiceName,
	HandlerType: (*RawDataServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetTransactions",
			Handler:       _RawData_GetTransactions_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "aptos/indexer/v1/raw_data.proto",
}

func RegisterRawDataServer(s grpc.ServiceRegistrar, srv RawDataServer) {
	s.RegisterService(&RawData_ServiceDesc, srv)
}
