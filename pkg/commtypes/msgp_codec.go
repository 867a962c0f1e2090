package commtypes

import (
	"github.com/tinylib/msgp/msgp"
)

var (
	_ msgp.Marshaler   = (*Record)(nil)
	_ msgp.Unmarshaler = (*Record)(nil)
	_ msgp.Marshaler   = (*CheckpointRecord)(nil)
	_ msgp.Unmarshaler = (*CheckpointRecord)(nil)
	_ msgp.Marshaler   = (*GetTransactionsRequest)(nil)
	_ msgp.Unmarshaler = (*GetTransactionsRequest)(nil)
	_ msgp.Marshaler   = (*TransactionsResponse)(nil)
	_ msgp.Unmarshaler = (*TransactionsResponse)(nil)
)

// MarshalMsg implements msgp.Marshaler
func (z *Event) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 4)
	o = msgp.AppendString(o, "addr")
	o = msgp.AppendString(o, z.AccountAddress)
	o = msgp.AppendString(o, "seq")
	o = msgp.AppendUint64(o, z.SequenceNumber)
	o = msgp.AppendString(o, "type")
	o = msgp.AppendString(o, z.Type)
	o = msgp.AppendString(o, "data")
	o = msgp.AppendString(o, z.Data)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *Event) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "addr":
			z.AccountAddress, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "AccountAddress")
				return
			}
		case "seq":
			z.SequenceNumber, bts, err = msgp.ReadUint64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "SequenceNumber")
				return
			}
		case "type":
			z.Type, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Type")
				return
			}
		case "data":
			z.Data, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Data")
				return
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	o = bts
	return
}

func (z *Event) Msgsize() (s int) {
	s = 1 + 5 + msgp.StringPrefixSize + len(z.AccountAddress) +
		4 + msgp.Uint64Size +
		5 + msgp.StringPrefixSize + len(z.Type) +
		5 + msgp.StringPrefixSize + len(z.Data)
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *Record) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 7)
	o = msgp.AppendString(o, "v")
	o = msgp.AppendUint64(o, z.Version)
	o = msgp.AppendString(o, "ts")
	o = msgp.AppendInt64(o, z.TimestampUs)
	o = msgp.AppendString(o, "k")
	o = msgp.AppendUint8(o, uint8(z.Kind))
	o = msgp.AppendString(o, "sender")
	o = msgp.AppendString(o, z.Sender)
	o = msgp.AppendString(o, "efa")
	o = msgp.AppendString(o, z.EntryFunctionAddress)
	o = msgp.AppendString(o, "events")
	o = msgp.AppendArrayHeader(o, uint32(len(z.Events)))
	for i := range z.Events {
		o, err = z.Events[i].MarshalMsg(o)
		if err != nil {
			err = msgp.WrapError(err, "Events", i)
			return
		}
	}
	o = msgp.AppendString(o, "payload")
	o = msgp.AppendBytes(o, z.Payload)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *Record) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "v":
			z.Version, bts, err = msgp.ReadUint64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Version")
				return
			}
		case "ts":
			z.TimestampUs, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "TimestampUs")
				return
			}
		case "k":
			var k uint8
			k, bts, err = msgp.ReadUint8Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Kind")
				return
			}
			z.Kind = TxnKind(k)
		case "sender":
			z.Sender, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Sender")
				return
			}
		case "efa":
			z.EntryFunctionAddress, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "EntryFunctionAddress")
				return
			}
		case "events":
			var zb0002 uint32
			zb0002, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Events")
				return
			}
			if cap(z.Events) >= int(zb0002) {
				z.Events = z.Events[:zb0002]
			} else {
				z.Events = make([]Event, zb0002)
			}
			for i := range z.Events {
				bts, err = z.Events[i].UnmarshalMsg(bts)
				if err != nil {
					err = msgp.WrapError(err, "Events", i)
					return
				}
			}
		case "payload":
			z.Payload, bts, err = msgp.ReadBytesBytes(bts, z.Payload)
			if err != nil {
				err = msgp.WrapError(err, "Payload")
				return
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	o = bts
	return
}

func (z *Record) Msgsize() (s int) {
	s = 1 + 2 + msgp.Uint64Size + 3 + msgp.Int64Size + 2 + msgp.Uint8Size +
		7 + msgp.StringPrefixSize + len(z.Sender) +
		4 + msgp.StringPrefixSize + len(z.EntryFunctionAddress) +
		7 + msgp.ArrayHeaderSize
	for i := range z.Events {
		s += z.Events[i].Msgsize()
	}
	s += 8 + msgp.BytesPrefixSize + len(z.Payload)
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *CheckpointRecord) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 7)
	o = msgp.AppendString(o, "job")
	o = msgp.AppendString(o, z.Job)
	o = msgp.AppendString(o, "lsv")
	o = msgp.AppendUint64(o, z.LastSuccessVersion)
	o = msgp.AppendString(o, "lua")
	o = msgp.AppendInt64(o, z.LastUpdatedAtUs)
	o = msgp.AppendString(o, "lrts")
	o = msgp.AppendInt64(o, z.LastRecordTimestampUs)
	o = msgp.AppendString(o, "bfs")
	o = msgp.AppendString(o, string(z.BackfillStatus))
	o = msgp.AppendString(o, "bfsv")
	o = msgp.AppendUint64(o, z.BackfillStartVersion)
	o = msgp.AppendString(o, "bfev")
	o = msgp.AppendUint64(o, z.BackfillEndVersion)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *CheckpointRecord) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "job":
			z.Job, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Job")
				return
			}
		case "lsv":
			z.LastSuccessVersion, bts, err = msgp.ReadUint64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "LastSuccessVersion")
				return
			}
		case "lua":
			z.LastUpdatedAtUs, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "LastUpdatedAtUs")
				return
			}
		case "lrts":
			z.LastRecordTimestampUs, bts, err = msgp.ReadInt64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "LastRecordTimestampUs")
				return
			}
		case "bfs":
			var st string
			st, bts, err = msgp.ReadStringBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "BackfillStatus")
				return
			}
			z.BackfillStatus = BackfillStatus(st)
		case "bfsv":
			z.BackfillStartVersion, bts, err = msgp.ReadUint64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "BackfillStartVersion")
				return
			}
		case "bfev":
			z.BackfillEndVersion, bts, err = msgp.ReadUint64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "BackfillEndVersion")
				return
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	o = bts
	return
}

func (z *CheckpointRecord) Msgsize() (s int) {
	s = 1 + 4 + msgp.StringPrefixSize + len(z.Job) + 4 + msgp.Uint64Size +
		4 + msgp.Int64Size + 5 + msgp.Int64Size +
		4 + msgp.StringPrefixSize + len(z.BackfillStatus) +
		5 + msgp.Uint64Size + 5 + msgp.Uint64Size
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *GetTransactionsRequest) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 3)
	o = msgp.AppendString(o, "sv")
	o = msgp.AppendUint64(o, z.StartingVersion)
	o = msgp.AppendString(o, "cnt")
	o = msgp.AppendUint64(o, z.TransactionsCount)
	o = msgp.AppendString(o, "hc")
	o = msgp.AppendBool(o, z.HasCount)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *GetTransactionsRequest) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "sv":
			z.StartingVersion, bts, err = msgp.ReadUint64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "StartingVersion")
				return
			}
		case "cnt":
			z.TransactionsCount, bts, err = msgp.ReadUint64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "TransactionsCount")
				return
			}
		case "hc":
			z.HasCount, bts, err = msgp.ReadBoolBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "HasCount")
				return
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	o = bts
	return
}

func (z *GetTransactionsRequest) Msgsize() (s int) {
	s = 1 + 3 + msgp.Uint64Size + 4 + msgp.Uint64Size + 3 + msgp.BoolSize
	return
}

// MarshalMsg implements msgp.Marshaler
func (z *TransactionsResponse) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 2)
	o = msgp.AppendString(o, "chain")
	o = msgp.AppendUint64(o, z.ChainID)
	o = msgp.AppendString(o, "records")
	o = msgp.AppendArrayHeader(o, uint32(len(z.Records)))
	for i := range z.Records {
		o, err = z.Records[i].MarshalMsg(o)
		if err != nil {
			err = msgp.WrapError(err, "Records", i)
			return
		}
	}
	return
}

// UnmarshalMsg implements msgp.Unmarshaler
func (z *TransactionsResponse) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	var zb0001 uint32
	zb0001, bts, err = msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		err = msgp.WrapError(err)
		return
	}
	for zb0001 > 0 {
		zb0001--
		field, bts, err = msgp.ReadMapKeyZC(bts)
		if err != nil {
			err = msgp.WrapError(err)
			return
		}
		switch msgp.UnsafeString(field) {
		case "chain":
			z.ChainID, bts, err = msgp.ReadUint64Bytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "ChainID")
				return
			}
		case "records":
			var zb0002 uint32
			zb0002, bts, err = msgp.ReadArrayHeaderBytes(bts)
			if err != nil {
				err = msgp.WrapError(err, "Records")
				return
			}
			if cap(z.Records) >= int(zb0002) {
				z.Records = z.Records[:zb0002]
			} else {
				z.Records = make([]Record, zb0002)
			}
			for i := range z.Records {
				bts, err = z.Records[i].UnmarshalMsg(bts)
				if err != nil {
					err = msgp.WrapError(err, "Records", i)
					return
				}
			}
		default:
			bts, err = msgp.Skip(bts)
			if err != nil {
				err = msgp.WrapError(err)
				return
			}
		}
	}
	o = bts
	return
}

func (z *TransactionsResponse) Msgsize() (s int) {
	s = 1 + 6 + msgp.Uint64Size + 8 + msgp.ArrayHeaderSize
	for i := range z.Records {
		s += z.Records[i].Msgsize()
	}
	return
}
