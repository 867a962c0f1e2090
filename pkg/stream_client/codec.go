package stream_client

import (
	"github.com/tinylib/msgp/msgp"
	"golang.org/x/xerrors"
	"google.golang.org/grpc/encoding"
)

const MSGP_CODEC_NAME = "msgp"

// MsgpCodec carries stream messages as msgpack on the wire. It is registered
// under the content-subtype "msgp" so servers pick it up without options.
type MsgpCodec struct{}

func init() {
	encoding.RegisterCodec(MsgpCodec{})
}

func (MsgpCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(msgp.Marshaler)
	if !ok {
		return nil, xerrors.Errorf("msgp codec: %T does not implement msgp.Marshaler", v)
	}
	return m.MarshalMsg(nil)
}

func (MsgpCodec) Unmarshal(data []byte, v interface{}) error {
	u, ok := v.(msgp.Unmarshaler)
	if !ok {
		return xerrors.Errorf("msgp codec: %T does not implement msgp.Unmarshaler", v)
	}
	_, err := u.UnmarshalMsg(data)
	return err
}

func (MsgpCodec) Name() string {
	return MSGP_CODEC_NAME
}
