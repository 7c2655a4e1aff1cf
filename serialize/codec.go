package serialize

import (
	"github.com/ugorji/go/codec"

	"github.com/relaywamp/wampcore/wamp"
)

// Codec marshals a wamp.Message to, and unmarshals a wamp.Message from,
// one wire-format message payload.  JSONCodec and MsgpackCodec are the
// two reference implementations; a real transport picks one per the
// WAMP subprotocol its peer negotiated.
type Codec interface {
	Marshal(msg wamp.Message) ([]byte, error)
	Unmarshal(data []byte) (wamp.Message, error)
}

type handleCodec struct {
	handle codec.Handle
}

func (c *handleCodec) Marshal(msg wamp.Message) ([]byte, error) {
	frame := Encode(msg)
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, c.handle)
	if err := enc.Encode(frame); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *handleCodec) Unmarshal(data []byte) (wamp.Message, error) {
	var frame []interface{}
	dec := codec.NewDecoderBytes(data, c.handle)
	if err := dec.Decode(&frame); err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return &wamp.DecodeError{UnknownOpcode: true}, nil
	}
	opcode := toInt(frame[0])
	return Decode(opcode, frame[1:]), nil
}

// JSONCodec encodes WAMP message frames as JSON arrays, via
// github.com/ugorji/go/codec's JsonHandle.
func JSONCodec() Codec {
	h := &codec.JsonHandle{}
	h.MapKeyAsString = true
	return &handleCodec{handle: h}
}

// MsgpackCodec encodes WAMP message frames as MessagePack arrays, via
// github.com/ugorji/go/codec's MsgpackHandle.
func MsgpackCodec() Codec {
	h := &codec.MsgpackHandle{}
	return &handleCodec{handle: h}
}
