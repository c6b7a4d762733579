package wire

import (
	"errors"
	"reflect"

	"github.com/ugorji/go/codec"
)

var msgpackHandle = &codec.MsgpackHandle{}

func init() {
	msgpackHandle.MapType = reflect.TypeOf(map[string]interface{}(nil))
	msgpackHandle.Canonical = true
}

// EncodeBytes encodes v to msgpack bytes.
func EncodeBytes(v interface{}) (out []byte, err error) {
	enc := codec.NewEncoderBytes(&out, msgpackHandle)
	err = enc.Encode(v)
	return
}

// DecodeBytes decodes msgpack bytes into dest. Empty input is an error,
// not an empty value.
func DecodeBytes(in []byte, dest interface{}) error {
	if len(in) == 0 {
		return errors.New("wire: nil bytes to decode")
	}
	dec := codec.NewDecoderBytes(in, msgpackHandle)
	return dec.Decode(dest)
}
