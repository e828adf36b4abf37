package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"
)

var (
	// ErrCodec is the base error for all encoding and decoding failures.
	ErrCodec = errors.New("codec error")

	// ErrTypeMismatch is returned if a payload is tagged with a type
	// that does not match the type it is decoded into.
	ErrTypeMismatch = fmt.Errorf("%w: type mismatch", ErrCodec)

	// ErrEmptyPayload is returned when decoding an empty payload.
	ErrEmptyPayload = fmt.Errorf("%w: empty payload", ErrCodec)
)

// Payload is the tagged representation of a value on the wire.
type Payload struct {
	// Type is the name of the Go type the value was encoded from.
	Type string `json:"type"`

	// Value is the JSON encoded value.
	Value json.RawMessage `json:"value"`
}

// dynamicTypes can be decoded from, or into, any tagged payload.
var dynamicTypes = map[string]bool{
	"":                        true,
	"interface {}":            true,
	"json.RawMessage":         true,
	"map[string]interface {}": true,
}

// Tagged is implemented by types that provide their own wire type tag,
// e.g. generic types whose instantiations share one wire representation.
type Tagged interface {
	WireType() string
}

// Encode serializes v into a tagged payload.
func Encode(v any) ([]byte, error) {
	value, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}

	data, err := json.Marshal(Payload{
		Type:  TypeName(v),
		Value: value,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}

	return data, nil
}

// Decode deserializes a tagged payload into a value of type T.
func Decode[T any](data []byte) (T, error) {
	var res T

	if len(data) == 0 {
		return res, ErrEmptyPayload
	}

	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return res, fmt.Errorf("%w: %w", ErrCodec, err)
	}

	want := TypeOf[T]()
	if !compatible(payload.Type, want) {
		return res, fmt.Errorf("%w: got %q, want %q", ErrTypeMismatch, payload.Type, want)
	}

	if len(payload.Value) == 0 {
		return res, ErrEmptyPayload
	}

	if err := json.Unmarshal(payload.Value, &res); err != nil {
		return res, fmt.Errorf("%w: %w", ErrCodec, err)
	}

	return res, nil
}

// PeekType returns the type tag of an encoded payload without decoding it.
func PeekType(data []byte) string {
	return gjson.GetBytes(data, "type").String()
}

// PeekString returns the value of an encoded payload if it holds a string.
func PeekString(data []byte) (string, bool) {
	if PeekType(data) != "string" {
		return "", false
	}

	value := gjson.GetBytes(data, "value")
	if value.Type != gjson.String {
		return "", false
	}

	return value.String(), true
}

// TypeName returns the type tag used for v.
func TypeName(v any) string {
	if v == nil {
		return ""
	}

	if tagged, ok := v.(Tagged); ok {
		return tagged.WireType()
	}

	return reflect.TypeOf(v).String()
}

// TypeOf returns the type tag used for values of type T.
func TypeOf[T any]() string {
	var zero T
	if tagged, ok := any(zero).(Tagged); ok {
		return tagged.WireType()
	}

	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func compatible(got, want string) bool {
	return got == want || dynamicTypes[got] || dynamicTypes[want]
}
