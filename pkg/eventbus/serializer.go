package eventbus

import "errors"

// Serialization errors shared by all codecs.
var (
	// ErrInvalidData reports data that cannot be serialized or deserialized.
	ErrInvalidData = errors.New("invalid data for serialization")

	// ErrUnsupportedType reports a Go type the codec cannot handle.
	ErrUnsupportedType = errors.New("unsupported type for serialization")
)

// Serializer converts payloads to and from their wire encoding. Producers
// publishing their own message types pick a codec here; change envelopes
// always travel as JSON.
type Serializer interface {
	// Serialize converts a Go object to bytes.
	Serialize(v interface{}) ([]byte, error)

	// Deserialize converts bytes back into target, which must be a pointer
	// to the destination object.
	Deserialize(data []byte, target interface{}) error

	// ContentType returns the MIME type of the encoding.
	// Examples: "application/json", "application/protobuf"
	ContentType() string
}
