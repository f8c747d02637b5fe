package eventbus

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// For any malformed input, deserialization must fail with a descriptive
// error instead of silently producing a partial payload.
func TestProperty_SerializerErrorHandling(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("JSON deserializer rejects random bytes", prop.ForAll(
		func(raw []byte) bool {
			serializer := NewJSONSerializer()
			var target changeRecord

			err := serializer.Deserialize(raw, &target)
			if err == nil {
				t.Logf("expected error for %d random bytes, got nil", len(raw))
				return false
			}
			return err.Error() != ""
		},
		gen.SliceOfN(100, gen.UInt8()),
	))

	properties.Property("JSON deserializer rejects nil target regardless of data", prop.ForAll(
		func(raw []byte) bool {
			serializer := NewJSONSerializer()

			err := serializer.Deserialize(raw, nil)
			if !errors.Is(err, ErrInvalidData) {
				t.Logf("expected ErrInvalidData, got: %v", err)
				return false
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("protobuf deserializer rejects truncated varints", prop.ForAll(
		func(seed byte) bool {
			serializer := NewProtobufSerializer()
			target := &wrapperspb.StringValue{}

			// A single byte with the continuation bit set is always an
			// incomplete varint.
			err := serializer.Deserialize([]byte{0x80 | seed}, target)
			if err == nil {
				t.Logf("expected error for truncated varint 0x%02x", 0x80|seed)
				return false
			}
			return true
		},
		gen.UInt8(),
	))

	properties.Property("protobuf deserializer rejects nil target regardless of data", prop.ForAll(
		func(raw []byte) bool {
			serializer := NewProtobufSerializer()

			err := serializer.Deserialize(raw, nil)
			if !errors.Is(err, ErrInvalidData) {
				t.Logf("expected ErrInvalidData, got: %v", err)
				return false
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("protobuf deserializer rejects non-protobuf targets", prop.ForAll(
		func(raw []byte) bool {
			serializer := NewProtobufSerializer()
			var target string

			err := serializer.Deserialize(raw, &target)
			if !errors.Is(err, ErrUnsupportedType) {
				t.Logf("expected ErrUnsupportedType, got: %v", err)
				return false
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
