// Package schema holds the Avro event schemas and the registry aware
// serdes used to put them on the wire.
package schema

import "github.com/hamba/avro/v2"

// AvroEncodeFn binds s to an avro marshaler.
func AvroEncodeFn(s avro.Schema) func(v any) ([]byte, error) {
	return func(v any) ([]byte, error) {
		return avro.Marshal(s, v)
	}
}

// AvroDecodeFn binds s to an avro unmarshaler. v must be a pointer.
func AvroDecodeFn(s avro.Schema) func([]byte, any) error {
	return func(data []byte, v any) error {
		return avro.Unmarshal(s, data, v)
	}
}
