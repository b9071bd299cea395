// Package codec serializes snapshot trees (see value.Dump) to bytes.
//
// Every codec here round-trips generic data: map[string]any, []any and
// scalars. Numbers come back as whatever the format decodes to (float64 for
// JSON and protobuf, int64/uint64 for CBOR and msgpack).
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
