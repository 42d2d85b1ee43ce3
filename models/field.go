package models

import (
	"bytes"
	"encoding/json"
)

// Field is an optional value that remembers whether it was supplied. Decoding
// JSON marks the field as set even when the value is null or empty.
type Field[T any] struct {
	Set   bool
	Value T
}

// Some returns a set field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.Value = zero
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}
