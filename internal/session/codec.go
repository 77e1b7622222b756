package session

import (
	"bytes"
	"encoding/gob"
)

// Encode and Decode provide a concrete wire serialization for the
// message bodies this package frames and sends. spec.md explicitly
// scopes "wire serialization beyond framing" out of the core — the
// session layer only depends on framing.Frame/Unframe — but a runnable
// binary still needs *some* concrete codec to put bytes on the wire.
// gob is used here, the same encoding the teacher reached for in its
// deleted event log; it needs no schema and keeps this supplemental
// layer out of the way of the framed byte-protocol the spec actually
// constrains.
func Encode(v any) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Decode decodes body into v, a pointer to the expected message type.
func Decode(body []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(body)).Decode(v)
}
