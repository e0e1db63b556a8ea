package cache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// keyNamespace seeds the name-based UUIDs that identify cached texts.
var keyNamespace = uuid.UUID{14: 0x07, 15: 0xc1}

// Key returns the cache key for text under namespace: the namespace followed
// by the version 5 UUID of the text. Equal inputs always give equal keys and
// distinct namespaces never share a key.
func Key(namespace, text string) string {
	return namespace + uuid.NewSHA1(keyNamespace, []byte(text)).String()
}

// EncodeVector serializes v as consecutive little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector: %d bytes is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
