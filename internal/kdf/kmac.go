// Package kdf implements the three key-derivation functions the crypto
// hierarchy is built from. All three are KMAC (NIST SP 800-185) instances
// with distinct domain-separation customization strings; KMAC itself is
// built here directly on golang.org/x/crypto/sha3's cSHAKE primitive rather
// than a pre-built MAC constructor, since no dependency available here
// exposes a stable, versioned KMAC constructor; cSHAKE is a long-stable
// primitive to build it from.
package kdf

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

const kmacFunctionName = "KMAC"

// kmac256 computes KMAC256(key, data, outputLen, customization) per SP 800-185.
func kmac256(key, data []byte, outputBytes int, customization string) []byte {
	h := sha3.NewCShake256([]byte(kmacFunctionName), []byte(customization))
	h.Write(bytepad(encodeString(key), 136))
	h.Write(data)
	h.Write(rightEncode(uint64(outputBytes) * 8))
	out := make([]byte, outputBytes)
	h.Read(out)
	return out
}

func kmac128(key, data []byte, outputBytes int, customization string) []byte {
	h := sha3.NewCShake128([]byte(kmacFunctionName), []byte(customization))
	h.Write(bytepad(encodeString(key), 168))
	h.Write(data)
	h.Write(rightEncode(uint64(outputBytes) * 8))
	out := make([]byte, outputBytes)
	h.Read(out)
	return out
}

// leftEncode implements SP 800-185's left_encode: the length n, encoded as
// the fewest bytes necessary, prefixed by a byte giving that count.
func leftEncode(n uint64) []byte {
	if n == 0 {
		return []byte{1, 0}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	i := 0
	for i < 8 && buf[i] == 0 {
		i++
	}
	out := make([]byte, 0, 9)
	out = append(out, byte(8-i))
	out = append(out, buf[i:]...)
	return out
}

func rightEncode(n uint64) []byte {
	if n == 0 {
		return []byte{0, 1}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	i := 0
	for i < 8 && buf[i] == 0 {
		i++
	}
	out := make([]byte, 0, 9)
	out = append(out, buf[i:]...)
	out = append(out, byte(8-i))
	return out
}

// encodeString implements encode_string: left_encode(bit length) || string.
func encodeString(s []byte) []byte {
	out := leftEncode(uint64(len(s)) * 8)
	return append(out, s...)
}

// bytepad prepends left_encode(w) to x and pads with zero bytes until the
// result is a multiple of w bytes long.
func bytepad(x []byte, w int) []byte {
	prefix := leftEncode(uint64(w))
	out := append(prefix, x...)
	if rem := len(out) % w; rem != 0 {
		out = append(out, make([]byte, w-rem)...)
	}
	return out
}
