// Package aead implements the single authenticated-encryption scheme used
// everywhere in this system: Ascon-128 with a 16-byte key, a 16-byte nonce
// prefixed onto the ciphertext, a 16-byte tag, and always-empty associated
// data. There is no general-purpose AEAD registry here: one algorithm, one
// wire shape, hand-rolled directly atop the algorithm spec rather than
// pulling in a general cipher-suite framework.
package aead

import (
	"encoding/binary"
	"errors"

	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/zeroize"
)

// ErrAuthFailed is returned, with no further detail, whenever a tag fails to
// verify. Callers must never branch on anything but this sentinel, no
// partial plaintext is ever returned alongside it.
var ErrAuthFailed = errors.New("aead: authentication failed")

const (
	rate = 8 // Ascon-128 rate: one 64-bit word per block
)

var roundConstants = [12]uint64{
	0xf0, 0xe1, 0xd2, 0xc3, 0xb4, 0xa5,
	0x96, 0x87, 0x78, 0x69, 0x5a, 0x4b,
}

// iv is the fixed Ascon-128 initialization vector encoding
// (key bits=128, rate bits=64, a=12, b=6, 0...).
const iv uint64 = 0x80400c0600000000

type state [5]uint64

func rotr(x uint64, n uint) uint64 { return (x >> n) | (x << (64 - n)) }

func (s *state) round(rc uint64) {
	x0, x1, x2, x3, x4 := s[0], s[1], s[2], s[3], s[4]

	x2 ^= rc

	x0 ^= x4
	x4 ^= x3
	x2 ^= x1

	t0 := ^x0 & x1
	t1 := ^x1 & x2
	t2 := ^x2 & x3
	t3 := ^x3 & x4
	t4 := ^x4 & x0

	x0 ^= t1
	x1 ^= t2
	x2 ^= t3
	x3 ^= t4
	x4 ^= t0

	x1 ^= x0
	x0 ^= x4
	x3 ^= x2
	x2 = ^x2

	x0 ^= rotr(x0, 19) ^ rotr(x0, 28)
	x1 ^= rotr(x1, 61) ^ rotr(x1, 39)
	x2 ^= rotr(x2, 1) ^ rotr(x2, 6)
	x3 ^= rotr(x3, 10) ^ rotr(x3, 17)
	x4 ^= rotr(x4, 7) ^ rotr(x4, 41)

	s[0], s[1], s[2], s[3], s[4] = x0, x1, x2, x3, x4
}

func (s *state) permute12() {
	for _, rc := range roundConstants {
		s.round(rc)
	}
}

func (s *state) permute6() {
	for _, rc := range roundConstants[6:] {
		s.round(rc)
	}
}

func initState(key, nonce *[16]byte) *state {
	k0 := binary.BigEndian.Uint64(key[0:8])
	k1 := binary.BigEndian.Uint64(key[8:16])
	n0 := binary.BigEndian.Uint64(nonce[0:8])
	n1 := binary.BigEndian.Uint64(nonce[8:16])

	s := &state{iv, k0, k1, n0, n1}
	s.permute12()
	s[3] ^= k0
	s[4] ^= k1

	// Domain separation for empty associated data: since there is no AD
	// block to absorb, the rate-end domain bit is applied immediately.
	s[4] ^= 1
	return s
}

func finalize(s *state, key *[16]byte) [16]byte {
	k0 := binary.BigEndian.Uint64(key[0:8])
	k1 := binary.BigEndian.Uint64(key[8:16])

	s[1] ^= k0
	s[2] ^= k1
	s.permute12()
	s[3] ^= k0
	s[4] ^= k1

	var tag [16]byte
	binary.BigEndian.PutUint64(tag[0:8], s[3])
	binary.BigEndian.PutUint64(tag[8:16], s[4])
	return tag
}

// Encrypt produces nonce || ciphertext || tag for plaintext under key and
// nonce. Used only by off-device tooling: the decoder core never encrypts.
func Encrypt(key *[constants.LenAsconKey]byte, nonce *[constants.LenAsconNonce]byte, plaintext []byte) []byte {
	s := initState(key, nonce)

	out := make([]byte, constants.LenAsconNonce+len(plaintext)+constants.LenAsconTag)
	copy(out[:constants.LenAsconNonce], nonce[:])
	ct := out[constants.LenAsconNonce : constants.LenAsconNonce+len(plaintext)]

	rem := plaintext
	dst := ct
	for len(rem) >= rate {
		block := binary.BigEndian.Uint64(rem[:rate])
		s[0] ^= block
		binary.BigEndian.PutUint64(dst[:rate], s[0])
		s.permute6()
		rem = rem[rate:]
		dst = dst[rate:]
	}
	// Final partial (or empty) block, padded with a single 1 bit then zeros.
	var padded [rate]byte
	copy(padded[:], rem)
	padded[len(rem)] |= 0x80
	block := binary.BigEndian.Uint64(padded[:])
	s[0] ^= block
	var finalWord [rate]byte
	binary.BigEndian.PutUint64(finalWord[:], s[0])
	copy(dst, finalWord[:len(rem)])

	tag := finalize(s, key)
	copy(out[constants.LenAsconNonce+len(plaintext):], tag[:])
	return out
}

// Decrypt verifies and decrypts a nonce-prefixed ciphertext produced by
// Encrypt. On any tag mismatch it returns ErrAuthFailed and a nil slice:
// callers must never look at partial output.
func Decrypt(key *[constants.LenAsconKey]byte, nonceAndCiphertext []byte) ([]byte, error) {
	if len(nonceAndCiphertext) < constants.LenAsconAEADOverhead {
		return nil, ErrAuthFailed
	}
	var nonce [constants.LenAsconNonce]byte
	copy(nonce[:], nonceAndCiphertext[:constants.LenAsconNonce])
	body := nonceAndCiphertext[constants.LenAsconNonce:]
	ctLen := len(body) - constants.LenAsconTag
	ct := body[:ctLen]
	wantTag := body[ctLen:]

	s := initState(key, &nonce)
	pt := make([]byte, ctLen)

	rem := ct
	dst := pt
	for len(rem) >= rate {
		c := binary.BigEndian.Uint64(rem[:rate])
		p := s[0] ^ c
		binary.BigEndian.PutUint64(dst[:rate], p)
		s[0] = c
		s.permute6()
		rem = rem[rate:]
		dst = dst[rate:]
	}
	n := len(rem)
	var ctTail [rate]byte
	copy(ctTail[:], rem)
	ctWord := binary.BigEndian.Uint64(ctTail[:])
	pWord := s[0] ^ ctWord
	var pBytes [rate]byte
	binary.BigEndian.PutUint64(pBytes[:], pWord)
	copy(dst, pBytes[:n])

	// State update mirrors encryption's XOR of the padded plaintext block:
	// S' = S XOR (P || 0x80 || 0...), where P is the n recovered bytes, so the
	// first n state bytes become the ciphertext bytes.
	var padBit [rate]byte
	padBit[n] = 0x80
	padBitWord := binary.BigEndian.Uint64(padBit[:])
	ptMask := ^uint64(0) << (64 - 8*uint(n))
	s[0] ^= (pWord & ptMask) ^ padBitWord

	tag := finalize(s, key)

	if !constantTimeEqual(tag[:], wantTag) {
		zeroize.Bytes(pt)
		return nil, ErrAuthFailed
	}
	return pt, nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
