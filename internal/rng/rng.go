// Package rng implements the decoder's non-cryptographic protocol-jitter
// CSPRNG: a ChaCha20 stream reseeded periodically from TRNG and timer
// entropy, mirroring the seed-then-reseed discipline of the firmware's
// original ChaCha20-based generator.
package rng

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/sha3"

	"github.com/meridiancas/satlink/internal/constants"
)

// Entropy is the external collaborator supplying true randomness and a
// monotonic tick count; on the real target these read a TRNG peripheral and
// a free-running timer register.
type Entropy interface {
	TRNGWord() uint32
	TimerTick() uint32
}

// Rng is a reseeding CSPRNG. It is not safe for concurrent use; the host-link
// driver owns a single instance for the lifetime of a boot session.
type Rng struct {
	entropy   Entropy
	stream    cipher.Stream
	seed      [32]byte
	emitCount uint32
}

// New seeds a fresh generator from a flash-provisioned per-device seed plus
// constants.RNGTRNGSamples/RNGTimerSamples entropy samples, following the
// same absorb-then-derive-key construction used by the original generator.
func New(provisionedSeed [constants.LenRNGSeed]byte, entropy Entropy) (*Rng, error) {
	r := &Rng{entropy: entropy}
	r.seed = hashSeed(provisionedSeed[:], entropy, constants.RNGTRNGSamples, constants.RNGTimerSamples)
	if err := r.rekey(); err != nil {
		return nil, err
	}
	return r, nil
}

func hashSeed(base []byte, entropy Entropy, trngSamples, timerSamples int) [32]byte {
	h := sha3.New256()
	h.Write(base)
	var buf [4]byte
	for i := 0; i < trngSamples; i++ {
		binary.LittleEndian.PutUint32(buf[:], entropy.TRNGWord())
		h.Write(buf[:])
	}
	for i := 0; i < timerSamples; i++ {
		binary.LittleEndian.PutUint32(buf[:], entropy.TimerTick())
		h.Write(buf[:])
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

func (r *Rng) rekey() error {
	var nonce [chacha20.NonceSize]byte
	s, err := chacha20.NewUnauthenticatedCipher(r.seed[:], nonce[:])
	if err != nil {
		return fmt.Errorf("rng: init chacha20 stream: %w", err)
	}
	r.stream = s
	r.emitCount = 0
	return nil
}

// reseed re-hashes the current seed with a small number of fresh entropy
// samples, per RESEED_COUNTER discipline, and re-keys the stream cipher.
func (r *Rng) reseed() error {
	r.seed = hashSeed(r.seed[:], r.entropy, constants.RNGReseedSamples, constants.RNGReseedSamples)
	return r.rekey()
}

// Uint32 returns the next pseudo-random word, auto-reseeding every
// constants.RNGReseedEvery emissions.
func (r *Rng) Uint32() uint32 {
	var buf [4]byte
	r.stream.XORKeyStream(buf[:], buf[:])
	r.emitCount++
	if r.emitCount >= constants.RNGReseedEvery {
		// Reseed failure here would only degrade jitter quality, never
		// correctness of a cryptographic operation; ignore it rather than
		// abort the caller's operation.
		_ = r.reseed()
	}
	return binary.LittleEndian.Uint32(buf[:])
}

// Bytes fills b with pseudo-random bytes, one word at a time.
func (r *Rng) Bytes(b []byte) {
	for len(b) > 0 {
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], r.Uint32())
		n := copy(b, word[:])
		b = b[n:]
	}
}
