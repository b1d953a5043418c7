// Package decode implements the frame decode pipeline (C5): two nested AEAD
// layers, a subscription lookup, hardened window/monotonicity checks, and
// the timestamp commit ordering that governs which failures still advance
// decoder state.
package decode

import (
	"errors"
	"fmt"

	"github.com/meridiancas/satlink/internal/aead"
	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/hardening"
	"github.com/meridiancas/satlink/internal/kdf"
	"github.com/meridiancas/satlink/internal/subscription"
	"github.com/meridiancas/satlink/internal/wire"
	"github.com/meridiancas/satlink/internal/zeroize"
)

// ErrDecode is the single error value the dispatch layer ever sees from a
// failed decode; the distinguishing cause exists only for tests and is never
// surfaced on the wire.
var ErrDecode = errors.New("decode: frame rejected")

// Pipeline runs C5 against a subscription store and the decoder's monotonic
// timestamp state.
type Pipeline struct {
	Store         *subscription.Store
	FrameKey      [constants.LenAsconKey]byte
	LastTimestamp uint64
}

// Decode validates and decrypts an encrypted frame, advancing
// p.LastTimestamp on success (and, per step 5's accepted edge case, even if
// the inner picture layer subsequently fails to decrypt).
func (p *Pipeline) Decode(encryptedFrame []byte) (wire.Picture, error) {
	if len(encryptedFrame) != constants.LenEncryptedFrame {
		return wire.Picture{}, fmt.Errorf("%w: wrong length", ErrDecode)
	}

	plain, err := aead.Decrypt(&p.FrameKey, encryptedFrame)
	if err != nil {
		return wire.Picture{}, fmt.Errorf("%w: outer layer: %v", ErrDecode, err)
	}
	frame, err := wire.DecodeDecryptedFrame(plain)
	zeroize.Bytes(plain)
	if err != nil {
		return wire.Picture{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if frame.PictureLength > constants.MaxLenPicture {
		return wire.Picture{}, fmt.Errorf("%w: picture length out of range", ErrDecode)
	}

	sub, err := p.Store.GetChannelSubscription(frame.ChannelID)
	if err != nil {
		return wire.Picture{}, fmt.Errorf("%w: no subscription for channel", ErrDecode)
	}
	defer zeroize.Array32(&sub.ChannelSecret)

	ts := frame.Timestamp
	windowOK := hardening.CheckRepeated(constants.HardenedRepeat, func() bool {
		return sub.Info.Start <= ts && ts <= sub.Info.End
	})
	monotonicOK := hardening.CheckRepeated(constants.HardenedRepeat, func() bool {
		return ts > p.LastTimestamp
	})
	if !(windowOK && monotonicOK) {
		return wire.Picture{}, fmt.Errorf("%w: window or monotonicity check failed", ErrDecode)
	}

	// Commit happens-before the inner decrypt: a subsequent inner-layer
	// failure still leaves the timestamp advanced (replay is still denied).
	p.LastTimestamp = ts

	pictureKey := kdf.DerivePictureKey(sub.ChannelSecret, ts)
	defer zeroize.Array16(&pictureKey)

	innerLen := int(frame.PictureLength) + constants.LenAsconAEADOverhead
	innerPlain, err := aead.Decrypt(&pictureKey, frame.EncryptedPicture[:innerLen])
	if err != nil {
		return wire.Picture{}, fmt.Errorf("%w: inner layer: %v", ErrDecode, err)
	}
	defer zeroize.Bytes(innerPlain)

	if len(innerPlain) != int(frame.PictureLength) {
		return wire.Picture{}, fmt.Errorf("%w: picture length mismatch", ErrDecode)
	}

	var pic wire.Picture
	pic.Length = frame.PictureLength
	copy(pic.Data[:], innerPlain)
	return pic, nil
}
