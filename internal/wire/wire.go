// Package wire defines the fixed little-endian binary layouts that cross the
// host link and the flash store: subscription info, stored subscriptions,
// and decoded/encoded frames. None of these types know how to transport or
// encrypt themselves; they are pure codecs over fixed-size byte layouts.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/meridiancas/satlink/internal/constants"
)

// SubscriptionInfo is the channel/window triple shared by subscription
// messages, the flash store, and the list-response payload.
type SubscriptionInfo struct {
	ChannelID uint32
	Start     uint64
	End       uint64
}

func (s SubscriptionInfo) Encode() []byte {
	out := make([]byte, constants.LenSubscriptionInfo)
	binary.LittleEndian.PutUint32(out[0:4], s.ChannelID)
	binary.LittleEndian.PutUint64(out[4:12], s.Start)
	binary.LittleEndian.PutUint64(out[12:20], s.End)
	return out
}

func DecodeSubscriptionInfo(b []byte) (SubscriptionInfo, error) {
	if len(b) != constants.LenSubscriptionInfo {
		return SubscriptionInfo{}, fmt.Errorf("wire: subscription info must be %d bytes, got %d", constants.LenSubscriptionInfo, len(b))
	}
	return SubscriptionInfo{
		ChannelID: binary.LittleEndian.Uint32(b[0:4]),
		Start:     binary.LittleEndian.Uint64(b[4:12]),
		End:       binary.LittleEndian.Uint64(b[12:20]),
	}, nil
}

// StoredSubscription is a SubscriptionInfo plus the channel secret it
// carries, as held in a flash slot and as decrypted from a subscribe
// message.
type StoredSubscription struct {
	Info          SubscriptionInfo
	ChannelSecret [constants.LenChannelSecret]byte
}

func (s StoredSubscription) Encode() []byte {
	out := make([]byte, 0, constants.LenStoredSubscription)
	out = append(out, s.Info.Encode()...)
	out = append(out, s.ChannelSecret[:]...)
	return out
}

func DecodeStoredSubscription(b []byte) (StoredSubscription, error) {
	if len(b) != constants.LenStoredSubscription {
		return StoredSubscription{}, fmt.Errorf("wire: stored subscription must be %d bytes, got %d", constants.LenStoredSubscription, len(b))
	}
	info, err := DecodeSubscriptionInfo(b[:constants.LenSubscriptionInfo])
	if err != nil {
		return StoredSubscription{}, err
	}
	var secret [constants.LenChannelSecret]byte
	copy(secret[:], b[constants.LenSubscriptionInfo:])
	return StoredSubscription{Info: info, ChannelSecret: secret}, nil
}

// DecryptedFrame is the plaintext outer layer of an encrypted frame: the
// channel, timestamp, and an inner AEAD-encrypted picture blob.
type DecryptedFrame struct {
	ChannelID        uint32
	Timestamp        uint64
	PictureLength    uint8
	EncryptedPicture [constants.LenEncryptedPicture]byte
}

func (f DecryptedFrame) Encode() []byte {
	out := make([]byte, constants.LenDecryptedFrame)
	binary.LittleEndian.PutUint32(out[0:4], f.ChannelID)
	binary.LittleEndian.PutUint64(out[4:12], f.Timestamp)
	out[12] = f.PictureLength
	copy(out[13:], f.EncryptedPicture[:])
	return out
}

func DecodeDecryptedFrame(b []byte) (DecryptedFrame, error) {
	if len(b) != constants.LenDecryptedFrame {
		return DecryptedFrame{}, fmt.Errorf("wire: decrypted frame must be %d bytes, got %d", constants.LenDecryptedFrame, len(b))
	}
	f := DecryptedFrame{
		ChannelID:     binary.LittleEndian.Uint32(b[0:4]),
		Timestamp:     binary.LittleEndian.Uint64(b[4:12]),
		PictureLength: b[12],
	}
	copy(f.EncryptedPicture[:], b[13:])
	return f, nil
}

// Picture is a decoded plaintext picture, at most MaxLenPicture bytes.
type Picture struct {
	Length uint8
	Data   [constants.MaxLenPicture]byte
}

func (p Picture) Bytes() []byte {
	return p.Data[:p.Length]
}

// ListEntry is one (channel_id, start, end) triple in a list-response
// payload; identical layout to SubscriptionInfo, named separately because
// it is a wire concept rather than a store concept.
type ListEntry = SubscriptionInfo

// EncodeListResponse builds the count-prefixed list-response payload.
func EncodeListResponse(entries []SubscriptionInfo) []byte {
	out := make([]byte, 4, 4+len(entries)*constants.LenSubscriptionInfo)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(entries)))
	for _, e := range entries {
		out = append(out, e.Encode()...)
	}
	return out
}

// DecodeListResponse parses a count-prefixed list-response payload back into
// its entries.
func DecodeListResponse(b []byte) ([]SubscriptionInfo, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("wire: list response must be at least 4 bytes, got %d", len(b))
	}
	count := binary.LittleEndian.Uint32(b[0:4])
	b = b[4:]
	want := int(count) * constants.LenSubscriptionInfo
	if len(b) != want {
		return nil, fmt.Errorf("wire: list response declares %d entries, has %d bytes, want %d", count, len(b), want)
	}
	entries := make([]SubscriptionInfo, count)
	for i := range entries {
		off := i * constants.LenSubscriptionInfo
		info, err := DecodeSubscriptionInfo(b[off : off+constants.LenSubscriptionInfo])
		if err != nil {
			return nil, err
		}
		entries[i] = info
	}
	return entries, nil
}
