package kdf

import (
	"encoding/binary"

	"github.com/meridiancas/satlink/internal/constants"
)

const (
	domainChannelSecret   = "derive_channel_secret"
	domainSubscriptionKey = "derive_subscription_key"
	domainPictureKey      = "derive_picture_key"
)

// DeriveChannelSecret derives the 32-byte secret broadcast to decoders
// authorized for a channel, from the deployment's base channel secret.
func DeriveChannelSecret(baseChannelSecret [constants.LenBaseChannelSecret]byte, channelID uint32) [constants.LenChannelSecret]byte {
	var in [4]byte
	binary.LittleEndian.PutUint32(in[:], channelID)
	out := kmac256(baseChannelSecret[:], in[:], constants.LenChannelSecret, domainChannelSecret)
	var secret [constants.LenChannelSecret]byte
	copy(secret[:], out)
	return secret
}

// DeriveSubscriptionKey derives the per-decoder 16-byte subscription-message
// key stamped into a decoder's flash at provisioning time.
func DeriveSubscriptionKey(baseSubscriptionSecret [constants.LenBaseSubscriptionSecret]byte, decoderID uint32) [constants.LenAsconKey]byte {
	var in [4]byte
	binary.LittleEndian.PutUint32(in[:], decoderID)
	out := kmac128(baseSubscriptionSecret[:], in[:], constants.LenAsconKey, domainSubscriptionKey)
	var key [constants.LenAsconKey]byte
	copy(key[:], out)
	return key
}

// DerivePictureKey derives the per-(channel,timestamp) frame-picture key.
// The input is timestamp little-endian concatenated with its bitwise
// complement, also little-endian, guarding against timestamp-bit-flip
// collisions between distinct pictures.
func DerivePictureKey(channelSecret [constants.LenChannelSecret]byte, timestamp uint64) [constants.LenAsconKey]byte {
	var in [16]byte
	binary.LittleEndian.PutUint64(in[0:8], timestamp)
	binary.LittleEndian.PutUint64(in[8:16], ^timestamp)
	out := kmac128(channelSecret[:], in[:], constants.LenAsconKey, domainPictureKey)
	var key [constants.LenAsconKey]byte
	copy(key[:], out)
	return key
}
