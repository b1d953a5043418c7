package layout

import (
	"fmt"

	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/flash"
)

// DeviceKeys is the per-decoder key material read back from the reserved
// flash region at boot: the frame key, the subscription key, and the RNG
// seed, all stamped in by the firmware builder and never transmitted.
type DeviceKeys struct {
	FrameKey        [constants.LenAsconKey]byte
	SubscriptionKey [constants.LenAsconKey]byte
	RNGSeed         [constants.LenRNGSeed]byte
}

// ReadDeviceKeys reads the reserved region of dev into a DeviceKeys value.
func ReadDeviceKeys(dev flash.Device) (DeviceKeys, error) {
	var keys DeviceKeys

	frameWord, err := dev.ReadWord(FrameKeyOffset)
	if err != nil {
		return keys, fmt.Errorf("layout: read frame key: %w", err)
	}
	copy(keys.FrameKey[:], frameWord[:])

	subWord, err := dev.ReadWord(SubscriptionKeyOffset)
	if err != nil {
		return keys, fmt.Errorf("layout: read subscription key: %w", err)
	}
	copy(keys.SubscriptionKey[:], subWord[:])

	for i := 0; i < constants.LenRNGSeed/16; i++ {
		w, err := dev.ReadWord(uint32(RNGSeedOffset + i*16))
		if err != nil {
			return keys, fmt.Errorf("layout: read rng seed word %d: %w", i, err)
		}
		copy(keys.RNGSeed[i*16:(i+1)*16], w[:])
	}
	return keys, nil
}

// WriteDeviceKeys stamps keys into the reserved region of dev. Callers must
// erase the reserved page first if it has been written before.
func WriteDeviceKeys(dev flash.Device, keys DeviceKeys) error {
	var frameWord, subWord [16]byte
	copy(frameWord[:], keys.FrameKey[:])
	copy(subWord[:], keys.SubscriptionKey[:])

	if err := dev.WriteWord(FrameKeyOffset, frameWord); err != nil {
		return fmt.Errorf("layout: write frame key: %w", err)
	}
	if err := dev.WriteWord(SubscriptionKeyOffset, subWord); err != nil {
		return fmt.Errorf("layout: write subscription key: %w", err)
	}
	for i := 0; i < constants.LenRNGSeed/16; i++ {
		var w [16]byte
		copy(w[:], keys.RNGSeed[i*16:(i+1)*16])
		if err := dev.WriteWord(uint32(RNGSeedOffset+i*16), w); err != nil {
			return fmt.Errorf("layout: write rng seed word %d: %w", i, err)
		}
	}
	return nil
}
