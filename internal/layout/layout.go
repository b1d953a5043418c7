// Package layout defines the provisioned flash memory map shared by the
// firmware builder (which writes it) and the decoder binary (which reads
// it): where the root keys and RNG seed live, and where the subscription
// slot table begins.
package layout

import "github.com/meridiancas/satlink/internal/constants"

const (
	// FlashPageSize matches the MAX78000-class target's 8 KiB flash page,
	// even though a subscription slot only occupies the first 128 bytes of
	// its page.
	FlashPageSize = 8192

	// NumSlots includes the reserved emergency slot at index 0.
	NumSlots = constants.MaxStdChannel + 1

	FrameKeyOffset        = 0
	SubscriptionKeyOffset = FrameKeyOffset + constants.LenAsconKey
	RNGSeedOffset         = SubscriptionKeyOffset + constants.LenAsconKey
	ReservedRegionSize    = RNGSeedOffset + constants.LenRNGSeed

	// SlotTableBase starts at the first page boundary after the reserved
	// region so the reserved key material and the slot table never share a
	// page (a page erase for slot maintenance must never touch the keys).
	SlotTableBase = FlashPageSize

	// NumPages is the total page count a flash image must provide: one for
	// the reserved region, one per slot.
	NumPages = 1 + NumSlots
)
