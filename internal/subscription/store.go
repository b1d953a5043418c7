// Package subscription implements the flash-backed subscription slot table:
// a fixed set of flash pages, each holding one subscription guarded by
// bitwise-complement integrity rows, written data-first/header-last so a
// power loss mid-write always reads back as an absent slot rather than a
// corrupted one.
package subscription

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/flash"
	"github.com/meridiancas/satlink/internal/hardening"
	"github.com/meridiancas/satlink/internal/wire"
	"github.com/meridiancas/satlink/internal/zeroize"
)

var (
	// ErrInvalidSlot is returned by reads against an absent/corrupt slot.
	// Per invariant I4 this is the same error whether the slot was never
	// written or failed an integrity check; callers never learn which.
	ErrInvalidSlot = errors.New("subscription: slot is absent or corrupt")

	// ErrEmergencyImmutable is returned for any attempt to update channel 0.
	ErrEmergencyImmutable = errors.New("subscription: emergency channel cannot be updated")

	// ErrNoSlotsAvailable is returned when no slot matches and none are free.
	ErrNoSlotsAvailable = errors.New("subscription: no slots available")
)

// StorageError wraps a flash-layer failure encountered while servicing a
// store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("subscription: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// Store is the durable slot table. NumSlots includes the reserved emergency
// slot at index 0; slots 1..NumSlots-1 are host-installable.
type Store struct {
	dev      flash.Device
	baseAddr uint32
	numSlots int
}

// New wraps a flash.Device presenting numSlots contiguous pages starting at
// baseAddr, one page per slot.
func New(dev flash.Device, baseAddr uint32, numSlots int) *Store {
	return &Store{dev: dev, baseAddr: baseAddr, numSlots: numSlots}
}

func (s *Store) slotAddr(idx int) uint32 {
	return s.baseAddr + uint32(idx)*s.dev.PageSize()
}

func complementOf(row [16]byte) [16]byte {
	var out [16]byte
	for i, b := range row {
		out[i] = ^b
	}
	return out
}

func rowsEqual(a, b [16]byte) bool { return a == b }

// readRows reads all SlotRowCount rows of a slot, in fixed order, regardless
// of whether earlier rows already look invalid; a uniform access pattern is
// itself part of the fault-injection hardening.
func (s *Store) readRows(idx int) ([constants.SlotRowCount][16]byte, error) {
	var rows [constants.SlotRowCount][16]byte
	base := s.slotAddr(idx)
	var firstErr error
	for i := 0; i < constants.SlotRowCount; i++ {
		row, err := s.dev.ReadWord(base + uint32(i*constants.SlotRowSize))
		if err != nil && firstErr == nil {
			firstErr = err
		}
		rows[i] = row
	}
	if firstErr != nil {
		return rows, &StorageError{Op: "read slot", Err: firstErr}
	}
	return rows, nil
}

// GetSubscriptionAtIdx validates and decodes the slot at idx. Every
// integrity check runs in fixed order and is independently re-evaluated
// HardenedRepeat times behind a compiler barrier; a single fault that flips
// one evaluation is still caught.
func (s *Store) GetSubscriptionAtIdx(idx int) (wire.StoredSubscription, error) {
	rows, err := s.readRows(idx)
	if err != nil {
		return wire.StoredSubscription{}, err
	}

	complementOK := hardening.CheckRepeated(constants.HardenedRepeat, func() bool {
		return rowsEqual(rows[1], complementOf(rows[0])) &&
			rowsEqual(rows[3], complementOf(rows[2])) &&
			rowsEqual(rows[5], complementOf(rows[4])) &&
			rowsEqual(rows[7], complementOf(rows[6]))
	})

	magicOK := hardening.CheckRepeated(constants.HardenedRepeat, func() bool {
		return isMagic(rows[0][0:4]) && isMagic(rows[0][8:12])
	})

	channelA := binary.LittleEndian.Uint32(rows[0][4:8])
	channelB := binary.LittleEndian.Uint32(rows[0][12:16])
	channelOK := hardening.CheckRepeated(constants.HardenedRepeat, func() bool {
		return channelA == channelB
	})

	start := binary.LittleEndian.Uint64(rows[2][0:8])
	end := binary.LittleEndian.Uint64(rows[2][8:16])
	rangeOK := hardening.CheckRepeated(constants.HardenedRepeat, func() bool {
		return start <= end
	})

	if !(complementOK && magicOK && channelOK && rangeOK) {
		return wire.StoredSubscription{}, ErrInvalidSlot
	}

	var secret [constants.LenChannelSecret]byte
	copy(secret[0:16], rows[4][:])
	copy(secret[16:32], rows[6][:])
	defer zeroize.Array32(&secret)

	stored := wire.StoredSubscription{
		Info:          wire.SubscriptionInfo{ChannelID: channelA, Start: start, End: end},
		ChannelSecret: secret,
	}
	return stored, nil
}

func isMagic(b []byte) bool {
	for _, v := range b {
		if v != constants.SlotMagicByte {
			return false
		}
	}
	return true
}

// GetChannelSubscription scans slots in index order and returns the first
// valid slot whose channel ID matches.
func (s *Store) GetChannelSubscription(channelID uint32) (wire.StoredSubscription, error) {
	for idx := 0; idx < s.numSlots; idx++ {
		sub, err := s.GetSubscriptionAtIdx(idx)
		if err != nil {
			continue
		}
		if sub.Info.ChannelID == channelID {
			return sub, nil
		}
	}
	return wire.StoredSubscription{}, ErrInvalidSlot
}

// ListSubscriptions scans all non-emergency slots (1..NumSlots-1) and
// returns the valid ones in slot order.
func (s *Store) ListSubscriptions() []wire.SubscriptionInfo {
	out := make([]wire.SubscriptionInfo, 0, s.numSlots-1)
	for idx := 1; idx < s.numSlots; idx++ {
		sub, err := s.GetSubscriptionAtIdx(idx)
		if err != nil {
			continue
		}
		out = append(out, sub.Info)
	}
	return out
}

// UpdateSubscription installs new into the slot table. Per I6 it refuses the
// emergency channel outright. It first searches every slot for an existing
// valid entry with a matching channel ID (global priority over slot order);
// only if none is found does it claim the first slot that fails validation.
func (s *Store) UpdateSubscription(new wire.StoredSubscription) error {
	if new.Info.ChannelID == constants.EmergencyChannel {
		return ErrEmergencyImmutable
	}

	targetIdx := -1
	for idx := 1; idx < s.numSlots; idx++ {
		sub, err := s.GetSubscriptionAtIdx(idx)
		if err == nil && sub.Info.ChannelID == new.Info.ChannelID {
			targetIdx = idx
			break
		}
	}
	if targetIdx == -1 {
		for idx := 1; idx < s.numSlots; idx++ {
			if _, err := s.GetSubscriptionAtIdx(idx); err != nil {
				targetIdx = idx
				break
			}
		}
	}
	if targetIdx == -1 {
		return ErrNoSlotsAvailable
	}

	return s.writeSlot(targetIdx, new)
}

// writeSlot erases the page then writes data rows before the header row, so
// that power loss mid-write always leaves the slot reading as absent
// (invariant required by P8): the header row (MAGIC and channel id) and its
// complement are the last two rows written, and a read only accepts the slot
// once both are present and agree.
func (s *Store) writeSlot(idx int, sub wire.StoredSubscription) error {
	base := s.slotAddr(idx)

	if err := s.dev.ErasePage(base); err != nil {
		return &StorageError{Op: "erase slot", Err: err}
	}

	var rangeRow, secretRow0, secretRow1 [16]byte
	binary.LittleEndian.PutUint64(rangeRow[0:8], sub.Info.Start)
	binary.LittleEndian.PutUint64(rangeRow[8:16], sub.Info.End)
	copy(secretRow0[:], sub.ChannelSecret[0:16])
	copy(secretRow1[:], sub.ChannelSecret[16:32])

	writes := []struct {
		offset uint32
		row    [16]byte
	}{
		{32, rangeRow},
		{48, complementOf(rangeRow)},
		{64, secretRow0},
		{80, complementOf(secretRow0)},
		{96, secretRow1},
		{112, complementOf(secretRow1)},
	}
	for _, w := range writes {
		if err := s.dev.WriteWord(base+w.offset, w.row); err != nil {
			return &StorageError{Op: "write slot data", Err: err}
		}
	}

	var headerRow [16]byte
	var chanID [4]byte
	binary.LittleEndian.PutUint32(chanID[:], sub.Info.ChannelID)
	for i := 0; i < 4; i++ {
		headerRow[i] = constants.SlotMagicByte
	}
	copy(headerRow[4:8], chanID[:])
	for i := 8; i < 12; i++ {
		headerRow[i] = constants.SlotMagicByte
	}
	copy(headerRow[12:16], chanID[:])

	if err := s.dev.WriteWord(base+0, headerRow); err != nil {
		return &StorageError{Op: "write slot header", Err: err}
	}
	if err := s.dev.WriteWord(base+16, complementOf(headerRow)); err != nil {
		return &StorageError{Op: "write slot header complement", Err: err}
	}

	return nil
}

// WriteEmergencySlot installs the permanent channel-0 subscription at slot 0.
// Only the provisioning tooling calls this; the host protocol path (C6)
// never reaches it because UpdateSubscription rejects channel 0 outright.
func (s *Store) WriteEmergencySlot(sub wire.StoredSubscription) error {
	if sub.Info.ChannelID != constants.EmergencyChannel {
		return fmt.Errorf("subscription: emergency slot must carry channel id 0")
	}
	return s.writeSlot(0, sub)
}
