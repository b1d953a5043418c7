package subscription

import (
	"testing"

	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/flash"
	"github.com/meridiancas/satlink/internal/wire"
)

const (
	testPageSize = 256
	testNumSlots = 9 // slot 0 = emergency, 1..8 standard channels
)

func newTestStore(t *testing.T) (*Store, flash.Device) {
	t.Helper()
	dev := flash.NewMemory(testNumSlots, testPageSize)
	return New(dev, 0, testNumSlots), dev
}

func sub(channel uint32, start, end uint64, fill byte) wire.StoredSubscription {
	var secret [constants.LenChannelSecret]byte
	for i := range secret {
		secret[i] = fill
	}
	return wire.StoredSubscription{
		Info:          wire.SubscriptionInfo{ChannelID: channel, Start: start, End: end},
		ChannelSecret: secret,
	}
}

func TestFreshStoreHasNoSubscriptions(t *testing.T) {
	store, _ := newTestStore(t)
	if got := store.ListSubscriptions(); len(got) != 0 {
		t.Fatalf("expected empty list on fresh store, got %v", got)
	}
	if _, err := store.GetChannelSubscription(1); err != ErrInvalidSlot {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
}

func TestInstallAndList(t *testing.T) {
	store, _ := newTestStore(t)
	want := sub(1, 100, 200, 0x42)
	if err := store.UpdateSubscription(want); err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	list := store.ListSubscriptions()
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}
	if list[0] != want.Info {
		t.Fatalf("list entry mismatch: got %+v want %+v", list[0], want.Info)
	}

	got, err := store.GetChannelSubscription(1)
	if err != nil {
		t.Fatalf("GetChannelSubscription: %v", err)
	}
	if got.ChannelSecret != want.ChannelSecret {
		t.Fatalf("channel secret mismatch")
	}
}

func TestUpdateReplacesExistingSlot(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.UpdateSubscription(sub(1, 0, 10, 0x01)); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateSubscription(sub(2, 0, 10, 0x02)); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateSubscription(sub(1, 50, 60, 0x03)); err != nil {
		t.Fatal(err)
	}

	list := store.ListSubscriptions()
	if len(list) != 2 {
		t.Fatalf("expected exactly one entry per channel id, got %d entries: %+v", len(list), list)
	}
	for _, e := range list {
		if e.ChannelID == 1 && (e.Start != 50 || e.End != 60) {
			t.Fatalf("channel 1 was not overwritten in place: %+v", e)
		}
	}
}

func TestEmergencyChannelRejected(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.UpdateSubscription(sub(constants.EmergencyChannel, 0, 10, 0x01))
	if err != ErrEmergencyImmutable {
		t.Fatalf("expected ErrEmergencyImmutable, got %v", err)
	}
	if got := store.ListSubscriptions(); len(got) != 0 {
		t.Fatalf("channel 0 must not appear in the list, got %v", got)
	}
}

func TestEmergencySlotSurvivesHostUpdates(t *testing.T) {
	store, _ := newTestStore(t)
	emergency := sub(constants.EmergencyChannel, 0, ^uint64(0), 0xEE)
	if err := store.WriteEmergencySlot(emergency); err != nil {
		t.Fatal(err)
	}
	for i := uint32(1); i <= constants.MaxStdChannel; i++ {
		if err := store.UpdateSubscription(sub(i, 0, 10, byte(i))); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.GetChannelSubscription(constants.EmergencyChannel)
	if err != nil {
		t.Fatalf("emergency subscription lost: %v", err)
	}
	if got.Info != emergency.Info {
		t.Fatalf("emergency subscription mutated: got %+v want %+v", got.Info, emergency.Info)
	}
}

func TestNoSlotsAvailable(t *testing.T) {
	store, _ := newTestStore(t)
	for i := uint32(1); i <= constants.MaxStdChannel; i++ {
		if err := store.UpdateSubscription(sub(i, 0, 10, byte(i))); err != nil {
			t.Fatal(err)
		}
	}
	err := store.UpdateSubscription(sub(100, 0, 10, 0x99))
	if err != ErrNoSlotsAvailable {
		t.Fatalf("expected ErrNoSlotsAvailable, got %v", err)
	}
}

func TestComplementTamperMakesSlotAbsent(t *testing.T) {
	store, dev := newTestStore(t)
	if err := store.UpdateSubscription(sub(3, 1, 2, 0x09)); err != nil {
		t.Fatal(err)
	}
	mem := dev.(*flash.Memory)
	// Flash programming can only clear bits, never set them; zeroing the
	// complement row at slot 1 (offset 16) is guaranteed to break its
	// required bitwise-complement relationship with the header row.
	var zero [16]byte
	if err := mem.WriteWord(1*testPageSize+16, zero); err != nil {
		t.Fatal(err)
	}

	if _, err := store.GetSubscriptionAtIdx(1); err == nil {
		t.Fatalf("expected tampered complement row to read as invalid")
	}
}

func TestPowerLossMidWriteReadsAsAbsent(t *testing.T) {
	store, dev := newTestStore(t)
	mem := dev.(*flash.Memory)

	// Simulate a crash after the page erase but before any row is written:
	// the slot must read back as absent, not as a stale/garbage entry.
	if err := mem.ErasePage(1 * testPageSize); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetSubscriptionAtIdx(1); err != ErrInvalidSlot {
		t.Fatalf("expected ErrInvalidSlot after erase-only, got %v", err)
	}

	// Simulate a crash after data rows are written but before the header
	// (MAGIC) row: still must read as absent.
	if err := store.UpdateSubscription(sub(5, 9, 20, 0x55)); err != nil {
		t.Fatal(err)
	}
	if err := mem.ErasePage(1 * testPageSize); err != nil {
		t.Fatal(err)
	}
	var rangeRow, rangeComp [16]byte
	rangeRow[0] = 9
	rangeComp = complementOf(rangeRow)
	if err := mem.WriteWord(1*testPageSize+32, rangeRow); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteWord(1*testPageSize+48, rangeComp); err != nil {
		t.Fatal(err)
	}
	// Header row (offset 0/16) intentionally left erased (0xFF), simulating
	// power loss before it was written.
	if _, err := store.GetSubscriptionAtIdx(1); err != ErrInvalidSlot {
		t.Fatalf("expected ErrInvalidSlot with header unwritten, got %v", err)
	}
	if got := store.ListSubscriptions(); len(got) != 0 {
		t.Fatalf("interrupted write must not appear in list, got %v", got)
	}
}
