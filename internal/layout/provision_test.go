package layout

import (
	"testing"

	"github.com/meridiancas/satlink/internal/flash"
)

func TestWriteReadDeviceKeysRoundTrip(t *testing.T) {
	dev := flash.NewMemory(1, FlashPageSize)
	var want DeviceKeys
	for i := range want.FrameKey {
		want.FrameKey[i] = byte(i + 1)
	}
	for i := range want.SubscriptionKey {
		want.SubscriptionKey[i] = byte(i + 2)
	}
	for i := range want.RNGSeed {
		want.RNGSeed[i] = byte(i)
	}

	if err := WriteDeviceKeys(dev, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadDeviceKeys(dev)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestDeviceKeysOccupyDistinctOffsets(t *testing.T) {
	if FrameKeyOffset == SubscriptionKeyOffset || SubscriptionKeyOffset == RNGSeedOffset {
		t.Fatalf("device key regions overlap: frame=%d sub=%d seed=%d", FrameKeyOffset, SubscriptionKeyOffset, RNGSeedOffset)
	}
	if RNGSeedOffset+64 > ReservedRegionSize {
		t.Fatalf("rng seed region overruns reserved region: end=%d size=%d", RNGSeedOffset+64, ReservedRegionSize)
	}
}
