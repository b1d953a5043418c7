package update

import (
	"testing"

	"github.com/meridiancas/satlink/internal/aead"
	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/flash"
	"github.com/meridiancas/satlink/internal/subscription"
	"github.com/meridiancas/satlink/internal/wire"
)

const (
	testPageSize = 256
	testNumSlots = 9
)

func newPipeline(t *testing.T) (*Pipeline, *subscription.Store) {
	t.Helper()
	dev := flash.NewMemory(testNumSlots, testPageSize)
	store := subscription.New(dev, 0, testNumSlots)
	var key [constants.LenAsconKey]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	return &Pipeline{Store: store, SubscriptionKey: key}, store
}

func encryptSubscription(t *testing.T, key [constants.LenAsconKey]byte, stored wire.StoredSubscription) []byte {
	t.Helper()
	var nonce [constants.LenAsconNonce]byte
	nonce[0] = 0x9
	return aead.Encrypt(&key, &nonce, stored.Encode())
}

func TestUpdateInstallsSubscription(t *testing.T) {
	p, store := newPipeline(t)
	stored := wire.StoredSubscription{Info: wire.SubscriptionInfo{ChannelID: 1, Start: 10, End: 20}}
	msg := encryptSubscription(t, p.SubscriptionKey, stored)

	if err := p.Update(msg); err != nil {
		t.Fatalf("Update: %v", err)
	}
	list := store.ListSubscriptions()
	if len(list) != 1 || list[0].ChannelID != 1 {
		t.Fatalf("unexpected list after update: %+v", list)
	}
}

func TestUpdateRejectsEmergencyChannel(t *testing.T) {
	p, _ := newPipeline(t)
	stored := wire.StoredSubscription{Info: wire.SubscriptionInfo{ChannelID: constants.EmergencyChannel, Start: 0, End: 10}}
	msg := encryptSubscription(t, p.SubscriptionKey, stored)

	if err := p.Update(msg); err == nil {
		t.Fatalf("expected rejection of emergency channel update")
	}
}

func TestUpdateRejectsInvertedWindow(t *testing.T) {
	p, _ := newPipeline(t)
	stored := wire.StoredSubscription{Info: wire.SubscriptionInfo{ChannelID: 1, Start: 20, End: 10}}
	msg := encryptSubscription(t, p.SubscriptionKey, stored)

	if err := p.Update(msg); err == nil {
		t.Fatalf("expected rejection of start > end")
	}
}

func TestUpdateRejectsOutOfRangeChannel(t *testing.T) {
	p, _ := newPipeline(t)
	stored := wire.StoredSubscription{Info: wire.SubscriptionInfo{ChannelID: constants.MaxStdChannel + 1, Start: 0, End: 10}}
	msg := encryptSubscription(t, p.SubscriptionKey, stored)

	if err := p.Update(msg); err == nil {
		t.Fatalf("expected rejection of out-of-range channel id")
	}
}

func TestUpdateRejectsAuthFailure(t *testing.T) {
	p, _ := newPipeline(t)
	stored := wire.StoredSubscription{Info: wire.SubscriptionInfo{ChannelID: 1, Start: 0, End: 10}}
	msg := encryptSubscription(t, p.SubscriptionKey, stored)
	msg[0] ^= 0x01

	if err := p.Update(msg); err == nil {
		t.Fatalf("expected rejection of tampered message")
	}
}
