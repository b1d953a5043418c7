package wire

import (
	"testing"

	"github.com/meridiancas/satlink/internal/constants"
)

func TestSubscriptionInfoRoundTrip(t *testing.T) {
	want := SubscriptionInfo{ChannelID: 3, Start: 1000, End: 2000}
	got, err := DecodeSubscriptionInfo(want.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDecodeSubscriptionInfoRejectsWrongLength(t *testing.T) {
	if _, err := DecodeSubscriptionInfo(make([]byte, constants.LenSubscriptionInfo-1)); err == nil {
		t.Fatal("expected error for short input")
	}
}

func TestStoredSubscriptionRoundTrip(t *testing.T) {
	var secret [constants.LenChannelSecret]byte
	for i := range secret {
		secret[i] = byte(i)
	}
	want := StoredSubscription{
		Info:          SubscriptionInfo{ChannelID: 7, Start: 5, End: 9},
		ChannelSecret: secret,
	}
	got, err := DecodeStoredSubscription(want.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDecodeStoredSubscriptionRejectsWrongLength(t *testing.T) {
	if _, err := DecodeStoredSubscription(make([]byte, constants.LenStoredSubscription+1)); err == nil {
		t.Fatal("expected error for wrong-length input")
	}
}

func TestDecryptedFrameRoundTrip(t *testing.T) {
	var enc [constants.LenEncryptedPicture]byte
	for i := range enc {
		enc[i] = byte(i * 2)
	}
	want := DecryptedFrame{
		ChannelID:        4,
		Timestamp:        123456789,
		PictureLength:    42,
		EncryptedPicture: enc,
	}
	got, err := DecodeDecryptedFrame(want.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDecodeDecryptedFrameRejectsWrongLength(t *testing.T) {
	if _, err := DecodeDecryptedFrame(make([]byte, constants.LenDecryptedFrame-5)); err == nil {
		t.Fatal("expected error for wrong-length input")
	}
}

func TestPictureBytesTruncatesToLength(t *testing.T) {
	var p Picture
	p.Length = 3
	copy(p.Data[:], []byte("HELLO"))
	if got := string(p.Bytes()); got != "HEL" {
		t.Fatalf("got %q, want %q", got, "HEL")
	}
}

func TestListResponseRoundTrip(t *testing.T) {
	entries := []SubscriptionInfo{
		{ChannelID: 1, Start: 10, End: 20},
		{ChannelID: 2, Start: 30, End: 40},
	}
	got, err := DecodeListResponse(EncodeListResponse(entries))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, got[i], entries[i])
		}
	}
}

func TestListResponseRoundTripEmpty(t *testing.T) {
	got, err := DecodeListResponse(EncodeListResponse(nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
}

func TestDecodeListResponseRejectsInconsistentCount(t *testing.T) {
	payload := EncodeListResponse([]SubscriptionInfo{{ChannelID: 1, Start: 0, End: 1}})
	payload = payload[:len(payload)-1] // truncate one byte short of the declared count
	if _, err := DecodeListResponse(payload); err == nil {
		t.Fatal("expected error for payload shorter than declared count")
	}
}
