package flash

import (
	"bytes"
	"path/filepath"
	"testing"
)

func allErased(word [16]byte) bool {
	for _, b := range word {
		if b != ErasedByte {
			return false
		}
	}
	return true
}

func TestMemoryFreshlyErased(t *testing.T) {
	m := NewMemory(2, 64)
	word, err := m.ReadWord(0)
	if err != nil {
		t.Fatal(err)
	}
	if !allErased(word) {
		t.Fatalf("fresh memory not erased: %v", word)
	}
}

func TestMemoryWriteOnlyClearsBits(t *testing.T) {
	m := NewMemory(1, 64)
	var first [16]byte
	for i := range first {
		first[i] = 0x0F
	}
	if err := m.WriteWord(0, first); err != nil {
		t.Fatal(err)
	}
	got, _ := m.ReadWord(0)
	if got != first {
		t.Fatalf("first write mismatch: %v", got)
	}

	// Attempting to set bits that are already 0 must not bring them back;
	// only bits present in both the existing contents and the new word survive.
	var second [16]byte
	for i := range second {
		second[i] = 0xF0
	}
	if err := m.WriteWord(0, second); err != nil {
		t.Fatal(err)
	}
	got, _ = m.ReadWord(0)
	var want [16]byte // 0x0F & 0xF0 == 0x00 for every byte
	if got != want {
		t.Fatalf("write did not AND with existing bits: got %v want %v", got, want)
	}
}

func TestMemoryErasePageResetsToErasedByte(t *testing.T) {
	m := NewMemory(2, 64)
	var word [16]byte
	if err := m.WriteWord(64, word); err != nil {
		t.Fatal(err)
	}
	if err := m.ErasePage(64); err != nil {
		t.Fatal(err)
	}
	got, _ := m.ReadWord(64)
	if !allErased(got) {
		t.Fatalf("page not erased after ErasePage: %v", got)
	}
}

func TestMemoryErasePageOnlyAffectsTargetPage(t *testing.T) {
	m := NewMemory(2, 64)
	var word [16]byte
	for i := range word {
		word[i] = 0x00
	}
	if err := m.WriteWord(0, word); err != nil {
		t.Fatal(err)
	}
	if err := m.WriteWord(64, word); err != nil {
		t.Fatal(err)
	}
	if err := m.ErasePage(64); err != nil {
		t.Fatal(err)
	}
	unaffected, _ := m.ReadWord(0)
	if unaffected != word {
		t.Fatalf("erase of page 1 leaked into page 0: %v", unaffected)
	}
}

func TestMemoryOutOfRange(t *testing.T) {
	m := NewMemory(1, 16)
	if _, err := m.ReadWord(4096); err == nil {
		t.Fatal("expected out-of-range read error")
	}
	var word [16]byte
	if err := m.WriteWord(4096, word); err == nil {
		t.Fatal("expected out-of-range write error")
	}
	if err := m.ErasePage(4096); err == nil {
		t.Fatal("expected out-of-range erase error")
	}
}

func TestFileRoundTripAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	f, err := OpenFile(path, 2, 64)
	if err != nil {
		t.Fatal(err)
	}
	var word [16]byte
	for i := range word {
		word[i] = byte(i)
	}
	if err := f.WriteWord(0, word); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenFile(path, 2, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	got, err := reopened.ReadWord(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != word {
		t.Fatalf("reopened file lost data: got %v want %v", got, word)
	}
}

func TestFileWriteOnlyClearsBits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.bin")
	f, err := OpenFile(path, 1, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var first [16]byte
	for i := range first {
		first[i] = 0x0F
	}
	if err := f.WriteWord(0, first); err != nil {
		t.Fatal(err)
	}
	var second [16]byte
	for i := range second {
		second[i] = 0xF0
	}
	if err := f.WriteWord(0, second); err != nil {
		t.Fatal(err)
	}
	got, _ := f.ReadWord(0)
	var want [16]byte
	if !bytes.Equal(got[:], want[:]) {
		t.Fatalf("file write did not AND with existing bits: got %v", got)
	}
}
