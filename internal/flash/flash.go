// Package flash defines the external flash-controller interface the
// subscription store is built on, and two implementations usable off the
// real embedded target: an in-memory device for unit tests, and a
// single-file-backed device for the host-side decoder binary. Erased flash
// reads as 0xFF, matching NOR flash's erased state, so an erased slot never
// accidentally satisfies the all-zero or any other non-erased magic pattern.
package flash

import (
	"fmt"
	"os"
)

const (
	ErasedByte = 0xFF
)

// Device is the flash primitive the subscription store consumes: read/write
// 16-byte (128-bit) aligned words, and erase a whole page. Real MCU
// implementations satisfy this over a memory-mapped flash controller; here
// it is satisfied by Memory and File.
type Device interface {
	PageSize() uint32
	ReadWord(addr uint32) ([16]byte, error)
	WriteWord(addr uint32, data [16]byte) error
	ErasePage(pageAddr uint32) error
}

// Memory is a RAM-backed Device for unit tests: cheap, trivially resettable,
// and able to simulate a torn write by truncating a WriteWord sequence mid-page.
type Memory struct {
	pageSize uint32
	data     []byte
}

// NewMemory allocates numPages pages of pageSize bytes each, all erased.
func NewMemory(numPages int, pageSize uint32) *Memory {
	m := &Memory{pageSize: pageSize, data: make([]byte, int(pageSize)*numPages)}
	for i := range m.data {
		m.data[i] = ErasedByte
	}
	return m
}

func (m *Memory) PageSize() uint32 { return m.pageSize }

func (m *Memory) ReadWord(addr uint32) ([16]byte, error) {
	var out [16]byte
	if int(addr)+16 > len(m.data) {
		return out, fmt.Errorf("flash: read out of range at 0x%x", addr)
	}
	copy(out[:], m.data[addr:addr+16])
	return out, nil
}

func (m *Memory) WriteWord(addr uint32, word [16]byte) error {
	if int(addr)+16 > len(m.data) {
		return fmt.Errorf("flash: write out of range at 0x%x", addr)
	}
	// Flash programming can only clear bits, never set them back to 1;
	// model that so writing twice without an erase behaves like real NOR.
	for i, b := range word {
		m.data[int(addr)+i] &= b
	}
	return nil
}

func (m *Memory) ErasePage(pageAddr uint32) error {
	base := pageAddr - (pageAddr % m.pageSize)
	if int(base)+int(m.pageSize) > len(m.data) {
		return fmt.Errorf("flash: erase out of range at 0x%x", pageAddr)
	}
	for i := 0; i < int(m.pageSize); i++ {
		m.data[int(base)+i] = ErasedByte
	}
	return nil
}

// File is a Device backed by a single regular file, sized to numPages *
// pageSize bytes at creation time. Used by cmd/decoder to give the on-host
// simulation binary a flash image that survives process restarts, the same
// role a .bin firmware image plays on the real target.
type File struct {
	f        *os.File
	pageSize uint32
}

// OpenFile opens (creating and erasing if absent) a flash image file.
func OpenFile(path string, numPages int, pageSize uint32) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("flash: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("flash: stat %s: %w", path, err)
	}
	want := int64(numPages) * int64(pageSize)
	if fi.Size() != want {
		erased := make([]byte, want)
		for i := range erased {
			erased[i] = ErasedByte
		}
		if _, err := f.WriteAt(erased, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("flash: initialize %s: %w", path, err)
		}
	}
	return &File{f: f, pageSize: pageSize}, nil
}

func (d *File) Close() error { return d.f.Close() }

func (d *File) PageSize() uint32 { return d.pageSize }

func (d *File) ReadWord(addr uint32) ([16]byte, error) {
	var out [16]byte
	if _, err := d.f.ReadAt(out[:], int64(addr)); err != nil {
		return out, fmt.Errorf("flash: read at 0x%x: %w", addr, err)
	}
	return out, nil
}

func (d *File) WriteWord(addr uint32, word [16]byte) error {
	existing, err := d.ReadWord(addr)
	if err != nil {
		return err
	}
	for i := range word {
		word[i] &= existing[i]
	}
	if _, err := d.f.WriteAt(word[:], int64(addr)); err != nil {
		return fmt.Errorf("flash: write at 0x%x: %w", addr, err)
	}
	return nil
}

func (d *File) ErasePage(pageAddr uint32) error {
	base := pageAddr - (pageAddr % d.pageSize)
	erased := make([]byte, d.pageSize)
	for i := range erased {
		erased[i] = ErasedByte
	}
	if _, err := d.f.WriteAt(erased, int64(base)); err != nil {
		return fmt.Errorf("flash: erase page at 0x%x: %w", base, err)
	}
	return nil
}
