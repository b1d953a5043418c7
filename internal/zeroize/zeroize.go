// Package zeroize provides best-effort scrubbing of secret material held in
// RAM. Go gives no hard guarantee against compiler/GC relocation of byte
// slices, so this is defense in depth, not a proof: every write is followed
// by a runtime.KeepAlive so the compiler cannot prove the clearing loop dead
// and elide it.
package zeroize

import "runtime"

// Bytes overwrites b with zeros in place.
func Bytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// Array16 overwrites a 16-byte key-sized array in place.
func Array16(a *[16]byte) {
	for i := range a {
		a[i] = 0
	}
	runtime.KeepAlive(a)
}

// Array32 overwrites a 32-byte secret-sized array in place.
func Array32(a *[32]byte) {
	for i := range a {
		a[i] = 0
	}
	runtime.KeepAlive(a)
}
