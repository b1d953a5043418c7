package rng

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"time"
)

// HostEntropy satisfies Entropy on ordinary host OSes, standing in for the
// real target's TRNG peripheral and free-running timer: crypto/rand for true
// randomness, time.Now for a monotonic tick source.
type HostEntropy struct{}

func (HostEntropy) TRNGWord() uint32 {
	var buf [4]byte
	_, _ = cryptorand.Read(buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

func (HostEntropy) TimerTick() uint32 {
	return uint32(time.Now().UnixNano())
}
