// Package hardening implements the fault-injection countermeasures the
// decode and transport paths rely on: repeated, barrier-guarded validity
// checks and randomized micro-delays that mask fixed-offset timing
// correlations on the host link.
package hardening

import (
	"math/rand"
	"runtime"
	"time"
)

//go:noinline
func barrier(v bool) bool {
	runtime.KeepAlive(v)
	return v
}

// CheckRepeated evaluates check `repeat` times, behind a
// compiler-opacity barrier on every result, and only returns true if every
// evaluation agreed. A single-fault glitch that flips one evaluation's
// outcome is caught; the barrier prevents the compiler from folding the
// repeated calls into one.
func CheckRepeated(repeat int, check func() bool) bool {
	ok := true
	for i := 0; i < repeat; i++ {
		ok = barrier(check()) && ok
	}
	return ok
}

// Delayer draws jitter delays from a source of randomness. The decoder core
// uses its CSPRNG; off-device tooling may use any source of 32-bit words.
type Delayer interface {
	Uint32() uint32
}

// JitterDelay sleeps for `count` independent random durations in
// [0, maxMicros) microseconds, each drawn from d. This is inserted before
// reading or writing any non-Ack, non-Debug transport message.
func JitterDelay(d Delayer, count, maxMicros int) {
	for i := 0; i < count; i++ {
		us := d.Uint32() % uint32(maxMicros)
		time.Sleep(time.Duration(us) * time.Microsecond)
	}
}

// mathRandDelayer is a non-cryptographic jitter source for off-device tools
// that have no CSPRNG of their own.
type mathRandDelayer struct{ r *rand.Rand }

func NewMathRandDelayer(seed int64) Delayer {
	return &mathRandDelayer{r: rand.New(rand.NewSource(seed))}
}

func (m *mathRandDelayer) Uint32() uint32 { return m.r.Uint32() }
