// Command hostsim drives the host side of the host-link protocol (C7)
// against a real decoder, over either a TCP link (for testing against
// cmd/decoder) or a serial device file. It throttles writes to approximate
// the configured baud rate and uses periph's driver registry and frequency
// type the way embedded-IO tooling in this ecosystem conventionally does,
// even though this version of periph has no cross-platform serial-open API
// of its own: the actual byte transport is a plain file or socket.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"golang.org/x/time/rate"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/uart"
	"periph.io/x/periph/host"

	"github.com/meridiancas/satlink/internal/constants"
	hostconfig "github.com/meridiancas/satlink/internal/hostsim/config"
	"github.com/meridiancas/satlink/internal/rng"
	"github.com/meridiancas/satlink/internal/transport"
)

func main() {
	configPath := flag.String("config", "hostsim.yaml", "path to host simulator config")
	opcode := flag.String("op", "list", "message to send: list, subscribe, decode")
	payloadHex := flag.String("payload-hex", "", "hex-encoded payload for subscribe/decode")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if _, err := host.Init(); err != nil {
		logger.Warn("periph driver init failed, continuing with raw I/O only", "err", err)
	}

	cfg, err := hostconfig.Load(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	logger.Info("configured link", "baud", cfg.Baud(), "tx_pin_func", uart.TX, "rx_pin_func", uart.RX)

	rw, closeFn, err := dial(cfg)
	if err != nil {
		logger.Error("dial link", "err", err)
		os.Exit(1)
	}
	defer closeFn()

	limiter := newBaudLimiter(cfg.Baud())

	throttled := &throttledReadWriter{rw: rw, limiter: limiter}

	jitter, err := rng.New([constants.LenRNGSeed]byte{}, rng.HostEntropy{})
	if err != nil {
		logger.Error("seed jitter rng", "err", err)
		os.Exit(1)
	}
	conn := transport.New(throttled, jitter)

	msg, err := buildRequest(*opcode, *payloadHex)
	if err != nil {
		logger.Error("build request", "err", err)
		os.Exit(1)
	}

	if err := conn.WriteMessage(msg); err != nil {
		logger.Error("write request", "err", err)
		os.Exit(1)
	}
	resp, err := conn.ReadMessage()
	if err != nil {
		logger.Error("read response", "err", err)
		os.Exit(1)
	}
	fmt.Printf("opcode=%s payload=%s\n", resp.Opcode, hex.EncodeToString(resp.Payload))
}

func buildRequest(op, payloadHex string) (transport.Message, error) {
	var payload []byte
	if payloadHex != "" {
		p, err := hex.DecodeString(payloadHex)
		if err != nil {
			return transport.Message{}, fmt.Errorf("decode payload-hex: %w", err)
		}
		payload = p
	}
	switch op {
	case "list":
		return transport.Message{Opcode: constants.OpList}, nil
	case "subscribe":
		return transport.Message{Opcode: constants.OpSubscribe, Payload: payload}, nil
	case "decode":
		return transport.Message{Opcode: constants.OpDecode, Payload: payload}, nil
	default:
		return transport.Message{}, fmt.Errorf("unknown op %q", op)
	}
}

func dial(cfg hostconfig.Config) (io.ReadWriter, func() error, error) {
	switch cfg.Link {
	case "tcp":
		c, err := net.Dial("tcp", cfg.TCPAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", cfg.TCPAddr, err)
		}
		return c, c.Close, nil
	case "serial":
		f, err := os.OpenFile(cfg.SerialDevice, os.O_RDWR, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", cfg.SerialDevice, err)
		}
		return f, f.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported link %q", cfg.Link)
	}
}

// newBaudLimiter approximates 8N1 framing (1 start + 8 data + 1 stop bits
// per byte, so 10 bit-times per byte) at the configured baud rate.
func newBaudLimiter(baud physic.Frequency) *rate.Limiter {
	hz := float64(baud) / float64(physic.Hertz)
	bytesPerSecond := hz / 10
	return rate.NewLimiter(rate.Limit(bytesPerSecond), constants.BlockSize)
}

type throttledReadWriter struct {
	rw      io.ReadWriter
	limiter *rate.Limiter
}

func (t *throttledReadWriter) Read(p []byte) (int, error) { return t.rw.Read(p) }

func (t *throttledReadWriter) Write(p []byte) (int, error) {
	if err := t.limiter.WaitN(context.Background(), len(p)); err != nil {
		return 0, fmt.Errorf("hostsim: baud throttle: %w", err)
	}
	return t.rw.Write(p)
}
