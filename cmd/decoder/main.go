// Command decoder runs the decoder core (C1-C8) against a file-backed flash
// image, for on-host simulation and integration testing. It is not the
// embedded firmware image itself (that requires the real MCU HAL this
// repository deliberately treats as an external collaborator) but it wires
// the identical core logic the firmware links against.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/meridiancas/satlink/internal/decode"
	"github.com/meridiancas/satlink/internal/dispatch"
	"github.com/meridiancas/satlink/internal/flash"
	"github.com/meridiancas/satlink/internal/layout"
	"github.com/meridiancas/satlink/internal/rng"
	"github.com/meridiancas/satlink/internal/subscription"
	"github.com/meridiancas/satlink/internal/transport"
	"github.com/meridiancas/satlink/internal/update"
)

func main() {
	flashPath := flag.String("flash", "", "path to a provisioned flash image file")
	listenAddr := flag.String("listen", "127.0.0.1:7700", "TCP address to accept one host-link connection on")
	logFormat := flag.String("log-format", "text", "log output format: text or json")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logger := newLogger(*logFormat, *verbose)

	if *flashPath == "" {
		logger.Error("missing required -flash flag")
		os.Exit(2)
	}

	if err := run(*flashPath, *listenAddr, logger); err != nil {
		logger.Error("decoder exited", "err", err)
		os.Exit(1)
	}
}

func newLogger(format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(flashPath, listenAddr string, logger *slog.Logger) error {
	dev, err := flash.OpenFile(flashPath, layout.NumPages, layout.FlashPageSize)
	if err != nil {
		return fmt.Errorf("open flash image: %w", err)
	}
	defer dev.Close()

	keys, err := layout.ReadDeviceKeys(dev)
	if err != nil {
		return fmt.Errorf("read provisioned keys: %w", err)
	}

	store := subscription.New(dev, layout.SlotTableBase, layout.NumSlots)

	jitter, err := rng.New(keys.RNGSeed, rng.HostEntropy{})
	if err != nil {
		return fmt.Errorf("seed rng: %w", err)
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	defer ln.Close()
	logger.Info("waiting for host-link connection", "addr", listenAddr)

	conn, err := ln.Accept()
	if err != nil {
		return fmt.Errorf("accept host-link connection: %w", err)
	}
	defer conn.Close()
	logger.Info("host-link connected", "remote", conn.RemoteAddr())

	engine := &dispatch.Engine{
		Conn: transport.New(conn, jitter),
		Decode: &decode.Pipeline{
			Store:    store,
			FrameKey: keys.FrameKey,
		},
		Update: &update.Pipeline{
			Store:           store,
			SubscriptionKey: keys.SubscriptionKey,
		},
		Store: store,
		Log:   logger,
	}

	err = engine.Run()
	logger.Info("host-link session ended", "err", err)
	return nil
}
