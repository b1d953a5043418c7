// Package transport implements the host-link framing protocol (C7): a
// length-prefixed message dialog with per-block acknowledgement and
// randomized timing jitter, over any io.Reader/io.Writer byte transport.
package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/hardening"
)

// ErrTransport covers malformed headers, unknown opcodes and invalid
// lengths, collectively "TransportError" in the error taxonomy.
var ErrTransport = errors.New("transport: malformed message")

// Conn drives the wire protocol over a blocking byte stream. It is not safe
// for concurrent use: like the real serial HAL, one goroutine owns it at a
// time, matching the single-threaded dispatch loop's ownership of the link.
type Conn struct {
	r      *bufio.Reader
	w      io.Writer
	jitter hardening.Delayer
}

// New wraps rw with block-acknowledgement framing, drawing timing jitter
// from jitter (the decoder's CSPRNG on-target; any Delayer in tests/tools).
func New(rw io.ReadWriter, jitter hardening.Delayer) *Conn {
	return &Conn{r: bufio.NewReader(rw), w: rw, jitter: jitter}
}

func (c *Conn) maybeJitter(op constants.Opcode) {
	if op.ShouldAck() {
		hardening.JitterDelay(c.jitter, constants.JitterDelayCount, constants.JitterMaxMicros)
	}
}

// WriteMessage sends msg, waiting for an Ack after the header and after
// every BlockSize chunk of payload (skipped entirely for Ack/Debug opcodes).
func (c *Conn) WriteMessage(msg Message) error {
	c.maybeJitter(msg.Opcode)

	var header [4]byte
	header[0] = constants.MagicByte
	header[1] = byte(msg.Opcode)
	binary.LittleEndian.PutUint16(header[2:4], uint16(len(msg.Payload)))
	if _, err := c.w.Write(header[:]); err != nil {
		return fmt.Errorf("transport: write header: %w", err)
	}
	if msg.Opcode.ShouldAck() {
		if err := c.readAck(); err != nil {
			return err
		}
	}

	for off := 0; off < len(msg.Payload); off += constants.BlockSize {
		end := off + constants.BlockSize
		if end > len(msg.Payload) {
			end = len(msg.Payload)
		}
		if _, err := c.w.Write(msg.Payload[off:end]); err != nil {
			return fmt.Errorf("transport: write payload: %w", err)
		}
		if msg.Opcode.ShouldAck() {
			if err := c.readAck(); err != nil {
				return err
			}
		}
	}
	return nil
}

// readAck blocks for exactly one Ack-opcode message, discarding anything
// else read as a framing error. Acks carry no payload.
func (c *Conn) readAck() error {
	msg, err := c.readRaw()
	if err != nil {
		return err
	}
	if msg.Opcode != constants.OpAck {
		return fmt.Errorf("%w: expected ack, got %s", ErrTransport, msg.Opcode)
	}
	return nil
}

// writeAck sends a bare Ack message with no jitter and no ack-of-ack.
func (c *Conn) writeAck() error {
	var header [4]byte
	header[0] = constants.MagicByte
	header[1] = byte(constants.OpAck)
	if _, err := c.w.Write(header[:]); err != nil {
		return fmt.Errorf("transport: write ack: %w", err)
	}
	return nil
}

// ReadMessage receives one message, emitting an Ack after the header and
// after every BlockSize chunk consumed (skipped for Ack/Debug opcodes).
func (c *Conn) ReadMessage() (Message, error) {
	msg, err := c.readRawWithJitter()
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *Conn) readRawWithJitter() (Message, error) {
	op, length, err := c.readHeader()
	if err != nil {
		return Message{}, err
	}
	c.maybeJitter(op)
	return c.readBody(op, length)
}

// readRaw reads one message with no jitter applied; used internally while
// waiting for an Ack, which is itself never jittered.
func (c *Conn) readRaw() (Message, error) {
	op, length, err := c.readHeader()
	if err != nil {
		return Message{}, err
	}
	return c.readBody(op, length)
}

func (c *Conn) readHeader() (constants.Opcode, int, error) {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return 0, 0, fmt.Errorf("transport: read magic: %w", err)
		}
		if b == constants.MagicByte {
			break
		}
		// Discard bytes preceding MAGIC, per the reception state machine.
	}
	opByte, err := c.r.ReadByte()
	if err != nil {
		return 0, 0, fmt.Errorf("transport: read opcode: %w", err)
	}
	op := constants.Opcode(opByte)
	if !op.Known() {
		// Reject immediately, before touching the length field: an unknown
		// opcode must not consume bytes that belong to the next message's
		// resynchronization on MAGIC.
		return 0, 0, fmt.Errorf("%w: unknown opcode %#x", ErrTransport, opByte)
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return 0, 0, fmt.Errorf("transport: read length: %w", err)
	}
	length := int(binary.LittleEndian.Uint16(lenBuf[:]))

	if !validLength(op, length) {
		return 0, 0, fmt.Errorf("%w: invalid (opcode, length) %s/%d", ErrTransport, op.String(), length)
	}
	return op, length, nil
}

func (c *Conn) readBody(op constants.Opcode, length int) (Message, error) {
	if op.ShouldAck() {
		if err := c.writeAck(); err != nil {
			return Message{}, err
		}
	}

	payload := make([]byte, length)
	for off := 0; off < length; off += constants.BlockSize {
		end := off + constants.BlockSize
		if end > length {
			end = length
		}
		if _, err := io.ReadFull(c.r, payload[off:end]); err != nil {
			return Message{}, fmt.Errorf("transport: read payload: %w", err)
		}
		if op.ShouldAck() {
			if err := c.writeAck(); err != nil {
				return Message{}, err
			}
		}
	}
	return Message{Opcode: op, Payload: payload}, nil
}
