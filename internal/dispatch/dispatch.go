// Package dispatch implements the main dispatch loop (C8): read one host
// message, route it to the decode, update, or list operation, and write
// exactly one response, forever, until the transport itself fails.
package dispatch

import (
	"errors"
	"log/slog"

	"github.com/meridiancas/satlink/internal/constants"
	"github.com/meridiancas/satlink/internal/decode"
	"github.com/meridiancas/satlink/internal/subscription"
	"github.com/meridiancas/satlink/internal/transport"
	"github.com/meridiancas/satlink/internal/update"
	"github.com/meridiancas/satlink/internal/wire"
)

// Engine wires together the decode and update pipelines and the
// subscription store behind one host-link connection.
type Engine struct {
	Conn   *transport.Conn
	Decode *decode.Pipeline
	Update *update.Pipeline
	Store  *subscription.Store
	Log    *slog.Logger
}

// Run services messages until reading or writing on the connection fails
// (typically end of stream); a malformed incoming message (ErrTransport) is
// answered with an Error message and does not end the loop. The failure is
// returned to the caller,
// which on the real target means the firmware has lost its link and should
// halt, not retry with a timeout (see the concurrency model's no-timeouts
// policy).
func (e *Engine) Run() error {
	for {
		if err := e.step(); err != nil {
			return err
		}
	}
}

func (e *Engine) step() error {
	msg, err := e.Conn.ReadMessage()
	if err != nil {
		if errors.Is(err, transport.ErrTransport) {
			e.logDebug("malformed message", "err", err)
			return e.Conn.WriteMessage(transport.Error())
		}
		return err
	}

	switch msg.Opcode {
	case constants.OpList:
		return e.handleList()
	case constants.OpSubscribe:
		return e.handleSubscribe(msg.Payload)
	case constants.OpDecode:
		return e.handleDecode(msg.Payload)
	default:
		return e.Conn.WriteMessage(transport.Error())
	}
}

func (e *Engine) handleList() error {
	entries := e.Store.ListSubscriptions()
	payload := wire.EncodeListResponse(entries)
	return e.Conn.WriteMessage(transport.Message{Opcode: constants.OpList, Payload: payload})
}

func (e *Engine) handleSubscribe(payload []byte) error {
	if err := e.Update.Update(payload); err != nil {
		e.logDebug("subscribe rejected", "err", err)
		return e.Conn.WriteMessage(transport.Error())
	}
	return e.Conn.WriteMessage(transport.Message{Opcode: constants.OpSubscribe})
}

func (e *Engine) handleDecode(payload []byte) error {
	pic, err := e.Decode.Decode(payload)
	if err != nil {
		e.logDebug("decode rejected", "err", err)
		return e.Conn.WriteMessage(transport.Error())
	}
	return e.Conn.WriteMessage(transport.Message{Opcode: constants.OpDecode, Payload: pic.Bytes()})
}

func (e *Engine) logDebug(msg string, args ...any) {
	if e.Log != nil {
		e.Log.Debug(msg, args...)
	}
}
