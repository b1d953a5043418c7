package transport

import "github.com/meridiancas/satlink/internal/constants"

// Message is one host-link frame: an opcode and its payload bytes.
type Message struct {
	Opcode  constants.Opcode
	Payload []byte
}

func Ack() Message   { return Message{Opcode: constants.OpAck} }
func Error() Message { return Message{Opcode: constants.OpError} }
func Debug(payload []byte) Message {
	return Message{Opcode: constants.OpDebug, Payload: payload}
}

// validLength reports whether the given (opcode, length) pair is one the
// protocol allows to be received. A Conn serves both ends of the link, so
// List, Subscribe and Decode each accept the request length the decoder
// receives and the response length the host receives: List takes 0 or a
// count-prefixed list of entries, Subscribe takes an encrypted subscription
// or an empty acknowledgement, Decode takes an encrypted frame or a picture
// of at most MaxLenPicture bytes. Ack, Error and Debug have no length
// constraint.
func validLength(op constants.Opcode, length int) bool {
	switch op {
	case constants.OpList:
		return length == 0 || (length >= 4 && (length-4)%constants.LenSubscriptionInfo == 0)
	case constants.OpSubscribe:
		return length == constants.LenEncryptedSubscription || length == 0
	case constants.OpDecode:
		return length == constants.LenEncryptedFrame || length <= constants.MaxLenPicture
	case constants.OpAck, constants.OpError, constants.OpDebug:
		return true
	default:
		return false
	}
}
