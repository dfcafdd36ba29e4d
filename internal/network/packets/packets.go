// Package packets defines the VPET synchronization messages.
//
// Every message starts with a three byte header (client id, clock time,
// message type). Parameter updates may be concatenated after one header;
// all multi-byte fields are little-endian.
package packets

import (
	"errors"
	"fmt"
)

// MessageType identifies the body following the header.
type MessageType uint8

// Message types
const (
	TypeParameterUpdate MessageType = 0 // One or more parameter records
	TypeLock            MessageType = 1 // Lock or unlock one object
	TypeSync            MessageType = 2 // Sender clock, carried in the header
	TypePing            MessageType = 3 // Round-trip probe on the command link
	TypeResendUpdate    MessageType = 4 // Request to replay all parameters
	TypeUndoRedoAdd     MessageType = 5 // Undo history entry
	TypeResetObject     MessageType = 6 // Reset an object to its initial values
)

// String returns the wire name of the type.
func (t MessageType) String() string {
	switch t {
	case TypeParameterUpdate:
		return "PARAMETERUPDATE"
	case TypeLock:
		return "LOCK"
	case TypeSync:
		return "SYNC"
	case TypePing:
		return "PING"
	case TypeResendUpdate:
		return "RESENDUPDATE"
	case TypeUndoRedoAdd:
		return "UNDOREDOADD"
	case TypeResetObject:
		return "RESETOBJECT"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// Fixed sizes in bytes.
const (
	HeaderSize       = 3
	UpdateHeaderSize = 7   // record bytes before the payload
	MaxRecordSize    = 255 // the length field is one byte
	LockSize         = 4
)

// Errors returned while decoding.
var (
	ErrShortMessage   = errors.New("message shorter than header")
	ErrTruncated      = errors.New("record truncated")
	ErrBadLength      = errors.New("record length below header size")
	ErrRecordTooLarge = errors.New("record exceeds 255 bytes")
)

// Header precedes every message.
type Header struct {
	ClientID uint8       // Sender id
	Time     uint8       // Sender clock when the message was built
	Type     MessageType // Body type
}

// Size returns header size.
func (h *Header) Size() int {
	return HeaderSize
}

// Encode encodes the header to bytes.
func (h *Header) Encode() []byte {
	return []byte{h.ClientID, h.Time, byte(h.Type)}
}

// DecodeHeader reads the header at the start of msg.
func DecodeHeader(msg []byte) (Header, error) {
	if len(msg) < HeaderSize {
		return Header{}, ErrShortMessage
	}
	return Header{ClientID: msg[0], Time: msg[1], Type: MessageType(msg[2])}, nil
}

// ParameterUpdate carries one encoded parameter value.
type ParameterUpdate struct {
	SceneID   uint8  // Owning scene
	ObjectID  uint16 // 1-based object id
	ParamID   uint16 // Index into the object's parameter list
	ParamType uint8  // Parameter type tag
	Payload   []byte // Encoded value
}

// Size returns the full record length, as written in the length field.
func (p *ParameterUpdate) Size() int {
	return UpdateHeaderSize + len(p.Payload)
}

// Validate reports whether the record fits the one byte length field.
func (p *ParameterUpdate) Validate() error {
	if p.Size() > MaxRecordSize {
		return fmt.Errorf("%w: %d", ErrRecordTooLarge, p.Size())
	}
	return nil
}

// Encode encodes the record to bytes. Callers check Validate first; an
// oversized length is truncated to its low byte.
func (p *ParameterUpdate) Encode() []byte {
	buf := make([]byte, p.Size())
	buf[0] = p.SceneID
	buf[1] = byte(p.ObjectID)
	buf[2] = byte(p.ObjectID >> 8)
	buf[3] = byte(p.ParamID)
	buf[4] = byte(p.ParamID >> 8)
	buf[5] = p.ParamType
	buf[6] = byte(p.Size())
	copy(buf[7:], p.Payload)
	return buf
}

// Lock asks peers to lock or release an object.
type Lock struct {
	SceneID  uint8
	ObjectID uint16
	Locked   bool
}

// Size returns record size.
func (p *Lock) Size() int {
	return LockSize
}

// Encode encodes the record to bytes.
func (p *Lock) Encode() []byte {
	buf := make([]byte, p.Size())
	buf[0] = p.SceneID
	buf[1] = byte(p.ObjectID)
	buf[2] = byte(p.ObjectID >> 8)
	if p.Locked {
		buf[3] = 1
	}
	return buf
}

// Message joins a header and already encoded records.
func Message(h Header, records ...[]byte) []byte {
	n := HeaderSize
	for _, r := range records {
		n += len(r)
	}
	buf := make([]byte, 0, n)
	buf = append(buf, h.Encode()...)
	for _, r := range records {
		buf = append(buf, r...)
	}
	return buf
}

// Ping builds a PING message. The reply echoes the same layout.
func Ping(clientID, time uint8) []byte {
	h := Header{ClientID: clientID, Time: time, Type: TypePing}
	return h.Encode()
}

// Sync builds a SYNC message announcing the sender clock.
func Sync(clientID, time uint8) []byte {
	h := Header{ClientID: clientID, Time: time, Type: TypeSync}
	return h.Encode()
}

// Updates builds a PARAMETERUPDATE message from one or more records.
func Updates(clientID, time uint8, records ...ParameterUpdate) ([]byte, error) {
	encoded := make([][]byte, 0, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, err
		}
		encoded = append(encoded, records[i].Encode())
	}
	return Message(Header{ClientID: clientID, Time: time, Type: TypeParameterUpdate}, encoded...), nil
}

// LockMessage builds a LOCK message.
func LockMessage(clientID, time uint8, l Lock) []byte {
	return Message(Header{ClientID: clientID, Time: time, Type: TypeLock}, l.Encode())
}

// Body is the decoded content of one message.
type Body struct {
	Header  Header
	Updates []ParameterUpdate
	Lock    *Lock
}

// Decode splits msg into its header and records.
//
// Parameter updates are consumed one declared length at a time. A LOCK or
// UNDOREDOADD body is terminal: nothing after its first record is read.
// On a malformed record the records decoded so far are returned together
// with the error.
func Decode(msg []byte) (Body, error) {
	h, err := DecodeHeader(msg)
	if err != nil {
		return Body{}, err
	}
	body := Body{Header: h}

	switch h.Type {
	case TypeParameterUpdate:
		for start := HeaderSize; start < len(msg); {
			rec, n, err := decodeUpdate(msg[start:])
			if err != nil {
				return body, fmt.Errorf("record at offset %d: %w", start, err)
			}
			body.Updates = append(body.Updates, rec)
			start += n
		}
	case TypeLock:
		if len(msg) < HeaderSize+LockSize {
			return body, ErrTruncated
		}
		b := msg[HeaderSize:]
		body.Lock = &Lock{
			SceneID:  b[0],
			ObjectID: uint16(b[1]) | uint16(b[2])<<8,
			Locked:   b[3] != 0,
		}
	}
	return body, nil
}

func decodeUpdate(b []byte) (ParameterUpdate, int, error) {
	if len(b) < UpdateHeaderSize {
		return ParameterUpdate{}, 0, ErrTruncated
	}
	length := int(b[6])
	if length < UpdateHeaderSize {
		return ParameterUpdate{}, 0, ErrBadLength
	}
	if length > len(b) {
		return ParameterUpdate{}, 0, ErrTruncated
	}
	return ParameterUpdate{
		SceneID:   b[0],
		ObjectID:  uint16(b[1]) | uint16(b[2])<<8,
		ParamID:   uint16(b[3]) | uint16(b[4])<<8,
		ParamType: b[5],
		Payload:   b[UpdateHeaderSize:length:length],
	}, length, nil
}
