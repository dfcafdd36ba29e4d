package packets

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeaderEncode(t *testing.T) {
	h := &Header{ClientID: 7, Time: 99, Type: TypeSync}
	data := h.Encode()

	if len(data) != h.Size() {
		t.Errorf("expected size %d, got %d", h.Size(), len(data))
	}
	if !bytes.Equal(data, []byte{7, 99, 2}) {
		t.Errorf("unexpected header bytes % x", data)
	}
}

func TestParameterUpdateEncode(t *testing.T) {
	pkt := &ParameterUpdate{
		SceneID:   254,
		ObjectID:  0x0102,
		ParamID:   0x0304,
		ParamType: 4,
		Payload:   []byte{0xAA, 0xBB, 0xCC, 0xDD},
	}

	data := pkt.Encode()

	if len(data) != 11 {
		t.Errorf("expected size 11, got %d", len(data))
	}
	if data[0] != 254 {
		t.Errorf("expected scene id 254, got %d", data[0])
	}

	// Object and parameter ids are little-endian
	if data[1] != 0x02 || data[2] != 0x01 {
		t.Errorf("expected object id 0x0102, got %02x%02x", data[2], data[1])
	}
	if data[3] != 0x04 || data[4] != 0x03 {
		t.Errorf("expected param id 0x0304, got %02x%02x", data[4], data[3])
	}
	if data[5] != 4 {
		t.Errorf("expected type 4, got %d", data[5])
	}

	// Length covers the whole record
	if data[6] != 11 {
		t.Errorf("expected length 11, got %d", data[6])
	}
	if !bytes.Equal(data[7:], pkt.Payload) {
		t.Error("payload not at offset 7")
	}
}

func TestParameterUpdateValidate(t *testing.T) {
	ok := &ParameterUpdate{Payload: make([]byte, MaxRecordSize-UpdateHeaderSize)}
	if err := ok.Validate(); err != nil {
		t.Errorf("255 byte record rejected: %v", err)
	}

	big := &ParameterUpdate{Payload: make([]byte, MaxRecordSize-UpdateHeaderSize+1)}
	if err := big.Validate(); !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("expected ErrRecordTooLarge, got %v", err)
	}
	if _, err := Updates(1, 0, *big); !errors.Is(err, ErrRecordTooLarge) {
		t.Errorf("Updates: expected ErrRecordTooLarge, got %v", err)
	}
}

func TestLockEncode(t *testing.T) {
	pkt := &Lock{SceneID: 254, ObjectID: 300, Locked: true}
	data := pkt.Encode()

	if !bytes.Equal(data, []byte{254, 0x2C, 0x01, 1}) {
		t.Errorf("unexpected lock bytes % x", data)
	}

	pkt.Locked = false
	if data := pkt.Encode(); data[3] != 0 {
		t.Errorf("expected unlocked state 0, got %d", data[3])
	}
}

func TestPingSync(t *testing.T) {
	if got := Ping(254, 60); !bytes.Equal(got, []byte{254, 60, 3}) {
		t.Errorf("ping: got % x", got)
	}
	if got := Sync(5, 17); !bytes.Equal(got, []byte{5, 17, 2}) {
		t.Errorf("sync: got % x", got)
	}
}

func TestDecodeMultipleUpdates(t *testing.T) {
	a := ParameterUpdate{SceneID: 254, ObjectID: 1, ParamID: 0, ParamType: 2, Payload: []byte{1}}
	b := ParameterUpdate{SceneID: 254, ObjectID: 2, ParamID: 3, ParamType: 3, Payload: []byte{1, 2, 3, 4}}

	msg, err := Updates(9, 42, a, b)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	if len(msg) != HeaderSize+a.Size()+b.Size() {
		t.Fatalf("unexpected message size %d", len(msg))
	}

	body, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Header != (Header{ClientID: 9, Time: 42, Type: TypeParameterUpdate}) {
		t.Errorf("unexpected header %+v", body.Header)
	}
	if len(body.Updates) != 2 {
		t.Fatalf("expected 2 records, got %d", len(body.Updates))
	}
	if body.Updates[1].ObjectID != 2 || body.Updates[1].ParamID != 3 {
		t.Errorf("second record ids: got %d/%d", body.Updates[1].ObjectID, body.Updates[1].ParamID)
	}
	if !bytes.Equal(body.Updates[1].Payload, b.Payload) {
		t.Errorf("second payload: got % x", body.Updates[1].Payload)
	}
}

func TestDecodeTruncated(t *testing.T) {
	a := ParameterUpdate{ObjectID: 1, ParamType: 2, Payload: []byte{1}}
	b := ParameterUpdate{ObjectID: 2, ParamType: 3, Payload: []byte{1, 2, 3, 4}}
	msg, _ := Updates(1, 0, a, b)

	body, err := Decode(msg[:len(msg)-2])
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
	if len(body.Updates) != 1 {
		t.Errorf("expected the first record to survive, got %d", len(body.Updates))
	}
}

func TestDecodeBadLength(t *testing.T) {
	msg := []byte{1, 0, 0, 254, 1, 0, 0, 0, 2, 3}
	if _, err := Decode(msg); !errors.Is(err, ErrBadLength) {
		t.Errorf("expected ErrBadLength, got %v", err)
	}
}

func TestDecodeLockIsTerminal(t *testing.T) {
	msg := LockMessage(3, 0, Lock{SceneID: 254, ObjectID: 4, Locked: true})
	// Bytes after the lock record are never parsed.
	msg = append(msg, 254, 1, 0, 0, 0, 2, 8, 1)

	body, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Lock == nil || body.Lock.ObjectID != 4 || !body.Lock.Locked {
		t.Errorf("unexpected lock %+v", body.Lock)
	}
	if len(body.Updates) != 0 {
		t.Errorf("expected no updates after lock, got %d", len(body.Updates))
	}
}

func TestDecodeUndoRedoIsTerminal(t *testing.T) {
	msg := []byte{3, 0, byte(TypeUndoRedoAdd), 254, 1, 0, 0, 0, 2, 8, 1}
	body, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Updates) != 0 || body.Lock != nil {
		t.Errorf("expected empty body, got %+v", body)
	}
}

func TestDecodeShort(t *testing.T) {
	if _, err := Decode([]byte{1, 2}); !errors.Is(err, ErrShortMessage) {
		t.Errorf("expected ErrShortMessage, got %v", err)
	}
	if _, err := Decode([]byte{1, 2, byte(TypeLock), 254}); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for short lock, got %v", err)
	}
}

func TestMessageTypeString(t *testing.T) {
	tests := []struct {
		typ  MessageType
		want string
	}{
		{TypeParameterUpdate, "PARAMETERUPDATE"},
		{TypeLock, "LOCK"},
		{TypeResetObject, "RESETOBJECT"},
		{MessageType(40), "TYPE(40)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("got %s, want %s", got, tt.want)
		}
	}
}
