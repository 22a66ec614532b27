// Package wire implements the binary frame format used for all node-to-node
// traffic in a Lattice cluster.
//
// Every message on a cluster TCP stream is carried in a single frame with a
// fixed 16-byte header followed by an opaque payload:
//
//	+----------------+------------+------------+-----------------+
//	| marker (8)     | subject(4) | length (4) | payload (len-16)|
//	+----------------+------------+------------+-----------------+
//
// All integers are big-endian. The length field counts the header as well as
// the payload, so an empty message has length 16.
//
// FRAMING SAFETY:
// The marker is a fixed 64-bit constant. It is not an authentication token;
// its only job is to detect a stream that has lost frame alignment (a peer
// speaking another protocol, a version mismatch, or a bug). A frame whose
// marker does not match is reported as corrupt and the owning stream is
// expected to close. There is no resynchronization: the reconnection
// custodian re-opens the link on its next pass.
//
// PARTIAL READS:
// Decode never consumes input until a complete frame is present. Callers
// accumulate bytes from the socket and call Decode repeatedly; ErrNeedMoreData
// means "keep the buffer, read more".
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Marker precedes every frame. Spells "LATTICE1" in ASCII.
	Marker uint64 = 0x4C41545449434531

	// HeaderSize is the fixed size of the frame header in bytes.
	HeaderSize = 16

	// DefaultMaxFrameSize bounds a single frame including its header.
	// Larger length fields are treated as corruption rather than allocation
	// requests.
	DefaultMaxFrameSize = 16 * 1024 * 1024

	markerOffset  = 0
	subjectOffset = 8
	lengthOffset  = 12
)

var (
	// ErrNeedMoreData is returned when the buffer does not yet hold a whole
	// frame. No bytes have been consumed.
	ErrNeedMoreData = errors.New("wire: need more data")

	// ErrCorruptFrame is returned for a marker mismatch or an impossible
	// length. The stream carrying the frame cannot be trusted afterwards.
	ErrCorruptFrame = errors.New("wire: corrupt frame")
)

// Message is a decoded cluster message: a subject ordinal plus opaque bytes.
type Message struct {
	Subject Subject
	Payload []byte
}

// NewMessage builds a message for the given subject.
func NewMessage(subject Subject, payload []byte) Message {
	return Message{Subject: subject, Payload: payload}
}

// Size returns the encoded size of the message.
func (m Message) Size() int {
	return HeaderSize + len(m.Payload)
}

// Encode returns the frame for m as a freshly allocated slice.
func Encode(m Message) []byte {
	return AppendFrame(make([]byte, 0, m.Size()), m)
}

// AppendFrame appends the frame for m to dst and returns the extended slice.
func AppendFrame(dst []byte, m Message) []byte {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint64(hdr[markerOffset:], Marker)
	binary.BigEndian.PutUint32(hdr[subjectOffset:], m.Subject.Ordinal)
	binary.BigEndian.PutUint32(hdr[lengthOffset:], uint32(m.Size()))
	dst = append(dst, hdr[:]...)
	return append(dst, m.Payload...)
}

// Decoder turns byte buffers back into messages.
//
// Subjects are resolved through Registry when it is set, so decoded messages
// carry their interned name. Unknown ordinals decode with an empty name and
// are left to the dispatcher to ignore.
type Decoder struct {
	MaxFrameSize int
	Registry     *Registry
}

// NewDecoder returns a decoder with the default frame ceiling.
func NewDecoder(registry *Registry) *Decoder {
	return &Decoder{MaxFrameSize: DefaultMaxFrameSize, Registry: registry}
}

// Decode reads one frame from the front of buf.
//
// On success it returns the message and the number of bytes the frame
// occupied. The payload is copied, so buf may be reused. On ErrNeedMoreData
// and ErrCorruptFrame the returned count is zero.
func (d *Decoder) Decode(buf []byte) (Message, int, error) {
	if len(buf) >= 8 {
		if got := binary.BigEndian.Uint64(buf[markerOffset:]); got != Marker {
			return Message{}, 0, fmt.Errorf("%w: marker %#016x", ErrCorruptFrame, got)
		}
	}
	if len(buf) < HeaderSize {
		return Message{}, 0, ErrNeedMoreData
	}

	length := binary.BigEndian.Uint32(buf[lengthOffset:])
	if length < HeaderSize {
		return Message{}, 0, fmt.Errorf("%w: length %d below header size", ErrCorruptFrame, length)
	}
	if int64(length) > int64(d.maxFrameSize()) {
		return Message{}, 0, fmt.Errorf("%w: length %d exceeds limit %d", ErrCorruptFrame, length, d.maxFrameSize())
	}
	if len(buf) < int(length) {
		return Message{}, 0, ErrNeedMoreData
	}

	ordinal := binary.BigEndian.Uint32(buf[subjectOffset:])
	payload := make([]byte, int(length)-HeaderSize)
	copy(payload, buf[HeaderSize:length])

	return Message{Subject: d.resolve(ordinal), Payload: payload}, int(length), nil
}

func (d *Decoder) maxFrameSize() int {
	if d.MaxFrameSize <= 0 {
		return DefaultMaxFrameSize
	}
	return d.MaxFrameSize
}

func (d *Decoder) resolve(ordinal uint32) Subject {
	if d.Registry != nil {
		if s, ok := d.Registry.Lookup(ordinal); ok {
			return s
		}
	}
	if s, ok := reservedByOrdinal(ordinal); ok {
		return s
	}
	return Subject{Ordinal: ordinal}
}
