package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/pkg/encoding"
)

// Frame is one published message as it leaves the Connection.
type Frame struct {
	Topic   string
	Type    string
	Seq     uint64
	RunID   string
	Stamp   time.Time
	Payload []byte
	// Message is the value the payload was serialized from. It is shared
	// between sinks and must not be mutated.
	Message msgs.Message
}

// Encode writes the frame as
//
//	u32 length | u16 topic length | topic | u16 type length | type | payload
//
// where length counts every byte after the length prefix.
func (f Frame) Encode(maxSize uint32) ([]byte, error) {
	if len(f.Topic) > math.MaxUint16 || len(f.Type) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: topic or type name too long", ErrInvalidFrame)
	}
	bodyLen := 2 + len(f.Topic) + 2 + len(f.Type) + len(f.Payload)
	if maxSize > 0 && uint64(bodyLen) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, bodyLen, maxSize)
	}
	w := encoding.NewWriter(4 + bodyLen)
	w.Uint32(uint32(bodyLen))
	w.Uint16(uint16(len(f.Topic)))
	w.Raw([]byte(f.Topic))
	w.Uint16(uint16(len(f.Type)))
	w.Raw([]byte(f.Type))
	w.Raw(f.Payload)
	return w.Bytes(), nil
}

// ReadFrame reads one encoded frame from r. The Message field is decoded when
// the type is registered in msgs; otherwise only the raw payload is set.
func ReadFrame(r io.Reader, maxSize uint32) (Frame, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Frame{}, err
	}
	n := binary.LittleEndian.Uint32(prefix[:])
	if maxSize > 0 && n > maxSize {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	rd := encoding.NewReader(body)
	topic := string(rd.Raw(int(rd.Uint16())))
	typ := string(rd.Raw(int(rd.Uint16())))
	if rd.Err() != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidFrame, rd.Err())
	}
	f := Frame{Topic: topic, Type: typ, Payload: body[len(body)-rd.Remaining():]}
	if m, err := msgs.Decode(typ, f.Payload); err == nil {
		f.Message = m
	}
	return f, nil
}
