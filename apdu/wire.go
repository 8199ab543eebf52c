// Package apdu frames the command and response protocol the signing
// device speaks: a five byte header, a bounded payload and a big
// endian status word closing every reply.
package apdu

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/samber/lo"
)

var (
	ErrShortFrame  = errors.New("apdu: frame shorter than header")
	ErrFrameLength = errors.New("apdu: length byte does not match frame")
	ErrPayloadSize = errors.New("apdu: payload exceeds packet size")
	ErrShortReply  = errors.New("apdu: reply shorter than status word")
)

// Command is one decoded request frame.
type Command struct {
	Cla     byte
	Ins     Ins
	P1      byte
	P2      byte
	Payload []byte
}

// DecodeCommand parses cla||ins||p1||p2||lc||payload. The frame must
// span the buffer exactly.
func DecodeCommand(raw []byte) (Command, error) {
	if len(raw) < HeaderLen {
		return Command{}, ErrShortFrame
	}
	lc := int(raw[4])
	if lc > MaxPacketSize {
		return Command{}, ErrPayloadSize
	}
	if len(raw) != HeaderLen+lc {
		return Command{}, ErrFrameLength
	}

	return Command{
		Cla:     raw[0],
		Ins:     Ins(raw[1]),
		P1:      raw[2],
		P2:      raw[3],
		Payload: bytes.Clone(raw[HeaderLen:]),
	}, nil
}

// Encode renders the command back to wire bytes.
func (c Command) Encode() ([]byte, error) {
	if len(c.Payload) > MaxPacketSize {
		return nil, ErrPayloadSize
	}

	dst := make([]byte, HeaderLen+len(c.Payload))
	dst[0] = c.Cla
	dst[1] = byte(c.Ins)
	dst[2] = c.P1
	dst[3] = c.P2
	dst[4] = byte(len(c.Payload))
	copy(dst[HeaderLen:], c.Payload)

	return dst, nil
}

// Last reports the final packet flag of a P1 byte.
func Last(p1 byte) bool { return p1&IndexLast != 0 }

// First reports whether P1 names the opening packet once the final
// flag is stripped.
func First(p1 byte) bool { return p1&^IndexLast == IndexFirst }

// Response couples a reply payload with its status word.
type Response struct {
	Data   []byte
	Status Status
}

// Encode renders payload||status.
func (r Response) Encode() []byte {
	dst := make([]byte, len(r.Data)+2)
	copy(dst, r.Data)
	binary.BigEndian.PutUint16(dst[len(r.Data):], uint16(r.Status))

	return dst
}

// DecodeResponse splits a reply into payload and status word.
func DecodeResponse(raw []byte) (Response, error) {
	if len(raw) < 2 {
		return Response{}, ErrShortReply
	}

	return Response{
		Data:   bytes.Clone(raw[:len(raw)-2]),
		Status: Status(binary.BigEndian.Uint16(raw[len(raw)-2:])),
	}, nil
}

// SignPackets splits a signing request into wire commands: the path
// packet opens the session, then the message follows in MaxPacketSize
// chunks with the final one flagged. An empty message still produces
// one empty closing packet.
func SignPackets(ins Ins, curve byte, path, message []byte) []Command {
	cmds := []Command{{Cla: ClaDefault, Ins: ins, P1: IndexFirst, P2: curve, Payload: path}}

	chunks := lo.Chunk(message, MaxPacketSize)
	if len(chunks) == 0 {
		chunks = [][]byte{nil}
	}
	for i, part := range chunks {
		p1 := IndexOther
		if i == len(chunks)-1 {
			p1 |= IndexLast
		}
		cmds = append(cmds, Command{Cla: ClaDefault, Ins: ins, P1: p1, P2: curve, Payload: part})
	}

	return cmds
}
