package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic distinguishes a request frame from a response frame.
type Magic byte

const (
	Request Magic = iota
	Response
)

func (m Magic) bytes() []byte {
	if m == Request {
		return []byte("\x00REQ")
	}
	return []byte("\x00RES")
}

func (m Magic) String() string {
	if m == Request {
		return "REQ"
	}
	return "RES"
}

const headerSize = 12

// ErrNeedMore is returned by Decode when buf does not yet contain a full
// frame; the caller should read more bytes and retry.
var ErrNeedMore = errors.New("wire: need more data")

// ErrInvalidMagic is returned when the first four bytes are neither
// "\0REQ" nor "\0RES".
var ErrInvalidMagic = errors.New("wire: invalid magic")

// ErrInvalidCommand is returned when the command id is zero or unknown.
var ErrInvalidCommand = errors.New("wire: invalid command")

// ErrArgumentTooLarge is returned when a body length is not representable.
var ErrArgumentTooLarge = errors.New("wire: argument too large")

// Packet is one decoded (or to-be-encoded) binary frame.
type Packet struct {
	Magic   Magic
	Command Command
	Args    [][]byte
}

// Arg returns args[i] or nil if out of range.
func (p *Packet) Arg(i int) []byte {
	if i < 0 || i >= len(p.Args) {
		return nil
	}
	return p.Args[i]
}

// Encode writes p's wire representation: header followed by NUL-separated
// arguments (the final argument carries no trailing separator, so bulk
// "data" arguments may contain embedded NUL bytes).
func Encode(p *Packet) ([]byte, error) {
	body := bytes.Join(p.Args, []byte{0})
	if uint64(len(body)) > 0xFFFFFFFF {
		return nil, ErrArgumentTooLarge
	}

	buf := make([]byte, 0, headerSize+len(body))
	buf = append(buf, p.Magic.bytes()...)

	var cmdBuf, lenBuf [4]byte
	binary.BigEndian.PutUint32(cmdBuf[:], uint32(p.Command))
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	buf = append(buf, cmdBuf[:]...)
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, body...)
	return buf, nil
}

// Decode attempts to parse one binary frame from the front of buf. On
// success it returns the packet and the number of bytes consumed. If buf
// holds an incomplete frame it returns ErrNeedMore and consumed == 0; the
// caller should accumulate more bytes and retry the same buffer. A
// malformed header is a terminal error for the connection (spec.md §4.1):
// the caller must close the connection rather than retry.
func Decode(buf []byte) (*Packet, int, error) {
	if len(buf) < headerSize {
		return nil, 0, ErrNeedMore
	}

	var magic Magic
	switch {
	case bytes.Equal(buf[0:4], Request.bytes()):
		magic = Request
	case bytes.Equal(buf[0:4], Response.bytes()):
		magic = Response
	default:
		return nil, 0, ErrInvalidMagic
	}

	cmd := Command(binary.BigEndian.Uint32(buf[4:8]))
	if cmd == 0 || cmd >= maxCommand || !cmd.Valid() {
		return nil, 0, ErrInvalidCommand
	}

	bodyLen := binary.BigEndian.Uint32(buf[8:12])
	total := headerSize + int(bodyLen)
	if len(buf) < total {
		return nil, 0, ErrNeedMore
	}

	body := buf[headerSize:total]
	args, err := splitArgs(cmd, body)
	if err != nil {
		return nil, 0, err
	}

	return &Packet{Magic: magic, Command: cmd, Args: args}, total, nil
}

func splitArgs(cmd Command, body []byte) ([][]byte, error) {
	spec, ok := commandSpecs[cmd]
	if !ok {
		return nil, fmt.Errorf("wire: %w: %s", ErrInvalidCommand, cmd)
	}
	if spec.ArgCount == 0 {
		return nil, nil
	}

	args := make([][]byte, 0, spec.ArgCount)
	rest := body
	for i := 0; i < spec.ArgCount-1; i++ {
		idx := bytes.IndexByte(rest, 0)
		if idx < 0 {
			// Not enough NUL-separated tokens; treat remainder as the
			// final (possibly empty) arguments rather than erroring, since
			// some callers send trailing empty optional arguments.
			args = append(args, rest)
			rest = nil
			for len(args) < spec.ArgCount {
				args = append(args, nil)
			}
			return args, nil
		}
		args = append(args, rest[:idx])
		rest = rest[idx+1:]
	}
	args = append(args, rest)
	return args, nil
}
