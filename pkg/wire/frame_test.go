package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := &Packet{
		Magic:   Request,
		Command: SubmitJob,
		Args:    [][]byte{[]byte("reverse"), []byte(""), []byte("abc")},
	}
	buf, err := Encode(p)
	require.NoError(t, err)

	got, n, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, Request, got.Magic)
	assert.Equal(t, SubmitJob, got.Command)
	require.Len(t, got.Args, 3)
	assert.Equal(t, "reverse", string(got.Args[0]))
	assert.Equal(t, "", string(got.Args[1]))
	assert.Equal(t, "abc", string(got.Args[2]))
}

func TestDecodeNeedsMoreData(t *testing.T) {
	p := &Packet{Magic: Request, Command: EchoReq, Args: [][]byte{[]byte("hello")}}
	buf, err := Encode(p)
	require.NoError(t, err)

	_, _, err = Decode(buf[:headerSize-1])
	assert.ErrorIs(t, err, ErrNeedMore)

	_, _, err = Decode(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrNeedMore)
}

func TestDecodeInvalidMagic(t *testing.T) {
	buf := []byte("XXXX\x00\x00\x00\x01\x00\x00\x00\x00")
	_, _, err := Decode(buf)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecodeInvalidCommand(t *testing.T) {
	p := &Packet{Magic: Request, Command: 0}
	buf, err := Encode(p)
	require.NoError(t, err)
	_, _, err = Decode(buf)
	assert.ErrorIs(t, err, ErrInvalidCommand)

	buf2, err := Encode(&Packet{Magic: Request, Command: 999})
	require.NoError(t, err)
	_, _, err = Decode(buf2)
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestEchoRoundTripByteForByte(t *testing.T) {
	data := []byte{0x00, 0x01, 0xFF, 'h', 'i', 0x00, 'x'}
	buf, err := Encode(&Packet{Magic: Request, Command: EchoReq, Args: [][]byte{data}})
	require.NoError(t, err)

	got, _, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, data, got.Args[0])
}

func TestDecoderAccumulatesAcrossFeeds(t *testing.T) {
	buf, err := Encode(&Packet{Magic: Response, Command: JobCreated, Args: [][]byte{[]byte("H:host:1")}})
	require.NoError(t, err)

	var d Decoder
	d.Feed(buf[:5])
	pkt, ok, err := d.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, pkt)

	d.Feed(buf[5:])
	pkt, ok, err = d.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, JobCreated, pkt.Command)
	assert.Equal(t, "H:host:1", string(pkt.Args[0]))
	assert.Equal(t, 0, d.Buffered())
}

func TestCommandStringAndValid(t *testing.T) {
	assert.Equal(t, "SUBMIT_JOB", SubmitJob.String())
	assert.True(t, SubmitJob.Valid())
	assert.False(t, Command(35).Valid())
	assert.Equal(t, "UNKNOWN", Command(35).String())
}

func TestParseAdminLine(t *testing.T) {
	l := ParseAdminLine("maxqueue reverse 10")
	assert.Equal(t, "maxqueue", l.Command)
	assert.Equal(t, []string{"reverse", "10"}, l.Args)

	empty := ParseAdminLine("   ")
	assert.Equal(t, "", empty.Command)
	assert.Nil(t, empty.Args)
}

func TestIsTextAdmin(t *testing.T) {
	assert.False(t, IsTextAdmin(0))
	assert.True(t, IsTextAdmin('s'))
}
