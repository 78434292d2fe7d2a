package wire

// Decoder accumulates bytes from a stream and yields complete frames,
// wrapping the stateless Decode function with the growable buffer a
// socket reader needs.
type Decoder struct {
	buf []byte
}

// Feed appends newly read bytes to the decoder's buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next fully-buffered packet, or (nil, false, nil) if
// more bytes are needed. A non-nil error is terminal: the caller must
// close the connection.
func (d *Decoder) Next() (*Packet, bool, error) {
	pkt, n, err := Decode(d.buf)
	if err == ErrNeedMore {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	d.buf = d.buf[n:]
	return pkt, true, nil
}

// Buffered reports how many bytes are currently held, unconsumed.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
