// Package rfc6242 implements the NETCONF message framing defined in
// RFC 6242: the legacy end-of-message marker ("]]>]]>") and chunked
// framing. Both the Decoder and Encoder operate as transparent filters
// over a single long-lived connection, stripping (or inserting) framing
// bytes so that a single xml.Decoder/xml.Encoder can read and write a
// sequence of netconf messages without caring about message boundaries.
package rfc6242

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var (
	eomMarker     = []byte("]]>]]>")
	endOfChunks   = []byte("\n##\n")
	maxChunkBytes = uint32(4294967295)
)

// ErrMalformedChunk is returned when chunk framing does not conform to RFC 6242.
var ErrMalformedChunk = errors.New("rfc6242: malformed chunk header")

// Decoder strips RFC 6242 framing from an underlying stream.
type Decoder struct {
	r *bufio.Reader

	// ChunkedFraming is true once the peer has switched to chunked
	// framing (after capability exchange establishes base:1.1).
	ChunkedFraming bool

	chunkRemaining uint32
}

// NewDecoder returns a Decoder reading framed netconf messages from r.
// r may be nil; Read will fail if invoked before a real reader is supplied
// indirectly (this is only used to let tests construct standalone encoders).
func NewDecoder(r io.Reader) *Decoder {
	d := &Decoder{}
	if r != nil {
		d.r = bufio.NewReader(r)
	}
	return d
}

// Read implements io.Reader, delivering unframed message bytes.
func (d *Decoder) Read(p []byte) (int, error) {
	if d.r == nil {
		return 0, io.ErrClosedPipe
	}
	if d.ChunkedFraming {
		return d.readChunked(p)
	}
	return d.readEOM(p)
}

func (d *Decoder) readEOM(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		// Return what has been read once nothing more is buffered, rather
		// than blocking on a live connection until p is full.
		if n > 0 && d.r.Buffered() == 0 {
			break
		}
		b, err := d.r.ReadByte()
		if err != nil {
			return n, err
		}
		if b == eomMarker[0] {
			rest, err := d.r.Peek(len(eomMarker) - 1)
			if err == nil && string(rest) == string(eomMarker[1:]) {
				if _, err := d.r.Discard(len(eomMarker) - 1); err != nil {
					return n, err
				}
				// End-of-message marker consumed; the next bytes in the
				// stream belong to the following message, so just keep
				// filling the caller's buffer from there.
				continue
			}
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (d *Decoder) readChunked(p []byte) (int, error) {
	if d.chunkRemaining == 0 {
		size, err := d.readChunkHeader()
		if err != nil {
			return 0, err
		}
		d.chunkRemaining = size
	}

	toRead := len(p)
	if uint32(toRead) > d.chunkRemaining {
		toRead = int(d.chunkRemaining)
	}
	n, err := d.r.Read(p[:toRead])
	d.chunkRemaining -= uint32(n)
	return n, err
}

// readChunkHeader consumes one "\n#<size>\n" header, or one or more
// "\n##\n" end-of-chunks markers (possibly followed directly by the next
// message's first chunk header), returning the size of the next data
// chunk to deliver.
func (d *Decoder) readChunkHeader() (uint32, error) {
	for {
		marker, err := d.r.Peek(2)
		if err != nil {
			return 0, err
		}
		if marker[0] != '\n' || marker[1] != '#' {
			return 0, ErrMalformedChunk
		}

		if end, _ := d.r.Peek(4); len(end) == 4 && end[2] == '#' && end[3] == '\n' {
			if _, err := d.r.Discard(4); err != nil {
				return 0, err
			}
			// End of one message's chunks; loop to consume the next
			// message's header transparently.
			continue
		}

		if _, err := d.r.Discard(2); err != nil {
			return 0, err
		}

		line, err := d.r.ReadSlice('\n')
		if err != nil {
			return 0, err
		}
		digits := line[:len(line)-1]
		if len(digits) == 0 {
			return 0, ErrMalformedChunk
		}

		var size uint32
		for _, c := range digits {
			if c < '0' || c > '9' {
				return 0, ErrMalformedChunk
			}
			size = size*10 + uint32(c-'0')
		}
		if size == 0 || size > maxChunkBytes {
			return 0, ErrMalformedChunk
		}
		return size, nil
	}
}

// Encoder adds RFC 6242 framing to an underlying stream.
type Encoder struct {
	w *bufio.Writer

	// ChunkedFraming is true once the session has switched to chunked
	// framing.
	ChunkedFraming bool
}

// NewEncoder returns an Encoder writing framed netconf messages to w.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{}
	if w != nil {
		e.w = bufio.NewWriter(w)
	}
	return e
}

// Write frames p as one chunk (in chunked mode) or passes it straight
// through (in end-of-message mode). Call EndOfMessage once all of a
// message's bytes have been written.
func (e *Encoder) Write(p []byte) (int, error) {
	if e.w == nil {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 0 {
		return 0, nil
	}
	if e.ChunkedFraming {
		if _, err := fmt.Fprintf(e.w, "\n#%d\n", len(p)); err != nil {
			return 0, err
		}
	}
	return e.w.Write(p)
}

// EndOfMessage writes the framing terminator for the message just written
// and flushes the underlying writer.
func (e *Encoder) EndOfMessage() error {
	if e.w == nil {
		return io.ErrClosedPipe
	}
	var err error
	if e.ChunkedFraming {
		_, err = e.w.Write(endOfChunks)
	} else {
		_, err = e.w.Write(eomMarker)
	}
	if err != nil {
		return err
	}
	return e.w.Flush()
}
