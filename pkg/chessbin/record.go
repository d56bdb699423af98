package chessbin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Byte order of every integer in a record stream.
var recordOrder = binary.LittleEndian

const recordHeaderSize = 8

// MaxRecordTokens bounds the token count of one frame.
const MaxRecordTokens = 1 << 20

// Record is one frame of a corpus file.
type Record struct {
	WindowSize int32
	Tokens     []int32
}

// WriteRecord writes one frame: token count, window size, then the tokens,
// all as int32. The frame goes out in a single Write call.
func WriteRecord(w io.Writer, windowSize int, tokens []int32) error {
	if len(tokens) > MaxRecordTokens {
		return fmt.Errorf("record of %d tokens exceeds %d", len(tokens), MaxRecordTokens)
	}
	buf := make([]byte, recordHeaderSize+4*len(tokens))
	recordOrder.PutUint32(buf[0:4], uint32(int32(len(tokens))))
	recordOrder.PutUint32(buf[4:8], uint32(int32(windowSize)))
	for i, token := range tokens {
		recordOrder.PutUint32(buf[recordHeaderSize+4*i:], uint32(token))
	}
	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

// ReadRecord reads one frame. It returns io.EOF when r is exhausted on a frame
// boundary and io.ErrUnexpectedEOF for a truncated frame.
func ReadRecord(r io.Reader) (Record, error) {
	var header [recordHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Record{}, err
	}
	count := int32(recordOrder.Uint32(header[0:4]))
	windowSize := int32(recordOrder.Uint32(header[4:8]))
	if count < 0 || count > MaxRecordTokens {
		return Record{}, fmt.Errorf("invalid token count %d", count)
	}
	if windowSize < 1 {
		return Record{}, fmt.Errorf("invalid window size %d", windowSize)
	}
	// The body grows with the bytes actually read, not with the header claim.
	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, 4*int64(count)); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.ErrUnexpectedEOF
		}
		return Record{}, err
	}
	raw := body.Bytes()
	tokens := make([]int32, count)
	for i := range tokens {
		tokens[i] = int32(recordOrder.Uint32(raw[4*i:]))
	}
	return Record{WindowSize: windowSize, Tokens: tokens}, nil
}

// FrameSize is the encoded size in bytes of a record with n tokens.
func FrameSize(n int) int64 {
	return int64(recordHeaderSize + 4*n)
}
