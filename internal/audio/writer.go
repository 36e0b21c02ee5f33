package audio

import (
	"errors"
	"io"
)

// bufferSeeker is an in-memory io.WriteSeeker so the WAV encoder can
// back-patch chunk sizes without touching disk.
type bufferSeeker struct {
	buf []byte
	pos int
}

func (b *bufferSeeker) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		grown := make([]byte, need)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *bufferSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = b.pos + int(offset)
	case io.SeekEnd:
		next = len(b.buf) + int(offset)
	default:
		return 0, errors.New("unsupported whence")
	}
	if next < 0 {
		return 0, errors.New("negative seek position")
	}
	b.pos = next
	return int64(next), nil
}

func (b *bufferSeeker) Bytes() []byte {
	return b.buf
}
