package capture

import (
	"bufio"
	"errors"
	"io"
	"os"
)

// ReaderConfig holds configuration for the capture reader
type ReaderConfig struct {
	Path        string
	StartOffset int64
}

// Reader provides sequential access to frames in a capture file
type Reader struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
}

// NewReader opens the capture file at config.StartOffset
func NewReader(config ReaderConfig) (*Reader, error) {
	file, err := os.Open(config.Path)
	if err != nil {
		return nil, err
	}
	if config.StartOffset > 0 {
		if _, err := file.Seek(config.StartOffset, io.SeekStart); err != nil {
			file.Close()
			return nil, err
		}
	}
	return &Reader{
		file:   file,
		reader: bufio.NewReader(file),
		offset: config.StartOffset,
	}, nil
}

// ReadNext reads the next frame. A partial header at the end of the file,
// as left by a writer that was killed, reads as io.EOF.
func (r *Reader) ReadNext() (Frame, error) {
	var header [headerSize]byte
	n, err := io.ReadFull(r.reader, header[:])
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, err
	}
	r.offset += int64(n)

	f := decodeHeader(header[:])
	if f.Size > MaxPayload {
		return Frame{}, ErrCorruption
	}

	f.Payload = make([]byte, f.Size)
	n, err = io.ReadFull(r.reader, f.Payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrTruncated
		}
		return Frame{}, err
	}
	r.offset += int64(n)

	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Offset returns the current read offset
func (r *Reader) Offset() int64 {
	return r.offset
}

// Iterator returns a streaming iterator over the remaining frames
func (r *Reader) Iterator() *Iterator {
	return &Iterator{reader: r}
}

// Close closes the capture file
func (r *Reader) Close() error {
	return r.file.Close()
}

// Iterator walks frames until the end of the file or the first bad frame.
type Iterator struct {
	reader *Reader
	frame  Frame
	err    error
}

func (it *Iterator) Next() bool {
	it.frame, it.err = it.reader.ReadNext()
	return it.err == nil
}

func (it *Iterator) Frame() Frame {
	return it.frame
}

// Err returns the error that stopped iteration, or nil at a clean end.
func (it *Iterator) Err() error {
	if errors.Is(it.err, io.EOF) {
		return nil
	}
	return it.err
}
