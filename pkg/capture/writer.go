package capture

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// WriterConfig holds configuration for the capture writer
type WriterConfig struct {
	Path          string        // Capture file, appended to when it exists
	FsyncInterval time.Duration // How often to fsync (0 = every frame)
	BufferSize    int           // Write buffer size
}

// Writer appends frames to a capture file
type Writer struct {
	file       *os.File
	writer     *bufio.Writer
	fsyncTimer *time.Timer
	config     WriterConfig
	mutex      sync.Mutex
	offset     int64
	frames     uint64
}

// NewWriter opens or creates the capture file and positions at its end.
func NewWriter(config WriterConfig) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0750); err != nil {
		return nil, err
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 256 * 1024
	}

	file, err := os.OpenFile(config.Path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, err
	}

	w := &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, config.BufferSize),
		config: config,
		offset: offset,
	}

	if config.FsyncInterval > 0 {
		w.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			w.mutex.Lock()
			defer w.mutex.Unlock()
			w.sync() //nolint:errcheck // retried on the next frame
		})
	}
	return w, nil
}

// Append writes pkt as one frame and returns the offset it starts at.
func (w *Writer) Append(ts time.Time, pkt []byte) (int64, error) {
	data, err := Encode(NewFrame(ts, pkt))
	if err != nil {
		return 0, err
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err := w.writer.Write(data)
	if err != nil {
		return 0, err
	}
	start := w.offset
	w.offset += int64(n)
	w.frames++

	if w.config.FsyncInterval == 0 {
		if err := w.sync(); err != nil {
			return 0, err
		}
	} else if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.config.FsyncInterval)
	}
	return start, nil
}

// Sync flushes buffered frames and fsyncs the file
func (w *Writer) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sync()
}

func (w *Writer) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close syncs and closes the file
func (w *Writer) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}
	if err := w.sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Size returns the current size of the capture file
func (w *Writer) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}

// Frames returns how many frames this writer appended
func (w *Writer) Frames() uint64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.frames
}

func (w *Writer) Path() string {
	return w.config.Path
}
