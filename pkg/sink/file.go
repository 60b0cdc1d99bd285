package sink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssargent/hermesportal/pkg/market"
)

const (
	DefaultFileQueue = 10000
	fileBatch        = 512
	timeLayout       = "2006-01-02 15:04:05"

	// column holding the 7208 exchange time
	orderBookTimeColumn = 10
)

// FileConfig holds configuration for a FileWriter.
type FileConfig struct {
	BaseDir   string
	QueueSize int // 0 = DefaultFileQueue
	Logger    *zerolog.Logger

	// Now and Location are for tests; they default to time.Now and
	// time.Local.
	Now      func() time.Time
	Location *time.Location
}

// FileWriter keeps one latest-value file and one history file per token:
//
//	<base>/live/<market>/<token>.txt        replaced atomically per line
//	<base>/historical/<market>/<token>.txt  appended
//
// The market folder is the market column of open-interest lines and the
// message code for everything else.
type FileWriter struct {
	base  string
	queue *ringQueue[string]
	now   func() time.Time
	loc   *time.Location
	log   zerolog.Logger

	written atomic.Uint64
	failed  atomic.Uint64

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewFileWriter creates base and starts the writer goroutine.
func NewFileWriter(config FileConfig) (*FileWriter, error) {
	if config.BaseDir == "" {
		return nil, fmt.Errorf("file sink: base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0750); err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultFileQueue
	}
	w := &FileWriter{
		base:  config.BaseDir,
		queue: newRingQueue[string](config.QueueSize),
		now:   config.Now,
		loc:   config.Location,
		log:   zerolog.Nop(),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.loc == nil {
		w.loc = time.Local
	}
	if config.Logger != nil {
		w.log = config.Logger.With().Str("component", "file-sink").Logger()
	}
	go w.run()
	return w, nil
}

// Emit queues line for writing.
func (w *FileWriter) Emit(line string) {
	select {
	case <-w.stop:
		return
	default:
	}
	w.queue.push(line)
}

// Dropped returns how many lines were evicted from a full queue.
func (w *FileWriter) Dropped() uint64 {
	return w.queue.droppedCount()
}

// Written returns how many lines reached the history files.
func (w *FileWriter) Written() uint64 {
	return w.written.Load()
}

// Failed returns how many file writes failed.
func (w *FileWriter) Failed() uint64 {
	return w.failed.Load()
}

// Close writes everything still queued and stops the writer.
func (w *FileWriter) Close() error {
	w.closeOnce.Do(func() { close(w.stop) })
	<-w.done
	return nil
}

func (w *FileWriter) run() {
	defer close(w.done)
	batch := make([]string, 0, fileBatch)
	for {
		select {
		case <-w.queue.ready:
		case <-w.stop:
			for {
				batch = w.queue.drain(batch[:0], fileBatch)
				if len(batch) == 0 {
					return
				}
				w.writeBatch(batch)
			}
		}
		batch = w.queue.drain(batch[:0], fileBatch)
		w.writeBatch(batch)
	}
}

type fileEntry struct {
	live, hist string
	latest     string
	lines      []string
}

// writeBatch groups lines by token file so each file is touched once.
func (w *FileWriter) writeBatch(lines []string) {
	if len(lines) == 0 {
		return
	}
	entries := make(map[string]*fileEntry)
	var order []string
	for _, raw := range lines {
		line, folder, token, ok := w.render(raw)
		if !ok {
			w.log.Debug().Str("line", raw).Msg("skipping malformed line")
			continue
		}
		key := folder + "/" + token
		e, found := entries[key]
		if !found {
			e = &fileEntry{
				live: filepath.Join(w.base, "live", folder, token+".txt"),
				hist: filepath.Join(w.base, "historical", folder, token+".txt"),
			}
			entries[key] = e
			order = append(order, key)
		}
		e.latest = line
		e.lines = append(e.lines, line)
	}

	for _, key := range order {
		e := entries[key]
		if err := writeLatest(e.live, e.latest); err != nil {
			w.failed.Add(1)
			w.log.Warn().Err(err).Str("path", e.live).Msg("write live file")
		}
		if err := appendLines(e.hist, e.lines); err != nil {
			w.failed.Add(1)
			w.log.Warn().Err(err).Str("path", e.hist).Msg("append history file")
		}
		w.written.Add(uint64(len(e.lines)))
	}
}

// render applies the file-only column changes and picks the folder.
func (w *FileWriter) render(raw string) (line, folder, token string, ok bool) {
	line = strings.TrimRight(raw, "\r\n")
	parts := strings.Split(line, ",")
	if len(parts) < 2 || parts[0] == "" {
		return "", "", "", false
	}
	token = sanitize(parts[0])
	folder = sanitize(parts[1])

	switch parts[1] {
	case "7208":
		if len(parts) > orderBookTimeColumn {
			if sec, err := strconv.ParseInt(parts[orderBookTimeColumn], 10, 64); err == nil {
				parts[orderBookTimeColumn] = time.Unix(sec, 0).In(w.loc).Format(timeLayout)
				line = strings.Join(parts, ",")
			}
		}
	case "7202", market.CodeString(market.CodeCMOpenInt):
		if len(parts) > 2 && parts[2] != "" {
			folder = sanitize(parts[2])
		}
		if parts[1] == "7202" {
			line += "," + w.now().In(w.loc).Format(timeLayout)
		}
	}
	return line, folder, token, true
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

// writeLatest replaces path with a single line through a temp file.
func writeLatest(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(line+"\n"), 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func appendLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for _, l := range lines {
		_, _ = bw.WriteString(l)
		_ = bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
