package storage

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ssargent/hermesportal/pkg/parser"
)

const DefaultRecorderQueue = 256

// Recorder persists parser failures on a background goroutine. Report
// never blocks; when the queue is full the failure is dropped and counted.
type Recorder struct {
	store *BlobStore
	ch    chan parser.Failure
	log   zerolog.Logger

	stored  atomic.Uint64
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewRecorder(store *BlobStore, queueSize int, logger *zerolog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultRecorderQueue
	}
	r := &Recorder{
		store: store,
		ch:    make(chan parser.Failure, queueSize),
		log:   zerolog.Nop(),
		done:  make(chan struct{}),
	}
	if logger != nil {
		r.log = logger.With().Str("component", "recorder").Logger()
	}
	go r.run()
	return r
}

// Report implements parser.Diagnostics.
func (r *Recorder) Report(f parser.Failure) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.ch <- f:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) Stored() uint64  { return r.stored.Load() }
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Close stores what is queued and stops the writer. The store stays open.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for f := range r.ch {
		id, err := r.store.Put(Blob{
			Feed:    f.Feed,
			Stage:   string(f.Stage),
			Reason:  f.Reason,
			Payload: f.Payload,
		})
		if err != nil {
			r.log.Warn().Err(err).Msg("store failed payload")
			continue
		}
		r.stored.Add(1)
		r.log.Debug().Str("id", id.String()).Int("len", len(f.Payload)).Msg("stored failed payload")
	}
}
