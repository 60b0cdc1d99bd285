package sink

import (
	"bufio"
	"io"
	"sync"

	"github.com/ssargent/hermesportal/pkg/market"
)

// Console writes each line to w, serialized and flushed per line.
type Console struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: bufio.NewWriter(w)}
}

func (c *Console) Emit(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.w.WriteString(line)
	_ = c.w.WriteByte('\n')
	_ = c.w.Flush()
}

// Fanout forwards every line to each sink in order.
type Fanout []market.Sink

func (f Fanout) Emit(line string) {
	for _, s := range f {
		s.Emit(line)
	}
}
