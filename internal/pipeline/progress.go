package pipeline

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress events during batch processing.
type ProgressCallback interface {
	// OnStart is called when processing begins with the total number of items.
	OnStart(total int)

	// OnProgress is called after each completed item.
	OnProgress(current, total int)

	// OnComplete is called when processing is finished.
	OnComplete()

	// OnError is called for each failed item.
	OnError(index int, err error)
}

// NoOpProgressCallback implements ProgressCallback but does nothing.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)          {}
func (NoOpProgressCallback) OnProgress(int, int)  {}
func (NoOpProgressCallback) OnComplete()          {}
func (NoOpProgressCallback) OnError(int, error)   {}

// ConsoleProgressCallback renders a progress bar on the console.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration
	lastUpdate     time.Time
	startTime      time.Time
	mutex          sync.Mutex
}

// NewConsoleProgressCallback creates a console progress reporter.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	fmt.Fprintf(c.writer, "%s0/%d\n", c.prefixLabel(), total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := time.Now()
	if current < total && now.Sub(c.lastUpdate) < c.updateInterval {
		return
	}
	c.lastUpdate = now

	filled := 0
	if total > 0 {
		filled = current * c.width / total
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", c.width-filled)
	elapsed := now.Sub(c.startTime).Round(time.Second)
	fmt.Fprintf(c.writer, "\r%s[%s] %d/%d (%s)", c.prefixLabel(), bar, current, total, elapsed)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	fmt.Fprintln(c.writer)
}

func (c *ConsoleProgressCallback) OnError(index int, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	fmt.Fprintf(c.writer, "\n%sitem %d failed: %v\n", c.prefixLabel(), index, err)
}

func (c *ConsoleProgressCallback) prefixLabel() string {
	if c.prefix == "" {
		return ""
	}
	return c.prefix + " "
}
