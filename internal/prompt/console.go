// Package prompt reads operator answers and the stop key from a terminal.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/openrice-crawler/internal/crawler"
)

// DefaultStopKey ends a run gracefully when entered on its own line.
const DefaultStopKey = "q"

// Console implements crawler.Prompter over line-oriented input. A single
// goroutine owns the reader; Ask must not be called once StopRequests has
// started consuming lines.
type Console struct {
	out     io.Writer
	stopKey string
	logger  *zap.Logger

	lines   chan string
	readErr error

	startRead sync.Once
	in        io.Reader

	stopOnce sync.Once
	stop     chan struct{}
	watch    sync.Once
}

var _ crawler.Prompter = (*Console)(nil)

// NewConsole reads answers from in and writes questions to out.
func NewConsole(in io.Reader, out io.Writer, stopKey string, logger *zap.Logger) *Console {
	if stopKey == "" {
		stopKey = DefaultStopKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		in:      in,
		out:     out,
		stopKey: stopKey,
		logger:  logger.Named("prompt"),
		lines:   make(chan string),
		stop:    make(chan struct{}),
	}
}

func (c *Console) readLoop() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	c.readErr = scanner.Err()
	close(c.lines)
}

func (c *Console) ensureReader() {
	c.startRead.Do(func() { go c.readLoop() })
}

// Ask writes question and returns the next input line, trimmed.
func (c *Console) Ask(ctx context.Context, question string) (string, error) {
	c.ensureReader()
	if _, err := fmt.Fprint(c.out, question); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			if c.readErr != nil {
				return "", fmt.Errorf("read answer: %w", c.readErr)
			}
			return "", io.EOF
		}
		return strings.TrimSpace(line), nil
	}
}

// StopRequests returns a channel closed when the stop key is entered. Other
// lines are ignored. Input reaching EOF never closes the channel.
func (c *Console) StopRequests(ctx context.Context) <-chan struct{} {
	c.ensureReader()
	c.watch.Do(func() {
		fmt.Fprintf(c.out, "Enter %q to stop after the current URL.\n", c.stopKey)
		go c.watchStop(ctx)
	})
	return c.stop
}

func (c *Console) watchStop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-c.lines:
			if !ok {
				return
			}
			if strings.EqualFold(strings.TrimSpace(line), c.stopKey) {
				c.logger.Info("stop requested by operator")
				c.stopOnce.Do(func() { close(c.stop) })
				return
			}
		}
	}
}
