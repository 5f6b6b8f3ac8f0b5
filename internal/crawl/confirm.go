package crawl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

// StdinConfirmer blocks until the operator presses Enter. It satisfies the
// bootstrap precondition of the scheduler: a human finishes any interactive
// authentication in the browser before the crawl starts.
type StdinConfirmer struct {
	in  io.Reader
	out io.Writer
}

// NewStdinConfirmer reads confirmations from standard input.
func NewStdinConfirmer() *StdinConfirmer {
	return &StdinConfirmer{in: os.Stdin, out: os.Stderr}
}

// Confirm prints the prompt and waits for a line of input or context
// cancellation, whichever comes first.
func (c *StdinConfirmer) Confirm(ctx context.Context, prompt string) error {
	fmt.Fprintln(c.out, prompt)

	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(c.in).ReadString('\n')
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil && err != io.EOF {
			return fmt.Errorf("read confirmation: %w", err)
		}
		return nil
	}
}
