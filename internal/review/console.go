package review

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Console asks a reviewer on a terminal. Invalid answers re-prompt.
type Console struct {
	in   io.Reader
	out  io.Writer
	once sync.Once
	// lines is fed by a single reader goroutine so a cancelled Review does
	// not lose input meant for the next one.
	lines chan string
	eof   chan struct{}
}

var _ Gate = (*Console)(nil)

// NewConsole reads answers from in and writes prompts to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:    in,
		out:   out,
		lines: make(chan string),
		eof:   make(chan struct{}),
	}
}

func (c *Console) start() {
	go func() {
		defer close(c.eof)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
	}()
}

// Review prints the comment and classifier output and waits for 0 or 1.
func (c *Console) Review(ctx context.Context, item Item) (Decision, error) {
	c.once.Do(c.start)

	fmt.Fprintf(c.out, "\nComment: %s\n", item.Text)
	if item.Classified {
		fmt.Fprintf(c.out, "Classifier: class %d with %.2f%% confidence\n", item.Class, item.Confidence)
	} else {
		fmt.Fprintln(c.out, "Classifier: below certainty threshold")
	}
	fmt.Fprintf(c.out, "Filters: %s\n", item.Floor)

	for {
		fmt.Fprint(c.out, "Enter 0 to approve or 1 to flag: ")
		select {
		case line := <-c.lines:
			d, err := ParseDecision(line)
			if err != nil {
				fmt.Fprintln(c.out, "Invalid input.")
				continue
			}
			return d, nil
		case <-c.eof:
			return 0, errors.New("review: console input closed")
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return 0, ctx.Err()
		}
	}
}
