package flow

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tonimelisma/globus-transfer/internal/globus"
)

type lineResult struct {
	line string
	err  error
}

// consolePrompt reads codes from one buffered reader. At most one read is
// in flight: a read abandoned by a cancelled call is picked up by the next.
type consolePrompt struct {
	reader *bufio.Reader
	out    io.Writer

	mu      sync.Mutex
	pending chan lineResult
}

// NewPrompt returns a globus.Prompt that prints the authorization URL to out
// and reads one line from in. The reader is shared across calls so a second
// login continues where the first one stopped reading.
func NewPrompt(in io.Reader, out io.Writer) globus.Prompt {
	p := &consolePrompt{reader: bufio.NewReader(in), out: out}
	return p.ask
}

func (p *consolePrompt) ask(ctx context.Context, authorizeURL string) (string, error) {
	fmt.Fprintf(p.out, "Please go to this URL and login:\n\n%s\n\n", authorizeURL)
	fmt.Fprint(p.out, "Please enter the code here: ")

	ch := p.nextLine()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		p.mu.Lock()
		p.pending = nil
		p.mu.Unlock()

		// A final line without a newline is still a code.
		if r.err != nil && (!errors.Is(r.err, io.EOF) || r.line == "") {
			return "", r.err
		}

		return strings.TrimSpace(r.line), nil
	}
}

// nextLine returns the channel of the in-flight read, starting one if none is.
func (p *consolePrompt) nextLine() <-chan lineResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		ch := make(chan lineResult, 1)
		p.pending = ch

		go func() {
			line, err := p.reader.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
	}

	return p.pending
}
