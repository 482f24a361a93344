package player

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/chazu/sb3vm/vm"
)

// Console is a headless host: speech bubbles are printed to a writer and
// questions are answered with lines read from a reader.
type Console struct {
	out io.Writer
	in  io.Reader

	mu      sync.Mutex
	lines   chan string
	pending bool
	answer  string
	done    bool
}

var (
	_ vm.SpeechManager = (*Console)(nil)
	_ vm.Asker         = (*Console)(nil)
)

// NewConsole creates a console host.
func NewConsole(out io.Writer, in io.Reader) *Console {
	return &Console{out: out, in: in}
}

// Host returns a vm.Host using c for speech and questions.
func (c *Console) Host() vm.Host {
	return vm.Host{Speech: c, Asker: c}
}

// ShowSpeech prints a say or think bubble.
func (c *Console) ShowSpeech(s *vm.Sprite, text string, style string) {
	if text == "" {
		return
	}
	verb := "says"
	if style == "think" {
		verb = "thinks"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s: %s\n", s.Name, verb, text)
}

// ClearSpeech does nothing; printed bubbles cannot be taken back.
func (c *Console) ClearSpeech(*vm.Sprite) {}

// Ask prints the question and waits for the next input line.
func (c *Console) Ask(s *vm.Sprite, question string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lines == nil {
		c.lines = make(chan string)
		go c.readLines()
	}
	switch {
	case s == nil || s.IsStage:
		fmt.Fprintf(c.out, "? %s\n", question)
	case question != "":
		fmt.Fprintf(c.out, "%s asks: %s\n", s.Name, question)
	default:
		fmt.Fprintf(c.out, "%s is waiting for an answer\n", s.Name)
	}
	c.pending = true
	c.done = false
	c.answer = ""
}

// Answer reports the answer once a line has arrived. At end of input
// every question is answered with the empty string.
func (c *Console) Answer() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending {
		return c.answer, c.done
	}
	select {
	case line, ok := <-c.lines:
		if ok {
			c.answer = line
		}
		c.pending = false
		c.done = true
	default:
	}
	return c.answer, c.done
}

func (c *Console) readLines() {
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.Warningf("player: reading answers: %s", err)
	}
	close(c.lines)
}
