package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Command names accepted on the inbound queue.
const (
	CmdToggle       = "toggle"
	CmdSwitchSource = "switch_source"
	CmdStop         = "stop"
	CmdSetDirection = "set_direction"

	setDirectionPrefix = CmdSetDirection + ":"
)

// Command is a parsed inbound command from the presentation layer.
type Command struct {
	Name      string
	Direction string // Only set for set_direction commands
}

// ParseCommand parses a raw command line into a Command.
// Valid forms: "toggle", "switch_source", "stop", "set_direction:<src>→<tgt>".
func ParseCommand(raw string) (Command, error) {
	raw = strings.TrimSpace(raw)

	switch raw {
	case CmdToggle, CmdSwitchSource, CmdStop:
		return Command{Name: raw}, nil
	}

	if dir, ok := strings.CutPrefix(raw, setDirectionPrefix); ok {
		if dir == "" {
			return Command{}, fmt.Errorf("set_direction command missing direction")
		}
		return Command{Name: CmdSetDirection, Direction: dir}, nil
	}

	return Command{}, fmt.Errorf("unknown command %q", raw)
}

// String renders the command in its wire form.
func (c Command) String() string {
	if c.Name == CmdSetDirection {
		return setDirectionPrefix + c.Direction
	}
	return c.Name
}

// Event is an outbound record for the presentation layer. Exactly one of the
// three forms is populated: a text update (Original + Translated, where
// Translated may be empty), a direction change, or a source change.
type Event struct {
	Original   *string `json:"original,omitempty"`
	Translated *string `json:"translated,omitempty"`
	Direction  *string `json:"direction,omitempty"`
	Source     *string `json:"source,omitempty"`
}

// TextEvent builds an {original, translated} update.
func TextEvent(original, translated string) Event {
	return Event{Original: &original, Translated: &translated}
}

// DirectionEvent builds a {direction} update.
func DirectionEvent(direction string) Event {
	return Event{Direction: &direction}
}

// SourceEvent builds a {source} update.
func SourceEvent(source string) Event {
	return Event{Source: &source}
}

// IsText reports whether the event carries a text update.
func (e Event) IsText() bool { return e.Original != nil }

// EventWriter serializes events as newline-delimited JSON onto a single writer.
// Safe for concurrent use; the pipeline emits from several goroutines.
type EventWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEventWriter creates an EventWriter over w.
func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{w: w}
}

// Write encodes one event followed by a newline.
func (ew *EventWriter) Write(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ew.mu.Lock()
	defer ew.mu.Unlock()

	if _, err := ew.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// CommandReader reads newline-delimited commands from a reader and pushes them
// onto an unbounded queue, so the control loop can poll without blocking.
type CommandReader struct {
	queue *Queue[Command]
	errs  chan error
}

// NewCommandReader starts a goroutine reading commands from r until EOF or a
// read error. Malformed lines are skipped and reported through Err.
func NewCommandReader(r io.Reader) *CommandReader {
	cr := &CommandReader{
		queue: NewQueue[Command](),
		errs:  make(chan error, 16),
	}

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			cmd, err := ParseCommand(line)
			if err != nil {
				select {
				case cr.errs <- err:
				default:
				}
				continue
			}
			cr.queue.Enqueue(cmd)
		}
		close(cr.errs)
	}()

	return cr
}

// Poll returns the next pending command, if any.
func (cr *CommandReader) Poll() (Command, bool) {
	return cr.queue.Dequeue()
}

// Err returns the channel of parse errors for logging.
func (cr *CommandReader) Err() <-chan error {
	return cr.errs
}
