package core

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
)

// LatenciesHeader introduces the printed latency section of a batch.
const LatenciesHeader = "---- Latencies ----"

// Outcome tells how an action settled.
type Outcome string

const (
	OutcomeOK                   Outcome = "ok"
	OutcomePreconditionTimeout  Outcome = "precondition-timeout"
	OutcomeStabilizationTimeout Outcome = "stabilization-timeout"
	OutcomeFailed               Outcome = "failed"
	OutcomeSkipped              Outcome = "skipped"
)

// Record holds the two durations measured for one action, in milliseconds.
type Record struct {
	Waiting   int64   `json:"waiting"`           // Time before the awaited field was available
	Completed int64   `json:"completed"`         // Time from action start to final settlement
	Outcome   Outcome `json:"outcome,omitempty"` // How the action settled
}

// Entry is a named record, as listed by Latencies.Entries.
type Entry struct {
	Name string `json:"name"`
	Record
}

// Latencies maps action names to their records and remembers the order in
// which the records were written, which is the completion order of the
// actions.
type Latencies struct {
	mu      sync.RWMutex
	names   []string
	records map[string]Record
}

func NewLatencies() *Latencies {
	return &Latencies{
		records: make(map[string]Record),
	}
}

// Add records the latency of an action. A name can only be recorded once.
func (l *Latencies) Add(name string, record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[name]; ok {
		return errors.Wrapf(ErrLatencyRecorded, "action %s", name)
	}

	l.records[name] = record
	l.names = append(l.names, name)

	return nil
}

func (l *Latencies) Get(name string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.records[name]
	return r, ok
}

func (l *Latencies) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.names)
}

// Names returns the recorded names in completion order.
func (l *Latencies) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]string(nil), l.names...)
}

// Entries returns the records in completion order.
func (l *Latencies) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]Entry, 0, len(l.names))
	for _, name := range l.names {
		entries = append(entries, Entry{Name: name, Record: l.records[name]})
	}

	return entries
}

// Map returns a copy of the records keyed by action name.
func (l *Latencies) Map() map[string]Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m := make(map[string]Record, len(l.records))
	for k, v := range l.records {
		m[k] = v
	}

	return m
}

// Print writes the latency section, one line per action in completion order.
func (l *Latencies) Print(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "\n %s\n", LatenciesHeader); err != nil {
		return err
	}

	for _, e := range l.Entries() {
		if _, err := fmt.Fprintln(w, FormatLatencyLine(e.Name, e.Record)); err != nil {
			return err
		}
	}

	return nil
}

// FormatLatencyLine renders a single record the way Print does.
func FormatLatencyLine(name string, r Record) string {
	return fmt.Sprintf("- %s: %dms(waiting) - %dms(completed)", name, r.Waiting, r.Completed)
}

var latencyLineRe = regexp.MustCompile(`- (.+): (\d+)ms\(waiting\) - (\d+)ms\(completed\)`)

// ParseLatencyLine is the inverse of FormatLatencyLine. The boolean is false
// when the line is not a latency line.
func ParseLatencyLine(line string) (string, Record, bool) {
	m := latencyLineRe.FindStringSubmatch(line)
	if m == nil {
		return "", Record{}, false
	}

	waiting, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", Record{}, false
	}
	completed, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return "", Record{}, false
	}

	return m[1], Record{Waiting: waiting, Completed: completed}, true
}
