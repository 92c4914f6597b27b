package results

import (
	"sort"
	"sync"

	"flow-latency-benchmark/core"
)

// EventLog collects the settlement of the actions of every run of a
// benchmark. It is fed through batch observers, possibly concurrently.
type EventLog struct {
	mu       sync.Mutex
	outcomes map[core.Outcome]int // outcome -> number of actions
	failed   map[string]int       // action -> number of failed or skipped runs
}

func NewEventLog() *EventLog {
	return &EventLog{
		outcomes: make(map[core.Outcome]int),
		failed:   make(map[string]int),
	}
}

// Observer returns a batch observer logging into the event log.
func (this *EventLog) Observer() core.Observer {
	return this.AddSettled
}

// Log that an action has settled.
func (this *EventLog) AddSettled(action string, r core.Record) {
	this.mu.Lock()
	defer this.mu.Unlock()

	this.outcomes[r.Outcome]++
	if r.Outcome == core.OutcomeFailed || r.Outcome == core.OutcomeSkipped {
		this.failed[action]++
	}
}

// Count returns the number of actions that settled with the outcome.
func (this *EventLog) Count(outcome core.Outcome) int {
	this.mu.Lock()
	defer this.mu.Unlock()

	return this.outcomes[outcome]
}

// Total returns the number of settled actions.
func (this *EventLog) Total() int {
	this.mu.Lock()
	defer this.mu.Unlock()

	var total int
	for _, n := range this.outcomes {
		total += n
	}
	return total
}

// Failed returns the actions that failed or were skipped at least once,
// sorted by name.
func (this *EventLog) Failed() []string {
	this.mu.Lock()
	defer this.mu.Unlock()

	names := make([]string, 0, len(this.failed))
	for name := range this.failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
