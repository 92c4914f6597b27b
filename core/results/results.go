// Package results contains the information about the results and handles the
// processing and display / logging of the information. Every scenario run
// produces a report, the reports of a benchmark are collated into the CSV,
// the rolling archive and the aggregated summary.
package results

import (
	"sort"
	"time"

	"flow-latency-benchmark/core"

	"github.com/google/uuid"
)

// Report is the result of one runner against one provider.
type Report struct {
	ID        string       `json:"id"`        // Unique id of the run
	Timestamp time.Time    `json:"timestamp"` // When the run finished
	Provider  string       `json:"provider"`  // Provider label
	Network   string       `json:"network"`   // Network the runner ran on
	Runner    string       `json:"runner"`    // Scenario name
	Entries   []core.Entry `json:"latencies"` // Latencies in completion order
	Error     string       `json:"error,omitempty"`
}

// NewReport snapshots the latencies of a run.
func NewReport(provider, network, runner string, latencies *core.Latencies) Report {
	var entries []core.Entry
	if latencies != nil {
		entries = latencies.Entries()
	}

	return Report{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Provider:  provider,
		Network:   network,
		Runner:    runner,
		Entries:   entries,
	}
}

// Get returns the record of an action.
func (r *Report) Get(name string) (core.Record, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Record, true
		}
	}
	return core.Record{}, false
}

// ActionSummary aggregates the latencies of one action across reports.
type ActionSummary struct {
	Name              string  `json:"name"`
	Runs              int     `json:"runs"`              // Number of reports carrying the action
	Timeouts          int     `json:"timeouts"`          // Runs that hit a wait ceiling
	MinCompleted      int64   `json:"minCompleted"`      // smallest completed time observed
	MaxCompleted      int64   `json:"maxCompleted"`      // highest completed time observed
	AverageCompleted  float64 `json:"averageCompleted"`  // average completed time
	MedianCompleted   float64 `json:"medianCompleted"`   // median completed time
	AverageWaiting    float64 `json:"averageWaiting"`    // average time spent on the precondition
	AverageProcessing float64 `json:"averageProcessing"` // average of completed - waiting
}

// AggregatedResults returns all the reports of a benchmark, and stores the
// calculated information per action (e.g. max, min, ...)
type AggregatedResults struct {
	Reports []Report        `json:"reports"`
	Actions []ActionSummary `json:"actions"` // Sorted by action name
}

// CalculateAggregatedResults calculates the aggregated results given the set
// of reports.
func CalculateAggregatedResults(reports []Report) AggregatedResults {
	if len(reports) == 0 {
		return AggregatedResults{}
	}

	records := make(map[string][]core.Record)
	for _, r := range reports {
		for _, e := range r.Entries {
			records[e.Name] = append(records[e.Name], e.Record)
		}
	}

	actions := make([]ActionSummary, 0, len(records))
	for name, recs := range records {
		actions = append(actions, summarise(name, recs))
	}
	sort.Slice(actions, func(i, j int) bool {
		return actions[i].Name < actions[j].Name
	})

	return AggregatedResults{
		Reports: reports,
		Actions: actions,
	}
}

func summarise(name string, recs []core.Record) ActionSummary {
	s := ActionSummary{
		Name:         name,
		Runs:         len(recs),
		MinCompleted: recs[0].Completed,
	}

	completed := make([]float64, 0, len(recs))
	var waiting, processing float64

	for _, r := range recs {
		completed = append(completed, float64(r.Completed))
		s.AverageCompleted += float64(r.Completed)
		waiting += float64(r.Waiting)
		processing += float64(r.Completed - r.Waiting)

		// Maximum and minimums
		if r.Completed > s.MaxCompleted {
			s.MaxCompleted = r.Completed
		}
		if r.Completed < s.MinCompleted {
			s.MinCompleted = r.Completed
		}

		if r.Outcome == core.OutcomePreconditionTimeout || r.Outcome == core.OutcomeStabilizationTimeout {
			s.Timeouts++
		}
	}

	n := float64(len(recs))
	s.AverageCompleted /= n
	s.AverageWaiting = waiting / n
	s.AverageProcessing = processing / n

	sort.Float64s(completed)

	// If it's even
	mid := len(completed) / 2
	if len(completed)%2 == 0 {
		s.MedianCompleted = (completed[mid-1] + completed[mid]) / 2
	} else {
		s.MedianCompleted = completed[mid]
	}

	return s
}

// ActionNames returns the sorted union of the action names of the reports.
func ActionNames(reports []Report) []string {
	seen := make(map[string]bool)
	var names []string

	for _, r := range reports {
		for _, e := range r.Entries {
			if !seen[e.Name] {
				seen[e.Name] = true
				names = append(names, e.Name)
			}
		}
	}

	sort.Strings(names)
	return names
}
