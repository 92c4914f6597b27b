package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"flow-latency-benchmark/core"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultRetention is how long a run stays in the archive.
const DefaultRetention = 30 * 24 * time.Hour

// TestResult holds the metrics of one runner against one provider.
type TestResult struct {
	Network     string                 `json:"network,omitempty"`
	Runner      string                 `json:"runner"`
	ProviderKey string                 `json:"providerKey"`
	Metrics     map[string]core.Record `json:"metrics"`
}

// RunResult holds every test of one benchmark run.
type RunResult struct {
	Timestamp string       `json:"timestamp"` // ISO 8601
	Tests     []TestResult `json:"tests"`
}

// Archive is the rolling JSON archive of the benchmark runs.
type Archive struct {
	Timestamp string      `json:"timestamp"` // Last update
	Results   []RunResult `json:"results"`
}

// NewRunResult groups the reports of a run.
func NewRunResult(at time.Time, reports []Report) RunResult {
	run := RunResult{
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Tests:     make([]TestResult, 0, len(reports)),
	}

	for _, r := range reports {
		metrics := make(map[string]core.Record, len(r.Entries))
		for _, e := range r.Entries {
			metrics[e.Name] = e.Record
		}
		run.Tests = append(run.Tests, TestResult{
			Network:     r.Network,
			Runner:      r.Runner,
			ProviderKey: r.Provider,
			Metrics:     metrics,
		})
	}

	return run
}

// LoadArchive reads the archive at path. A missing file is an empty archive.
func LoadArchive(path string) (*Archive, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Archive{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading archive %s", path)
	}

	var a Archive
	if err := json.Unmarshal(content, &a); err != nil {
		return nil, errors.Wrapf(err, "decoding archive %s", path)
	}

	return &a, nil
}

// Merge appends a run and drops the runs older than the retention window
// relative to now. The runs are kept sorted by timestamp. Runs with an
// unreadable timestamp are kept, ahead of the others.
func (a *Archive) Merge(run RunResult, now time.Time, retention time.Duration) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := now.Add(-retention)

	runs := append(append([]RunResult(nil), a.Results...), run)
	kept := make([]RunResult, 0, len(runs))
	times := make(map[int]time.Time, len(runs))

	for _, r := range runs {
		ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil {
			zap.L().Warn("archived run has an invalid timestamp",
				zap.String("timestamp", r.Timestamp))
			kept = append(kept, r)
			continue
		}
		if ts.Before(cutoff) {
			continue
		}
		times[len(kept)] = ts
		kept = append(kept, r)
	}

	order := make([]int, len(kept))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return times[order[i]].Before(times[order[j]])
	})

	sorted := make([]RunResult, len(kept))
	for i, k := range order {
		sorted[i] = kept[k]
	}

	a.Results = sorted
	a.Timestamp = now.UTC().Format(time.RFC3339Nano)
}

// Save writes the archive to path, creating the directory if needed.
func (a *Archive) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}

	content, err := json.MarshalIndent(a, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encoding archive")
	}

	return errors.Wrapf(os.WriteFile(path, content, 0o644), "writing archive %s", path)
}

// MergeArchive loads the archive at path, merges the run into it and writes
// it back.
func MergeArchive(path string, run RunResult, retention time.Duration) (*Archive, error) {
	a, err := LoadArchive(path)
	if err != nil {
		return nil, err
	}

	a.Merge(run, time.Now(), retention)

	if err := a.Save(path); err != nil {
		return nil, err
	}

	zap.L().Info("archive updated",
		zap.String("path", path),
		zap.Int("runs", len(a.Results)))

	return a, nil
}
