package results

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flow-latency-benchmark/core"

	"github.com/stretchr/testify/require"
)

func TestArchiveMerge(t *testing.T) {
	now := time.Date(2024, 11, 30, 12, 0, 0, 0, time.UTC)

	a := &Archive{Results: []RunResult{
		{Timestamp: now.Add(-24 * time.Hour).Format(time.RFC3339Nano)},
		{Timestamp: now.Add(-31 * 24 * time.Hour).Format(time.RFC3339Nano)},
		{Timestamp: now.Add(-2 * time.Hour).Format(time.RFC3339Nano)},
	}}

	a.Merge(RunResult{Timestamp: now.Format(time.RFC3339Nano)}, now, 0)

	require.Len(t, a.Results, 3)
	require.Equal(t, now.Add(-24*time.Hour).Format(time.RFC3339Nano), a.Results[0].Timestamp)
	require.Equal(t, now.Add(-2*time.Hour).Format(time.RFC3339Nano), a.Results[1].Timestamp)
	require.Equal(t, now.Format(time.RFC3339Nano), a.Results[2].Timestamp)
	require.Equal(t, now.Format(time.RFC3339Nano), a.Timestamp)

	a.Merge(RunResult{Timestamp: now.Format(time.RFC3339Nano)}, now, time.Hour)
	require.Len(t, a.Results, 2)
}

func TestArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outputs", "latency_results.json")

	a, err := LoadArchive(path)
	require.NoError(t, err)
	require.Empty(t, a.Results)

	run := NewRunResult(time.Now(), []Report{
		report("default", "transfer-test", entry("0_TransferAction", 0, 900)),
	})
	_, err = MergeArchive(path, run, DefaultRetention)
	require.NoError(t, err)

	a, err = LoadArchive(path)
	require.NoError(t, err)
	require.Len(t, a.Results, 1)

	test := a.Results[0].Tests[0]
	require.Equal(t, "default", test.ProviderKey)
	require.Equal(t, "testnet", test.Network)
	require.Equal(t, core.Record{Completed: 900, Outcome: core.OutcomeOK}, test.Metrics["0_TransferAction"])
}

func TestFlatten(t *testing.T) {
	runs := []RunResult{{
		Timestamp: "2024-12-01T10:20:30.123456Z",
		Tests: []TestResult{
			{
				Runner:      "transfer-test",
				ProviderKey: "default",
				Metrics: map[string]core.Record{
					"1_b": {Waiting: 100, Completed: 400},
					"0_a": {Waiting: 0, Completed: 250},
				},
			},
			{
				Network:     "mainnet",
				Runner:      "transfer-test",
				ProviderKey: "ALCHEMY_URL",
				Metrics:     map[string]core.Record{"0_a": {Completed: 10}},
			},
		},
	}}

	flat := Flatten(runs)
	require.Len(t, flat, 3)

	require.Equal(t, FlatResult{
		Timestamp: "2024-12-01T10:20:30Z",
		Runner:    "transfer-test",
		Provider:  "default",
		Network:   "testnet",
		Metric:    "0_a",
		Latency:   250,
		Details:   core.Record{Waiting: 0, Completed: 250},
	}, flat[0])
	require.Equal(t, int64(300), flat[1].Latency)
	require.Equal(t, "mainnet", flat[2].Network)

	skipped := Flatten(append([]RunResult{{
		Timestamp: "yesterday",
		Tests:     []TestResult{{Runner: "transfer-test", Metrics: map[string]core.Record{"0_a": {}}}},
	}}, runs...))
	require.Equal(t, flat, skipped)
}

func TestFlattenArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "latency_results.json")
	output := filepath.Join(dir, "flattened_output.json")

	_, err := MergeArchive(archive, NewRunResult(time.Now(), []Report{
		report("default", "transfer-test", entry("a", 1, 2), entry("b", 1, 3)),
	}), DefaultRetention)
	require.NoError(t, err)

	n, err := FlattenArchive(archive, output)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.FileExists(t, output)
}

func TestFlattenArchiveWithAnInvalidRun(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "latency_results.json")
	output := filepath.Join(dir, "flattened_output.json")

	bad := &Archive{Results: []RunResult{{
		Timestamp: "not a timestamp",
		Tests:     []TestResult{{Runner: "transfer-test", Metrics: map[string]core.Record{"old": {Completed: 1}}}},
	}}}
	require.NoError(t, bad.Save(archive))

	// The invalid run is kept by the merge and must not block the export.
	a, err := MergeArchive(archive, NewRunResult(time.Now(), []Report{
		report("default", "transfer-test", entry("a", 1, 2)),
	}), DefaultRetention)
	require.NoError(t, err)
	require.Len(t, a.Results, 2)

	n, err := FlattenArchive(archive, output)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestParseLatencies(t *testing.T) {
	output := strings.Join([]string{
		"Action [0_TransferAction]: 812ms",
		"- ignored: 1ms(waiting) - 2ms(completed)",
		"",
		" ---- Latencies ----",
		"- 0_TransferAction: 0ms(waiting) - 812ms(completed)",
		"- 1_GetBalance: 815ms(waiting) - 1020ms(completed)",
		"done",
	}, "\n")

	l, err := ParseLatencies(strings.NewReader(output))
	require.NoError(t, err)
	require.Equal(t, []string{"0_TransferAction", "1_GetBalance"}, l.Names())

	rec, ok := l.Get("1_GetBalance")
	require.True(t, ok)
	require.Equal(t, core.Record{Waiting: 815, Completed: 1020}, rec)

	_, err = ParseLatencies(strings.NewReader("no section here"))
	require.ErrorIs(t, err, ErrNoLatencies)
}
