package results

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"flow-latency-benchmark/core"
	"flow-latency-benchmark/core/configs"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// flatTimestamp is an ISO timestamp truncated to the second.
const flatTimestamp = "2006-01-02T15:04:05Z"

// FlatResult is one metric of one test, the shape dashboards ingest.
type FlatResult struct {
	Timestamp string      `json:"timestamp"`
	Runner    string      `json:"runner"`
	Provider  string      `json:"provider"`
	Network   string      `json:"network"`
	Metric    string      `json:"metric"`
	Latency   int64       `json:"latency"` // completed - waiting
	Details   core.Record `json:"details"`
}

// Flatten turns archived runs into one row per metric. Tests without a
// network are reported on testnet. Within a test the metrics are sorted by
// name. Runs with an unreadable timestamp are skipped.
func Flatten(runs []RunResult) []FlatResult {
	var flat []FlatResult

	for _, run := range runs {
		at, err := time.Parse(time.RFC3339Nano, run.Timestamp)
		if err != nil {
			zap.L().Warn("skipping archived run with an invalid timestamp",
				zap.String("timestamp", run.Timestamp))
			continue
		}
		timestamp := at.UTC().Format(flatTimestamp)

		for _, test := range run.Tests {
			network := test.Network
			if network == "" {
				network = configs.NetworkTestnet
			}

			names := make([]string, 0, len(test.Metrics))
			for name := range test.Metrics {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				rec := test.Metrics[name]
				flat = append(flat, FlatResult{
					Timestamp: timestamp,
					Runner:    test.Runner,
					Provider:  test.ProviderKey,
					Network:   network,
					Metric:    name,
					Latency:   rec.Completed - rec.Waiting,
					Details:   rec,
				})
			}
		}
	}

	return flat
}

// FlattenArchive flattens the archive at archivePath into outputPath.
func FlattenArchive(archivePath, outputPath string) (int, error) {
	a, err := LoadArchive(archivePath)
	if err != nil {
		return 0, err
	}

	flat := Flatten(a.Results)
	if flat == nil {
		flat = []FlatResult{}
	}

	content, err := json.MarshalIndent(flat, "", "    ")
	if err != nil {
		return 0, errors.Wrap(err, "encoding flattened results")
	}

	if err := os.WriteFile(outputPath, content, 0o644); err != nil {
		return 0, errors.Wrapf(err, "writing %s", outputPath)
	}

	return len(flat), nil
}
