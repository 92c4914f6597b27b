package results

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"flow-latency-benchmark/core"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrNoLatencies is returned when an output carries no latency section.
var ErrNoLatencies = errors.New("no latency section found")

// ParseLatencies reads the latency section printed by a batch back into
// records. Lines before the section header are ignored, as are lines of the
// section that are not latency lines.
func ParseLatencies(r io.Reader) (*core.Latencies, error) {
	latencies := core.NewLatencies()
	scanner := bufio.NewScanner(r)
	found := false

	for scanner.Scan() {
		line := scanner.Text()

		if !found {
			found = strings.Contains(line, core.LatenciesHeader)
			continue
		}

		name, rec, ok := core.ParseLatencyLine(line)
		if !ok {
			continue
		}

		if err := latencies.Add(name, rec); err != nil {
			zap.L().Warn("latency listed twice, keeping the first",
				zap.String("action", name))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading latencies")
	}

	if !found {
		return nil, ErrNoLatencies
	}

	return latencies, nil
}

// ParseLatencyLog reads a captured run output. The runner is the file name
// without its extension.
func ParseLatencyLog(path, provider, network string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	latencies, err := ParseLatencies(f)
	if err != nil {
		return Report{}, errors.Wrapf(err, "parsing %s", path)
	}

	runner := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	return NewReport(provider, network, runner, latencies), nil
}
