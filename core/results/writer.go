package results

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// fileTimestamp is an ISO timestamp with the separators a file system may
// reject replaced.
func fileTimestamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// checkFileExists is a simple stat check to ensure that the file
// exists at the given path.
func checkFileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// checkIsRegular checks if the file is a regular file, else it's a special
// file (that can't be copied)
func checkIsRegular(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}

	return stat.Mode().IsRegular()
}

// copyFile copies a file from the source to the destination.
// Note: It can only copy regular files.
func copyFile(fromPath string, toPath string) error {
	// Make sure we can copy the configurations
	if !checkIsRegular(fromPath) {
		return errors.Newf("%s is not a regular file that can be copied", fromPath)
	}

	// Open and check the files
	source, err := os.Open(fromPath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", fromPath)
	}
	defer source.Close()

	dest, err := os.Create(toPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", toPath)
	}

	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return errors.Wrapf(err, "copying %s", fromPath)
	}

	return errors.Wrapf(dest.Close(), "closing %s", toPath)
}

// WriteCSV writes one row per report. The columns are the provider, the runner
// and a waiting and completed column for every action name seen in any
// report, sorted by name. Actions a report lacks are left empty.
func WriteCSV(w io.Writer, reports []Report) error {
	names := ActionNames(reports)
	cw := csv.NewWriter(w)

	header := make([]string, 0, 2+2*len(names))
	header = append(header, "providerKey", "runner")
	for _, name := range names {
		header = append(header, name+"(waiting)", name+"(completed)")
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "writing csv header")
	}

	for i := range reports {
		r := &reports[i]
		row := make([]string, 0, len(header))
		row = append(row, r.Provider, r.Runner)

		for _, name := range names {
			rec, ok := r.Get(name)
			if !ok {
				row = append(row, "", "")
				continue
			}
			row = append(row,
				strconv.FormatInt(rec.Waiting, 10),
				strconv.FormatInt(rec.Completed, 10))
		}

		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "writing csv row of %s", r.Runner)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}

// writeResults marshals the data into JSON and writes the result as a JSON file
func writeResults(path string, data interface{}) error {
	f, err := json.MarshalIndent(data, "", " ")

	if err != nil {
		return errors.Wrap(err, "encoding results")
	}

	return errors.Wrapf(os.WriteFile(path, f, 0o644), "writing %s", path)
}

// WriteResultsToFile is dedicated to bundle all result information into a
// given directory: the CSV of the reports, the aggregated summary as JSON as
// well as a copy of the benchmark configuration file when one is given.
// It returns the path of the CSV file.
func WriteResultsToFile(benchConfig string, reports []Report, resultDir string) (string, error) {
	// First, check that the directory exists
	if !checkFileExists(resultDir) {
		if err := os.MkdirAll(resultDir, 0o755); err != nil {
			return "", errors.Wrapf(err, "creating %s", resultDir)
		}
	}

	ts := fileTimestamp(time.Now())

	csvPath := filepath.Join(resultDir, "latency_results_"+ts+".csv")
	f, err := os.Create(csvPath)
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", csvPath)
	}
	if err := WriteCSV(f, reports); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "closing %s", csvPath)
	}

	// Write the results to file
	err = writeResults(filepath.Join(resultDir, ts+"_summary.json"), CalculateAggregatedResults(reports))
	if err != nil {
		return "", err
	}

	if benchConfig != "" {
		err = copyFile(benchConfig, filepath.Join(resultDir, ts+"_bench.yaml"))
		if err != nil {
			return "", err
		}
	}

	zap.L().Info("Results have been saved",
		zap.String("csv", csvPath),
		zap.Int("reports", len(reports)))

	return csvPath, nil
}
