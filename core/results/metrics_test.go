package results

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"flow-latency-benchmark/core"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()
	observe := m.Observer("transfer-test", "default", "testnet")

	observe("0_TransferAction", core.Record{Completed: 800, Outcome: core.OutcomeOK})
	observe("2_WaitForTransactionReceipt", core.Record{Waiting: 800, Completed: 61000, Outcome: core.OutcomePreconditionTimeout})

	require.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues(
		"transfer-test", "default", "testnet", "0_TransferAction", "ok")))
	require.Equal(t, 2, testutil.CollectAndCount(m.completed))

	path := filepath.Join(t.TempDir(), "flowlat.prom")
	require.NoError(t, m.WriteToTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(content), "flowlat_action_outcomes_total")
}

func TestMetricsServer(t *testing.T) {
	m := NewMetrics()
	m.Observe("r", "p", "testnet", "a", core.Record{Completed: 1})

	errs, err := m.Start("127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get(m.URL())
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "flowlat_action_completed_seconds")

	require.NoError(t, m.Stop())
	require.NoError(t, <-errs)
}
