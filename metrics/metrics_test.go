package metrics

import (
	"io"
	"net/http"
	"testing"
	"time"
)

func TestMetricsRecording(t *testing.T) {
	// promauto registers globally, so build the instance once.
	m := NewMetrics("avila_test")

	m.RecordRequest(true, 5*time.Millisecond)
	m.RecordRequest(false, 10*time.Millisecond)
	m.RecordBatch(100, 4096)
	m.RecordComputeOp("sum", "ok", time.Millisecond)
	m.RecordComputeOp("mean", "error", time.Millisecond)
	m.SetInitialized(true)
	m.UpdateJobQueueSize(3)
	m.UpdateWorkerPool(2, 7)
}

func TestMetricsServerEndpoints(t *testing.T) {
	s := NewMetricsServer("127.0.0.1:0")

	// Bind to a real port by starting the underlying server manually.
	s.server.Addr = "127.0.0.1:19421"
	s.StartAsync()
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://127.0.0.1:19421/health")
	if err != nil {
		t.Skipf("metrics server not reachable: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK" {
		t.Errorf("Expected OK, got %q", body)
	}

	metricsResp, err := http.Get("http://127.0.0.1:19421/metrics")
	if err != nil {
		t.Fatalf("metrics endpoint failed: %v", err)
	}
	defer metricsResp.Body.Close()

	if metricsResp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", metricsResp.StatusCode)
	}
}
