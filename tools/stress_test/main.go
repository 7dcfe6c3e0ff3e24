// Command stress_test load-tests a running avila-arrow compute server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avila-org/avila-arrow/codec"
	"github.com/avila-org/avila-arrow/data"
	"github.com/avila-org/avila-arrow/server"
)

// StressTestConfig holds configuration for the stress test.
type StressTestConfig struct {
	Address     string
	Concurrency int
	Duration    time.Duration
	Op          string
	Rows        int
	AuthToken   string
	AuthEnabled bool
	ReportFile  string
}

// StressTestResult holds the results of a stress test.
type StressTestResult struct {
	TotalRequests  int64
	SuccessfulReqs int64
	FailedReqs     int64
	TotalDuration  time.Duration
	AvgLatency     time.Duration
	MinLatency     time.Duration
	MaxLatency     time.Duration
	RequestsPerSec float64
}

func main() {
	config := parseFlags()

	fmt.Println("=== avila-arrow Compute Server Stress Test ===")
	fmt.Printf("Target: %s\n", config.Address)
	fmt.Printf("Concurrency: %d workers\n", config.Concurrency)
	fmt.Printf("Duration: %v\n", config.Duration)
	fmt.Printf("Op: %s over %d rows\n", config.Op, config.Rows)
	fmt.Printf("Auth: %v\n", config.AuthEnabled)
	fmt.Println()

	payload, header, err := buildRequest(config)
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}

	result := runStressTest(config, header, payload)

	printResults(result)

	if config.ReportFile != "" {
		saveReport(config, result)
	}
}

func parseFlags() StressTestConfig {
	config := StressTestConfig{}

	flag.StringVar(&config.Address, "addr", "127.0.0.1:9420", "Compute server address")
	flag.IntVar(&config.Concurrency, "c", 10, "Number of concurrent workers")
	flag.DurationVar(&config.Duration, "d", 30*time.Second, "Duration of test")
	flag.StringVar(&config.Op, "op", server.OpSum, "Aggregate operation")
	flag.IntVar(&config.Rows, "rows", 1000, "Rows per request payload")
	flag.StringVar(&config.AuthToken, "token", "", "Authentication token")
	flag.BoolVar(&config.AuthEnabled, "auth", false, "Enable authentication")
	flag.StringVar(&config.ReportFile, "o", "", "Output report file (JSON)")

	flag.Parse()

	return config
}

// buildRequest pre-encodes the header and IPC payload shared by all
// workers.
func buildRequest(config StressTestConfig) (payload, header []byte, err error) {
	conv, err := data.NewConverter([]data.ColumnSpec{
		{Name: "reading", Type: data.ColFloat64},
	})
	if err != nil {
		return nil, nil, err
	}

	rows := make([]data.Row, config.Rows)
	for i := range rows {
		rows[i] = data.Row{"reading": float64(i)}
	}

	rec, err := conv.RowsToRecord(rows)
	if err != nil {
		return nil, nil, err
	}
	defer rec.Release()

	payload, err = codec.NewCodec().EncodeRecord(rec)
	if err != nil {
		return nil, nil, err
	}

	header, err = json.Marshal(server.RequestHeader{Op: config.Op, Column: "reading"})
	if err != nil {
		return nil, nil, err
	}

	return payload, header, nil
}

func runStressTest(config StressTestConfig, header, payload []byte) StressTestResult {
	var (
		totalReqs    int64
		successReqs  int64
		failedReqs   int64
		totalLatency int64
		minLatency   int64 = 1<<63 - 1
		maxLatency   int64
		wg           sync.WaitGroup
		stopChan     = make(chan struct{})
	)

	startTime := time.Now()

	for i := 0; i < config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runWorker(config, header, payload, stopChan, &totalReqs, &successReqs, &failedReqs, &totalLatency, &minLatency, &maxLatency)
		}()
	}

	time.Sleep(config.Duration)
	close(stopChan)
	wg.Wait()

	duration := time.Since(startTime)
	total := atomic.LoadInt64(&totalReqs)
	success := atomic.LoadInt64(&successReqs)
	failed := atomic.LoadInt64(&failedReqs)
	latencySum := atomic.LoadInt64(&totalLatency)
	minLat := atomic.LoadInt64(&minLatency)
	maxLat := atomic.LoadInt64(&maxLatency)

	var avgLatency time.Duration
	if success > 0 {
		avgLatency = time.Duration(latencySum / success)
	}

	return StressTestResult{
		TotalRequests:  total,
		SuccessfulReqs: success,
		FailedReqs:     failed,
		TotalDuration:  duration,
		AvgLatency:     avgLatency,
		MinLatency:     time.Duration(minLat),
		MaxLatency:     time.Duration(maxLat),
		RequestsPerSec: float64(total) / duration.Seconds(),
	}
}

func runWorker(config StressTestConfig, header, payload []byte, stop chan struct{}, totalReqs, successReqs, failedReqs, totalLatency, minLatency, maxLatency *int64) {
	for {
		select {
		case <-stop:
			return
		default:
			latency, err := sendRequest(config, header, payload)
			atomic.AddInt64(totalReqs, 1)

			if err != nil {
				atomic.AddInt64(failedReqs, 1)
				// Back off briefly on error
				time.Sleep(10 * time.Millisecond)
			} else {
				atomic.AddInt64(successReqs, 1)
				atomic.AddInt64(totalLatency, int64(latency))

				lat := int64(latency)
				for {
					old := atomic.LoadInt64(minLatency)
					if lat >= old || atomic.CompareAndSwapInt64(minLatency, old, lat) {
						break
					}
				}
				for {
					old := atomic.LoadInt64(maxLatency)
					if lat <= old || atomic.CompareAndSwapInt64(maxLatency, old, lat) {
						break
					}
				}
			}
		}
	}
}

func sendRequest(config StressTestConfig, header, payload []byte) (time.Duration, error) {
	conn, err := net.DialTimeout("tcp", config.Address, 5*time.Second)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(10 * time.Second))

	if config.AuthEnabled {
		if err := server.WriteJSONFrame(conn, server.AuthMessage{Type: "auth", Token: config.AuthToken}); err != nil {
			return 0, err
		}
		var resp server.AuthResponse
		if err := server.ReadJSONFrame(conn, &resp); err != nil {
			return 0, err
		}
		if !resp.Success {
			return 0, fmt.Errorf("auth rejected: %s", resp.Error)
		}
	}

	start := time.Now()

	if err := server.WriteFrame(conn, header); err != nil {
		return 0, err
	}
	if err := server.WriteFrame(conn, payload); err != nil {
		return 0, err
	}

	var status server.StatusResponse
	if err := server.ReadJSONFrame(conn, &status); err != nil {
		return 0, err
	}
	if !status.Success {
		return 0, fmt.Errorf("request failed: %s", status.Error)
	}

	if _, err := server.ReadFrame(conn); err != nil {
		return 0, err
	}

	return time.Since(start), nil
}

func printResults(result StressTestResult) {
	fmt.Println("=== Results ===")
	fmt.Printf("Duration:        %v\n", result.TotalDuration.Round(time.Millisecond))
	fmt.Printf("Total Requests:  %d\n", result.TotalRequests)
	fmt.Printf("Successful:      %d (%.2f%%)\n", result.SuccessfulReqs, float64(result.SuccessfulReqs)/float64(result.TotalRequests)*100)
	fmt.Printf("Failed:          %d (%.2f%%)\n", result.FailedReqs, float64(result.FailedReqs)/float64(result.TotalRequests)*100)
	fmt.Printf("Requests/sec:    %.2f\n", result.RequestsPerSec)
	fmt.Printf("Avg Latency:     %v\n", result.AvgLatency.Round(time.Microsecond))
	fmt.Printf("Min Latency:     %v\n", result.MinLatency.Round(time.Microsecond))
	fmt.Printf("Max Latency:     %v\n", result.MaxLatency.Round(time.Microsecond))
}

func saveReport(config StressTestConfig, result StressTestResult) {
	report := map[string]interface{}{
		"config": map[string]interface{}{
			"address":     config.Address,
			"concurrency": config.Concurrency,
			"duration":    config.Duration.String(),
			"op":          config.Op,
			"rows":        config.Rows,
		},
		"results": map[string]interface{}{
			"total_requests":   result.TotalRequests,
			"successful":       result.SuccessfulReqs,
			"failed":           result.FailedReqs,
			"requests_per_sec": result.RequestsPerSec,
			"avg_latency_ms":   float64(result.AvgLatency.Microseconds()) / 1000,
			"min_latency_ms":   float64(result.MinLatency.Microseconds()) / 1000,
			"max_latency_ms":   float64(result.MaxLatency.Microseconds()) / 1000,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	if err := os.WriteFile(config.ReportFile, out, 0644); err != nil {
		log.Printf("Failed to write report: %v", err)
	} else {
		fmt.Printf("Report saved to: %s\n", config.ReportFile)
	}
}
