package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"
)

type Config struct {
	TotalRequests int
	Concurrency   int
	Format        string
	Table         string
	Fields        string
	Options       string
	// Export submits a POST /exports job and polls it instead of streaming.
	Export      bool
	Description string
}

type Result struct {
	Status        int
	FirstByte     time.Duration // Time to first body byte, or to 202 for jobs
	TotalDuration time.Duration // Time until last byte, or until job finished
	Bytes         int64
	Error         error
}

var (
	baseURL    string
	connection string
	client     = &http.Client{Timeout: 5 * time.Minute}
)

func main() {
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "restables base URL")
	flag.StringVar(&connection, "conn", "demo", "connection name to query")
	flag.Parse()

	scenarios := []Config{
		{TotalRequests: 50, Concurrency: 10, Format: "csv", Table: "users", Fields: "*", Options: "limit:100", Description: "Baseline (Low Load)"},
		{TotalRequests: 200, Concurrency: 50, Format: "csv", Table: "users", Fields: "id,name,age", Options: "age:d,limit:2000", Description: "Stress Test (High Concurrency)"},
		{TotalRequests: 10, Concurrency: 2, Format: "csv", Table: "orders", Fields: "*", Description: "Full Table Stream (orders)"},
		{TotalRequests: 20, Concurrency: 5, Format: "json", Table: "orders", Fields: "id,user_id,amount", Options: "amount:d,limit:10000", Description: "NDJSON Stream"},
		{TotalRequests: 5, Concurrency: 2, Format: "xlsx", Table: "orders", Fields: "*", Options: "limit:50000", Export: true, Description: "Export Jobs (xlsx, 50k rows)"},
	}

	for _, scenario := range scenarios {
		runScenario(scenario)
	}
}

func runScenario(cfg Config) {
	fmt.Printf("\n=======================================================\n")
	fmt.Printf("Scenario: %s\n", cfg.Description)
	fmt.Printf("Requests: %d | Concurrency: %d | Format: %s | Table: %s | Options: %q\n",
		cfg.TotalRequests, cfg.Concurrency, cfg.Format, cfg.Table, cfg.Options)
	fmt.Printf("=======================================================\n")

	results := make(chan Result, cfg.TotalRequests)
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, cfg.Concurrency)

	startTime := time.Now()

	for i := 0; i < cfg.TotalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if cfg.Export {
				results <- executeExport(cfg)
			} else {
				results <- executeStream(cfg)
			}

			if id%10 == 0 {
				fmt.Print(".")
			}
		}(i)
	}

	wg.Wait()
	close(results)
	totalTime := time.Since(startTime)
	fmt.Println()

	var firstByte, total []time.Duration
	var failures int
	var bytesRead int64
	for res := range results {
		if res.Error != nil {
			failures++
			continue
		}
		firstByte = append(firstByte, res.FirstByte)
		total = append(total, res.TotalDuration)
		bytesRead += res.Bytes
	}

	fmt.Printf("\nRESULTS:\n")
	fmt.Printf("Total Duration: %v\n", totalTime)
	fmt.Printf("Throughput: %.2f req/sec\n", float64(cfg.TotalRequests)/totalTime.Seconds())
	fmt.Printf("Success Rate: %.1f%%\n", float64(cfg.TotalRequests-failures)/float64(cfg.TotalRequests)*100)
	if bytesRead > 0 {
		fmt.Printf("Bytes Streamed: %d (%.2f MB/sec)\n", bytesRead, float64(bytesRead)/1e6/totalTime.Seconds())
	}
	if cfg.Export {
		fmt.Printf("API Response Time (P95): %v\n", p95(firstByte))
		fmt.Printf("Job Completion Time (P95): %v\n", p95(total))
	} else {
		fmt.Printf("Time To First Byte (P95): %v\n", p95(firstByte))
		fmt.Printf("Stream Completion Time (P95): %v\n", p95(total))
	}
}

func p95(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })
	return d[int(float64(len(d))*0.95)]
}

func queryURL(cfg Config) string {
	u := baseURL + "/" + url.PathEscape(connection) + "/" + url.PathEscape(cfg.Table) + "/" + url.PathEscape(cfg.Fields)
	if cfg.Options != "" {
		u += "/" + url.PathEscape(cfg.Options)
	}
	if cfg.Format != "" && cfg.Format != "csv" {
		u += "?format=" + url.QueryEscape(cfg.Format)
	}
	return u
}

func executeStream(cfg Config) Result {
	start := time.Now()
	resp, err := client.Get(queryURL(cfg))
	if err != nil {
		return Result{Error: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Status: resp.StatusCode, Error: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	buf := make([]byte, 32*1024)
	n, err := resp.Body.Read(buf)
	firstByte := time.Since(start)
	if err != nil && err != io.EOF {
		return Result{Status: resp.StatusCode, Error: err}
	}
	rest, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		// A stream aborted mid-body surfaces here as an unexpected EOF.
		return Result{Status: resp.StatusCode, Error: err}
	}
	return Result{
		Status:        resp.StatusCode,
		FirstByte:     firstByte,
		TotalDuration: time.Since(start),
		Bytes:         int64(n) + rest,
	}
}

func executeExport(cfg Config) Result {
	start := time.Now()

	payload := map[string]string{
		"connection": connection,
		"table":      cfg.Table,
		"fields":     cfg.Fields,
		"options":    cfg.Options,
		"format":     cfg.Format,
	}
	bodyBytes, _ := json.Marshal(payload)

	resp, err := client.Post(baseURL+"/exports", "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		return Result{Error: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return Result{Status: resp.StatusCode, Error: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var job struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return Result{Status: resp.StatusCode, Error: err}
	}
	acceptTime := time.Since(start)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(300 * time.Second)

	for {
		select {
		case <-timeout:
			return Result{Status: http.StatusAccepted, Error: fmt.Errorf("timeout waiting for job %s", job.ID)}
		case <-ticker.C:
			status, err := checkStatus(job.ID)
			if err != nil {
				continue
			}
			switch status {
			case "COMPLETED":
				return Result{Status: http.StatusAccepted, FirstByte: acceptTime, TotalDuration: time.Since(start)}
			case "FAILED":
				return Result{Status: http.StatusAccepted, Error: fmt.Errorf("job %s failed", job.ID)}
			}
		}
	}
}

func checkStatus(jobID string) (string, error) {
	resp, err := client.Get(baseURL + "/exports/" + url.PathEscape(jobID))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status check failed: %d", resp.StatusCode)
	}

	var data struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	return data.Status, nil
}
