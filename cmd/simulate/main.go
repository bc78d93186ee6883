// simulate drives concurrent tool-call traffic against a running
// api-server and reports the booked/conflict split. Running it with
// -contention verifies that mutually-conflicting concurrent bookings for
// one contact yield exactly one booked appointment.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

type SimConfig struct {
	APIBaseURL string
	Workers    int
	Calls      int
	Contention bool
}

type OperationMetrics struct {
	Total    int64
	Booked   int64
	Conflict int64
	Failed   int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status string) {
	atomic.AddInt64(&om.Total, 1)
	switch status {
	case "booked":
		atomic.AddInt64(&om.Booked, 1)
	case "conflict":
		atomic.AddInt64(&om.Conflict, 1)
	case "failed":
		atomic.AddInt64(&om.Failed, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := SimConfig{}
	flag.StringVar(&cfg.APIBaseURL, "api", envOr("API_BASE_URL", "http://localhost:8080"), "api-server base URL")
	flag.IntVar(&cfg.Workers, "workers", 8, "concurrent workers")
	flag.IntVar(&cfg.Calls, "calls", 100, "booking calls per run")
	flag.BoolVar(&cfg.Contention, "contention", false, "all workers target one contact and one slot window")
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())

	client := &http.Client{Timeout: 5 * time.Second}
	metrics := &OperationMetrics{}

	sessionID, err := startSession(client, cfg.APIBaseURL)
	if err != nil {
		log.Fatalf("start session: %v", err)
	}
	log.Printf("session %s, workers=%d calls=%d contention=%v", sessionID, cfg.Workers, cfg.Calls, cfg.Contention)

	sharedContact := fmt.Sprintf("+1%d", gofakeit.Number(2000000000, 9999999999))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				runBooking(client, cfg, sessionID, sharedContact, i, metrics)
			}
		}()
	}

	start := time.Now()
	for i := 0; i < cfg.Calls; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	avg, p50, p95 := metrics.Stats()
	log.Printf("done in %s: total=%d booked=%d conflict=%d failed=%d error=%d",
		elapsed, metrics.Total, metrics.Booked, metrics.Conflict, metrics.Failed, metrics.Error)
	log.Printf("latency avg=%s p50=%s p95=%s", avg, p50, p95)

	if cfg.Contention && metrics.Booked != 1 {
		log.Fatalf("contention run expected exactly 1 booked, got %d", metrics.Booked)
	}
}

func runBooking(client *http.Client, cfg SimConfig, sessionID, sharedContact string, i int, metrics *OperationMetrics) {
	contact := sharedContact
	date := "2026-03-10"
	clock := fmt.Sprintf("09:%02d", i%30) // all within one conflict buffer

	if !cfg.Contention {
		contact = fmt.Sprintf("+1%d", gofakeit.Number(2000000000, 9999999999))
		date = gofakeit.DateRange(
			time.Now().AddDate(0, 0, 1),
			time.Now().AddDate(0, 2, 0),
		).Format("2006-01-02")
		clock = fmt.Sprintf("%02d:%02d", gofakeit.Number(8, 17), gofakeit.Number(0, 59))
	}

	payload := map[string]any{
		"session_id":     sessionID,
		"name":           gofakeit.Name(),
		"contact_number": contact,
		"date":           date,
		"time":           clock,
	}

	start := time.Now()
	status, err := postBooking(client, cfg.APIBaseURL, payload)
	latency := time.Since(start)
	if err != nil {
		log.Printf("booking %d: %v", i, err)
		metrics.Record(latency, "error")
		return
	}
	metrics.Record(latency, status)
}

func startSession(client *http.Client, baseURL string) (string, error) {
	resp, err := client.Post(baseURL+"/session/start", "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.SessionID, nil
}

// postBooking returns the appointment status for completed calls, or
// "failed" when the tool reported a precondition failure.
func postBooking(client *http.Client, baseURL string, payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	resp, err := client.Post(baseURL+"/tools/book_appointment", "application/json", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Event struct {
			Status string `json:"status"`
		} `json:"event"`
		Result struct {
			Appointment struct {
				Status string `json:"status"`
			} `json:"appointment"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}

	if envelope.Event.Status == "failed" {
		return "failed", nil
	}
	return envelope.Result.Appointment.Status, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
