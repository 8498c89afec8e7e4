// cmd/megaload/main.go
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tallies a concurrent purchase burst against a small set of hot
// products: many buyers racing a handful of counters until they read zero.
type Metrics struct {
	requestsSent      int64
	requestsCompleted int64

	success201      int64 // Created (purchase committed)
	clientErrors4xx int64
	serverErrors5xx int64
	networkErrors   int64

	insufficientStock400 int64 // ran out mid-burst
	conflict409          int64 // lock contention / duplicate create
	badRequest400        int64 // any other 4xx (e.g. 404 unknown product)
}

func (m *Metrics) recordResponse(statusCode int) {
	atomic.AddInt64(&m.requestsCompleted, 1)

	switch statusCode {
	case 201:
		atomic.AddInt64(&m.success201, 1)
	case 400:
		atomic.AddInt64(&m.insufficientStock400, 1)
		atomic.AddInt64(&m.clientErrors4xx, 1)
	case 409:
		atomic.AddInt64(&m.conflict409, 1)
		atomic.AddInt64(&m.clientErrors4xx, 1)
	default:
		if statusCode >= 500 {
			atomic.AddInt64(&m.serverErrors5xx, 1)
		} else if statusCode >= 400 {
			atomic.AddInt64(&m.badRequest400, 1)
			atomic.AddInt64(&m.clientErrors4xx, 1)
		}
	}
}

func (m *Metrics) recordNetworkError() {
	atomic.AddInt64(&m.requestsCompleted, 1)
	atomic.AddInt64(&m.networkErrors, 1)
}

func (m *Metrics) printProgress(sentSoFar int, total int) {
	sent := atomic.LoadInt64(&m.requestsSent)
	completed := atomic.LoadInt64(&m.requestsCompleted)
	success := atomic.LoadInt64(&m.success201)
	inFlight := sent - completed

	fmt.Printf("Progress: %d/%d | Sent: %d | Completed: %d | In-flight: %d | Purchased: %d\n",
		sentSoFar, total, sent, completed, inFlight, success)
}

func (m *Metrics) printFinal(duration time.Duration) {
	sent := atomic.LoadInt64(&m.requestsSent)
	completed := atomic.LoadInt64(&m.requestsCompleted)

	fmt.Printf("\n=== FINAL RESULTS ===\n")
	fmt.Printf("Duration: %v\n", duration)
	fmt.Printf("Requests sent: %d\n", sent)
	fmt.Printf("Requests completed: %d (%.2f%%)\n", completed, float64(completed)/float64(sent)*100)
	fmt.Printf("Requests lost: %d\n", sent-completed)

	fmt.Printf("\n--- Success ---\n")
	fmt.Printf("201 Created (purchase committed): %d\n", atomic.LoadInt64(&m.success201))

	fmt.Printf("\n--- Expected Rejections ---\n")
	fmt.Printf("400 Insufficient stock: %d\n", atomic.LoadInt64(&m.insufficientStock400))
	fmt.Printf("409 Conflict (lock contention / duplicate): %d\n", atomic.LoadInt64(&m.conflict409))
	fmt.Printf("Other 4xx: %d\n", atomic.LoadInt64(&m.badRequest400))

	fmt.Printf("\n--- Server Issues ---\n")
	fmt.Printf("5xx Server Errors: %d\n", atomic.LoadInt64(&m.serverErrors5xx))
	fmt.Printf("Network Errors: %d\n", atomic.LoadInt64(&m.networkErrors))

	fmt.Printf("\n--- Performance ---\n")
	fmt.Printf("Overall rate: %.2f req/s\n", float64(sent)/duration.Seconds())
	fmt.Printf("Completed rate: %.2f req/s\n", float64(completed)/duration.Seconds())
	fmt.Printf("Purchase rate: %.2f req/s\n", float64(atomic.LoadInt64(&m.success201))/duration.Seconds())
}

type purchaseRequest struct {
	BuyerID   int64 `json:"buyer_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

func main() {
	var (
		totalBuyers   = 200000
		concurrent    = 2000
		hotProductIDs = 50 // small pool, so every buyer is racing the same handful of counters
		metrics       Metrics
	)

	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrent * 2,
			MaxIdleConnsPerHost: concurrent,
			MaxConnsPerHost:     concurrent,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	fmt.Printf("Starting purchase burst: %d buyers, %d concurrent, %d hot products\n", totalBuyers, concurrent, hotProductIDs)
	start := time.Now()

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrent)

	progressDone := make(chan bool)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics.printProgress(int(atomic.LoadInt64(&metrics.requestsSent)), totalBuyers)
			case <-progressDone:
				return
			}
		}
	}()

	for i := 0; i < totalBuyers; i++ {
		wg.Add(1)
		sem <- struct{}{}
		atomic.AddInt64(&metrics.requestsSent, 1)

		go func(buyerNum int) {
			defer wg.Done()
			defer func() { <-sem }()

			body, err := json.Marshal(purchaseRequest{
				BuyerID:   int64(buyerNum) + 1,
				ProductID: int64(buyerNum%hotProductIDs) + 1,
				Quantity:  1,
			})
			if err != nil {
				metrics.recordNetworkError()
				return
			}

			resp, err := client.Post("http://localhost:8080/purchases/", "application/json", bytes.NewReader(body))
			if err != nil {
				metrics.recordNetworkError()
				return
			}
			defer resp.Body.Close()

			var discard map[string]interface{}
			json.NewDecoder(resp.Body).Decode(&discard) //nolint:errcheck

			metrics.recordResponse(resp.StatusCode)
		}(i)
	}

	wg.Wait()
	close(progressDone)
	duration := time.Since(start)

	metrics.printFinal(duration)

	fmt.Printf("\n=== INSIGHTS ===\n")
	if metrics.serverErrors5xx > 0 {
		fmt.Printf("Server errors detected, the server struggled under load.\n")
	}
	if metrics.networkErrors > int64(float64(metrics.requestsSent)*0.01) {
		fmt.Printf("High network error rate (>1%%), server might be dropping connections.\n")
	}
	if metrics.conflict409 == 0 && concurrent > hotProductIDs {
		fmt.Printf("No 409s seen despite heavy contention on %d products, locking may not be engaging.\n", hotProductIDs)
	}

	lostRequests := metrics.requestsSent - metrics.requestsCompleted
	if lostRequests > 0 {
		fmt.Printf("%d requests never completed, possible timeout or connection issues.\n", lostRequests)
	}
}
