package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	accounts    string
	workload    string
)

// Metrics
var (
	totalRequests uint64
	pagesOK       uint64
	calendarsOK   uint64
	notFound      uint64
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:3000", "Gateway base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&accounts, "accounts", "12345", "Comma-separated account ids to request")
	flag.StringVar(&workload, "workload", "mixed", "Workload type: page | calendar | mixed")
}

func main() {
	flag.Parse()
	ids := strings.Split(accounts, ",")
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s | Accounts: %d", workload, concurrency, duration, len(ids))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, ids)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time, ids []string) {
	defer wg.Done()
	client := &http.Client{
		Timeout: 30 * time.Second,
		// The root route redirects; count the redirect itself.
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	for time.Since(start) < duration {
		path, calendar := nextPath(ids)

		resp, err := client.Get(targetURL + path)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		atomic.AddUint64(&totalRequests, 1)
		switch {
		case resp.StatusCode == http.StatusOK && calendar:
			atomic.AddUint64(&calendarsOK, 1)
		case resp.StatusCode == http.StatusOK:
			atomic.AddUint64(&pagesOK, 1)
		case resp.StatusCode == http.StatusNotFound:
			atomic.AddUint64(&notFound, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
	}
}

// nextPath picks one account, or occasionally all of them, and a route.
func nextPath(ids []string) (string, bool) {
	acct := ids[rand.Intn(len(ids))]
	if len(ids) > 1 && rand.Float32() < 0.2 {
		acct = strings.Join(ids, ",")
	}

	calendar := false
	switch workload {
	case "calendar":
		calendar = true
	case "mixed":
		calendar = rand.Float32() < 0.5
	}
	if calendar {
		return "/" + acct + ".ics", true
	}
	return "/" + acct, false
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	pages := atomic.LoadUint64(&pagesOK)
	cals := atomic.LoadUint64(&calendarsOK)
	nf := atomic.LoadUint64(&notFound)
	fErr := atomic.LoadUint64(&failOther)

	rps := float64(total) / d.Seconds()

	results := map[string]interface{}{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_rps": rps,
		"pages_ok":       pages,
		"calendars_ok":   cals,
		"not_found":      nf,
		"errors":         fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Could not write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
