package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"

	"pattern-detector/models"
	"pattern-detector/wire"
)

var (
	requestCount  int64
	successCount  int64
	failCount     int64
	latencies     []float64
	latenciesLock sync.Mutex
)

func main() {
	threads := flag.Int("threads", 4, "number of client goroutines")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	sensors := flag.Int("sensors", 8, "series per frame")
	points := flag.Int("points", 1440, "points per series")
	frames := flag.Int("frames", 16, "distinct frames to rotate through")
	compress := flag.Bool("zstd", false, "send zstd-compressed frames")
	flag.Usage = func() {
		fmt.Println("Usage: go run tools/loadtest.go [flags] <url>")
		fmt.Println("Example: go run tools/loadtest.go -threads 8 -zstd 'http://localhost:8080/v1/analysis/cooccurrence?interval_seconds=60&z_threshold=4'")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	url := flag.Arg(0)

	pool, err := buildFrames(*frames, *sensors, *points, *compress)
	if err != nil {
		fmt.Printf("failed to build frames: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Load Test Configuration:\n")
	fmt.Printf("  URL: %s\n", url)
	fmt.Printf("  Threads: %d\n", *threads)
	fmt.Printf("  Frame: %d series x %d points (zstd=%v, %d bytes)\n", *sensors, *points, *compress, len(pool[0]))
	fmt.Printf("  Duration: %v\n\n", *duration)

	latencies = make([]float64, 0, 10000)
	startTime := time.Now()
	endTime := startTime.Add(*duration)

	var wg sync.WaitGroup
	for t := 0; t < *threads; t++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			worker(url, pool, seed, endTime)
		}(t)
	}

	wg.Wait()
	printResults(time.Since(startTime))
}

// buildFrames generates random-walk sensors with occasional steps so the
// server has real events to find.
func buildFrames(n, sensors, points int, compress bool) ([][]byte, error) {
	rng := rand.New(rand.NewSource(42))
	base := time.Now().Add(-time.Duration(points) * time.Minute).Truncate(time.Minute).UnixMilli()

	out := make([][]byte, 0, n)
	for f := 0; f < n; f++ {
		series := make([]models.Series, sensors)
		for s := range series {
			series[s] = models.Series{
				SensorID:        fmt.Sprintf("sensor-%d", s),
				BaseTimestampMs: float64(base),
				Points:          make([]models.Point, points),
			}
			v := 20 + rng.Float64()*5
			for i := range series[s].Points {
				v += rng.NormFloat64() * 0.05
				if rng.Intn(200) == 0 {
					v += rng.NormFloat64() * 3
				}
				p := models.Point{Timestamp: base + int64(i)*60_000}
				if rng.Intn(100) != 0 {
					p.Value = models.Float(math.Round(v*10) / 10)
				}
				series[s].Points[i] = p
			}
		}

		frame, err := wire.Encode(series)
		if err != nil {
			return nil, err
		}
		if compress {
			if frame, err = wire.Compress(frame); err != nil {
				return nil, err
			}
		}
		out = append(out, frame)
	}
	return out, nil
}

func worker(url string, pool [][]byte, seed int, endTime time.Time) {
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	for i := seed; time.Now().Before(endTime); i++ {
		sendRequest(client, url, pool[i%len(pool)])
	}
}

func sendRequest(client *http.Client, url string, frame []byte) {
	req, _ := http.NewRequest("POST", url, bytes.NewReader(frame))
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)

	atomic.AddInt64(&requestCount, 1)

	if err != nil {
		atomic.AddInt64(&failCount, 1)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		atomic.AddInt64(&failCount, 1)
		return
	}

	atomic.AddInt64(&successCount, 1)

	latenciesLock.Lock()
	latencies = append(latencies, float64(latency.Nanoseconds()))
	latenciesLock.Unlock()
}

func printResults(duration time.Duration) {
	total := atomic.LoadInt64(&requestCount)
	success := atomic.LoadInt64(&successCount)
	failed := atomic.LoadInt64(&failCount)

	latenciesLock.Lock()
	data := stats.Float64Data(append([]float64(nil), latencies...))
	latenciesLock.Unlock()

	pct := func(p float64) time.Duration {
		v, err := data.Percentile(p)
		if err != nil {
			return 0
		}
		return time.Duration(v)
	}
	minLat, _ := data.Min()
	maxLat, _ := data.Max()
	avgLat, _ := data.Mean()

	fmt.Println("\n==========================================")
	fmt.Println("Load Test Results")
	fmt.Println("==========================================")
	fmt.Printf("Duration:       %v\n", duration)
	fmt.Printf("Total Requests: %d\n", total)
	fmt.Printf("Successful:     %d\n", success)
	fmt.Printf("Failed:         %d\n", failed)
	if total > 0 {
		fmt.Printf("Success Rate:   %.2f%%\n", float64(success)/float64(total)*100)
	}
	fmt.Printf("Requests/sec:   %.2f\n", float64(total)/duration.Seconds())
	fmt.Println("\nLatency Statistics:")
	fmt.Printf("  Min:          %v\n", time.Duration(minLat))
	fmt.Printf("  Max:          %v\n", time.Duration(maxLat))
	fmt.Printf("  Average:      %v\n", time.Duration(avgLat))
	fmt.Printf("  p50:          %v\n", pct(50))
	fmt.Printf("  p95:          %v\n", pct(95))
	fmt.Printf("  p99:          %v\n", pct(99))
	fmt.Println("==========================================")
}
