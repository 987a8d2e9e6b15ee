package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

const (
	mockPort = 9091
	appPort  = 8081
)

var (
	streamChunk1 = []byte(`data: {"choices":[{"delta":{"content":"Bench"}}]}` + "\n\n")
	streamChunk2 = []byte(`data: {"choices":[{"delta":{"content":"mark"}}]}` + "\n\n")
	streamChunk3 = []byte(`data: {"choices":[{"delta":{"content":" safe"}}]}` + "\n\n")
	streamChunk4 = []byte(`data: {"choices":[{"delta":{"content":" response"}}]}` + "\n\n")
	streamDone   = []byte("data: [DONE]\n\n")
)

// upstream hit counters, reported at the end of the run
var primaryHits, backupHits atomic.Int64

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	fallback := flag.Bool("fallback", false, "Make the requested provider fail so every request cascades")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	flag.Parse()

	// start mock server
	go startMockServer(*fallback)

	// build and start application
	fmt.Println("Building application...")
	buildCmd := exec.Command("go", "build", "-o", "bin/server", "./cmd/server")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	configFile := "bench_config.yaml"
	if err := os.WriteFile(configFile, []byte(benchConfig), 0644); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	defer os.Remove(configFile)

	fmt.Println("Starting application...")
	cmd := exec.Command("./bin/server")

	cmd.Env = append(os.Environ(), fmt.Sprintf("CONFIG_FILE=%s", configFile))
	cmd.Env = append(cmd.Env, fmt.Sprintf("SERVER_PORT=%d", appPort))
	cmd.Env = append(cmd.Env, "LOG_LEVEL=error", "BENCH_PRIMARY_KEY=primary-key", "BENCH_BACKUP_KEY=backup-key")

	// Redirect output to file for debugging
	logFile, _ := os.Create("bench_server.log")
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}()

	waitForApp(fmt.Sprintf("http://localhost:%d/health", appPort))

	// Signal channel to stop background tasks (monitor, chaos monkey)
	done := make(chan struct{})

	go monitorResources(cmd.Process.Pid, done)

	mode := "Direct"
	if *fallback {
		mode = "Fallback"
	}
	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", mode, *duration, *rate)

	chatURL := fmt.Sprintf("http://localhost:%d/api/chat", appPort)
	body := []byte(`{"provider": "primary", "model": "bench-model", "messages": [{"role": "user", "content": "Hello"}]}`)

	targeter := func(t *vegeta.Target) error {
		t.Method = "POST"
		t.URL = chatURL
		t.Body = body
		t.Header = http.Header{
			"Content-Type": []string{"application/json"},
		}
		return nil
	}

	if *chaos {
		fmt.Println("CHAOS MODE ENABLED: Starting Chaos Monkey sidecar...")
		chaosConcurrency := min(max(*rate/10, 5), 50)
		go startChaosMonkey(chatURL, string(body), chaosConcurrency, done)
	}

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var metrics vegeta.Metrics

	for res := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		metrics.Add(res)
	}
	metrics.Close()

	// stop monitoring and chaos monkey
	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", metrics.Latencies.P99)
	fmt.Println("Mean:            ", metrics.Latencies.Mean)
	fmt.Println("Max:             ", metrics.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", metrics.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", metrics.Throughput)
	fmt.Printf("Upstream hits:   primary=%d backup=%d\n", primaryHits.Load(), backupHits.Load())
	fmt.Println("--------------------------------------------------")

	if len(metrics.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")

		uniqueErrors := make(map[string]bool)
		count := 0
		for _, msg := range metrics.Errors {
			if !uniqueErrors[msg] && count < 5 {
				fmt.Println(msg)

				uniqueErrors[msg] = true
				count++
			}
		}
	}
}

func startChaosMonkey(url, payload string, concurrency int, done chan struct{}) {
	fmt.Printf("Starting Chaos Monkey with %d concurrent disrupters (random disconnects 1-200ms)\n", concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			client := &http.Client{
				Transport: &http.Transport{
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 100,
				},
			}

			for {
				select {
				case <-done:
					return
				default:
					// Randomly disconnect between 1ms and 200ms
					timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond

					ctx, cancel := context.WithTimeout(context.Background(), timeout)
					req, _ := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(payload))
					req.Header.Set("Content-Type", "application/json")

					resp, err := client.Do(req)
					if err == nil {
						_ = resp.Body.Close()
					}
					cancel()

					time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
				}
			}
		}()
	}
}

// startMockServer serves two openai-compatible upstreams on one port, under
// /primary and /backup. With failPrimary the primary answers 503.
func startMockServer(failPrimary bool) {
	mux := http.NewServeMux()

	models := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"bench-model","object":"model"}]}`))
	}
	mux.HandleFunc("/primary/v1/models", models)
	mux.HandleFunc("/backup/v1/models", models)

	stream := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)

		for _, chunk := range [][]byte{streamChunk1, streamChunk2, streamChunk3, streamChunk4} {
			time.Sleep(50 * time.Millisecond)
			_, _ = w.Write(chunk)
			flusher.Flush()
		}
		_, _ = w.Write(streamDone)
		flusher.Flush()
	}

	mux.HandleFunc("/primary/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		if failPrimary {
			http.Error(w, `{"error":"overloaded"}`, http.StatusServiceUnavailable)
			return
		}
		stream(w, r)
	})
	mux.HandleFunc("/backup/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		backupHits.Add(1)
		stream(w, r)
	})

	_ = http.ListenAndServe(fmt.Sprintf(":%d", mockPort), mux)
}

func monitorResources(pid int, done chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	fmt.Println("\n--- Resource Usage (ps) ---")
	fmt.Printf("% -10s % -10s % -10s\n", "Time", "RSS(MB)", "CPU(%)")

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "rss=,%cpu=").Output()
			if err != nil {
				continue
			}
			fields := strings.Fields(string(out))
			if len(fields) < 2 {
				continue
			}
			rss, _ := strconv.ParseFloat(fields[0], 64)
			cpu, _ := strconv.ParseFloat(fields[1], 64)

			fmt.Printf("% -10s % -10.2f % -10.2f\n",
				time.Now().Format("15:04:05"),
				rss/1024,
				cpu,
			)
		}
	}
}

func waitForApp(url string) {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == 200 {
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	log.Fatal("App timed out")
}

var benchConfig = fmt.Sprintf(`
server:
  port: "%d"
  env: production
log:
  level: "error"
providers:
  - id: primary
    name: Primary
    kind: openai-compatible
    base_endpoint: "http://localhost:%[2]d/primary/v1"
    credential_env: BENCH_PRIMARY_KEY
    discovery_path: /models
  - id: backup
    name: Backup
    kind: openai-compatible
    base_endpoint: "http://localhost:%[2]d/backup/v1"
    credential_env: BENCH_BACKUP_KEY
    discovery_path: /models
`, appPort, mockPort)
