// Command loadtest drives concurrent simulated calls against the gateway's
// media-stream WebSocket endpoint, speaking the same connected/start/media/
// stop frames a real carrier would, and reports latency percentiles from the
// mark frames the gateway replies with.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sampleRate  = 8000
	chunkBytes  = 320 // 160 samples * 2 bytes = 20ms at 8kHz mono 16-bit
	chunkPeriod = 20 * time.Millisecond
)

func main() {
	gateway := flag.String("gateway", "ws://localhost:8000/voicebot/ws", "gateway WebSocket URL")
	concurrency := flag.Int("concurrency", 10, "number of concurrent callers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	audioDir := flag.String("audio-dir", "/samples", "directory with raw 16-bit LE PCM sample files")
	flag.Parse()

	files, err := findAudioFiles(*audioDir)
	if err != nil || len(files) == 0 {
		fmt.Fprintf(os.Stderr, "no audio files in %s, generating synthetic audio\n", *audioDir)
		files = nil
	}

	fmt.Printf("Load test: %d concurrent calls for %s\n", *concurrency, *duration)
	fmt.Printf("Gateway: %s\n\n", *gateway)

	var mu sync.Mutex
	var results []callResult
	var wg sync.WaitGroup

	deadline := time.Now().Add(*duration)

	for range *concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				r := runCall(*gateway, files)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	printSummary(results)
}

type callResult struct {
	success     bool
	firstMarkMs float64
	err         string
}

func runCall(gateway string, files []string) callResult {
	conn, _, err := websocket.DefaultDialer.Dial(gateway, nil)
	if err != nil {
		return callResult{err: fmt.Sprintf("dial: %v", err)}
	}
	defer conn.Close()

	streamSID := "MZ" + uuid.NewString()

	connectedFrame, _ := json.Marshal(map[string]any{"event": "connected"})
	if err = conn.WriteMessage(websocket.TextMessage, connectedFrame); err != nil {
		return callResult{err: fmt.Sprintf("send connected: %v", err)}
	}

	startFrame, _ := json.Marshal(map[string]any{
		"event": "start",
		"start": map[string]any{
			"streamSid": streamSID,
			"custom_parameters": map[string]string{
				"greeting": "Thanks for calling, how can I help?",
			},
		},
	})
	if err = conn.WriteMessage(websocket.TextMessage, startFrame); err != nil {
		return callResult{err: fmt.Sprintf("send start: %v", err)}
	}

	pcm := getAudioData(files)
	start := time.Now()

	for i := 0; i < len(pcm); i += chunkBytes {
		end := min(i+chunkBytes, len(pcm))
		mediaFrame, _ := json.Marshal(map[string]any{
			"event":     "media",
			"streamSid": streamSID,
			"media": map[string]any{
				"track":   "inbound",
				"payload": base64.StdEncoding.EncodeToString(pcm[i:end]),
			},
		})
		if err = conn.WriteMessage(websocket.TextMessage, mediaFrame); err != nil {
			return callResult{err: fmt.Sprintf("send media: %v", err)}
		}
		time.Sleep(chunkPeriod)
	}

	stopFrame, _ := json.Marshal(map[string]any{
		"event":     "stop",
		"streamSid": streamSID,
		"stop":      map[string]any{"reason": "loadtest complete"},
	})
	conn.WriteMessage(websocket.TextMessage, stopFrame)

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return callResult{err: fmt.Sprintf("read: %v", err)}
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var frame struct {
			Event string `json:"event"`
		}
		if err = json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Event == "mark" {
			return callResult{success: true, firstMarkMs: float64(time.Since(start).Milliseconds())}
		}
	}
}

func getAudioData(files []string) []byte {
	if len(files) > 0 {
		data, err := os.ReadFile(files[rand.Intn(len(files))])
		if err == nil {
			return data
		}
	}
	return generateSyntheticAudio(3 * time.Second)
}

// generateSyntheticAudio builds a sine wave with noise, loud enough to pass
// the silence gate, rather than silence that would never trigger a turn.
func generateSyntheticAudio(dur time.Duration) []byte {
	numSamples := int(dur.Seconds() * sampleRate)
	buf := make([]byte, numSamples*2)
	for i := range numSamples {
		t := float64(i) / float64(sampleRate)
		sample := math.Sin(2*math.Pi*440*t)*0.3 + (rand.Float64()-0.5)*0.05
		val := int16(sample * math.MaxInt16)
		buf[i*2] = byte(val)
		buf[i*2+1] = byte(val >> 8)
	}
	return buf
}

var audioExts = map[string]bool{".pcm": true, ".raw": true}

func findAudioFiles(dir string) ([]string, error) {
	var files []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if audioExts[filepath.Ext(e.Name())] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func printSummary(results []callResult) {
	var succeeded, failed int
	var marks []float64

	for _, r := range results {
		if !r.success {
			failed++
			continue
		}
		succeeded++
		marks = append(marks, r.firstMarkMs)
	}

	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Calls completed: %d\n", succeeded)
	fmt.Printf("Calls failed:    %d\n", failed)

	if len(marks) == 0 {
		fmt.Println("No successful calls to report latency for")
		return
	}

	fmt.Printf("\nTime to first mark:\n")
	fmt.Printf("p50: %s\n", fmtMs(percentile(marks, 50)))
	fmt.Printf("p95: %s\n", fmtMs(percentile(marks, 95)))
	fmt.Printf("p99: %s\n", fmtMs(percentile(marks, 99)))
}

func fmtMs(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 0, 64) + "ms"
}

func percentile(data []float64, pct float64) float64 {
	sort.Float64s(data)
	idx := int(math.Ceil(pct/100*float64(len(data)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(data) {
		idx = len(data) - 1
	}
	return data[idx]
}
