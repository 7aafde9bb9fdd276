package profiling

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Lightweight per-frame CPU profiler plus lifetime accumulators for
// diagnostics such as chunk and label build times.

type stat struct {
	total time.Duration
	count int64
}

var (
	mu       sync.Mutex
	frame    = make(map[string]time.Duration)
	lifetime = make(map[string]stat)
)

// Track returns a stop function that records the elapsed time under the given name.
// Usage: defer profiling.Track("chunks.UpdateVisibleChunks")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		Add(name, time.Since(start))
	}
}

// Add records d under name for the current frame and the lifetime totals.
func Add(name string, d time.Duration) {
	mu.Lock()
	frame[name] += d
	s := lifetime[name]
	s.total += d
	s.count++
	lifetime[name] = s
	mu.Unlock()
}

// ResetFrame clears current per-frame totals. Call at the start of each frame.
func ResetFrame() {
	mu.Lock()
	clear(frame)
	mu.Unlock()
}

// Reset clears frame and lifetime totals.
func Reset() {
	mu.Lock()
	clear(frame)
	clear(lifetime)
	mu.Unlock()
}

// Snapshot returns a copy of current per-frame totals.
func Snapshot() map[string]time.Duration {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]time.Duration, len(frame))
	for k, v := range frame {
		out[k] = v
	}
	return out
}

// SumWithPrefix adds up the current frame totals whose name starts with prefix.
func SumWithPrefix(prefix string) time.Duration {
	mu.Lock()
	defer mu.Unlock()
	var sum time.Duration
	for k, v := range frame {
		if strings.HasPrefix(k, prefix) {
			sum += v
		}
	}
	return sum
}

// Average returns the mean recorded duration for name over the process lifetime.
func Average(name string) (time.Duration, int64) {
	mu.Lock()
	defer mu.Unlock()
	s := lifetime[name]
	if s.count == 0 {
		return 0, 0
	}
	return s.total / time.Duration(s.count), s.count
}

// TopN formats top N durations from the current frame totals.
// Example: "chunks.UpdateVisibleChunks:4.2ms, graphics.Render:2.1ms"
func TopN(n int) string {
	ss := Snapshot()
	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(ss))
	for k, v := range ss {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].dur == list[j].dur {
			return list[i].name < list[j].name
		}
		return list[i].dur > list[j].dur
	})
	n = min(n, len(list))
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, list[i].name+":"+formatMs(list[i].dur))
	}
	return strings.Join(parts, ", ")
}

// formatMs keeps one decimal and drops a trailing ".0".
func formatMs(d time.Duration) string {
	s := fmt.Sprintf("%.1f", float64(d.Microseconds())/1000.0)
	return strings.TrimSuffix(s, ".0") + "ms"
}
