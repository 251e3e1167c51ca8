package observability

import "sync"

// DefaultHistorySize is how many log lines a new client receives.
const DefaultHistorySize = 10

// LogBuffer keeps the most recent lines, evicting the oldest first.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
	start int
	count int
}

// NewLogBuffer creates a buffer holding up to size lines.
// A size below one falls back to DefaultHistorySize.
func NewLogBuffer(size int) *LogBuffer {
	if size < 1 {
		size = DefaultHistorySize
	}
	return &LogBuffer{lines: make([]string, size)}
}

// Append adds line, evicting the oldest line when full.
func (b *LogBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.lines)
	if b.count < capacity {
		b.lines[(b.start+b.count)%capacity] = line
		b.count++
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % capacity
}

// Lines returns the buffered lines, oldest first.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.lines[(b.start+i)%len(b.lines)]
	}
	return out
}

// Len returns the number of buffered lines.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}
