package invoker

import "sync"

const defaultTailBytes = 8192

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu        sync.Mutex
	limit     int
	buf       []byte
	truncated bool
}

func newTailBuffer(limit int) *tailBuffer {
	if limit <= 0 {
		limit = defaultTailBytes
	}
	return &tailBuffer{limit: limit, buf: make([]byte, 0, min(limit, 1024))}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	if n >= t.limit {
		t.buf = append(t.buf[:0], p[n-t.limit:]...)
		t.truncated = true
		return n, nil
	}
	if overflow := len(t.buf) + n - t.limit; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
		t.truncated = true
	}
	t.buf = append(t.buf, p...)
	return n, nil
}

// String returns the captured tail, marking dropped output with a leading
// ellipsis.
func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.truncated {
		return "..." + string(t.buf)
	}
	return string(t.buf)
}
