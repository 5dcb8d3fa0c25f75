package scheduler

import (
	"sync"

	"deodexer/internal/job"
)

// workQueue is the single mutation point shared by all workers.
type workQueue struct {
	mu     sync.Mutex
	files  []job.SourceFile
	next   int
	halted bool
}

func newWorkQueue(files []job.SourceFile) *workQueue {
	return &workQueue{files: files}
}

// take hands out the next pending file unless the queue is exhausted or
// halted. guard runs under the queue lock so a halt cannot race a dispatch.
func (q *workQueue) take(guard func() error) (job.SourceFile, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.halted || q.next >= len(q.files) {
		return job.SourceFile{}, false, nil
	}
	if guard != nil {
		if err := guard(); err != nil {
			q.halted = true
			return job.SourceFile{}, false, err
		}
	}
	file := q.files[q.next]
	q.next++
	return file, true, nil
}

func (q *workQueue) halt() {
	q.mu.Lock()
	q.halted = true
	q.mu.Unlock()
}

// remaining returns the files that were never handed out.
func (q *workQueue) remaining() []job.SourceFile {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]job.SourceFile, len(q.files)-q.next)
	copy(out, q.files[q.next:])
	return out
}
