package logging

// ProgressSampler suppresses repetitive per-file progress logs on large runs
// while still reporting each percentage bucket and the final file.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the completed
// percentage crosses bucket boundaries (default 5%).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether the progress event for completed of total files
// should be logged. The last file of a run always logs.
func (s *ProgressSampler) ShouldLog(completed, total int) bool {
	if s == nil || total <= 0 {
		return true
	}
	if completed >= total {
		s.lastBucket = int(100 / s.bucketSize)
		return true
	}
	percent := float64(completed) * 100 / float64(total)
	bucket := int(percent / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}

// Reset clears the sampler state (e.g. when a new run starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
}
