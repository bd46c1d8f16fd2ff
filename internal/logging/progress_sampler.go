package logging

// ProgressSampler limits progress logging to one line each time completion
// crosses into a new step (10% by default). The first sample and the final
// one always log.
type ProgressSampler struct {
	step float64
	next float64
}

// NewProgressSampler returns a sampler with the given step in percent.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 || step > 100 {
		step = 10
	}
	return &ProgressSampler{step: step}
}

// Due reports whether done out of total should be logged. An unknown total
// (<= 0) never logs. A nil sampler logs everything.
func (s *ProgressSampler) Due(done, total int) bool {
	if s == nil {
		return true
	}
	if total <= 0 {
		return false
	}
	percent := min(float64(done)*100/float64(total), 100)
	if percent < s.next {
		return false
	}
	if percent >= 100 {
		s.next = 100 + s.step
	} else {
		s.next = (float64(int(percent/s.step)) + 1) * s.step
	}
	return true
}

// Reset starts a new sampling pass.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.next = 0
	}
}
