package batch

import "time"

// sweepLoop periodically evicts completed jobs older than RetentionTTL.
// It stops when Stop is called.
func (s *Scheduler) sweepLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Scheduler) sweep() {
	cutoff := now().Add(-s.cfg.RetentionTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.completed {
		if job.CompletedAt.Before(cutoff) {
			delete(s.completed, id)
		}
	}
}
