package batch

import (
	"context"

	"github.com/heatguard/risk-scoring-api/internal/scoringsvc"
)

// execute runs one job to completion in chunks, checking for a
// cancellation request between chunks. It always ends by moving the job
// into the completed map and freeing a concurrency slot for the next
// queued job.
func (s *Scheduler) execute(job *Job) {
	defer s.onJobDone()

	chunkSize := job.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.cfg.ChunkSize
	}
	ctx := context.Background()

	for offset := 0; offset < len(job.Input); offset += chunkSize {
		if s.checkCancelled(job) {
			s.mu.Lock()
			job.State = StateCancelled
			job.CompletedAt = now()
			s.finishLocked(job)
			s.mu.Unlock()
			return
		}

		end := offset + chunkSize
		if end > len(job.Input) {
			end = len(job.Input)
		}
		chunk := job.Input[offset:end]

		results, summary, err := s.pipeline.ScoreBatch(ctx, job.ID, chunk, job.Options)
		if err != nil {
			s.mu.Lock()
			job.State = StateFailed
			job.FailureMsg = err.Error()
			job.CompletedAt = now()
			s.finishLocked(job)
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		for i, r := range results {
			r.Index += offset
			job.Results[offset+i] = r
		}
		job.Processed += len(chunk)
		job.Succeeded += summary.Succeeded
		job.Failed += summary.Failed
		job.Summary = mergeSummary(job.Summary, summary)
		s.mu.Unlock()
	}

	s.mu.Lock()
	job.State = StateCompleted
	job.CompletedAt = now()
	s.finishLocked(job)
	s.mu.Unlock()
}

func (s *Scheduler) checkCancelled(job *Job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return job.cancelRequested
}

// onJobDone frees the job's concurrency slot and lets the dispatcher
// start the next queued job, if any.
func (s *Scheduler) onJobDone() {
	s.mu.Lock()
	s.running--
	s.dispatchLocked()
	s.mu.Unlock()
}

// mergeSummary folds one chunk's Summary into the job's running total.
// Counts are summed; Min and Max track the extremes over chunks with at
// least one success, Mean is weighted by succeeded count, and Median is
// an approximation, since the per-chunk score sets are not kept.
func mergeSummary(total, chunk scoringsvc.Summary) scoringsvc.Summary {
	if total.CountsByLevel == nil {
		total.CountsByLevel = map[string]int{}
	}
	for level, n := range chunk.CountsByLevel {
		total.CountsByLevel[level] += n
	}
	total.Total += chunk.Total
	total.Succeeded += chunk.Succeeded
	total.Failed += chunk.Failed
	total.HighRiskCount += chunk.HighRiskCount
	total.ProcessingTimeMs += chunk.ProcessingTimeMs

	if chunk.Succeeded == 0 {
		return total
	}
	prevSucceeded := total.Succeeded - chunk.Succeeded
	if prevSucceeded <= 0 || total.MinScore > chunk.MinScore {
		total.MinScore = chunk.MinScore
	}
	if total.MaxScore < chunk.MaxScore {
		total.MaxScore = chunk.MaxScore
	}
	// Weighted running mean; Median is approximated by averaging the
	// running value with each new chunk's median, which is exact for a
	// single-chunk job and weights later chunks more heavily otherwise.
	if prevSucceeded <= 0 {
		total.MeanScore = chunk.MeanScore
		total.MedianScore = chunk.MedianScore
	} else {
		total.MeanScore = (total.MeanScore*float64(prevSucceeded) + chunk.MeanScore*float64(chunk.Succeeded)) / float64(total.Succeeded)
		total.MedianScore = (total.MedianScore + chunk.MedianScore) / 2
	}
	return total
}
