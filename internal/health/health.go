// Package health aggregates self-reports from the model host, batch
// scheduler, and compliance journal into the liveness, readiness, and
// detailed health payloads the probe endpoints serve.
package health

import (
	"time"

	"github.com/heatguard/risk-scoring-api/internal/batch"
	"github.com/heatguard/risk-scoring-api/internal/compliance"
	"github.com/heatguard/risk-scoring-api/internal/model"
	"github.com/heatguard/risk-scoring-api/internal/scoringsvc"
	"github.com/heatguard/risk-scoring-api/metrics"
)

// Status is a component's coarse health, ordered worst to best for
// comparison.
type Status string

const (
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
	StatusHealthy   Status = "healthy"
)

func worseOf(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 2, StatusDegraded: 1, StatusUnhealthy: 0}
	if rank[a] <= rank[b] {
		return a
	}
	return b
}

// Aggregator collects component self-reports into one overall status.
type Aggregator struct {
	host      *model.Host
	pipeline  *scoringsvc.Pipeline
	scheduler *batch.Scheduler
	journal   *compliance.Journal
	modelName string
	startedAt time.Time
	version   string
}

// New builds an Aggregator over the application's live singletons.
func New(host *model.Host, pipeline *scoringsvc.Pipeline, scheduler *batch.Scheduler, journal *compliance.Journal, modelName, version string) *Aggregator {
	return &Aggregator{
		host:      host,
		pipeline:  pipeline,
		scheduler: scheduler,
		journal:   journal,
		modelName: modelName,
		startedAt: time.Now(),
		version:   version,
	}
}

// Liveness reports whether the process itself is responsive; it never
// depends on downstream components and is always healthy once the
// server can answer requests.
func (a *Aggregator) Liveness() Status {
	return StatusHealthy
}

// Ready reports whether the service can serve scoring traffic: the
// default model artifact must be loaded.
func (a *Aggregator) Ready() (bool, string) {
	status := a.host.Health(a.modelName)
	if !status.DefaultLoaded {
		return false, "default model artifact is not loaded"
	}
	return true, ""
}

// ComponentReport is one subsystem's contribution to the detailed
// health payload.
type ComponentReport struct {
	Name    string                 `json:"name"`
	Status  Status                 `json:"status"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// Report is the full detailed-health payload.
type Report struct {
	Status     Status            `json:"status"`
	UptimeSecs float64           `json:"uptime_seconds"`
	Version    string            `json:"version"`
	Components []ComponentReport `json:"components"`
}

// Detailed aggregates every component's self-report into one overall
// status, taking the worst of the parts.
func (a *Aggregator) Detailed() Report {
	components := []ComponentReport{
		a.modelComponent(),
		a.scoringComponent(),
		a.batchComponent(),
		a.complianceComponent(),
		a.resourceComponent(),
	}

	overall := StatusHealthy
	for _, c := range components {
		overall = worseOf(overall, c.Status)
	}

	return Report{
		Status:     overall,
		UptimeSecs: time.Since(a.startedAt).Seconds(),
		Version:    a.version,
		Components: components,
	}
}

func (a *Aggregator) modelComponent() ComponentReport {
	status := a.host.Health(a.modelName)
	report := ComponentReport{
		Name: "model_host",
		Detail: map[string]interface{}{
			"loaded_artifacts": status.LoadedArtifacts,
			"capacity":         status.Capacity,
			"default_loaded":   status.DefaultLoaded,
		},
	}
	if status.DefaultLoaded {
		report.Status = StatusHealthy
	} else {
		report.Status = StatusUnhealthy
		report.Message = "default model artifact is not loaded or has expired"
	}
	return report
}

func (a *Aggregator) scoringComponent() ComponentReport {
	return ComponentReport{
		Name:   "scoring_service",
		Status: StatusHealthy,
		Detail: map[string]interface{}{
			"samples_scored":      a.pipeline.Served(),
			"validation_failures": a.pipeline.ValidationFailures(),
		},
	}
}

func (a *Aggregator) batchComponent() ComponentReport {
	snaps := a.scheduler.List()
	running, pending := 0, 0
	for _, s := range snaps {
		switch s.State {
		case batch.StateRunning:
			running++
		case batch.StatePending:
			pending++
		}
	}
	return ComponentReport{
		Name:   "batch_scheduler",
		Status: StatusHealthy,
		Detail: map[string]interface{}{
			"running_jobs": running,
			"pending_jobs": pending,
			"known_jobs":   len(snaps),
		},
	}
}

// resourceComponent surfaces process-level runtime numbers (goroutines,
// memory) gathered from the metrics registry; purely informational, it
// never degrades the overall status.
func (a *Aggregator) resourceComponent() ComponentReport {
	return ComponentReport{
		Name:   "resources",
		Status: StatusHealthy,
		Detail: metrics.GetMetricsInfo(),
	}
}

func (a *Aggregator) complianceComponent() ComponentReport {
	status := a.journal.Health()
	report := ComponentReport{
		Name: "compliance_journal",
		Detail: map[string]interface{}{
			"enabled":        status.Enabled,
			"writable":       status.Writable,
			"queue_depth":    status.QueueDepth,
			"queue_capacity": status.QueueCapacity,
			"dropped":        status.Dropped,
			"write_failures": status.WriteFailures,
		},
	}
	switch {
	case !status.Enabled:
		report.Status = StatusHealthy
	case !status.Writable:
		report.Status = StatusDegraded
		report.Message = "compliance journal is not writable; events are being dropped"
	case status.Dropped > 0:
		report.Status = StatusDegraded
		report.Message = "compliance journal has dropped events due to a full buffer"
	default:
		report.Status = StatusHealthy
	}
	return report
}
