package compliance

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Report is the aggregate view the query surface produces for
// regulatory report generation.
type Report struct {
	From              time.Time      `json:"from"`
	To                time.Time      `json:"to"`
	AssessmentCount   int            `json:"assessment_count"`
	UniqueWorkers     int            `json:"unique_workers"`
	HighRiskIncidents int            `json:"high_risk_incidents"`
	AlertCount        int            `json:"alert_count"`
	LevelDistribution map[string]int `json:"level_distribution"`
	Degraded          bool           `json:"degraded"`
}

// Query reads every record (active file plus rotated generations) whose
// timestamp falls within [from, to], optionally filtered to workerIDs
// (nil/empty means no filter). If the log is unavailable or unparseable
// it returns an empty result with Degraded=true rather than an error.
func (j *Journal) Query(from, to time.Time, workerIDs map[string]bool) ([]Record, bool) {
	var records []Record
	degraded := false

	for _, path := range j.readPaths() {
		recs, ok := readRecords(path)
		if !ok {
			return nil, true
		}
		for _, r := range recs {
			if r.Timestamp.Before(from) || r.Timestamp.After(to) {
				continue
			}
			if len(workerIDs) > 0 && !workerIDs[r.WorkerID] {
				continue
			}
			records = append(records, r)
		}
	}
	return records, degraded
}

// Report aggregates Query's results into the regulatory-report shape.
func (j *Journal) Report(from, to time.Time, workerIDs map[string]bool) Report {
	records, degraded := j.Query(from, to, workerIDs)
	report := Report{
		From:              from,
		To:                to,
		LevelDistribution: map[string]int{},
		Degraded:          degraded,
	}

	workers := map[string]bool{}
	for _, r := range records {
		if r.WorkerID != "" {
			workers[r.WorkerID] = true
		}
		switch r.Kind {
		case EventAssessment:
			report.AssessmentCount++
			if r.Assessment != nil {
				report.LevelDistribution[string(r.Assessment.RiskLevel)]++
				if r.Assessment.RiskLevel == "Danger" {
					report.HighRiskIncidents++
				}
			}
		case EventHighRiskAlert, EventBatchAlert:
			report.AlertCount++
		}
	}
	report.UniqueWorkers = len(workers)
	return report
}

// readPaths returns the active file path followed by any rotated
// generations, oldest last.
func (j *Journal) readPaths() []string {
	paths := []string{j.cfg.Path}
	for gen := 1; gen <= j.cfg.MaxGenerations; gen++ {
		paths = append(paths, fmt.Sprintf("%s.%d", j.cfg.Path, gen))
	}
	return paths
}

// readRecords parses one newline-delimited journal file. A missing file
// is not an error (rotation may not have produced that generation yet);
// a present-but-unparseable file is reported as degraded.
func readRecords(path string) ([]Record, bool) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, true
	}
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	ok := true
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.IndexByte(line, '\t')
		if idx < 0 {
			ok = false
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line[idx+1:]), &rec); err != nil {
			ok = false
			continue
		}
		records = append(records, rec)
	}
	if scanner.Err() != nil {
		ok = false
	}
	return records, ok
}
