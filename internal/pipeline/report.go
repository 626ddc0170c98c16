package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

type ReportSignal struct {
	Code     string  `json:"code"`
	Stage    string  `json:"stage"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

// StageMetric aggregates one stage over every unit it ran on.
type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	Units      int                `json:"units"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Errors     []string           `json:"errors,omitempty"`
}

type ReportSummary struct {
	StageCount        int            `json:"stage_count"`
	FailedStages      int            `json:"failed_stages"`
	Units             int            `json:"units"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// RunReport is the JSON summary of one analysis run.
type RunReport struct {
	Version     string         `json:"version"`
	Mode        string         `json:"mode"`
	GeneratedAt string         `json:"generated_at"`
	Root        string         `json:"root"`
	Stages      []StageMetric  `json:"stages"`
	Signals     []ReportSignal `json:"signals,omitempty"`
	Summary     ReportSummary  `json:"summary"`
}

// unresolvedWarnRatio is the share of unresolved uses above which a run is
// flagged.
const unresolvedWarnRatio = 0.2

// NewRunReport aggregates stage results in the order the stages first ran.
func NewRunReport(mode, root string, results []StageResult) *RunReport {
	r := &RunReport{
		Version:     "v1",
		Mode:        mode,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Root:        root,
		Stages:      []StageMetric{},
	}

	byName := map[string]*StageMetric{}
	var order []string
	units := map[string]bool{}
	for _, res := range results {
		units[res.Unit] = true
		m := byName[res.Stage]
		if m == nil {
			m = &StageMetric{Name: res.Stage, Status: "ok", Counters: map[string]float64{}}
			byName[res.Stage] = m
			order = append(order, res.Stage)
		}
		m.Units++
		m.DurationMS += res.Elapsed.Milliseconds()
		m.Counters["declarations"] += float64(res.Stats.Declarations)
		m.Counters["uses"] += float64(res.Stats.Uses)
		m.Counters["unresolved"] += float64(res.Stats.Unresolved)
		m.Counters["diagnostics"] += float64(res.Stats.Diagnostics)
		if res.Err != nil {
			m.Status = "error"
			m.Errors = append(m.Errors, fmt.Sprintf("%s: %v", res.Unit, res.Err))
		}
	}

	for _, name := range order {
		m := byName[name]
		r.Stages = append(r.Stages, *m)
		if m.Status != "ok" {
			r.addSignal("stage_failed", name, "critical",
				fmt.Sprintf("%d units failed", len(m.Errors)), float64(len(m.Errors)))
		}
		if used := m.Counters["uses"]; used > 0 {
			if ratio := m.Counters["unresolved"] / used; ratio > unresolvedWarnRatio {
				r.addSignal("unresolved_uses", name, "warning",
					fmt.Sprintf("%.0f%% of uses are unresolved", ratio*100), ratio)
			}
		}
	}
	r.finalize(len(units))
	return r
}

func (r *RunReport) addSignal(code, stage, severity, message string, value float64) {
	r.Signals = append(r.Signals, ReportSignal{
		Code:     code,
		Stage:    stage,
		Severity: severity,
		Message:  message,
		Value:    value,
	})
}

func (r *RunReport) finalize(units int) {
	severityCount := map[string]int{
		"critical": 0,
		"warning":  0,
		"info":     0,
	}
	sort.SliceStable(r.Signals, func(i, j int) bool {
		return signalPriority(r.Signals[i].Severity) > signalPriority(r.Signals[j].Severity)
	})
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	failed := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failed++
		}
	}
	r.Summary = ReportSummary{
		StageCount:        len(r.Stages),
		FailedStages:      failed,
		Units:             units,
		SignalsBySeverity: severityCount,
	}
}

func (r *RunReport) Save(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	default:
		return 1
	}
}
