package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunReport(t *testing.T) {
	results := []StageResult{
		{Unit: "a.php", Stage: "declare", Stats: StageStats{Declarations: 3}, Elapsed: 2 * time.Millisecond},
		{Unit: "b.php", Stage: "declare", Stats: StageStats{Declarations: 1}, Elapsed: time.Millisecond},
		{Unit: "a.php", Stage: "uses", Stats: StageStats{Uses: 4, Unresolved: 2}},
		{Unit: "b.php", Stage: "uses", Err: errors.New("boom")},
	}
	r := NewRunReport("scan", "/src", results)

	require.Len(t, r.Stages, 2)
	assert.Equal(t, "declare", r.Stages[0].Name)
	assert.Equal(t, "ok", r.Stages[0].Status)
	assert.Equal(t, 2, r.Stages[0].Units)
	assert.Equal(t, int64(3), r.Stages[0].DurationMS)
	assert.Equal(t, 4.0, r.Stages[0].Counters["declarations"])

	assert.Equal(t, "error", r.Stages[1].Status)
	assert.Equal(t, []string{"b.php: boom"}, r.Stages[1].Errors)

	require.Len(t, r.Signals, 2)
	assert.Equal(t, "stage_failed", r.Signals[0].Code)
	assert.Equal(t, "unresolved_uses", r.Signals[1].Code)
	assert.InDelta(t, 0.5, r.Signals[1].Value, 0.001)

	assert.Equal(t, ReportSummary{
		StageCount:        2,
		FailedStages:      1,
		Units:             2,
		SignalsBySeverity: map[string]int{"critical": 1, "warning": 1, "info": 0},
	}, r.Summary)
}

func TestRunReport_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.json")
	r := NewRunReport("update", "/src", nil)
	require.NoError(t, r.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded RunReport
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, "update", loaded.Mode)
	assert.Empty(t, loaded.Stages)
	assert.Equal(t, 0, loaded.Summary.Units)
}
