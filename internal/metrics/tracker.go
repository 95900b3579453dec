// Package metrics tracks row counts at every stage boundary of the cleaning
// pipeline and derives retention statistics from them. The tracker is an
// explicit instance handed to each stage call, never a process-wide
// singleton, so pipelines stay testable in isolation and multiple runs in
// one process cannot cross-contaminate.
package metrics

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	apperrors "librarydq/internal/errors"
)

// Stage names in declared pipeline order for the books dataset.
const (
	StageDuplicates    = "duplicates"
	StageMissingValues = "missing-values"
	StageDateCleaning  = "date-cleaning"
	StageEnrichment    = "enrichment"
)

// BooksStageOrder is the declared stage sequence for the books dataset.
var BooksStageOrder = []string{
	StageDuplicates,
	StageMissingValues,
	StageDateCleaning,
	StageEnrichment,
}

// CustomersStageOrder is the declared stage sequence for the customers
// dataset, which only gets the trivial empty-row drop.
var CustomersStageOrder = []string{StageMissingValues}

// StageObservation is one recorded (dataset, stage, row count) boundary.
// Ordinal is the global call-order position across all datasets.
type StageObservation struct {
	Dataset  string `json:"dataset"`
	Stage    string `json:"stage"`
	RowCount int    `json:"row_count"`
	Ordinal  int    `json:"ordinal"`
}

// Tracker accumulates stage observations for one pipeline run. It is append
// only: observations are never reordered or overwritten. The tracker is not
// safe for concurrent writers; callers running datasets in parallel must
// serialize Record externally.
type Tracker struct {
	order        map[string][]string
	next         map[string]int
	initial      map[string]int
	datasets     []string
	observations []StageObservation
	ordinal      int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		order:   make(map[string][]string),
		next:    make(map[string]int),
		initial: make(map[string]int),
	}
}

// Open registers a dataset with its declared stage order and initial row
// count. Every dataset must be opened before its first Record call.
func (t *Tracker) Open(dataset string, stageOrder []string, initialCount int) error {
	if _, exists := t.order[dataset]; exists {
		return apperrors.NewValidationError(
			fmt.Sprintf("dataset %q already opened", dataset), nil)
	}
	if len(stageOrder) == 0 {
		return apperrors.NewValidationError(
			fmt.Sprintf("dataset %q opened with empty stage order", dataset), nil)
	}
	t.order[dataset] = append([]string(nil), stageOrder...)
	t.next[dataset] = 0
	t.initial[dataset] = initialCount
	t.datasets = append(t.datasets, dataset)
	return nil
}

// Record appends a StageObservation for the dataset. The stage must be the
// next one in the dataset's declared order; anything else is an
// OrderViolation and leaves all prior observations untouched.
func (t *Tracker) Record(dataset, stage string, rowCount int) error {
	declared, ok := t.order[dataset]
	if !ok {
		return apperrors.NewValidationError(
			fmt.Sprintf("dataset %q not opened", dataset), nil)
	}

	idx := t.next[dataset]
	if idx >= len(declared) {
		return apperrors.NewOrderViolation(dataset, stage, "<none: pipeline already complete>")
	}
	if declared[idx] != stage {
		return apperrors.NewOrderViolation(dataset, stage, declared[idx])
	}

	t.observations = append(t.observations, StageObservation{
		Dataset:  dataset,
		Stage:    stage,
		RowCount: rowCount,
		Ordinal:  t.ordinal,
	})
	t.ordinal++
	t.next[dataset] = idx + 1
	return nil
}

// Observations returns a copy of the recorded observation sequence.
func (t *Tracker) Observations() []StageObservation {
	return append([]StageObservation(nil), t.observations...)
}

// StageDelta is the row count after one stage and the change it caused.
type StageDelta struct {
	Stage    string `json:"stage"`
	RowCount int    `json:"row_count"`
	Delta    int    `json:"delta"`
}

// DatasetSnapshot is the derived view over one dataset's observations.
type DatasetSnapshot struct {
	Dataset       string       `json:"dataset"`
	InitialCount  int          `json:"initial_count"`
	FinalCount    int          `json:"final_count"`
	Stages        []StageDelta `json:"stages"`
	TotalDropped  int          `json:"total_dropped"`
	RetentionRate float64      `json:"retention_rate"`
}

// Snapshot is a read-only view over everything the tracker recorded,
// computed purely from the observations.
type Snapshot struct {
	Datasets []DatasetSnapshot `json:"datasets"`
}

// Snapshot derives per-dataset retention statistics from the recorded
// observations. Datasets appear in the order they were opened.
func (t *Tracker) Snapshot() Snapshot {
	byDataset := make(map[string][]StageObservation)
	for _, obs := range t.observations {
		byDataset[obs.Dataset] = append(byDataset[obs.Dataset], obs)
	}

	snap := Snapshot{}
	for _, dataset := range t.datasets {
		obs := byDataset[dataset]
		// Observations are already in call order per dataset; sort by
		// ordinal anyway so the derivation never depends on append order.
		sort.Slice(obs, func(i, j int) bool { return obs[i].Ordinal < obs[j].Ordinal })

		ds := DatasetSnapshot{
			Dataset:      dataset,
			InitialCount: t.initial[dataset],
			FinalCount:   t.initial[dataset],
		}
		prev := ds.InitialCount
		for _, o := range obs {
			ds.Stages = append(ds.Stages, StageDelta{
				Stage:    o.Stage,
				RowCount: o.RowCount,
				Delta:    o.RowCount - prev,
			})
			prev = o.RowCount
		}
		if len(obs) > 0 {
			ds.FinalCount = obs[len(obs)-1].RowCount
		}
		ds.TotalDropped = ds.InitialCount - ds.FinalCount
		if ds.InitialCount > 0 {
			ds.RetentionRate = float64(ds.FinalCount) / float64(ds.InitialCount)
		}
		snap.Datasets = append(snap.Datasets, ds)
	}
	return snap
}

// Render produces a human-readable summary: one table per dataset of
// stage, row count and delta, plus the overall retention rate.
func (t *Tracker) Render() string {
	snap := t.Snapshot()
	var b strings.Builder
	for _, ds := range snap.Datasets {
		fmt.Fprintf(&b, "%s\n", strings.Repeat("=", 52))
		fmt.Fprintf(&b, "DATASET: %s\n", ds.Dataset)
		fmt.Fprintf(&b, "%s\n", strings.Repeat("=", 52))
		fmt.Fprintf(&b, "  %-24s %8d\n", "initial", ds.InitialCount)
		for _, st := range ds.Stages {
			fmt.Fprintf(&b, "  %-24s %8d  (%+d)\n", st.Stage, st.RowCount, st.Delta)
		}
		fmt.Fprintf(&b, "  %-24s %8d\n", "total dropped", ds.TotalDropped)
		fmt.Fprintf(&b, "  %-24s %7.1f%%\n", "retention rate", ds.RetentionRate*100)
	}
	return b.String()
}

// ToMapping exposes the snapshot as a nested mapping keyed by dataset name,
// suitable for structured logging or serialization.
func (t *Tracker) ToMapping() map[string]interface{} {
	snap := t.Snapshot()
	out := make(map[string]interface{}, len(snap.Datasets))
	for _, ds := range snap.Datasets {
		stages := make(map[string]interface{}, len(ds.Stages))
		for _, st := range ds.Stages {
			stages[st.Stage] = map[string]interface{}{
				"row_count": st.RowCount,
				"delta":     st.Delta,
			}
		}
		out[ds.Dataset] = map[string]interface{}{
			"initial_count":  ds.InitialCount,
			"final_count":    ds.FinalCount,
			"total_dropped":  ds.TotalDropped,
			"retention_rate": ds.RetentionRate,
			"stages":         stages,
		}
	}
	return out
}

// LogValue implements slog.LogValuer so a snapshot can be logged as a
// single structured attribute.
func (s Snapshot) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(s.Datasets))
	for _, ds := range s.Datasets {
		attrs = append(attrs, slog.Group(ds.Dataset,
			slog.Int("initial_count", ds.InitialCount),
			slog.Int("final_count", ds.FinalCount),
			slog.Int("total_dropped", ds.TotalDropped),
			slog.Float64("retention_rate", ds.RetentionRate),
		))
	}
	return slog.GroupValue(attrs...)
}
