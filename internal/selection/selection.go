// Package selection implements the six-step selection pipeline of spec
// §4.3: name filter, marker filter, @skip retention, dependency-cache skip
// retention, sequential/parallel partitioning, and fail-first ordering.
package selection

import (
	"sort"

	"taut/internal/depdb"
	"taut/internal/filter"
	"taut/internal/filter/markerexpr"
	"taut/internal/logging"
	"taut/internal/model"
)

// Skipped is a retained-but-not-executed item with the reason it was
// skipped without running.
type Skipped struct {
	Item   model.TestItem
	Reason string
}

// Plan is the ordered output of Select: items to run, in two partitions,
// plus the items retained-but-marked as skipped.
type Plan struct {
	Sequential       []model.TestItem
	Parallel         []model.TestItem
	SkippedExplicit  []Skipped
	SkippedUnchanged []Skipped
	Excluded         int // items removed by the name/marker filters (not retained at all)
}

// Options configures one selection pass.
type Options struct {
	NameFilter   filter.NameFilter
	MarkerExpr   markerexpr.Expr // nil means "no -m filter"
	CacheEnabled bool
}

// Select runs the full pipeline over a discovered item list.
func Select(items []model.TestItem, db *depdb.DB, opts Options) Plan {
	var plan Plan

	var retained []model.TestItem
	for _, item := range items {
		if !opts.NameFilter.Match(item) {
			plan.Excluded++
			continue
		}
		if opts.MarkerExpr != nil && !markerexpr.Matches(opts.MarkerExpr, item) {
			plan.Excluded++
			continue
		}
		retained = append(retained, item)
	}

	var runnable []model.TestItem
	for _, item := range retained {
		if reason, ok := item.SkipReason(); ok {
			plan.SkippedExplicit = append(plan.SkippedExplicit, Skipped{Item: item, Reason: reason})
			continue
		}
		if db.CanSkip(item.ID, item.BlockRef(), opts.CacheEnabled) {
			plan.SkippedUnchanged = append(plan.SkippedUnchanged, Skipped{Item: item, Reason: "unchanged"})
			continue
		}
		runnable = append(runnable, item)
	}

	for _, item := range runnable {
		if item.HasParallel() {
			plan.Parallel = append(plan.Parallel, item)
		} else {
			plan.Sequential = append(plan.Sequential, item)
		}
	}

	failFirstSort(plan.Sequential, db)
	failFirstSort(plan.Parallel, db)

	logging.SelectionDebug(
		"selected plan: %d sequential, %d parallel, %d skip-explicit, %d skip-unchanged, %d excluded",
		len(plan.Sequential), len(plan.Parallel), len(plan.SkippedExplicit), len(plan.SkippedUnchanged), plan.Excluded,
	)
	return plan
}

// failFirstSort orders items so a prior-failed record comes first, then by
// identifier for determinism (spec §4.3 step 6).
func failFirstSort(items []model.TestItem, db *depdb.DB) {
	sort.SliceStable(items, func(i, j int) bool {
		iFailed := wasLastFailed(items[i], db)
		jFailed := wasLastFailed(items[j], db)
		if iFailed != jFailed {
			return iFailed
		}
		return items[i].ID < items[j].ID
	})
}

func wasLastFailed(item model.TestItem, db *depdb.DB) bool {
	record, ok := db.Tests[item.ID]
	if !ok {
		return false
	}
	return record.Outcome == model.OutcomeFailed
}
