// Package orchestrator wires the dependency-ordered leaf packages
// (Config → CachePaths → DependencyDB → Discovery/Markers → Filter/Selection
// → Executor) into the single control-flow pipeline of spec §2, and owns
// the cancellation and exit-code contract of spec §5/§7.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"taut/internal/cache"
	"taut/internal/config"
	"taut/internal/depdb"
	"taut/internal/discovery"
	"taut/internal/executor"
	"taut/internal/filter"
	"taut/internal/filter/markerexpr"
	"taut/internal/logging"
	"taut/internal/model"
	"taut/internal/reporter"
	"taut/internal/selection"
)

// Isolation selects which executor backend runs the selected tests (spec
// §4.4.3 "Mode selection").
type Isolation string

const (
	IsolationPerTest Isolation = "process-per-test"
	IsolationPerRun  Isolation = "process-per-run"
)

// Options is the parsed, already-validated set of run parameters. CLI
// argument parsing itself is out of scope (spec §6); this is what a front
// end hands the orchestrator after parsing.
type Options struct {
	ProjectRoot string
	Paths       []string
	NameFilter  string // raw -k argument, "" means no filter
	MarkerExpr  string // raw -m argument, "" means no filter
	Jobs        int    // 0 means "let config/executor defaults decide"
	NoParallel  bool   // forces every selected test into the sequential partition
	NoCache     bool   // disables both the skip decision and the final DB write
	Isolation   Isolation
	Command     []string // override the runner's argv; tests stub this out
}

// Run executes one full invocation: discovery, filtering, selection,
// execution, and dependency-DB persistence. The returned error is a usage
// error (spec §7 kind 1, exit code 2 at the CLI layer); all other failure
// modes are folded into the returned Summary (discovery errors, worker
// crashes, cancellation) per spec §7's "orchestrator never aborts on a
// single test's error" policy.
func Run(ctx context.Context, opts Options) (reporter.Summary, error) {
	if opts.Isolation == "" {
		opts.Isolation = IsolationPerTest
	}
	if opts.Isolation != IsolationPerTest && opts.Isolation != IsolationPerRun {
		return reporter.Summary{}, fmt.Errorf("unknown isolation mode %q", opts.Isolation)
	}

	markerExpr, err := parseMarkerExpr(opts.MarkerExpr)
	if err != nil {
		return reporter.Summary{}, fmt.Errorf("malformed marker expression: %w", err)
	}

	cfg, err := config.Load(opts.ProjectRoot)
	if err != nil {
		return reporter.Summary{}, fmt.Errorf("load config: %w", err)
	}
	cfg = cfg.Merge(opts.Jobs)

	cacheDir, err := cache.Dir(opts.ProjectRoot)
	if err != nil {
		logging.CacheWarn("resolve cache dir: %v, proceeding without cache", err)
		cacheDir = ""
	}

	db := depdb.New()
	if cacheDir != "" && !opts.NoCache {
		db, err = depdb.Load(cacheDir)
		if err != nil {
			logging.DepDBWarn("load cache: %v, proceeding with empty dependency DB", err)
			db = depdb.New()
		}
	}

	disc := discovery.New(opts.ProjectRoot)
	result, err := disc.Discover(opts.Paths)
	if err != nil {
		return reporter.Summary{}, fmt.Errorf("discovery: %w", err)
	}
	db.RefreshBlocks(result.Blocks)

	plan := selection.Select(result.Items, db, selection.Options{
		NameFilter:   filter.ParseNameFilter(opts.NameFilter),
		MarkerExpr:   markerExpr,
		CacheEnabled: !opts.NoCache,
	})

	sequential, parallel := plan.Sequential, plan.Parallel
	if opts.NoParallel {
		sequential = append(sequential, parallel...)
		parallel = nil
	}

	blockSpans := blocksToSpans(result.Blocks)
	execResults, replacementsExhausted, cancelled := execute(ctx, opts, cfg.MaxWorkers, sequential, parallel, blockSpans)

	results := make([]model.TestResult, 0, len(execResults))
	for _, er := range execResults {
		results = append(results, er.Result)
		db.RecordResult(er.Result.ID, itemBlockRef(result.Items, er.Result.ID), er.Deps, er.Result.Outcome)
	}

	if cacheDir != "" && !opts.NoCache {
		if err := db.Save(cacheDir); err != nil {
			logging.DepDBWarn("save cache: %v, prior cache left intact", err)
		}
	}

	return reporter.Summary{
		Results:               results,
		SkippedExplicit:       plan.SkippedExplicit,
		SkippedUnchanged:      plan.SkippedUnchanged,
		DiscoveryErrors:       result.Errors,
		ReplacementsExhausted: replacementsExhausted,
		Cancelled:             cancelled,
	}, nil
}

func parseMarkerExpr(raw string) (markerexpr.Expr, error) {
	if raw == "" {
		return nil, nil
	}
	return markerexpr.Parse(raw)
}

func blocksToSpans(blocks []model.Block) []executor.BlockSpan {
	spans := make([]executor.BlockSpan, 0, len(blocks))
	for _, b := range blocks {
		spans = append(spans, executor.BlockSpan{
			FilePath:      b.FilePath,
			QualifiedName: b.QualifiedName,
			StartLine:     b.StartLine,
			EndLine:       b.EndLine,
		})
	}
	return spans
}

func itemBlockRef(items []model.TestItem, id string) model.BlockRef {
	for _, item := range items {
		if item.ID == id {
			return item.BlockRef()
		}
	}
	return model.BlockRef{}
}

// execute runs the sequential then parallel partitions through the
// selected isolation backend. Sequential tests always run via a single
// serialized path so their happens-before ordering (spec §5) holds
// regardless of backend; parallel tests fan out according to jobs, the
// resolved worker count (CLI flag if set, else config, else a backend
// default).
func execute(ctx context.Context, opts Options, jobs int, sequential, parallel []model.TestItem, blocks []executor.BlockSpan) (results []executor.ExecResult, replacementsExhausted, cancelled bool) {
	trace := !opts.NoCache

	switch opts.Isolation {
	case IsolationPerTest:
		seqResults := executor.PerTest(ctx, sequential, executor.PerTestConfig{
			Jobs: 1, Command: opts.Command, Blocks: blocks, Trace: trace,
		})
		parResults := executor.PerTest(ctx, parallel, executor.PerTestConfig{
			Jobs: jobs, Command: opts.Command, Blocks: blocks, Trace: trace,
		})
		results = append(results, seqResults...)
		results = append(results, parResults...)
		cancelled = ctx.Err() != nil
		return results, false, cancelled

	default: // IsolationPerRun
		poolSize := jobs
		if poolSize <= 0 {
			poolSize = len(parallel)
			if poolSize == 0 {
				poolSize = 1
			}
		}
		pool, err := executor.NewWorkerPool(ctx, executor.PoolConfig{
			Size: poolSize, Command: opts.Command, Blocks: blocks, Trace: trace,
		})
		if err != nil {
			logging.ExecutorWarn("start worker pool: %v", err)
			return nil, true, ctx.Err() != nil
		}
		defer pool.Shutdown()

		seqResults, err := pool.RunSequential(ctx, sequential)
		results = append(results, seqResults...)
		if err != nil {
			logging.ExecutorWarn("sequential run aborted: %v", err)
			return results, isReplacementsExhausted(err), ctx.Err() != nil
		}

		parResults, err := pool.RunParallel(ctx, parallel)
		results = append(results, parResults...)
		if err != nil {
			logging.ExecutorWarn("parallel run aborted: %v", err)
			return results, isReplacementsExhausted(err), ctx.Err() != nil
		}
		return results, false, ctx.Err() != nil
	}
}

func isReplacementsExhausted(err error) bool {
	return errors.Is(err, executor.ErrReplacementsExhausted)
}
