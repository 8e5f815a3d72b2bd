package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"

	"golang.org/x/sync/errgroup"

	"taut/internal/logging"
	"taut/internal/model"
)

// PerTestConfig configures the process-per-test executor (spec §4.4.1).
type PerTestConfig struct {
	// Jobs bounds concurrent children; 0 means logical CPU count.
	Jobs int
	// Command is the runner's argv (overridable in tests to stub out the
	// real TL interpreter). Defaults to {"python3", "-c", runnerScript, "once"}.
	Command []string
	Blocks  []BlockSpan
	Trace   bool
}

// PerTest runs each TestItem in a fresh child process, up to Jobs
// concurrently. The result order matches items regardless of completion
// order (spec §5 "Output emission... totally ordered by test identifier").
func PerTest(ctx context.Context, items []model.TestItem, cfg PerTestConfig) []ExecResult {
	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	command := cfg.Command
	if len(command) == 0 {
		command = []string{"python3", "-c", runnerScript, "once"}
	}

	results := make([]ExecResult, len(items))
	sem := make(chan struct{}, jobs)
	eg, egCtx := errgroup.WithContext(ctx)

	for i, item := range items {
		i, item := i, item
		sem <- struct{}{}
		eg.Go(func() error {
			defer func() { <-sem }()
			results[i] = runChild(egCtx, command, item, cfg.Blocks, cfg.Trace)
			return nil
		})
	}

	_ = eg.Wait() // runChild never returns an error; crashes are synthesized results
	return results
}

func runChild(ctx context.Context, command []string, item model.TestItem, blocks []BlockSpan, trace bool) ExecResult {
	timer := logging.StartTimer(logging.CategoryExecutor, "run_child:"+item.ID)
	defer timer.Stop()

	req := Request{ID: 1, Test: toTestSpec(item), Trace: trace, Blocks: blocks}
	payload, err := json.Marshal(req)
	if err != nil {
		return ExecResult{Result: erroredResult(item.ID, fmt.Sprintf("marshal request: %v", err))}
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logging.ExecutorWarn("child crashed for %s: %v, stderr=%s", item.ID, err, stderr.String())
		return ExecResult{Result: erroredResult(item.ID, fmt.Sprintf("child process error: %v: %s", err, stderr.String()))}
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return ExecResult{Result: erroredResult(item.ID, fmt.Sprintf("malformed child output: %v", err))}
	}
	return ExecResult{Result: resp.Result, Deps: depsToBlockRefs(resp.Deps)}
}

func erroredResult(id, message string) model.TestResult {
	return model.TestResult{
		ID:      id,
		Outcome: model.OutcomeErrored,
		Error:   &model.ResultError{Message: message},
	}
}
