package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"taut/internal/logging"
	"taut/internal/model"
)

// ExecResult pairs a TestResult with the dependency set the runner
// observed while tracing it (empty when Trace was false).
type ExecResult struct {
	Result model.TestResult
	Deps   []model.BlockRef
}

// PoolConfig configures the warm worker pool (spec §4.4.2).
type PoolConfig struct {
	Size            int
	Command         []string // defaults to {"python3", "-c", runnerScript, "serve"}
	Blocks          []BlockSpan
	Trace           bool
	MaxReplacements int // bounded crash-recovery budget; 0 means use a small default
}

// ErrReplacementsExhausted is returned when the worker pool's crash-recovery
// budget is spent (spec §4.4.2, exit code 3 at the orchestrator layer).
var ErrReplacementsExhausted = fmt.Errorf("worker replacement budget exhausted")

type workerHandle struct {
	idx        int
	instanceID uuid.UUID // fresh per spawned process (replacements included), for log/audit correlation
	cmd        *exec.Cmd
	stdinPipe  io.WriteCloser
	stdin      *bufio.Writer
	scanner    *bufio.Scanner
	pid        int
	mu         sync.Mutex
}

func (w *workerHandle) exec(req Request) (Response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := w.stdin.Write(append(data, '\n')); err != nil {
		return Response{}, fmt.Errorf("worker %d write: %w", w.idx, err)
	}
	if err := w.stdin.Flush(); err != nil {
		return Response{}, fmt.Errorf("worker %d flush: %w", w.idx, err)
	}
	if !w.scanner.Scan() {
		if err := w.scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("worker %d exited: %w", w.idx, err)
		}
		return Response{}, fmt.Errorf("worker %d exited before responding", w.idx)
	}
	var resp Response
	if err := json.Unmarshal(w.scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("worker %d malformed response: %w", w.idx, err)
	}
	return resp, nil
}

// WorkerPool manages a fixed-capacity set of long-lived worker processes,
// dispatched by work-stealing (spec §4.4.2 "Dispatch").
type WorkerPool struct {
	cfg         PoolConfig
	idle        chan *workerHandle
	replacement int32
	nextIdx     int32
}

// NewWorkerPool spawns cfg.Size workers and waits for each to report ready.
func NewWorkerPool(ctx context.Context, cfg PoolConfig) (*WorkerPool, error) {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if len(cfg.Command) == 0 {
		cfg.Command = []string{"python3", "-c", runnerScript, "serve"}
	}
	if cfg.MaxReplacements <= 0 {
		cfg.MaxReplacements = cfg.Size * 2
	}

	p := &WorkerPool{cfg: cfg, idle: make(chan *workerHandle, cfg.Size)}
	for i := 0; i < cfg.Size; i++ {
		w, err := p.spawn(ctx)
		if err != nil {
			return nil, fmt.Errorf("spawn worker %d: %w", i, err)
		}
		p.idle <- w
	}
	return p, nil
}

func (p *WorkerPool) spawn(ctx context.Context) (*workerHandle, error) {
	idx := int(atomic.AddInt32(&p.nextIdx, 1))
	cmd := exec.CommandContext(ctx, p.cfg.Command[0], p.cfg.Command[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return nil, fmt.Errorf("worker %d exited before ready", idx)
	}
	var ready ReadyMsg
	if err := json.Unmarshal(scanner.Bytes(), &ready); err != nil || !ready.Ready {
		return nil, fmt.Errorf("worker %d sent malformed ready line", idx)
	}

	instanceID := uuid.New()
	logging.PoolDebug("worker %d (%s) ready, pid=%d", idx, instanceID, ready.Pid)
	return &workerHandle{
		idx:        idx,
		instanceID: instanceID,
		cmd:        cmd,
		stdinPipe:  stdin,
		stdin:      bufio.NewWriter(stdin),
		scanner:    scanner,
		pid:        ready.Pid,
	}, nil
}

func (p *WorkerPool) acquire(ctx context.Context) (*workerHandle, error) {
	select {
	case w := <-p.idle:
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *WorkerPool) release(w *workerHandle) {
	p.idle <- w
}

// reap closes a crashed worker's stdin and waits for its process to exit in
// the background, so it never lingers as a zombie outside the idle channel
// that Shutdown's drain loop walks.
func (w *workerHandle) reap() {
	w.stdinPipe.Close()
	go w.cmd.Wait()
}

// replace spawns a fresh worker to take a crashed worker's capacity slot,
// counting against the bounded replacement budget.
func (p *WorkerPool) replace(ctx context.Context) error {
	if atomic.AddInt32(&p.replacement, 1) > int32(p.cfg.MaxReplacements) {
		return ErrReplacementsExhausted
	}
	w, err := p.spawn(ctx)
	if err != nil {
		return fmt.Errorf("replacement spawn failed: %w", err)
	}
	p.idle <- w
	return nil
}

// RunSequential sends items one at a time to a single worker, awaiting
// each before proceeding (spec §4.4.2 "Ordering").
func (p *WorkerPool) RunSequential(ctx context.Context, items []model.TestItem) ([]ExecResult, error) {
	if len(items) == 0 {
		return nil, nil
	}
	w, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if w != nil {
			p.release(w)
		}
	}()

	results := make([]ExecResult, len(items))
	for i, item := range items {
		req := Request{ID: uint64(i + 1), Test: toTestSpec(item), Trace: p.cfg.Trace, Blocks: p.cfg.Blocks}
		resp, err := w.exec(req)
		if err != nil {
			logging.PoolWarn("sequential worker %s crashed on %s: %v", w.instanceID, item.ID, err)
			results[i] = ExecResult{Result: erroredResult(item.ID, err.Error())}
			w.reap()
			w = nil
			if repErr := p.replace(ctx); repErr != nil {
				return results, repErr
			}
			w, err = p.acquire(ctx)
			if err != nil {
				return results, err
			}
			continue
		}
		results[i] = ExecResult{Result: resp.Result, Deps: depsToBlockRefs(resp.Deps)}
	}
	return results, nil
}

// RunParallel dispatches items to any idle worker (work-stealing); no
// ordering is guaranteed between them (spec §4.4.2 "Ordering").
func (p *WorkerPool) RunParallel(ctx context.Context, items []model.TestItem) ([]ExecResult, error) {
	results := make([]ExecResult, len(items))
	eg, egCtx := errgroup.WithContext(ctx)

	for i, item := range items {
		i, item := i, item
		eg.Go(func() error {
			w, err := p.acquire(egCtx)
			if err != nil {
				return err
			}
			req := Request{ID: uint64(i + 1), Test: toTestSpec(item), Trace: p.cfg.Trace, Blocks: p.cfg.Blocks}
			resp, err := w.exec(req)
			if err != nil {
				logging.PoolWarn("parallel worker %s crashed on %s: %v", w.instanceID, item.ID, err)
				results[i] = ExecResult{Result: erroredResult(item.ID, err.Error())}
				w.reap()
				return p.replace(egCtx)
			}
			results[i] = ExecResult{Result: resp.Result, Deps: depsToBlockRefs(resp.Deps)}
			p.release(w)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Shutdown closes every worker's stdin so it can drain and exit cleanly
// (spec §6 "On shutdown, orchestrator closes stdin; worker flushes and
// exits 0"), then waits for the process to exit.
func (p *WorkerPool) Shutdown() {
	close(p.idle)
	for w := range p.idle {
		w.stdin.Flush()
		w.stdinPipe.Close()
		w.cmd.Wait()
	}
}
