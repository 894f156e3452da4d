// Package scheduler implements stu's Job Scheduler (§4.5): a cooperative
// loop that drives the Execution Graph forward, launching up to K shell
// processes concurrently and routing their completions back into the
// graph. Grounded on the teacher's internal/engine/scheduler/scheduler.go
// cooperative schedulerRunState loop (ready/active/resultsCh), generalized
// from "goroutine per task" to "OS process per command" via
// internal/adapters/shell, and bounded by a weighted semaphore instead of
// a plain integer counter (SPEC_FULL.md §2 DOMAIN STACK). Progress is
// reported through ports.Telemetry, one vertex per rule Execution.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"

	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/core/ports"
	"go.stu.dev/stu/internal/engine/graph"
)

// Scheduler drives a graph.Graph to completion for a set of requested
// targets (§4.5).
type Scheduler struct {
	graph     *graph.Graph
	executor  ports.Executor
	logger    ports.Logger
	telemetry ports.Telemetry

	sem       *semaphore.Weighted
	keepGoing bool

	mu        sync.Mutex
	drain     bool
	succeeded int
	failed    int
	running   map[*graph.Execution]bool
	vertices  map[*graph.Execution]ports.Vertex

	warnedOptional map[*graph.Edge]bool
}

// NewScheduler constructs a Scheduler. parallelism is K (§4.5, §6 "-j N"),
// the number of shell processes allowed in flight at once; keepGoing is
// the -k flag. telemetry receives a vertex per rule Execution
// (pending/running/done/failed/cached), driving the terminal progress
// display — pass telemetry.NewNoOp() to disable. The -z/SIGUSR1
// statistics come from Stats instead.
func NewScheduler(g *graph.Graph, executor ports.Executor, logger ports.Logger, telemetry ports.Telemetry, parallelism int, keepGoing bool) *Scheduler {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Scheduler{
		graph:          g,
		executor:       executor,
		logger:         logger,
		telemetry:      telemetry,
		sem:            semaphore.NewWeighted(int64(parallelism)),
		keepGoing:      keepGoing,
		running:        make(map[*graph.Execution]bool),
		vertices:       make(map[*graph.Execution]ports.Vertex),
		warnedOptional: make(map[*graph.Edge]bool),
	}
}

type jobResult struct {
	exec *graph.Execution
	code int
	err  error
}

// Run drives every target to a terminal phase and returns a joined error
// for every Execution that ended FAILED (nil if all reached DONE).
//
// The loop is the single thread of control required by §5: concurrency
// comes only from the goroutines launched to run child processes, and the
// loop blocks in exactly one select per iteration once it has nothing left
// to advance synchronously.
func (s *Scheduler) Run(ctx context.Context, targets []domain.Target) error {
	resultsCh := make(chan jobResult, 1)

	var queue []*graph.Execution
	queued := make(map[*graph.Execution]bool)
	enqueue := func(e *graph.Execution) {
		if e == nil || e.Phase.IsTerminal() || queued[e] {
			return
		}
		queued[e] = true
		queue = append(queue, e)
	}

	for _, t := range targets {
		enqueue(s.graph.Root(t.Kind, t.Name.String()))
	}

	var pendingLaunch []*graph.Execution
	active := 0

	for len(queue) > 0 || len(pendingLaunch) > 0 || active > 0 {
		pendingLaunch = s.launchReady(ctx, pendingLaunch, resultsCh, &active, enqueue)

		if len(queue) > 0 {
			exec := queue[0]
			queue = queue[1:]
			delete(queued, exec)

			ready, _ := s.advance(exec, enqueue)
			if ready {
				pendingLaunch = append(pendingLaunch, exec)
			}
			if exec.Phase.IsTerminal() {
				s.notifyParents(exec, enqueue)
			}
			continue
		}

		if active == 0 {
			break
		}

		select {
		case res := <-resultsCh:
			active--
			s.finishJob(res)
			s.notifyParents(res.exec, enqueue)
		case <-ctx.Done():
			s.mu.Lock()
			s.drain = true
			s.mu.Unlock()
		}
	}

	return s.collectErrors()
}

// advance drives exec one step forward (§4.4's phase transitions). It
// returns ready=true when exec's command is queued and waiting for a
// launch slot; enqueue is called for every child discovered or still
// unfinished so the caller keeps driving them.
func (s *Scheduler) advance(exec *graph.Execution, enqueue func(*graph.Execution)) (bool, error) {
	if exec.Phase == domain.PhaseInit {
		if err := s.graph.Enumerate(exec); err != nil {
			return false, err
		}
		for _, edge := range exec.Edges {
			enqueue(edge.Child)
		}
		if exec.Phase != domain.PhaseWaiting {
			return false, exec.Err // Enumerate resolved a ruleless leaf straight to DONE/FAILED
		}
	}

	if exec.Phase != domain.PhaseWaiting {
		return false, nil
	}

	if !s.childrenTerminal(exec, enqueue) {
		return false, nil
	}

	for _, edge := range exec.Edges {
		if err := s.graph.ExpandDynamic(edge); err != nil {
			return false, s.fail(exec, err)
		}
	}
	if !s.childrenTerminal(exec, enqueue) {
		return false, nil
	}

	for _, edge := range exec.Edges {
		if edge.Child.Phase != domain.PhaseFailed {
			continue
		}
		if !edge.HasFlag(domain.Optional) {
			return false, s.fail(exec, domain.NewLogicalError(edge.Place, "dependency "+edge.Child.Target.String()+" failed to build"))
		}
		if !s.warnedOptional[edge] {
			s.warnedOptional[edge] = true
			s.logger.Warn("optional dependency " + edge.Child.Target.String() + " failed to build, continuing")
		}
	}

	if err := s.graph.LoadVariables(exec); err != nil {
		return false, s.fail(exec, err)
	}

	return s.decide(exec)
}

// childrenTerminal reports whether every edge of exec has reached a
// terminal phase, enqueuing any that have not.
func (s *Scheduler) childrenTerminal(exec *graph.Execution, enqueue func(*graph.Execution)) bool {
	allTerminal := true
	for _, edge := range exec.Edges {
		if !edge.Child.Phase.IsTerminal() {
			enqueue(edge.Child)
			allTerminal = false
		}
	}
	return allTerminal
}

// decide implements §4.4's per-rule-kind rebuild decision once all of
// exec's children are settled. Copy and hardcoded-content rules are pure
// filesystem operations and run inline rather than through the job slot
// semaphore, which is reserved for actual child processes (§4.5 point 2).
func (s *Scheduler) decide(exec *graph.Execution) (bool, error) {
	switch {
	case exec.Rule == nil:
		exec.Phase = domain.PhaseDone
		return false, nil

	case exec.Rule.IsCopy:
		rebuild, source, err := s.graph.DecideCopyRebuild(exec)
		if err != nil {
			return false, s.fail(exec, err)
		}
		if !rebuild {
			if err := s.graph.RecordModTime(exec); err != nil {
				return false, s.fail(exec, err)
			}
			s.recordCached(exec)
			exec.Phase = domain.PhaseDone
			return false, nil
		}
		if s.isDraining() {
			return false, nil
		}
		_, v := s.telemetry.Record(context.Background(), exec.Target.String())
		if err := s.graph.RunCopy(exec, source); err != nil {
			v.Complete(err)
			return false, s.fail(exec, err)
		}
		if err := s.graph.RecordModTime(exec); err != nil {
			v.Complete(err)
			return false, s.fail(exec, err)
		}
		v.Complete(nil)
		exec.Phase = domain.PhaseDone
		return false, nil

	case exec.Rule.IsHardcoded:
		rebuild, err := s.graph.DecideRebuild(exec)
		if err != nil {
			return false, s.fail(exec, err)
		}
		if !rebuild {
			if err := s.graph.RecordModTime(exec); err != nil {
				return false, s.fail(exec, err)
			}
			s.recordCached(exec)
			exec.Phase = domain.PhaseDone
			return false, nil
		}
		if s.isDraining() {
			return false, nil
		}
		_, v := s.telemetry.Record(context.Background(), exec.Target.String())
		if err := s.graph.RunHardcoded(exec); err != nil {
			v.Complete(err)
			return false, s.fail(exec, err)
		}
		if err := s.graph.RecordModTime(exec); err != nil {
			v.Complete(err)
			return false, s.fail(exec, err)
		}
		v.Complete(nil)
		exec.Phase = domain.PhaseDone
		return false, nil

	default:
		rebuild, err := s.graph.DecideRebuild(exec)
		if err != nil {
			return false, s.fail(exec, err)
		}
		if !rebuild {
			if err := s.graph.RecordModTime(exec); err != nil {
				return false, s.fail(exec, err)
			}
			s.recordCached(exec)
			exec.Phase = domain.PhaseDone
			return false, nil
		}
		if s.isDraining() {
			return false, nil
		}
		_, v := s.telemetry.Record(context.Background(), exec.Target.String())
		s.mu.Lock()
		s.vertices[exec] = v
		s.mu.Unlock()
		exec.Phase = domain.PhaseBuilding
		return true, nil
	}
}

// recordCached opens and immediately closes a vertex as a cache hit, so
// up-to-date targets still appear in the progress display (§4.4's rebuild
// decision folded onto the terminal projection).
func (s *Scheduler) recordCached(exec *graph.Execution) {
	_, v := s.telemetry.Record(context.Background(), exec.Target.String())
	v.Cached()
}

// launchReady starts as many pending commands as the semaphore allows,
// returning the ones still waiting for a slot (§4.5 point 2).
func (s *Scheduler) launchReady(ctx context.Context, pending []*graph.Execution, resultsCh chan jobResult, active *int, enqueue func(*graph.Execution)) []*graph.Execution {
	var remain []*graph.Execution
	for _, exec := range pending {
		if s.isDraining() {
			remain = append(remain, exec)
			continue
		}
		if !s.sem.TryAcquire(1) {
			remain = append(remain, exec)
			continue
		}

		spec, err := s.graph.BuildCommand(exec)
		if err != nil {
			s.sem.Release(1)
			s.completeVertex(exec, err)
			_ = s.fail(exec, err)
			s.notifyParents(exec, enqueue)
			continue
		}

		s.mu.Lock()
		s.running[exec] = true
		s.mu.Unlock()

		*active++
		go func(exec *graph.Execution, spec *graph.CommandSpec) {
			defer s.sem.Release(1)
			code, err := s.executor.Execute(ctx, ports.ExecSpec{
				Command:    spec.Text,
				InputPath:  spec.InputPath,
				OutputPath: spec.OutputPath,
				Env:        spec.Env,
			})
			resultsCh <- jobResult{exec: exec, code: code, err: err}
		}(exec, spec)
	}
	return remain
}

func (s *Scheduler) finishJob(res jobResult) {
	s.mu.Lock()
	delete(s.running, res.exec)
	s.mu.Unlock()

	switch {
	case res.err != nil:
		s.completeVertex(res.exec, res.err)
		_ = s.fail(res.exec, res.err)
	case res.code != 0:
		err := domain.NewBuildError(res.exec.Target.String(), res.code)
		s.completeVertex(res.exec, err)
		_ = s.fail(res.exec, err)
	default:
		if err := s.graph.RecordModTime(res.exec); err != nil {
			s.completeVertex(res.exec, err)
			_ = s.fail(res.exec, err)
			return
		}
		s.completeVertex(res.exec, nil)
		res.exec.Phase = domain.PhaseDone
		s.mu.Lock()
		s.succeeded++
		s.mu.Unlock()
	}
}

// completeVertex closes exec's progrock vertex, if one was opened for it
// (only rule Executions that actually ran a command get one).
func (s *Scheduler) completeVertex(exec *graph.Execution, err error) {
	s.mu.Lock()
	v, ok := s.vertices[exec]
	delete(s.vertices, exec)
	s.mu.Unlock()
	if ok {
		v.Complete(err)
	}
}

// fail moves exec to FAILED, records the error, and — outside -k mode —
// raises the drain flag so no further commands are launched (§4.5 point
// 5, §5 "Cancellation").
func (s *Scheduler) fail(exec *graph.Execution, err error) error {
	exec.Phase = domain.PhaseFailed
	exec.Err = err

	s.mu.Lock()
	s.failed++
	if !s.keepGoing {
		s.drain = true
	}
	s.mu.Unlock()

	return err
}

func (s *Scheduler) isDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drain
}

// notifyParents requeues every parent of a newly terminal exec so the
// driving loop re-evaluates whether it can now advance (§4.4 "Ordering
// guarantees": multiple parents share one execution).
func (s *Scheduler) notifyParents(exec *graph.Execution, enqueue func(*graph.Execution)) {
	for _, edge := range exec.Parents {
		enqueue(edge.Parent)
	}
}

// collectErrors joins the recorded error of every FAILED execution
// currently interned in the arena.
func (s *Scheduler) collectErrors() error {
	var errs error
	for _, exec := range s.graph.Arena().All() {
		if exec.Phase == domain.PhaseFailed && exec.Err != nil {
			errs = errors.Join(errs, exec.Err)
		}
	}
	return errs
}

// Stats is a snapshot of the scheduler's progress, for -z and SIGUSR1
// (§4.5 "Signal handling").
type Stats struct {
	Running   []string
	Succeeded int
	Failed    int
}

// Stats returns the current running/succeeded/failed counts and the
// names of in-flight targets, without disturbing any job (§4.5
// "SIGUSR1 prints current statistics ... without disturbing jobs").
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.running))
	for exec := range s.running {
		names = append(names, exec.Target.String())
	}
	return Stats{Running: names, Succeeded: s.succeeded, Failed: s.failed}
}
