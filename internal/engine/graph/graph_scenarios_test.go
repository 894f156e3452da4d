package graph_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/core/ports"
	"go.stu.dev/stu/internal/engine/graph"
	"go.stu.dev/stu/internal/engine/scheduler"
	"go.stu.dev/stu/internal/ruleset"
)

// The end-to-end scenarios named in §8 exercise the graph and the job
// scheduler together, so these tests drive a real scheduler.Scheduler
// over an in-memory rule set, grounded on the same fake-executor pattern
// as internal/engine/scheduler/scheduler_test.go.

type scenarioExecutor struct {
	mu       sync.Mutex
	handlers map[string]func() (int, error)
	ran      []string
}

var _ ports.Executor = (*scenarioExecutor)(nil)

func newScenarioExecutor() *scenarioExecutor {
	return &scenarioExecutor{handlers: make(map[string]func() (int, error))}
}

func (e *scenarioExecutor) on(command string, fn func() (int, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[command] = fn
}

func (e *scenarioExecutor) Execute(_ context.Context, spec ports.ExecSpec) (int, error) {
	e.mu.Lock()
	e.ran = append(e.ran, spec.Command)
	fn := e.handlers[spec.Command]
	e.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return 0, nil
}

func (e *scenarioExecutor) runCount(command string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.ran {
		if c == command {
			n++
		}
	}
	return n
}

type scenarioLogger struct{}

func (scenarioLogger) Info(string) {}
func (scenarioLogger) Warn(string) {}
func (scenarioLogger) Error(error) {}

type scenarioTelemetry struct{}

func (scenarioTelemetry) Record(ctx context.Context, _ string) (context.Context, ports.Vertex) {
	return ctx, scenarioVertex{}
}
func (scenarioTelemetry) Close() error { return nil }

type scenarioVertex struct{}

func (scenarioVertex) Stdout() io.Writer           { return io.Discard }
func (scenarioVertex) Stderr() io.Writer           { return io.Discard }
func (scenarioVertex) Log(domain.LogLevel, string) {}
func (scenarioVertex) Complete(error)              {}
func (scenarioVertex) Cached()                     {}

func scenarioCommandRule(t *testing.T, target, command string, deps ...domain.Dependency) *domain.Rule {
	t.Helper()
	n, err := domain.NewParameterizedName([]string{target}, nil)
	require.NoError(t, err)

	var dep domain.Dependency
	switch len(deps) {
	case 0:
		dep = nil
	case 1:
		dep = deps[0]
	default:
		dep = &domain.Compound{Elements: deps}
	}

	return &domain.Rule{
		Targets:             []domain.RuleTarget{{Kind: domain.FileTarget, Name: n}},
		Deps:                dep,
		Command:             command,
		InputRedirectIndex:  -1,
		OutputRedirectIndex: -1,
	}
}

func fileTarget(name string) domain.Target {
	return domain.Target{Kind: domain.FileTarget, Name: domain.NewInternedString(name)}
}

// Scenario 1 ("Basic"): A: B { cat B >A }  B: { echo ok >B }. First run
// builds B then A; a second run against the same, unchanged filesystem
// builds neither (§8 "Build is idempotent").
func TestScenario_Basic_SecondRunBuildsNothing(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rs := ruleset.New()
		require.NoError(t, rs.Add(scenarioCommandRule(t, "B", "build-B")))
		require.NoError(t, rs.Add(scenarioCommandRule(t, "A", "build-A", directDep(t, domain.FileTarget, "B", 0))))

		fs := newFakeFS()
		exec := newScenarioExecutor()
		exec.on("build-B", func() (int, error) { fs.set("B", "ok", time.Now()); return 0, nil })
		exec.on("build-A", func() (int, error) { fs.set("A", "ok", time.Now()); return 0, nil })

		targets := []domain.Target{fileTarget("A")}

		g1 := graph.New(rs, fs)
		s1 := scheduler.NewScheduler(g1, exec, scenarioLogger{}, scenarioTelemetry{}, 1, false)
		require.NoError(t, s1.Run(context.Background(), targets))
		synctest.Wait()

		assert.Equal(t, 1, exec.runCount("build-B"))
		assert.Equal(t, 1, exec.runCount("build-A"))

		g2 := graph.New(rs, fs)
		s2 := scheduler.NewScheduler(g2, exec, scenarioLogger{}, scenarioTelemetry{}, 1, false)
		require.NoError(t, s2.Run(context.Background(), targets))
		synctest.Wait()

		assert.Equal(t, 1, exec.runCount("build-B"), "second run must not rebuild B")
		assert.Equal(t, 1, exec.runCount("build-A"), "second run must not rebuild A")
	})
}

// Second-run incremental: when an intermediate target (B) is rebuilt to a
// newer mtime than its dependent (A) between two runs, the next run must
// rebuild A too (§4.4 point 2, t_max = max(mtime(dep)...)). This is the
// case enumerateRuleless's ModTime assignment alone cannot cover, since B
// is a rule-backed target, not a ruleless leaf.
func TestScenario_SecondRunIncremental_RebuildPropagatesFromNewerIntermediate(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rs := ruleset.New()
		require.NoError(t, rs.Add(scenarioCommandRule(t, "B", "build-B")))
		require.NoError(t, rs.Add(scenarioCommandRule(t, "A", "build-A", directDep(t, domain.FileTarget, "B", 0))))

		fs := newFakeFS()
		exec := newScenarioExecutor()
		exec.on("build-B", func() (int, error) { fs.set("B", "ok", time.Now()); return 0, nil })
		exec.on("build-A", func() (int, error) { fs.set("A", "ok", time.Now()); return 0, nil })

		targets := []domain.Target{fileTarget("A")}

		g1 := graph.New(rs, fs)
		s1 := scheduler.NewScheduler(g1, exec, scenarioLogger{}, scenarioTelemetry{}, 1, false)
		require.NoError(t, s1.Run(context.Background(), targets))
		synctest.Wait()
		require.Equal(t, 1, exec.runCount("build-B"))
		require.Equal(t, 1, exec.runCount("build-A"))

		// B changes independently of A (its own source changed), landing at
		// a newer mtime than A's last build.
		time.Sleep(time.Second)
		fs.set("B", "new", time.Now())

		g2 := graph.New(rs, fs)
		s2 := scheduler.NewScheduler(g2, exec, scenarioLogger{}, scenarioTelemetry{}, 1, false)
		require.NoError(t, s2.Run(context.Background(), targets))
		synctest.Wait()

		assert.Equal(t, 1, exec.runCount("build-B"), "B is already up to date on disk")
		assert.Equal(t, 2, exec.runCount("build-A"), "A must rebuild: B is now newer than it")
	})
}

// Scenario 2 ("Doubly dynamic"): >A: [[B]] { cat D E }  >B: { echo C }
// >C: { echo D E }  >D: { echo ddd }  >E: { echo eee }. B names the file
// (C) that holds the real dependency list; C's content is that list (D
// and E). Each of B, C, D, E must run exactly once, and D/E must end up
// as real dependency edges of A (§4.4 point 3: a depth-d dynamic
// dependency's parsed entries merge in at depth d-1, so a depth-2 [[B]]
// still needs one further expansion once B's target name is read).
func TestScenario_DoublyDynamic_ExpandsThroughIndirection(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rs := ruleset.New()
		doublyDynamicB := dynamicDep(t, dynamicDep(t, directDep(t, domain.FileTarget, "B", 0), 0), 0)
		require.NoError(t, rs.Add(scenarioCommandRule(t, "A", "build-A", doublyDynamicB)))
		require.NoError(t, rs.Add(scenarioCommandRule(t, "B", "build-B")))
		require.NoError(t, rs.Add(scenarioCommandRule(t, "C", "build-C")))
		require.NoError(t, rs.Add(scenarioCommandRule(t, "D", "build-D")))
		require.NoError(t, rs.Add(scenarioCommandRule(t, "E", "build-E")))

		fs := newFakeFS()
		exec := newScenarioExecutor()
		exec.on("build-B", func() (int, error) { fs.set("B", "C", time.Now()); return 0, nil })
		exec.on("build-C", func() (int, error) { fs.set("C", "D E", time.Now()); return 0, nil })
		exec.on("build-D", func() (int, error) { fs.set("D", "ddd", time.Now()); return 0, nil })
		exec.on("build-E", func() (int, error) { fs.set("E", "eee", time.Now()); return 0, nil })
		exec.on("build-A", func() (int, error) {
			d, _ := fs.ReadFile("D")
			e, _ := fs.ReadFile("E")
			fs.set("A", string(d)+"\n"+string(e)+"\n", time.Now())
			return 0, nil
		})

		g := graph.New(rs, fs)
		s := scheduler.NewScheduler(g, exec, scenarioLogger{}, scenarioTelemetry{}, 2, false)
		err := s.Run(context.Background(), []domain.Target{fileTarget("A")})
		synctest.Wait()
		require.NoError(t, err)

		assert.Equal(t, 1, exec.runCount("build-B"))
		assert.Equal(t, 1, exec.runCount("build-C"))
		assert.Equal(t, 1, exec.runCount("build-D"))
		assert.Equal(t, 1, exec.runCount("build-E"))
		assert.Equal(t, 1, exec.runCount("build-A"))

		content, err := fs.ReadFile("A")
		require.NoError(t, err)
		assert.Equal(t, "ddd\neee\n", string(content))
	})
}
