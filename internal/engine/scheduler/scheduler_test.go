package scheduler_test

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

// fakeFS is a hand-rolled in-memory ports.FileSystem double; no generated
// mocks package is available in this tree (see DESIGN.md).
type fakeFS struct {
	mu    sync.Mutex
	files map[string]time.Time
}

var _ ports.FileSystem = (*fakeFS)(nil)

func newFakeFS() *fakeFS { return &fakeFS{files: make(map[string]time.Time)} }

func (f *fakeFS) touch(path string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = at
}

func (f *fakeFS) Stat(path string) (ports.FileInfo, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.files[path]
	if !ok {
		return ports.FileInfo{}, false, nil
	}
	return ports.FileInfo{ModTime: t}, true, nil
}

func (f *fakeFS) ReadFile(string) ([]byte, error) { return nil, nil }

func (f *fakeFS) WriteFileAtomic(path string, _ []byte, _ uint32) error {
	f.touch(path, time.Now())
	return nil
}

func (f *fakeFS) Copy(src, dst string) error {
	f.mu.Lock()
	t := f.files[src]
	f.mu.Unlock()
	f.touch(dst, t)
	return nil
}

func (f *fakeFS) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	return nil
}

// fakeExecutor is a hand-rolled ports.Executor double, recording every
// command it's asked to run and letting a test script its outcome.
type fakeExecutor struct {
	mu       sync.Mutex
	handlers map[string]func() (int, error)
	ran      []string
}

var _ ports.Executor = (*fakeExecutor)(nil)

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{handlers: make(map[string]func() (int, error))}
}

func (e *fakeExecutor) on(command string, fn func() (int, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[command] = fn
}

func (e *fakeExecutor) Execute(_ context.Context, spec ports.ExecSpec) (int, error) {
	e.mu.Lock()
	e.ran = append(e.ran, spec.Command)
	fn := e.handlers[spec.Command]
	e.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return 0, nil
}

// fakeLogger is a hand-rolled ports.Logger double recording warnings for
// assertion; Info/Error are no-ops since no test currently inspects them.
type fakeLogger struct {
	mu    sync.Mutex
	warns []string
}

func (*fakeLogger) Info(string) {}

func (l *fakeLogger) Warn(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (*fakeLogger) Error(error) {}

// fakeTelemetry is a hand-rolled ports.Telemetry double, recording every
// vertex's name and how it ended; no generated mocks package is available
// in this tree (see DESIGN.md).
type fakeTelemetry struct {
	mu     sync.Mutex
	cached []string
	done   map[string]error
}

var _ ports.Telemetry = (*fakeTelemetry)(nil)

func newFakeTelemetry() *fakeTelemetry {
	return &fakeTelemetry{done: make(map[string]error)}
}

func (f *fakeTelemetry) Record(ctx context.Context, name string) (context.Context, ports.Vertex) {
	return ctx, &fakeVertex{tel: f, name: name}
}
func (f *fakeTelemetry) Close() error { return nil }

type fakeVertex struct {
	tel  *fakeTelemetry
	name string
}

func (fakeVertex) Stdout() io.Writer          { return io.Discard }
func (fakeVertex) Stderr() io.Writer          { return io.Discard }
func (fakeVertex) Log(domain.LogLevel, string) {}

func (v *fakeVertex) Complete(err error) {
	v.tel.mu.Lock()
	defer v.tel.mu.Unlock()
	v.tel.done[v.name] = err
}

func (v *fakeVertex) Cached() {
	v.tel.mu.Lock()
	defer v.tel.mu.Unlock()
	v.tel.cached = append(v.tel.cached, v.name)
}

func literalDep(t *testing.T, kind domain.Kind, name string) domain.Dependency {
	t.Helper()
	n, err := domain.NewParameterizedName([]string{name}, nil)
	require.NoError(t, err)
	return &domain.Direct{Target: n, Kind: kind}
}

func optionalDep(t *testing.T, kind domain.Kind, name string) domain.Dependency {
	t.Helper()
	n, err := domain.NewParameterizedName([]string{name}, nil)
	require.NoError(t, err)
	return &domain.Direct{Target: n, Kind: kind, Flags: domain.Optional}
}

func commandRule(t *testing.T, target, command string, deps ...domain.Dependency) *domain.Rule {
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

func TestScheduler_Run_DiamondBuildsDepsBeforeDependent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rs := ruleset.New()
		require.NoError(t, rs.Add(commandRule(t, "d", "build-d")))
		require.NoError(t, rs.Add(commandRule(t, "b", "build-b", literalDep(t, domain.FileTarget, "d"))))
		require.NoError(t, rs.Add(commandRule(t, "c", "build-c", literalDep(t, domain.FileTarget, "d"))))
		require.NoError(t, rs.Add(commandRule(t, "a", "build-a", literalDep(t, domain.FileTarget, "b"), literalDep(t, domain.FileTarget, "c"))))

		fs := newFakeFS()
		g := graph.New(rs, fs)

		exec := newFakeExecutor()
		exec.on("build-d", func() (int, error) { fs.touch("d", time.Now()); return 0, nil })
		exec.on("build-b", func() (int, error) { fs.touch("b", time.Now()); return 0, nil })
		exec.on("build-c", func() (int, error) { fs.touch("c", time.Now()); return 0, nil })
		exec.on("build-a", func() (int, error) { fs.touch("a", time.Now()); return 0, nil })

		tel := newFakeTelemetry()
		s := scheduler.NewScheduler(g, exec, &fakeLogger{}, tel, 2, false)
		err := s.Run(context.Background(), []domain.Target{{Kind: domain.FileTarget, Name: domain.NewInternedString("a")}})
		synctest.Wait()
		require.NoError(t, err)

		assert.Contains(t, exec.ran, "build-a")
		assert.Contains(t, exec.ran, "build-b")
		assert.Contains(t, exec.ran, "build-c")
		assert.Contains(t, exec.ran, "build-d")

		for _, name := range []string{"a", "b", "c", "d"} {
			err, ok := tel.done[name]
			assert.True(t, ok, "expected a completed vertex for %q", name)
			assert.NoError(t, err)
		}

		idx := func(s string) int {
			for i, r := range exec.ran {
				if r == s {
					return i
				}
			}
			return -1
		}
		assert.Less(t, idx("build-d"), idx("build-b"))
		assert.Less(t, idx("build-d"), idx("build-c"))
		assert.Less(t, idx("build-b"), idx("build-a"))
		assert.Less(t, idx("build-c"), idx("build-a"))
	})
}

func TestScheduler_Run_FailurePropagatesAndStopsDependent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rs := ruleset.New()
		require.NoError(t, rs.Add(commandRule(t, "b", "fail-b")))
		require.NoError(t, rs.Add(commandRule(t, "a", "build-a", literalDep(t, domain.FileTarget, "b"))))

		g := graph.New(rs, newFakeFS())
		exec := newFakeExecutor()
		exec.on("fail-b", func() (int, error) { return 1, nil })

		s := scheduler.NewScheduler(g, exec, &fakeLogger{}, newFakeTelemetry(), 2, false)
		err := s.Run(context.Background(), []domain.Target{{Kind: domain.FileTarget, Name: domain.NewInternedString("a")}})
		synctest.Wait()

		require.Error(t, err)
		assert.NotContains(t, exec.ran, "build-a")
	})
}

func TestScheduler_Run_KeepGoingContinuesUnrelatedSiblings(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rs := ruleset.New()
		require.NoError(t, rs.Add(commandRule(t, "bad", "fail-bad")))
		require.NoError(t, rs.Add(commandRule(t, "good", "build-good")))

		g := graph.New(rs, newFakeFS())
		exec := newFakeExecutor()
		exec.on("fail-bad", func() (int, error) { return 1, nil })

		s := scheduler.NewScheduler(g, exec, &fakeLogger{}, newFakeTelemetry(), 2, true)
		err := s.Run(context.Background(), []domain.Target{
			{Kind: domain.FileTarget, Name: domain.NewInternedString("bad")},
			{Kind: domain.FileTarget, Name: domain.NewInternedString("good")},
		})
		synctest.Wait()

		require.Error(t, err)
		assert.Contains(t, exec.ran, "build-good")
	})
}

func TestScheduler_Run_UpToDateTargetSkipsCommand(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rs := ruleset.New()
		require.NoError(t, rs.Add(commandRule(t, "out", "build-out", literalDep(t, domain.FileTarget, "in"))))

		fs := newFakeFS()
		old := time.Now().Add(-time.Hour)
		fs.touch("in", old)
		fs.touch("out", time.Now())

		g := graph.New(rs, fs)
		exec := newFakeExecutor()
		tel := newFakeTelemetry()

		s := scheduler.NewScheduler(g, exec, &fakeLogger{}, tel, 1, false)
		err := s.Run(context.Background(), []domain.Target{{Kind: domain.FileTarget, Name: domain.NewInternedString("out")}})
		synctest.Wait()

		require.NoError(t, err)
		assert.Empty(t, exec.ran)
		assert.Contains(t, tel.cached, "out")
	})
}

func TestScheduler_Run_FailedOptionalDependencyWarnsButDoesNotFailParent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rs := ruleset.New()
		require.NoError(t, rs.Add(commandRule(t, "b", "fail-b")))
		require.NoError(t, rs.Add(commandRule(t, "a", "build-a", optionalDep(t, domain.FileTarget, "b"))))

		g := graph.New(rs, newFakeFS())
		exec := newFakeExecutor()
		exec.on("fail-b", func() (int, error) { return 1, nil })

		log := &fakeLogger{}
		s := scheduler.NewScheduler(g, exec, log, newFakeTelemetry(), 2, false)
		err := s.Run(context.Background(), []domain.Target{{Kind: domain.FileTarget, Name: domain.NewInternedString("a")}})
		synctest.Wait()

		require.NoError(t, err)
		assert.Contains(t, exec.ran, "build-a")

		log.mu.Lock()
		defer log.mu.Unlock()
		require.Len(t, log.warns, 1)
		assert.Contains(t, log.warns[0], "b")
	})
}
