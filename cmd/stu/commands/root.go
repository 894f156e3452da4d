// Package commands implements stu's CLI, a single root command (no
// subcommands besides version) carrying the POSIX short flags of §6.
// Grounded on cmd/bob/commands/root.go's rootCmd.PersistentFlags()
// pattern, adapted to cobra.Command.Flags() since stu has no sub-command
// tree to share flags across.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"go.stu.dev/stu/internal/adapters/telemetry"
	"go.stu.dev/stu/internal/build"
	"go.stu.dev/stu/internal/core/domain"
	"go.stu.dev/stu/internal/core/ports"
	"go.stu.dev/stu/internal/engine/graph"
	"go.stu.dev/stu/internal/engine/scheduler"
	"go.stu.dev/stu/internal/format"
	"go.stu.dev/stu/internal/lexer"
	"go.stu.dev/stu/internal/parser"
	"go.stu.dev/stu/internal/ruleset"
)

// Exit codes per §6.
const (
	exitSuccess = 0
	exitBuild   = 1
	exitLogical = 2
	exitUsage   = 4
)

// usageError marks an error as a command-line usage mistake (§6 exit code
// 4) rather than a build, logical, or system failure (0/1/2, carried by
// domain.ErrorKind instead).
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func usage(err error) error { return usageError{err} }

// options holds every flag defined in §6.
type options struct {
	file        string
	targetText  string
	scriptText  string
	parallelism int
	keepGoing   bool
	debugKeep   bool
	silent      bool
	question    bool
	newline     bool
	nul         bool
	stats       bool
}

// CLI is stu's command-line interface, composing the graft-registered
// adapters directly (SPEC_FULL.md §2: "Stu registers one graft.Node per
// adapter ... and composes them in cmd/stu" — there is no separate
// application-layer injector the way the teacher's internal/app is).
type CLI struct {
	c       *components
	rootCmd *cobra.Command
	opts    options
}

// New builds the root command over an already-resolved components bundle.
func New(c *components) *CLI {
	cli := &CLI{c: c}

	root := &cobra.Command{
		Use:           "stu [targets...]",
		Short:         "A make-family build automation tool",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.run(cmd.Context(), args)
		},
	}
	root.InitDefaultVersionFlag()
	if vf := root.Flags().Lookup("version"); vf != nil {
		vf.Shorthand = "V"
		vf.Usage = "Print the version and exit"
	}
	root.SetVersionTemplate("stu {{.Version}}\n")

	flags := root.Flags()
	flags.StringVarP(&cli.opts.file, "file", "f", "main.stu", `read FILE instead of "main.stu"; "-" for stdin`)
	flags.StringVarP(&cli.opts.targetText, "command-target", "c", "", "treat TEXT as a single target")
	flags.StringVarP(&cli.opts.scriptText, "command-script", "C", "", "read TEXT as script source")
	flags.IntVarP(&cli.opts.parallelism, "jobs", "j", 1, "parallelism (number of concurrent commands)")
	flags.BoolVarP(&cli.opts.keepGoing, "keep-going", "k", false, "keep building unrelated targets after a failure")
	flags.BoolVarP(&cli.opts.debugKeep, "keep-going-debug", "K", false, "keep-going, plus verbose diagnostics")
	flags.BoolVarP(&cli.opts.silent, "silent", "s", false, "suppress the progress display")
	flags.BoolVarP(&cli.opts.question, "question", "q", false, "exit 0 if targets are up to date, 1 otherwise; build nothing")
	flags.BoolVarP(&cli.opts.newline, "newline-separated", "n", false, "treat dynamic list files as newline-separated by default")
	flags.BoolVarP(&cli.opts.nul, "nul-separated", "0", false, "treat dynamic list files as NUL-separated by default")
	flags.BoolVarP(&cli.opts.stats, "stats", "z", false, "emit statistics on exit")

	cli.rootCmd = root
	root.AddCommand(newVersionCmd())
	return cli
}

// Execute runs the root command and returns the process exit code as a
// plain int, which main hands to its single os.Exit call.
func (cli *CLI) Execute(ctx context.Context) int {
	cli.rootCmd.SetContext(ctx)
	err := cli.rootCmd.Execute()
	return exitCodeFor(err)
}

// SetArgs sets the root command's arguments; used by tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}
	var u usageError
	if ok := errorsAsUsage(err, &u); ok {
		return exitUsage
	}
	return domain.KindOf(err).ExitCode()
}

func errorsAsUsage(err error, target *usageError) bool {
	for err != nil {
		if u, ok := err.(usageError); ok { //nolint:errorlint // matching our own sentinel wrapper by value
			*target = u
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}

func (cli *CLI) run(ctx context.Context, args []string) error {
	// -K has no distinct semantics from -k in stu: nothing in spec.md or
	// ports.Logger defines a separate debug-diagnostics level (see
	// DESIGN.md), so both just enable keep-going.
	keepGoing := cli.opts.keepGoing || cli.opts.debugKeep

	targets, err := cli.resolveTargets(args)
	if err != nil {
		return err
	}

	rules, err := cli.loadRuleSet()
	if err != nil {
		return err
	}

	g := graph.New(rules, cli.c.FS)
	g.NewlineDefault = cli.opts.newline
	g.NulDefault = cli.opts.nul

	if cli.opts.question {
		return cli.answerQuestion(ctx, g, targets)
	}

	tel := cli.c.Telemetry
	if cli.opts.silent {
		tel = telemetry.NewNoOp()
	}

	sched := scheduler.NewScheduler(g, cli.c.Executor, cli.c.Logger, tel, cli.opts.parallelism, keepGoing)

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	stopUsr1 := watchStats(signalCtx, sched)
	defer stopUsr1()

	buildErr := sched.Run(signalCtx, targets)

	if cli.opts.stats {
		printStats(os.Stdout, sched.Stats())
	}

	colorize := isatty.IsTerminal(os.Stderr.Fd())
	format.Report(os.Stderr, g, colorize)

	return buildErr
}

// resolveTargets turns positional arguments and -c into a target list. An
// "@name" argument names a transient target (§3's Kind.String convention
// reversed); anything else names a file target. Requiring at least one
// target (from either source) turns an empty invocation into a usage
// error rather than guessing a "default" target, since neither spec.md
// nor the teacher defines one (see DESIGN.md).
func (cli *CLI) resolveTargets(args []string) ([]domain.Target, error) {
	names := append([]string{}, args...)
	if cli.opts.targetText != "" {
		names = append(names, cli.opts.targetText)
	}
	if len(names) == 0 {
		return nil, usage(fmt.Errorf("no targets specified"))
	}

	targets := make([]domain.Target, 0, len(names))
	for _, name := range names {
		kind := domain.FileTarget
		if strings.HasPrefix(name, "@") {
			kind = domain.TransientTarget
			name = strings.TrimPrefix(name, "@")
		}
		if name == "" {
			return nil, usage(fmt.Errorf("empty target name"))
		}
		targets = append(targets, domain.Target{Kind: kind, Name: domain.NewInternedString(name)})
	}
	return targets, nil
}

// loadRuleSet resolves -f/-C into source text via the ScriptLoader port,
// tokenizes and parses it, and indexes the resulting rules.
func (cli *CLI) loadRuleSet() (*ruleset.RuleSet, error) {
	var src ports.ScriptSource
	switch {
	case cli.opts.scriptText != "":
		src = cli.c.ScriptLoader.LoadText(cli.opts.scriptText)
	default:
		loaded, err := cli.c.ScriptLoader.LoadFile(cli.opts.file)
		if err != nil {
			return nil, usage(err)
		}
		src = loaded
	}

	tokens, placeEnd, err := lexer.Tokenize(src.File, src.Text)
	if err != nil {
		return nil, err
	}
	rules, err := parser.ParseRuleList(tokens, placeEnd)
	if err != nil {
		return nil, err
	}

	rs := ruleset.New()
	for _, r := range rules {
		if err := rs.Add(r); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// watchStats prints Scheduler.Stats() on SIGUSR1 without disturbing any
// job (§4.5), returning a stop function to release the signal channel.
func watchStats(ctx context.Context, sched *scheduler.Scheduler) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				printStats(os.Stdout, sched.Stats())
			case <-ctx.Done():
				close(done)
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		<-done
	}
}

func printStats(w *os.File, stats scheduler.Stats) {
	fmt.Fprintf(w, "succeeded: %d, failed: %d, running: %s\n",
		stats.Succeeded, stats.Failed, strings.Join(stats.Running, ", "))
}
