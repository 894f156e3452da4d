// Command stu is a make-family build automation tool (see SPEC_FULL.md).
// Grounded on the teacher's cmd/same/main.go: resolve the adapter graph
// via graft.ExecuteFor, build a cobra CLI over it, and translate the
// result into a process exit code.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.stu.dev/stu/cmd/stu/commands"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	c, err := commands.Resolve(ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("stu: " + err.Error() + "\n")
		return 1
	}

	cli := commands.New(c)
	return cli.Execute(ctx)
}
