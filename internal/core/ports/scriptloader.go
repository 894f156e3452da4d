package ports

// ScriptSource is the resolved input to the lexer: the file name attributed
// to every diagnostic place (§6 message format `<file>:<line>:<col>: ...`)
// paired with the raw source text.
type ScriptSource struct {
	File string
	Text string
}

// ScriptLoader resolves stu's rule-file command-line surface (§6: `-f FILE`
// defaulting to "main.stu", "-" for stdin, `-C TEXT` for literal inline
// source) into a ScriptSource ready for internal/lexer.
//
//go:generate go run go.uber.org/mock/mockgen -source=scriptloader.go -destination=mocks/mock_scriptloader.go -package=mocks
type ScriptLoader interface {
	// LoadFile reads path, or standard input if path is "-", and returns it
	// as a ScriptSource named for diagnostics. An empty path is a usage
	// error (§6: "empty argument is an error"); resolving the "main.stu"
	// default is the caller's job, not this method's.
	LoadFile(path string) (ScriptSource, error)
	// LoadText wraps literal text (§6 "-C TEXT") as a ScriptSource, so
	// inline and file-backed sources flow through the same lexer entry
	// point with the same place-tracking.
	LoadText(text string) ScriptSource
}
