package graph

import "go.stu.dev/stu/internal/core/domain"

// DecideCopyRebuild implements §4.4's Copy rule decision: rebuild iff the
// target is missing or older than its source, unless ForceCopy (the '!'
// prefix on the copy source) is set, in which case the staleness check is
// skipped entirely and the copy always runs.
func (g *Graph) DecideCopyRebuild(exec *Execution) (bool, string, error) {
	source, err := exec.Rule.CopySource.Instantiate(exec.Binding)
	if err != nil {
		return false, "", err
	}

	if exec.Rule.ForceCopy {
		return true, source, nil
	}

	srcInfo, srcExists, err := g.fs.Stat(source)
	if err != nil {
		return false, "", err
	}
	if !srcExists {
		return false, "", domain.NewLogicalError(exec.Rule.At, "copy source "+source+" does not exist")
	}

	dstInfo, dstExists, err := g.fs.Stat(exec.Target.Name.String())
	if err != nil {
		return false, "", err
	}
	if !dstExists {
		return true, source, nil
	}

	return srcInfo.ModTime.After(dstInfo.ModTime), source, nil
}

// RunCopy performs the copy action decided by DecideCopyRebuild, preserving
// the source's modification time on the destination (§4.4 "Copy rules").
func (g *Graph) RunCopy(exec *Execution, source string) error {
	return g.fs.Copy(source, exec.Target.Name.String())
}
