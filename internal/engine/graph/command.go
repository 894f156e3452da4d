package graph

import (
	"sort"
	"strings"

	"go.stu.dev/stu/internal/core/domain"
)

// CommandSpec is the fully resolved shell invocation for one Execution's
// rule (§4.4 "Command construction"), ready to hand to the shell adapter
// for fork+exec of "/bin/sh -c <Text>".
type CommandSpec struct {
	Text string
	At   domain.Place

	// InputPath, if non-empty, is opened and wired as the child's stdin
	// (the rule's single '<'-redirected dependency).
	InputPath string
	// OutputPath, if non-empty, is where the child's stdout is captured;
	// the shell executor writes to "<OutputPath>.tmp.<pid>" and renames on
	// success (§4.4, §5 "Shared resources").
	OutputPath string

	// Env holds the VARIABLE dependencies resolved to NAME=content pairs,
	// to be merged over the inherited process environment.
	Env map[string]string
}

// BuildCommand implements §4.4's command construction for a rule with a
// shell command: parameter substitution into the command text, input and
// output redirection paths, and the VARIABLE environment. Every edge of
// exec that is flagged VARIABLE must already be at PhaseDone with
// VariableValue populated (LoadVariables does this).
func (g *Graph) BuildCommand(exec *Execution) (*CommandSpec, error) {
	rule := exec.Rule
	text := substituteParams(rule.Command, exec.Binding)

	spec := &CommandSpec{Text: text, At: rule.CommandAt, Env: map[string]string{}}

	if rule.InputRedirectIndex >= 0 && rule.InputRedirectIndex < len(exec.Edges) {
		spec.InputPath = exec.Edges[rule.InputRedirectIndex].Child.Target.Name.String()
	}

	if rule.OutputRedirectIndex >= 0 {
		idx, err := ruleTargetIndex(rule, exec.Target, exec.Binding)
		if err != nil {
			return nil, err
		}
		if idx == rule.OutputRedirectIndex {
			spec.OutputPath = exec.Target.Name.String()
		}
	}

	for _, edge := range exec.Edges {
		if !edge.IsVariable {
			continue
		}
		spec.Env[edge.VariableName] = edge.Child.VariableValue
	}

	return spec, nil
}

// RunHardcoded writes a hardcoded-content rule's literal text atomically
// to its target, bypassing the shell entirely (§4.4).
func (g *Graph) RunHardcoded(exec *Execution) error {
	return g.fs.WriteFileAtomic(exec.Target.Name.String(), []byte(exec.Rule.Hardcoded), 0o644)
}

// LoadVariables reads the file content of every VARIABLE-flagged edge
// whose child has just reached PhaseDone, caching it on the child
// Execution so later BuildCommand calls (from any parent sharing that
// child) don't re-read the file.
func (g *Graph) LoadVariables(exec *Execution) error {
	for _, edge := range exec.Edges {
		if !edge.IsVariable || edge.Child.Phase != domain.PhaseDone {
			continue
		}
		if edge.Child.VariableValue != "" || edge.Child.Absent {
			continue
		}
		content, err := g.fs.ReadFile(edge.Child.Target.Name.String())
		if err != nil {
			return g.fail(exec, err)
		}
		edge.Child.VariableValue = string(content)
	}
	return nil
}

// ruleTargetIndex finds which of rule's targets, once instantiated
// against binding, names target — used to resolve whether this
// Execution is the one rule.OutputRedirectIndex refers to, since Lookup
// only returns the matched rule and binding, not the matched target's
// index within a multi-target rule.
func ruleTargetIndex(rule *domain.Rule, target domain.Target, binding map[string]string) (int, error) {
	for i, t := range rule.Targets {
		if t.Kind != target.Kind {
			continue
		}
		name, err := t.Name.Instantiate(binding)
		if err != nil {
			return -1, err
		}
		if name == target.Name.String() {
			return i, nil
		}
	}
	return -1, domain.NewFatalError("execution target does not match any of its rule's targets")
}

// substituteParams replaces each "$name" occurrence of a rule parameter in
// raw command text with its bound value (the command body is an opaque
// literal token to the tokenizer, so stu performs this substitution
// itself rather than the shell). Longer parameter names are substituted
// first so one name is never a prefix match of another.
func substituteParams(text string, binding map[string]string) string {
	if len(binding) == 0 {
		return text
	}
	names := make([]string, 0, len(binding))
	for name := range binding {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	var b strings.Builder
	for i := 0; i < len(text); {
		if text[i] == '$' {
			if name, ok := matchParamName(text[i+1:], names); ok {
				b.WriteString(binding[name])
				i += 1 + len(name)
				continue
			}
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}

func matchParamName(rest string, names []string) (string, bool) {
	for _, name := range names {
		if strings.HasPrefix(rest, name) {
			return name, true
		}
	}
	return "", false
}
