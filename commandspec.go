package execengine

import "strings"

// CommandSpec is an immutable program name plus ordered argument tokens.
type CommandSpec struct {
	Program string
	Args    []string
}

// NewCommandSpec builds a CommandSpec from a program and its arguments.
func NewCommandSpec(program string, args ...string) CommandSpec {
	return CommandSpec{Program: program, Args: append([]string(nil), args...)}
}

// Argv renders the command as an argv slice of length 1+len(Args).
func (c CommandSpec) Argv() []string {
	argv := make([]string, 0, 1+len(c.Args))
	argv = append(argv, c.Program)
	argv = append(argv, c.Args...)
	return argv
}

// Shell renders the command as a space-joined shell string. Tokens are not
// quoted here; quoting for on-disk script generation is ScriptBuilder's
// concern, since that is the only place the tokens are ever re-parsed by a
// shell.
func (c CommandSpec) Shell() string {
	return strings.Join(c.Argv(), " ")
}

// Command is the interface both PipelineCommand and PipelineCommandWrapper
// satisfy: something that can be turned into a CommandSpec and carries a
// human-readable label for the wrapper script's COMMAND header.
type Command interface {
	Label() string
	Cmd() CommandSpec
}

// PipelineCommand is a reusable, named command value. Where the original
// design relied on users subclassing a PipelineCommand base class and
// overriding cmd()/init(), this Go port replaces subclassing with a plain
// value plus a constructor function per command kind (see the
// commandspec.go and task.go entries in DESIGN.md for the rationale).
type PipelineCommand struct {
	name  string
	label string
	spec  CommandSpec
}

// NewPipelineCommand builds a reusable command. name is its identity (used
// for Name(), normalised); label is what is printed in the wrapped script's
// COMMAND header.
func NewPipelineCommand(name, label string, spec CommandSpec) PipelineCommand {
	return PipelineCommand{name: normaliseName(name), label: label, spec: spec}
}

func (c PipelineCommand) Name() string     { return c.name }
func (c PipelineCommand) Label() string    { return c.label }
func (c PipelineCommand) Cmd() CommandSpec { return c.spec }

// PipelineCommandWrapper is an ad-hoc command built directly from a label
// and a variadic token list (program followed by its arguments).
type PipelineCommandWrapper struct {
	label  string
	tokens []string
}

// NewCommand builds a PipelineCommandWrapper. tokens[0] is the program,
// tokens[1:] are its arguments.
func NewCommand(label string, tokens ...string) *PipelineCommandWrapper {
	return &PipelineCommandWrapper{label: label, tokens: append([]string(nil), tokens...)}
}

// AddArgs appends additional tokens to the end of the argument list.
func (w *PipelineCommandWrapper) AddArgs(tokens ...string) {
	w.tokens = append(w.tokens, tokens...)
}

// Cmd returns the current CommandSpec built from the token list.
func (w *PipelineCommandWrapper) Cmd() CommandSpec {
	if len(w.tokens) == 0 {
		return CommandSpec{}
	}
	return CommandSpec{Program: w.tokens[0], Args: append([]string(nil), w.tokens[1:]...)}
}

// Label returns the label as given to NewCommand.
func (w *PipelineCommandWrapper) Label() string { return w.label }

// Name returns the label with whitespace replaced by underscores and
// lowercased.
func (w *PipelineCommandWrapper) Name() string { return normaliseName(w.label) }

// normaliseName lowercases s and replaces runs of whitespace with a single
// underscore, matching the PipelineCommandWrapper.name() round-trip
// property.
func normaliseName(s string) string {
	fields := strings.Fields(s)
	return strings.ToLower(strings.Join(fields, "_"))
}
