// Package terraform builds Terraform command lines and runs them.
package terraform

import (
	"fmt"
	"strings"
)

type argumentKind int

const (
	kindFlag argumentKind = iota
	kindPair
	kindTriple
)

// Argument is a single Terraform command-line argument. It is either a bare
// flag (-name), a key/value pair (-key=value) or a nested assignment
// (-outer="inner=value") such as -var or -backend-config.
type Argument struct {
	kind  argumentKind
	outer string
	key   string
	value string
}

// Flag returns a bare flag argument.
func Flag(name string) Argument {
	return Argument{kind: kindFlag, key: name}
}

// Pair returns a -key=value argument.
func Pair(key, value string) Argument {
	return Argument{kind: kindPair, key: key, value: value}
}

// Nested returns an -outer="inner=value" argument.
func Nested(outer, inner, value string) Argument {
	return Argument{kind: kindTriple, outer: outer, key: inner, value: value}
}

// Var returns a -var="name=value" argument.
func Var(name, value string) Argument {
	return Nested("var", name, value)
}

// BackendConfig returns a -backend-config="name=value" argument.
func BackendConfig(name, value string) Argument {
	return Nested("backend-config", name, value)
}

// String renders the argument the way it is written on a shell command line.
func (a Argument) String() string {
	switch a.kind {
	case kindPair:
		return fmt.Sprintf("-%s=%s", a.key, a.value)
	case kindTriple:
		return fmt.Sprintf("-%s=\"%s=%s\"", a.outer, a.key, a.value)
	default:
		return "-" + a.key
	}
}

// Arg renders the argument as a single argv entry. No shell is involved when
// running Terraform, so nested assignments are passed unquoted.
func (a Argument) Arg() string {
	if a.kind == kindTriple {
		return fmt.Sprintf("-%s=%s=%s", a.outer, a.key, a.value)
	}
	return a.String()
}

// FormatArguments renders each argument in its shell-quoted form.
func FormatArguments(args []Argument) []string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return parts
}

// CommandLine joins the shell-quoted arguments for logs.
func CommandLine(args []Argument) string {
	return strings.Join(FormatArguments(args), " ")
}

// Argv renders arguments for exec.Command.
func Argv(args []Argument) []string {
	argv := make([]string, len(args))
	for i, arg := range args {
		argv[i] = arg.Arg()
	}
	return argv
}
