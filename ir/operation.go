// Package ir defines the build-graph intermediate representation: a
// multi-stage DAG of operations (Exec, Filesystem, Metadata, Image), the
// fluent Builder that assembles one, and the structural invariants a
// BuildGraph must satisfy before it can be used to derive cache keys.
package ir

// OperationKind discriminates the polymorphic Operation sum type.
type OperationKind string

const (
	KindExec       OperationKind = "exec"
	KindFilesystem OperationKind = "filesystem"
	KindMetadata   OperationKind = "metadata"
	KindImage      OperationKind = "image"
)

// SourceLocation is optional provenance metadata attached to an operation by
// the embedding frontend (e.g. a Dockerfile line number). It is explicitly
// excluded from an operation's content digest.
type SourceLocation struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// Operation is the polymorphic sum type over the four operation variants.
// Implementations are *ExecOperation, *FilesystemOperation,
// *MetadataOperation, and *ImageOperation.
type Operation interface {
	// Kind reports which concrete variant this operation is.
	Kind() OperationKind
	// Location returns optional source-location provenance, or nil.
	Location() *SourceLocation
}

// ArgRef is a reference to a build-arg declared elsewhere in the graph via a
// Metadata declare-arg action. EnvValue uses it to distinguish a literal
// string from an indirection through a build arg.
type ArgRef struct {
	Name string `json:"name"`
}

// EnvValue is either a literal string or a reference to a build argument.
// Exactly one of Literal/Arg is meaningful; IsArg reports which.
type EnvValue struct {
	Literal string  `json:"literal,omitempty"`
	Arg     *ArgRef `json:"arg,omitempty"`
}

// IsArg reports whether this value is a build-arg indirection rather than a
// literal string.
func (v EnvValue) IsArg() bool { return v.Arg != nil }

// LiteralEnv constructs a literal environment value.
func LiteralEnv(s string) EnvValue { return EnvValue{Literal: s} }

// ArgEnv constructs a build-arg indirection.
func ArgEnv(name string) EnvValue { return EnvValue{Arg: &ArgRef{Name: name}} }

// EnvVar is one (key, value) pair in an operation's environment. Order is
// semantically meaningful (later entries can shadow earlier ones, and order
// participates in the content digest).
type EnvVar struct {
	Key   string   `json:"key"`
	Value EnvValue `json:"value"`
}
