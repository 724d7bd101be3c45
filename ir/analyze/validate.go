package analyze

import (
	"fmt"
	"strings"

	"github.com/banksean/buildcache/ir"
)

// Validator inspects a graph and reports structural errors plus advisory
// warnings. Validators are pure functions of the graph so they can be
// composed freely and run independently of one another.
type Validator func(g *ir.BuildGraph) ([]error, []ir.Warning)

// DefaultValidators is the layered set of checks a graph should pass
// before being handed to the analyzer: structural, reference, path,
// security, and best-practices, run roughly in that order of severity.
func DefaultValidators() []Validator {
	return []Validator{
		validateStructural,
		validateReferences,
		validatePaths,
		validateSecurity,
		validateBestPractices,
	}
}

// ValidationResult collects every error and warning produced by a set of
// validators.
type ValidationResult struct {
	Errors   []error
	Warnings []ir.Warning
}

// OK reports whether the graph passed every validator without a hard
// error; warnings never affect this.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate runs every validator in vs against g and aggregates their
// findings. A nil vs runs DefaultValidators().
func Validate(g *ir.BuildGraph, vs []Validator) ValidationResult {
	if vs == nil {
		vs = DefaultValidators()
	}
	var result ValidationResult
	for _, v := range vs {
		errs, warns := v(g)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}
	return result
}

// validateStructural checks invariants the builder's cheap checks do not
// already cover: every declared target platform names both an OS and an
// architecture, and build-arg defaults have non-empty names.
func validateStructural(g *ir.BuildGraph) ([]error, []ir.Warning) {
	var errs []error
	for i, p := range g.TargetPlatforms {
		if p.OS == "" || p.Architecture == "" {
			errs = append(errs, fmt.Errorf("analyze: target platform %d missing os or architecture", i))
		}
	}
	for name := range g.BuildArgDefaults {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("analyze: empty build-arg default name"))
		}
	}
	return errs, nil
}

// validateReferences checks that every symbolic stage reference resolves
// and that every build-arg indirection (EnvValue.Arg) names an arg
// declared somewhere in the graph or in BuildArgDefaults. Both are
// advisory: an unresolved reference does not invalidate the graph (it
// simply cannot be resolved to a dependency by the injector), but it
// almost always signals an authoring mistake.
func validateReferences(g *ir.BuildGraph) ([]error, []ir.Warning) {
	declaredArgs := map[string]struct{}{}
	for name := range g.BuildArgDefaults {
		declaredArgs[name] = struct{}{}
	}
	for _, s := range g.Stages {
		for _, n := range s.Nodes {
			if m, ok := n.Op.(*ir.MetadataOperation); ok && m.Action == ir.ActionDeclareArg {
				declaredArgs[m.ArgName] = struct{}{}
			}
		}
	}

	var warnings []ir.Warning
	for si, s := range g.Stages {
		for _, n := range s.Nodes {
			if fs, ok := n.Op.(*ir.FilesystemOperation); ok && fs.Source.Kind == ir.SourceStage {
				if _, ok := g.ResolveStageRef(fs.Source.StageRef, si); !ok {
					warnings = append(warnings, ir.Warning{
						Code:    ir.WarnUndefinedStageName,
						Stage:   stageLabel(s, si),
						NodeID:  n.ID,
						Message: "unresolvable stage reference",
					})
				}
			}
			for _, ev := range envValuesOf(n.Op) {
				if ev.IsArg() {
					if _, ok := declaredArgs[ev.Arg.Name]; !ok {
						warnings = append(warnings, ir.Warning{
							Code:    ir.WarnUndefinedStageName,
							Stage:   stageLabel(s, si),
							NodeID:  n.ID,
							Message: fmt.Sprintf("reference to undeclared build arg %q", ev.Arg.Name),
						})
					}
				}
			}
		}
	}
	return nil, warnings
}

func envValuesOf(op ir.Operation) []ir.EnvValue {
	switch o := op.(type) {
	case *ir.ExecOperation:
		vals := make([]ir.EnvValue, len(o.Env))
		for i, e := range o.Env {
			vals[i] = e.Value
		}
		return vals
	case *ir.MetadataOperation:
		if o.Action == ir.ActionSetEnv {
			return []ir.EnvValue{o.EnvValue}
		}
		if o.Action == ir.ActionSetEnvBatch {
			vals := make([]ir.EnvValue, len(o.EnvBatch))
			for i, e := range o.EnvBatch {
				vals[i] = e.Value
			}
			return vals
		}
	}
	return nil
}

// validatePaths flags path-traversal attempts and absolute context paths,
// both of which a sandboxed builder would otherwise need to reject at
// execution time.
func validatePaths(g *ir.BuildGraph) ([]error, []ir.Warning) {
	var warnings []ir.Warning
	for si, s := range g.Stages {
		for _, n := range s.Nodes {
			fs, ok := n.Op.(*ir.FilesystemOperation)
			if !ok {
				continue
			}
			paths := append(append([]string{fs.Destination}, fs.Source.ContextPatterns...), fs.Source.StagePaths...)
			paths = append(paths, fs.Source.ImagePaths...)
			for _, p := range paths {
				if strings.Contains(p, "..") {
					warnings = append(warnings, ir.Warning{
						Code:    ir.WarnPathTraversal,
						Stage:   stageLabel(s, si),
						NodeID:  n.ID,
						Message: fmt.Sprintf("path %q contains a parent-directory traversal segment", p),
					})
				}
			}
			for _, p := range fs.Source.ContextPatterns {
				if strings.HasPrefix(p, "/") {
					warnings = append(warnings, ir.Warning{
						Code:    ir.WarnAbsoluteContextPath,
						Stage:   stageLabel(s, si),
						NodeID:  n.ID,
						Message: fmt.Sprintf("context pattern %q is an absolute path", p),
					})
				}
			}
		}
	}
	return nil, warnings
}

// validateSecurity flags privilege-escalating or otherwise risky exec
// configurations: privileged containers, running as root, and secret
// mounts left writable.
func validateSecurity(g *ir.BuildGraph) ([]error, []ir.Warning) {
	var warnings []ir.Warning
	for si, s := range g.Stages {
		for _, n := range s.Nodes {
			exec, ok := n.Op.(*ir.ExecOperation)
			if !ok {
				continue
			}
			if exec.Security.Privileged {
				warnings = append(warnings, ir.Warning{
					Code:    ir.WarnPrivilegedExec,
					Stage:   stageLabel(s, si),
					NodeID:  n.ID,
					Message: "runs with privileged security options",
				})
			}
			if runsAsRoot(exec.User) {
				warnings = append(warnings, ir.Warning{
					Code:    ir.WarnRunAsRoot,
					Stage:   stageLabel(s, si),
					NodeID:  n.ID,
					Message: "runs as root",
				})
			}
			for _, m := range exec.Mounts {
				if m.Kind == ir.MountSecret && !m.Options.ReadOnly {
					warnings = append(warnings, ir.Warning{
						Code:    ir.WarnReadWriteSecretMount,
						Stage:   stageLabel(s, si),
						NodeID:  n.ID,
						Message: fmt.Sprintf("secret mount %q is not read-only", m.Target),
					})
				}
				if m.Target == "" {
					warnings = append(warnings, ir.Warning{
						Code:    ir.WarnEmptyMountTarget,
						Stage:   stageLabel(s, si),
						NodeID:  n.ID,
						Message: "mount has an empty target",
					})
				}
			}
		}
	}
	return nil, warnings
}

func runsAsRoot(u ir.UserSpec) bool {
	switch u.Kind {
	case ir.UserNamed:
		return u.Name == "root"
	case ir.UserUID, ir.UserUIDGID:
		return u.UID == 0
	default:
		return false
	}
}

// validateBestPractices flags patterns that are legal but a careful
// author would usually avoid: a package-manager update with no
// corresponding install in the same command, and a final stage with no
// healthcheck declared anywhere in the graph.
func validateBestPractices(g *ir.BuildGraph) ([]error, []ir.Warning) {
	var warnings []ir.Warning
	hasHealthcheck := false
	for si, s := range g.Stages {
		for _, n := range s.Nodes {
			switch o := n.Op.(type) {
			case *ir.ExecOperation:
				if looksLikeUpdateWithoutInstall(o.Command) {
					warnings = append(warnings, ir.Warning{
						Code:    ir.WarnPackageUpdateNoInstall,
						Stage:   stageLabel(s, si),
						NodeID:  n.ID,
						Message: "package index update with no install in the same command; the update's cache layer will rarely hit",
					})
				}
			case *ir.MetadataOperation:
				if o.Action == ir.ActionSetHealthcheck {
					hasHealthcheck = true
				}
			}
		}
	}
	if len(g.Stages) > 0 && !hasHealthcheck {
		last := len(g.Stages) - 1
		warnings = append(warnings, ir.Warning{
			Code:    ir.WarnMissingHealthcheck,
			Stage:   stageLabel(g.Stages[last], last),
			Message: "no stage declares a healthcheck",
		})
	}
	return nil, warnings
}

func looksLikeUpdateWithoutInstall(c ir.Command) bool {
	text := c.Shell
	if c.IsArgv() {
		text = strings.Join(c.Argv, " ")
	}
	text = strings.ToLower(text)
	hasUpdate := strings.Contains(text, "apt-get update") || strings.Contains(text, "apk update") || strings.Contains(text, "yum update") || strings.Contains(text, "dnf update")
	hasInstall := strings.Contains(text, "install")
	return hasUpdate && !hasInstall
}
