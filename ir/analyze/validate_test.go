package analyze

import (
	"testing"

	"github.com/banksean/buildcache/ir"
)

func hasWarning(warnings []ir.Warning, code ir.WarningCode) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestValidatePrivilegedExecWarns(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Exec("step", ir.ExecOperation{
		Command:  ir.Command{Shell: "echo hi"},
		Security: ir.SecurityOptions{Privileged: true},
	})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	if !result.OK() {
		t.Fatalf("expected no hard errors, got %v", result.Errors)
	}
	if !hasWarning(result.Warnings, ir.WarnPrivilegedExec) {
		t.Errorf("warnings = %+v, want WarnPrivilegedExec", result.Warnings)
	}
}

func TestValidateRunAsRootWarns(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Exec("step", ir.ExecOperation{
		Command: ir.Command{Shell: "echo hi"},
		User:    ir.UserSpec{Kind: ir.UserNamed, Name: "root"},
	})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	if !hasWarning(result.Warnings, ir.WarnRunAsRoot) {
		t.Errorf("warnings = %+v, want WarnRunAsRoot", result.Warnings)
	}
}

func TestValidateReadWriteSecretMountWarns(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Exec("step", ir.ExecOperation{
		Command: ir.Command{Shell: "echo hi"},
		Mounts:  []ir.Mount{{Kind: ir.MountSecret, Target: "/run/secrets/token", Options: ir.MountOptions{ReadOnly: false}}},
	})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	if !hasWarning(result.Warnings, ir.WarnReadWriteSecretMount) {
		t.Errorf("warnings = %+v, want WarnReadWriteSecretMount", result.Warnings)
	}
}

func TestValidatePathTraversalWarns(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Filesystem("copy", ir.FilesystemOperation{
		Action:      ir.FileCopy,
		Source:      ir.FileSource{Kind: ir.SourceContext, ContextPatterns: []string{"../secrets/*"}},
		Destination: "/app",
	})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	if !hasWarning(result.Warnings, ir.WarnPathTraversal) {
		t.Errorf("warnings = %+v, want WarnPathTraversal", result.Warnings)
	}
}

func TestValidateAbsoluteContextPathWarns(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Filesystem("copy", ir.FilesystemOperation{
		Action:      ir.FileCopy,
		Source:      ir.FileSource{Kind: ir.SourceContext, ContextPatterns: []string{"/etc/passwd"}},
		Destination: "/app",
	})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	if !hasWarning(result.Warnings, ir.WarnAbsoluteContextPath) {
		t.Errorf("warnings = %+v, want WarnAbsoluteContextPath", result.Warnings)
	}
}

func TestValidatePackageUpdateWithoutInstallWarns(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Exec("update", ir.ExecOperation{Command: ir.Command{Shell: "apt-get update"}})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	if !hasWarning(result.Warnings, ir.WarnPackageUpdateNoInstall) {
		t.Errorf("warnings = %+v, want WarnPackageUpdateNoInstall", result.Warnings)
	}
}

func TestValidatePackageUpdateWithInstallDoesNotWarn(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Exec("update", ir.ExecOperation{Command: ir.Command{Shell: "apt-get update && apt-get install -y curl"}})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	if hasWarning(result.Warnings, ir.WarnPackageUpdateNoInstall) {
		t.Errorf("did not expect WarnPackageUpdateNoInstall, got %+v", result.Warnings)
	}
}

func TestValidateMissingHealthcheckWarns(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Exec("step", ir.ExecOperation{Command: ir.Command{Shell: "echo hi"}})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	if !hasWarning(result.Warnings, ir.WarnMissingHealthcheck) {
		t.Errorf("warnings = %+v, want WarnMissingHealthcheck", result.Warnings)
	}
}

func TestValidateUndeclaredBuildArgWarns(t *testing.T) {
	b := ir.NewBuilder(nil).Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Exec("step", ir.ExecOperation{
		Command: ir.Command{Shell: "echo $VERSION"},
		Env:     []ir.EnvVar{{Key: "VERSION", Value: ir.ArgEnv("VERSION")}},
	})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	if !hasWarning(result.Warnings, ir.WarnUndefinedStageName) {
		t.Errorf("warnings = %+v, want a reference warning for undeclared build arg", result.Warnings)
	}
}

func TestValidateDeclaredBuildArgDoesNotWarn(t *testing.T) {
	b := ir.NewBuilder(nil).
		WithBuildArgDefault("VERSION", "1.0.0").
		Stage("s", ir.ImageOperation{Source: ir.ImageSource{Kind: ir.ImageSourceScratch}}, ir.Platform{})
	b.Exec("step", ir.ExecOperation{
		Command: ir.Command{Shell: "echo $VERSION"},
		Env:     []ir.EnvVar{{Key: "VERSION", Value: ir.ArgEnv("VERSION")}},
	})
	g, err := b.Build()
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	result := Validate(g, nil)
	for _, w := range result.Warnings {
		if w.NodeID == "step" && w.Code == ir.WarnUndefinedStageName {
			t.Errorf("unexpected undeclared-arg warning for a declared default: %+v", w)
		}
	}
}
