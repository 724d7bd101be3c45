package ir

// WarningCode labels the category of a non-fatal validation finding.
type WarningCode string

const (
	WarnUndefinedStageName WarningCode = "undefinedStageName"
	WarnStageIndexOutOfBounds WarningCode = "stageIndexOutOfBounds"
	WarnForwardStageReference WarningCode = "forwardStageReference"
	WarnPathTraversal         WarningCode = "pathTraversal"
	WarnAbsoluteContextPath   WarningCode = "absoluteContextPath"
	WarnEmptyMountTarget      WarningCode = "emptyMountTarget"
	WarnPrivilegedExec        WarningCode = "privilegedExec"
	WarnRunAsRoot             WarningCode = "runAsRoot"
	WarnReadWriteSecretMount  WarningCode = "readWriteSecretMount"
	WarnPackageUpdateNoInstall WarningCode = "packageUpdateNoInstall"
	WarnMissingHealthcheck    WarningCode = "missingHealthcheck"
)

// Warning is a structured, non-fatal validation finding. Warnings never
// affect graph validity; they are emitted to an optional Reporter.
type Warning struct {
	Code    WarningCode
	Stage   string
	NodeID  string
	Message string
}

// Reporter receives structured warnings produced during graph construction
// and analysis. The zero value of NoOpReporter implements it and discards
// everything, so core logic never has to branch on whether a reporter was
// supplied.
type Reporter interface {
	Warn(w Warning)
}

// NoOpReporter discards every warning.
type NoOpReporter struct{}

func (NoOpReporter) Warn(Warning) {}

// ReporterFunc adapts a plain function to the Reporter interface.
type ReporterFunc func(Warning)

func (f ReporterFunc) Warn(w Warning) { f(w) }

// CollectingReporter accumulates every warning it receives, in order.
type CollectingReporter struct {
	Warnings []Warning
}

func (c *CollectingReporter) Warn(w Warning) {
	c.Warnings = append(c.Warnings, w)
}
