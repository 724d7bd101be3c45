package ir

// MetadataAction enumerates the tagged metadata mutations a Metadata
// operation can apply. Each constructor below populates only the fields
// relevant to its tag; all others remain zero.
type MetadataAction string

const (
	ActionSetEnv        MetadataAction = "setEnv"
	ActionSetEnvBatch   MetadataAction = "setEnvBatch"
	ActionSetLabel      MetadataAction = "setLabel"
	ActionSetLabelBatch MetadataAction = "setLabelBatch"
	ActionDeclareArg    MetadataAction = "declareArg"
	ActionExpose        MetadataAction = "expose"
	ActionSetWorkdir    MetadataAction = "setWorkdir"
	ActionSetUser       MetadataAction = "setUser"
	ActionSetEntrypoint MetadataAction = "setEntrypoint"
	ActionSetCmd        MetadataAction = "setCmd"
	ActionSetShell      MetadataAction = "setShell"
	ActionSetStopSignal MetadataAction = "setStopSignal"
	ActionAddVolume     MetadataAction = "addVolume"
	ActionSetHealthcheck MetadataAction = "setHealthcheck"
	ActionAddOnbuild    MetadataAction = "addOnbuild"
)

// HealthcheckSpec configures a container healthcheck.
type HealthcheckSpec struct {
	Test        []string `json:"test,omitempty"`
	IntervalSec int      `json:"intervalSec,omitempty"`
	TimeoutSec  int      `json:"timeoutSec,omitempty"`
	Retries     int      `json:"retries,omitempty"`
	StartPeriod int      `json:"startPeriodSec,omitempty"`
}

// MetadataOperation is a tagged image-metadata mutation. It mirrors the
// Dockerfile-level instructions that do not touch the filesystem.
type MetadataOperation struct {
	Action MetadataAction `json:"action"`

	// setEnv
	EnvKey   string   `json:"envKey,omitempty"`
	EnvValue EnvValue `json:"envValue,omitempty"`
	// setEnvBatch
	EnvBatch []EnvVar `json:"envBatch,omitempty"`
	// setLabel
	LabelKey   string `json:"labelKey,omitempty"`
	LabelValue string `json:"labelValue,omitempty"`
	// setLabelBatch
	LabelBatch map[string]string `json:"labelBatch,omitempty"`
	// declareArg
	ArgName    string  `json:"argName,omitempty"`
	ArgDefault *string `json:"argDefault,omitempty"`
	// expose
	Port  int    `json:"port,omitempty"`
	Proto string `json:"proto,omitempty"`
	// setWorkdir
	Workdir string `json:"workdir,omitempty"`
	// setUser
	User UserSpec `json:"user,omitempty"`
	// setEntrypoint / setCmd / setShell
	Command Command `json:"command,omitempty"`
	// setStopSignal
	StopSignal string `json:"stopSignal,omitempty"`
	// addVolume
	VolumePath string `json:"volumePath,omitempty"`
	// setHealthcheck
	Healthcheck *HealthcheckSpec `json:"healthcheck,omitempty"`
	// addOnbuild
	OnbuildInstruction string `json:"onbuildInstruction,omitempty"`

	SourceLoc *SourceLocation `json:"sourceLocation,omitempty"`
}

func (o *MetadataOperation) Kind() OperationKind       { return KindMetadata }
func (o *MetadataOperation) Location() *SourceLocation { return o.SourceLoc }
