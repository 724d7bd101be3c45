package ir

// MountKind discriminates the mount variants an ExecOperation may attach.
type MountKind string

const (
	MountCache MountKind = "cache"
	MountSecret MountKind = "secret"
	MountBind   MountKind = "bind"
	MountTmpfs  MountKind = "tmpfs"
)

// SharingMode controls concurrent access to a cache mount across parallel
// builds of the same stage.
type SharingMode string

const (
	SharingShared   SharingMode = "shared"
	SharingPrivate  SharingMode = "private"
	SharingLocked   SharingMode = "locked"
)

// MountOptions carries the options common to one or more mount kinds. Not
// every field applies to every MountKind; unused fields are left zero.
type MountOptions struct {
	Sharing  SharingMode `json:"sharing,omitempty"`
	Mode     *uint32     `json:"mode,omitempty"`
	ReadOnly bool        `json:"readOnly,omitempty"`
	SizeBytes int64      `json:"sizeBytes,omitempty"`
}

// Mount describes one filesystem mount attached to an Exec operation.
type Mount struct {
	Kind    MountKind    `json:"kind"`
	Target  string       `json:"target"`
	Source  string       `json:"source,omitempty"`
	Options MountOptions `json:"options,omitempty"`
}

// UserKind discriminates how a process user is specified.
type UserKind string

const (
	UserNamed    UserKind = "named"
	UserUID      UserKind = "uid"
	UserUIDGID   UserKind = "uidGid"
	UserUserGroup UserKind = "userGroup"
)

// UserSpec identifies the user (and optionally group) an Exec operation
// runs as.
type UserSpec struct {
	Kind  UserKind `json:"kind"`
	Name  string   `json:"name,omitempty"`
	Group string   `json:"group,omitempty"`
	UID   uint32   `json:"uid,omitempty"`
	GID   uint32   `json:"gid,omitempty"`
}

// NetworkMode selects the network namespace an Exec operation runs in.
type NetworkMode string

const (
	NetworkDefault NetworkMode = "default"
	NetworkNone    NetworkMode = "none"
	NetworkHost    NetworkMode = "host"
)

// SecurityOptions captures the privilege and isolation posture of an Exec
// operation.
type SecurityOptions struct {
	Privileged        bool     `json:"privileged,omitempty"`
	AddCapabilities   []string `json:"addCapabilities,omitempty"`
	DropCapabilities  []string `json:"dropCapabilities,omitempty"`
	SeccompProfile    string   `json:"seccompProfile,omitempty"`
	ApparmorProfile   string   `json:"apparmorProfile,omitempty"`
	NoNewPrivileges   bool     `json:"noNewPrivileges,omitempty"`
}

// Command is either a shell string or an argv vector. Exactly one of
// Shell/Argv is populated.
type Command struct {
	Shell string   `json:"shell,omitempty"`
	Argv  []string `json:"argv,omitempty"`
}

// IsArgv reports whether the command is an argv vector rather than a shell
// string.
func (c Command) IsArgv() bool { return len(c.Argv) > 0 }

// ExecOperation runs a command inside the stage's accumulated filesystem
// state.
type ExecOperation struct {
	Command     Command         `json:"command"`
	Env         []EnvVar        `json:"env,omitempty"`
	Mounts      []Mount         `json:"mounts,omitempty"`
	WorkingDir  string          `json:"workingDir,omitempty"`
	User        UserSpec        `json:"user,omitempty"`
	Network     NetworkMode     `json:"network,omitempty"`
	Security    SecurityOptions `json:"security,omitempty"`
	SourceLoc   *SourceLocation `json:"sourceLocation,omitempty"`
}

func (o *ExecOperation) Kind() OperationKind      { return KindExec }
func (o *ExecOperation) Location() *SourceLocation { return o.SourceLoc }
