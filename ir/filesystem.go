package ir

// FileAction enumerates the filesystem mutations a Filesystem operation can
// perform.
type FileAction string

const (
	FileCopy   FileAction = "copy"
	FileAdd    FileAction = "add"
	FileRemove FileAction = "remove"
)

// StageRefKind discriminates how a FileSource names a source stage.
type StageRefKind string

const (
	StageRefNamed     StageRefKind = "named"
	StageRefIndex     StageRefKind = "index"
	StageRefPrevious  StageRefKind = "previous"
)

// StageRef is a symbolic pointer from one stage to another, resolved
// through the owning BuildGraph at analysis time — never held as a direct
// pointer (see DESIGN.md "cyclic stage references").
type StageRef struct {
	Kind StageRefKind `json:"kind"`
	Name string       `json:"name,omitempty"`
	Index int         `json:"index,omitempty"`
}

// NamedStageRef references a stage by its declared name.
func NamedStageRef(name string) StageRef { return StageRef{Kind: StageRefNamed, Name: name} }

// IndexStageRef references a stage by its position in the graph.
func IndexStageRef(i int) StageRef { return StageRef{Kind: StageRefIndex, Index: i} }

// PreviousStageRef references the stage immediately preceding the current
// one.
func PreviousStageRef() StageRef { return StageRef{Kind: StageRefPrevious} }

// FileSourceKind discriminates the variants of FileSource.
type FileSourceKind string

const (
	SourceContext FileSourceKind = "context"
	SourceStage   FileSourceKind = "stage"
	SourceImage   FileSourceKind = "image"
	SourceURL     FileSourceKind = "url"
)

// FileSource describes where a Filesystem operation's input files come
// from.
type FileSource struct {
	Kind FileSourceKind `json:"kind"`

	// Context: glob patterns resolved against the build context.
	ContextPatterns []string `json:"contextPatterns,omitempty"`

	// Stage: a reference to a previously built stage plus the paths to
	// copy out of it.
	StageRef   StageRef `json:"stageRef,omitempty"`
	StagePaths []string `json:"stagePaths,omitempty"`

	// Image: an external image reference plus the paths to copy out of
	// it.
	ImageRef   string   `json:"imageRef,omitempty"`
	ImagePaths []string `json:"imagePaths,omitempty"`

	// URL: a remote file to fetch.
	URL string `json:"url,omitempty"`
}

// OwnershipSpec pins the owning uid/gid of files written by a Filesystem
// operation.
type OwnershipSpec struct {
	UID *uint32 `json:"uid,omitempty"`
	GID *uint32 `json:"gid,omitempty"`
}

// FileMetadata captures the ownership, permission, and timestamp treatment
// applied to files written by a Filesystem operation.
type FileMetadata struct {
	Ownership OwnershipSpec `json:"ownership,omitempty"`
	// Mode is the permission mode to apply; nil means preserve source
	// permissions (PreserveMode below takes precedence when true).
	Mode         *uint32 `json:"mode,omitempty"`
	PreserveMode bool    `json:"preserveMode,omitempty"`
	Timestamp    *int64  `json:"timestamp,omitempty"` // unix seconds; nil means preserve
}

// FilesystemOperation copies, adds, or removes files in the stage's
// accumulated filesystem state.
type FilesystemOperation struct {
	Action      FileAction      `json:"action"`
	Source      FileSource      `json:"source"`
	Destination string          `json:"destination"`
	Metadata    FileMetadata    `json:"metadata,omitempty"`
	SourceLoc   *SourceLocation `json:"sourceLocation,omitempty"`
}

func (o *FilesystemOperation) Kind() OperationKind       { return KindFilesystem }
func (o *FilesystemOperation) Location() *SourceLocation { return o.SourceLoc }
