package ir

// ImageSourceKind discriminates how an Image operation's base is specified.
type ImageSourceKind string

const (
	ImageSourceRegistry ImageSourceKind = "registry"
	ImageSourceScratch  ImageSourceKind = "scratch"
	ImageSourceOCILayout ImageSourceKind = "ociLayout"
)

// ImageSource names where a stage's (or FROM-equivalent) image comes from.
type ImageSource struct {
	Kind ImageSourceKind `json:"kind"`

	// registry
	Reference string `json:"reference,omitempty"`

	// ociLayout
	Path string `json:"path,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

// ImageOperation resolves an external or scratch base image. Every
// BuildStage carries exactly one as its base.
type ImageOperation struct {
	Source            ImageSource     `json:"source"`
	PlatformConstraint *Platform      `json:"platformConstraint,omitempty"`
	SourceLoc         *SourceLocation `json:"sourceLocation,omitempty"`
}

func (o *ImageOperation) Kind() OperationKind       { return KindImage }
func (o *ImageOperation) Location() *SourceLocation { return o.SourceLoc }
