package codec

import (
	"encoding/json"
	"fmt"

	"github.com/banksean/buildcache/ir"
)

// CanonicalOperationBytes serializes the semantic fields of op — everything
// except node id, source-location provenance, and other non-semantic
// metadata — into a deterministic byte layout. This is the encoder the
// graph analyzer (ir/analyze) hashes to produce an operation's content
// digest; it intentionally reuses the same struct-field
// ordering the JSON coder relies on for determinism, so an operation's
// digest is stable regardless of which wire coder later serializes it.
func CanonicalOperationBytes(op ir.Operation) ([]byte, error) {
	switch o := op.(type) {
	case *ir.ExecOperation:
		return json.Marshal(struct {
			Kind       ir.OperationKind     `json:"kind"`
			Command    ir.Command           `json:"command"`
			Env        []ir.EnvVar          `json:"env,omitempty"`
			Mounts     []ir.Mount           `json:"mounts,omitempty"`
			WorkingDir string               `json:"workingDir,omitempty"`
			User       ir.UserSpec          `json:"user,omitempty"`
			Network    ir.NetworkMode       `json:"network,omitempty"`
			Security   ir.SecurityOptions   `json:"security,omitempty"`
		}{
			Kind:       ir.KindExec,
			Command:    o.Command,
			Env:        o.Env,
			Mounts:     o.Mounts,
			WorkingDir: o.WorkingDir,
			User:       o.User,
			Network:    o.Network,
			Security:   o.Security,
		})
	case *ir.FilesystemOperation:
		return json.Marshal(struct {
			Kind        ir.OperationKind  `json:"kind"`
			Action      ir.FileAction     `json:"action"`
			Source      ir.FileSource     `json:"source"`
			Destination string            `json:"destination"`
			Metadata    ir.FileMetadata   `json:"metadata,omitempty"`
		}{
			Kind:        ir.KindFilesystem,
			Action:      o.Action,
			Source:      o.Source,
			Destination: o.Destination,
			Metadata:    o.Metadata,
		})
	case *ir.MetadataOperation:
		cp := *o
		cp.SourceLoc = nil
		return json.Marshal(struct {
			Kind ir.OperationKind `json:"kind"`
			ir.MetadataOperation
		}{Kind: ir.KindMetadata, MetadataOperation: cp})
	case *ir.ImageOperation:
		return json.Marshal(struct {
			Kind               ir.OperationKind `json:"kind"`
			Source             ir.ImageSource   `json:"source"`
			PlatformConstraint *ir.Platform     `json:"platformConstraint,omitempty"`
		}{
			Kind:               ir.KindImage,
			Source:             o.Source,
			PlatformConstraint: o.PlatformConstraint,
		})
	default:
		return nil, fmt.Errorf("codec: canonical bytes: unknown operation type %T", op)
	}
}
