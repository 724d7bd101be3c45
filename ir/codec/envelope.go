// Package codec implements the two wire encodings for a build graph:
// canonical JSON and a compact, zstd-framed binary format. Both are
// lossless (id and source-location fields round-trip) and both reject
// truncated input, a version mismatch, or an unrecognized algorithm tag
// with a decode error,
package codec

import (
	"fmt"

	"github.com/banksean/buildcache/ir"
)

// Version is the wire-format version both coders stamp into their output.
const Version = "1.0"

// operationEnvelope is the polymorphic-JSON wrapper for ir.Operation. Exactly
// one of the typed fields is populated, selected by Kind.
type operationEnvelope struct {
	Kind       ir.OperationKind       `json:"kind"`
	Exec       *ir.ExecOperation      `json:"exec,omitempty"`
	Filesystem *ir.FilesystemOperation `json:"filesystem,omitempty"`
	Metadata   *ir.MetadataOperation  `json:"metadata,omitempty"`
	Image      *ir.ImageOperation     `json:"image,omitempty"`
}

func newOperationEnvelope(op ir.Operation) (operationEnvelope, error) {
	switch o := op.(type) {
	case *ir.ExecOperation:
		return operationEnvelope{Kind: ir.KindExec, Exec: o}, nil
	case *ir.FilesystemOperation:
		return operationEnvelope{Kind: ir.KindFilesystem, Filesystem: o}, nil
	case *ir.MetadataOperation:
		return operationEnvelope{Kind: ir.KindMetadata, Metadata: o}, nil
	case *ir.ImageOperation:
		return operationEnvelope{Kind: ir.KindImage, Image: o}, nil
	default:
		return operationEnvelope{}, fmt.Errorf("codec: unknown operation type %T", op)
	}
}

func (e operationEnvelope) toOperation() (ir.Operation, error) {
	switch e.Kind {
	case ir.KindExec:
		if e.Exec == nil {
			return nil, fmt.Errorf("codec: exec envelope missing payload")
		}
		return e.Exec, nil
	case ir.KindFilesystem:
		if e.Filesystem == nil {
			return nil, fmt.Errorf("codec: filesystem envelope missing payload")
		}
		return e.Filesystem, nil
	case ir.KindMetadata:
		if e.Metadata == nil {
			return nil, fmt.Errorf("codec: metadata envelope missing payload")
		}
		return e.Metadata, nil
	case ir.KindImage:
		if e.Image == nil {
			return nil, fmt.Errorf("codec: image envelope missing payload")
		}
		return e.Image, nil
	default:
		return nil, fmt.Errorf("codec: unknown operation kind %q", e.Kind)
	}
}

// nodeDTO is the wire shape of an ir.BuildNode.
type nodeDTO struct {
	ID           string            `json:"id"`
	Op           operationEnvelope `json:"operation"`
	Dependencies []string          `json:"dependencies,omitempty"`
}

func newNodeDTO(n ir.BuildNode) (nodeDTO, error) {
	env, err := newOperationEnvelope(n.Op)
	if err != nil {
		return nodeDTO{}, err
	}
	return nodeDTO{ID: n.ID, Op: env, Dependencies: n.Dependencies}, nil
}

func (d nodeDTO) toNode() (ir.BuildNode, error) {
	op, err := d.Op.toOperation()
	if err != nil {
		return ir.BuildNode{}, err
	}
	return ir.BuildNode{ID: d.ID, Op: op, Dependencies: d.Dependencies}, nil
}

// stageDTO is the wire shape of an ir.BuildStage.
type stageDTO struct {
	Name     string         `json:"name,omitempty"`
	Base     ir.ImageOperation `json:"base"`
	Platform ir.Platform    `json:"platform,omitempty"`
	Nodes    []nodeDTO      `json:"nodes,omitempty"`
}

func newStageDTO(s ir.BuildStage) (stageDTO, error) {
	dto := stageDTO{Name: s.Name, Base: s.Base, Platform: s.Platform}
	for _, n := range s.Nodes {
		nd, err := newNodeDTO(n)
		if err != nil {
			return stageDTO{}, err
		}
		dto.Nodes = append(dto.Nodes, nd)
	}
	return dto, nil
}

func (d stageDTO) toStage() (ir.BuildStage, error) {
	s := ir.BuildStage{Name: d.Name, Base: d.Base, Platform: d.Platform}
	for _, nd := range d.Nodes {
		n, err := nd.toNode()
		if err != nil {
			return ir.BuildStage{}, err
		}
		s.Nodes = append(s.Nodes, n)
	}
	return s, nil
}

// graphDTO is the wire shape of an ir.BuildGraph, explicit version-stamped.
type graphDTO struct {
	Version          string            `json:"version"`
	Stages           []stageDTO        `json:"stages,omitempty"`
	BuildArgDefaults map[string]string `json:"buildArgDefaults,omitempty"`
	TargetPlatforms  []ir.Platform     `json:"targetPlatforms,omitempty"`
}

func newGraphDTO(g *ir.BuildGraph) (graphDTO, error) {
	dto := graphDTO{
		Version:          Version,
		BuildArgDefaults: g.BuildArgDefaults,
		TargetPlatforms:  g.TargetPlatforms,
	}
	for _, s := range g.Stages {
		sd, err := newStageDTO(s)
		if err != nil {
			return graphDTO{}, err
		}
		dto.Stages = append(dto.Stages, sd)
	}
	return dto, nil
}

// VersionMismatchError reports a wire payload whose version tag this
// binary does not understand.
type VersionMismatchError struct {
	Got, Want string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("codec: version mismatch: got %q, want %q", e.Got, e.Want)
}

func (d graphDTO) toGraph() (*ir.BuildGraph, error) {
	if d.Version != Version {
		return nil, &VersionMismatchError{Got: d.Version, Want: Version}
	}
	g := &ir.BuildGraph{
		BuildArgDefaults: d.BuildArgDefaults,
		TargetPlatforms:  d.TargetPlatforms,
	}
	for _, sd := range d.Stages {
		s, err := sd.toStage()
		if err != nil {
			return nil, err
		}
		g.Stages = append(g.Stages, s)
	}
	return g, nil
}
