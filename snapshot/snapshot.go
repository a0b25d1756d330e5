// Package snapshot builds immutable records of resolved configuration runs.
//
// A snapshot captures the fully resolved document for one model variant
// together with provenance: when it was built, by which tool version, and a
// sha256 digest of the resolved tree. Snapshots serialize to JSON for run
// stores and export to YAML run directories for human inspection.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/temporalab/modelconf/document"
)

var (
	// ErrNilDocument is returned when a snapshot is built from a nil document.
	ErrNilDocument = errors.New("snapshot: nil document")

	// ErrDigestMismatch is returned by Verify when the stored digest does not
	// match the resolved tree.
	ErrDigestMismatch = errors.New("snapshot: digest mismatch")
)

// Snapshot is an immutable record of one resolved configuration run.
// The resolved tree is deep-copied on construction, and accessors that expose
// nested structure return copies, so holders of a snapshot cannot alter each
// other's view.
type Snapshot struct {
	ID          string         `json:"id"`
	Variant     string         `json:"variant"`
	CreatedAt   time.Time      `json:"created_at"`
	ToolVersion string         `json:"tool_version,omitempty"`
	Digest      string         `json:"digest"`
	Resolved    map[string]any `json:"resolved"`
}

// New builds a snapshot from a fully resolved document.
func New(doc *document.Document, variant, toolVersion string) (*Snapshot, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}

	resolved := doc.Map()
	digest, err := ComputeDigest(resolved)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ID:          uuid.NewString(),
		Variant:     variant,
		CreatedAt:   time.Now().UTC(),
		ToolVersion: toolVersion,
		Digest:      digest,
		Resolved:    resolved,
	}, nil
}

// ComputeDigest returns the sha256 hex digest of the canonical JSON encoding
// of a resolved tree. Map keys marshal in sorted order, so equal trees yield
// equal digests regardless of construction order.
func ComputeDigest(tree map[string]any) (string, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("failed to marshal resolved tree: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the digest of the resolved tree and compares it with the
// stored one. A mismatch means the snapshot was altered after creation.
func (s *Snapshot) Verify() error {
	digest, err := ComputeDigest(s.Resolved)
	if err != nil {
		return err
	}
	if digest != s.Digest {
		return fmt.Errorf("%w: stored %s, computed %s", ErrDigestMismatch, s.Digest, digest)
	}
	return nil
}

// Document returns the resolved tree as a document with a synthetic source.
func (s *Snapshot) Document() *document.Document {
	return document.FromMap(fmt.Sprintf("<snapshot:%s>", s.ID), s.Resolved)
}

// Name returns the model name recorded in the resolved tree.
func (s *Snapshot) Name() string {
	name, _ := s.Resolved["name"].(string)
	return name
}

// ComputeFlops reports whether FLOP counting was enabled for this run.
func (s *Snapshot) ComputeFlops() bool {
	v, _ := s.Resolved["compute_flops"].(bool)
	return v
}

// PlotForecasts returns the plotting flag. The second return is false when
// the flag is null or absent.
func (s *Snapshot) PlotForecasts() (bool, bool) {
	v, ok := s.Resolved["plot_forecasts"].(bool)
	return v, ok
}

// Params returns a copy of the hyperparameter mapping, or nil when absent.
func (s *Snapshot) Params() map[string]any {
	params, ok := s.Resolved["params"].(map[string]any)
	if !ok {
		return nil
	}
	copied, _ := document.CopyValue(params).(map[string]any)
	return copied
}

// Flat returns the resolved tree flattened to dotted leaf paths.
func (s *Snapshot) Flat() map[string]any {
	return s.Document().Flatten()
}

// EncodeJSON marshals the full snapshot record with indentation.
func (s *Snapshot) EncodeJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// DecodeJSON unmarshals a snapshot record.
func DecodeJSON(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot JSON: %w", err)
	}
	return &snap, nil
}

// EncodeYAML marshals only the resolved tree, as written to resolved.yaml.
func (s *Snapshot) EncodeYAML() ([]byte, error) {
	return yaml.Marshal(s.Resolved)
}
