package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ResolvedFileName is the YAML view of the resolved tree inside a run dir.
	ResolvedFileName = "resolved.yaml"
	// SnapshotFileName is the full snapshot record inside a run dir.
	SnapshotFileName = "snapshot.json"

	runDirPerm  = 0o755
	runFilePerm = 0o600

	runTimestampLayout = "20060102-150405"
)

// TimeProvider allows injecting time for deterministic tests
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (r realTimeProvider) Now() time.Time {
	return time.Now()
}

// FileWriter abstracts file writing for testing
type FileWriter interface {
	WriteFile(path string, data []byte, perm os.FileMode) error
}

type realFileWriter struct{}

func (r realFileWriter) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// Writer exports snapshots as run directories under an output root:
//
//	<out>/<variant>/<timestamp>-<shortid>/
//	    resolved.yaml    resolved tree, human-readable
//	    snapshot.json    full record with provenance and digest
//
// Writes hold an exclusive lock on the output root: concurrent exports
// through the same Writer queue up, and a second process exporting into the
// same root fails fast.
type Writer struct {
	outDir       string
	timeProvider TimeProvider
	fileWriter   FileWriter
	locker       *Locker
}

// NewWriter creates a run-directory writer with default dependencies.
func NewWriter(outDir string) *Writer {
	return &Writer{
		outDir:       outDir,
		timeProvider: realTimeProvider{},
		fileWriter:   realFileWriter{},
		locker:       NewLocker(outDir),
	}
}

// NewWriterWithDeps creates a writer with injected dependencies (for testing)
func NewWriterWithDeps(outDir string, timeProvider TimeProvider, fileWriter FileWriter) *Writer {
	return &Writer{
		outDir:       outDir,
		timeProvider: timeProvider,
		fileWriter:   fileWriter,
		locker:       NewLocker(outDir),
	}
}

// Write exports one snapshot and returns the run directory path.
func (w *Writer) Write(snap *Snapshot) (string, error) {
	if snap == nil {
		return "", fmt.Errorf("cannot write a nil snapshot")
	}
	if snap.Variant == "" {
		return "", fmt.Errorf("cannot write a snapshot without a variant")
	}

	if err := w.locker.Lock(); err != nil {
		return "", err
	}
	defer func() { _ = w.locker.Unlock() }()

	runDir := filepath.Join(w.outDir, snap.Variant, w.runDirName(snap))
	if err := os.MkdirAll(runDir, runDirPerm); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	resolved, err := snap.EncodeYAML()
	if err != nil {
		return "", fmt.Errorf("failed to marshal resolved tree: %w", err)
	}
	if err := w.fileWriter.WriteFile(filepath.Join(runDir, ResolvedFileName), resolved, runFilePerm); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", ResolvedFileName, err)
	}

	record, err := snap.EncodeJSON()
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := w.fileWriter.WriteFile(filepath.Join(runDir, SnapshotFileName), record, runFilePerm); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", SnapshotFileName, err)
	}

	return runDir, nil
}

// runDirName builds the `<timestamp>-<shortid>` directory name.
func (w *Writer) runDirName(snap *Snapshot) string {
	ts := w.timeProvider.Now().UTC().Format(runTimestampLayout)
	return fmt.Sprintf("%s-%s", ts, shortID(snap.ID))
}

// shortID returns the leading segment of a snapshot ID for directory names.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Load reads a snapshot record back from a run directory.
func Load(runDir string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(runDir, SnapshotFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return DecodeJSON(data)
}
