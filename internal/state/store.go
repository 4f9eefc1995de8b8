package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"cveroast/internal/model"
)

var (
	ErrNotFound          = errors.New("artifact not found")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrUnknownVariant    = errors.New("unknown message variant")
)

// LatestID is the identifier of the alias record.
const LatestID = "latest"

const (
	analysisDir = "analysis"
	messagesDir = "messages"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidIdentifier rejects identifiers that could escape the data directory.
func ValidIdentifier(id string) error {
	if id == "." || id == ".." || !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}

// Variant names one narrative text artifact.
type Variant string

const (
	VariantMain    Variant = "main"
	VariantBazinga Variant = "bazinga"
	VariantLegacy  Variant = "legacy"
)

var variantFiles = map[Variant]string{
	VariantMain:    "deepseek_message.txt",
	VariantBazinga: "bazinga_message.txt",
	VariantLegacy:  "latest_deepseek_message.txt",
}

// ParseVariant maps a variant name to a Variant. The empty string is main.
func ParseVariant(s string) (Variant, error) {
	if s == "" {
		return VariantMain, nil
	}
	v := Variant(s)
	if _, ok := variantFiles[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
	return v, nil
}

// Store is the file-based artifact store rooted at a data directory.
// Every write replaces the whole file through a temp file and rename, so a
// reader sees either the old or the new content.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.root, analysisDir, id+".json")
}

func (s *Store) markdownPath(id string) string {
	return filepath.Join(s.root, analysisDir, id+".md")
}

func (s *Store) rawPath(tool model.Tool, id string) string {
	return filepath.Join(s.root, analysisDir, fmt.Sprintf("%s-%s.json", tool, id))
}

func (s *Store) messagePath(v Variant) string {
	return filepath.Join(s.root, messagesDir, variantFiles[v])
}

// SaveRecord writes the record under its identifier and, when alias is set,
// under the latest alias as well.
func (s *Store) SaveRecord(rec model.AnalysisRecord, alias bool) error {
	if err := ValidIdentifier(rec.CommitID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.CommitID, err)
	}
	data = append(data, '\n')

	if err := writeAtomic(s.recordPath(rec.CommitID), data); err != nil {
		return err
	}
	if alias && rec.CommitID != LatestID {
		if err := writeAtomic(s.recordPath(LatestID), data); err != nil {
			return err
		}
	}
	return nil
}

// LoadRecord reads the record for id. A missing file is ErrNotFound.
func (s *Store) LoadRecord(id string) (model.AnalysisRecord, error) {
	var rec model.AnalysisRecord
	if err := ValidIdentifier(id); err != nil {
		return rec, err
	}
	data, err := readFile(s.recordPath(id))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, nil
}

// RecordBytes returns the persisted record for id exactly as stored.
func (s *Store) RecordBytes(id string) ([]byte, error) {
	if err := ValidIdentifier(id); err != nil {
		return nil, err
	}
	return readFile(s.recordPath(id))
}

func (s *Store) SaveMarkdown(id, md string) error {
	if err := ValidIdentifier(id); err != nil {
		return err
	}
	return writeAtomic(s.markdownPath(id), []byte(md))
}

// SaveRaw persists one scanner's raw report for id.
func (s *Store) SaveRaw(tool model.Tool, id string, data []byte) error {
	if err := ValidIdentifier(id); err != nil {
		return err
	}
	return writeAtomic(s.rawPath(tool, id), data)
}

func (s *Store) LoadRaw(tool model.Tool, id string) ([]byte, error) {
	if err := ValidIdentifier(id); err != nil {
		return nil, err
	}
	return readFile(s.rawPath(tool, id))
}

func (s *Store) SaveMessage(v Variant, text string) error {
	if _, ok := variantFiles[v]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	return writeAtomic(s.messagePath(v), []byte(text))
}

// LoadMessage returns the stored narrative for v, or ErrNotFound.
func (s *Store) LoadMessage(v Variant) (string, error) {
	if _, ok := variantFiles[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	data, err := readFile(s.messagePath(v))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
