package state

import (
	"errors"
	"path/filepath"
	"strings"
)

const markerFile = "last_processed_commit.txt"

// Tracker persists the last fully processed identifier. It only saves work:
// rerunning the pipeline for the same identifier must be safe regardless.
type Tracker struct {
	path string
}

func NewTracker(root string) *Tracker {
	return &Tracker{path: filepath.Join(root, markerFile)}
}

// LastProcessed returns the stored identifier. A missing marker is not an
// error and reports ok == false.
func (t *Tracker) LastProcessed() (id string, ok bool, err error) {
	data, err := readFile(t.path)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	id = strings.TrimSpace(string(data))
	return id, id != "", nil
}

func (t *Tracker) MarkProcessed(id string) error {
	if err := ValidIdentifier(id); err != nil {
		return err
	}
	return writeAtomic(t.path, []byte(id+"\n"))
}

// ShouldRun is true unless id was the last processed identifier. Read
// failures err on the side of running.
func (t *Tracker) ShouldRun(id string) bool {
	last, ok, err := t.LastProcessed()
	if err != nil || !ok {
		return true
	}
	return last != id
}
