package draft

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/debemdeboas/composer/internal/model"
)

// FSStore keeps one file per slot under <dir>/<draft-id>/.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		dir = "./drafts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating draft directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

var fsSlotFiles = map[Slot]string{
	SlotTitle:    "title.txt",
	SlotBodyHTML: "body.html",
	SlotBodyJSON: "body.json",
}

func (r *FSStore) draftDir(id model.DraftID) (string, error) {
	if !id.Valid() {
		return "", fmt.Errorf("invalid draft id %q", id)
	}
	return filepath.Join(r.dir, string(id)), nil
}

func (r *FSStore) Load(ctx context.Context, id model.DraftID) (model.Draft, bool, error) {
	dir, err := r.draftDir(id)
	if err != nil {
		return model.Draft{}, false, persistErr("load", id, err)
	}

	var s slots
	for slot, name := range fsSlotFiles {
		if err := ctx.Err(); err != nil {
			return model.Draft{}, false, persistErr("load", id, err)
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return model.Draft{}, false, persistErr("load", id, err)
		}
		s.set(slot, data)
	}

	d, found := s.draft(id)
	return d, found, nil
}

// Save writes every slot to a temp file first and only renames once all writes
// succeeded, so a failed body save never leaves HTML and JSON out of step.
func (r *FSStore) Save(ctx context.Context, id model.DraftID, patch Patch) error {
	if patch.Empty() {
		return nil
	}
	dir, err := r.draftDir(id)
	if err != nil {
		return persistErr("save", id, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistErr("save", id, err)
	}

	staged := make(map[string]string)
	defer func() {
		for tmp := range staged {
			os.Remove(tmp)
		}
	}()

	for slot, value := range patch.values() {
		if err := ctx.Err(); err != nil {
			return persistErr("save", id, err)
		}
		tmp, err := writeTemp(dir, value)
		if err != nil {
			return persistErr("save", id, err)
		}
		staged[tmp] = filepath.Join(dir, fsSlotFiles[slot])
	}

	for tmp, final := range staged {
		if err := os.Rename(tmp, final); err != nil {
			return persistErr("save", id, err)
		}
		delete(staged, tmp)
	}

	storeLogger.Debug().Str("draft_id", string(id)).Str("dir", dir).Msg("Draft saved")
	return nil
}

func writeTemp(dir string, value []byte) (string, error) {
	f, err := os.CreateTemp(dir, ".slot-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (r *FSStore) Clear(_ context.Context, id model.DraftID) error {
	dir, err := r.draftDir(id)
	if err != nil {
		return persistErr("clear", id, err)
	}
	return persistErr("clear", id, os.RemoveAll(dir))
}
