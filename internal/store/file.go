package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const fileMode = 0o644

// FileBackend keeps the table as one JSON document and replaces it
// atomically on every save.
type FileBackend struct {
	path string
	log  *slog.Logger
}

func NewFileBackend(path string, log *slog.Logger) *FileBackend {
	return &FileBackend{path: path, log: log}
}

// Load returns an empty table when the document is missing or is not a JSON
// object. Records are decoded one by one, so a malformed record is kept as
// raw bytes and does not hide the others.
func (b *FileBackend) Load(ctx context.Context) (Table, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(Table), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var doc map[string]json.RawMessage
	if err = json.Unmarshal(data, &doc); err != nil {
		b.log.WarnContext(ctx, "User table is corrupt, starting empty",
			"error", err,
			"path", b.path)

		return make(Table), nil
	}

	table := make(Table, len(doc))
	for key, raw := range doc {
		rec, decodeErr := DecodeRecord(raw)
		if decodeErr != nil {
			b.log.WarnContext(ctx, "User record is corrupt",
				"error", decodeErr,
				"userID", key)
		}

		table[key] = rec
	}

	return table, nil
}

func (b *FileBackend) Save(_ context.Context, table Table) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal table: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		return errors.Join(fmt.Errorf("write temp file: %w", err), tmp.Close(), os.Remove(tmpPath))
	}
	if err = tmp.Sync(); err != nil {
		return errors.Join(fmt.Errorf("sync temp file: %w", err), tmp.Close(), os.Remove(tmpPath))
	}
	if err = tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("close temp file: %w", err), os.Remove(tmpPath))
	}
	if err = os.Chmod(tmpPath, fileMode); err != nil {
		return errors.Join(fmt.Errorf("chmod temp file: %w", err), os.Remove(tmpPath))
	}

	if err = os.Rename(tmpPath, b.path); err != nil {
		return errors.Join(fmt.Errorf("rename temp file: %w", err), os.Remove(tmpPath))
	}

	return nil
}
