package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Store is the durable id -> Alert mapping. Implementations hold no
// business logic; loads and saves are atomic with respect to process crash.
type Store interface {
	Load(ctx context.Context) (map[string]*Alert, error)
	Save(ctx context.Context, alerts map[string]*Alert) error
}

// storedAlert mirrors Alert with pointer fields where older store versions
// may lack the value, so migration defaults can be told apart from zeroes
type storedAlert struct {
	ID             string                 `json:"id"`
	Symbol         string                 `json:"symbol"`
	Kind           string                 `json:"kind"`
	Condition      string                 `json:"condition"`
	Description    string                 `json:"description"`
	Parameters     map[string]interface{} `json:"parameters,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	Enabled        *bool                  `json:"enabled"`
	OneTime        *bool                  `json:"one_time"`
	TriggeredCount int                    `json:"triggered_count"`
	LastTriggered  *time.Time             `json:"last_triggered,omitempty"`
}

// FileStore persists alerts as a single JSON document. Writes go to a
// temp file in the same directory followed by an atomic rename, so a
// reader never observes a partially written store.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore creates a file-backed alert store at the given path
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "FileStore").Logger(),
	}
}

// Load reads the store from disk. Malformed records are skipped with a
// warning; missing fields are defaulted and the migrated store is written
// back once so the migration persists.
func (s *FileStore) Load(ctx context.Context) (map[string]*Alert, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]*Alert), nil
		}
		return nil, &PersistenceError{Op: "load", Err: err}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &PersistenceError{Op: "load", Err: fmt.Errorf("corrupt store file %s: %w", s.path, err)}
	}

	alerts := make(map[string]*Alert, len(raw))
	dirty := false
	for id, msg := range raw {
		a, migrated, err := decodeStoredAlert(id, msg)
		if err != nil {
			s.logger.Warn().Str("alert_id", id).Err(err).Msg("Skipping malformed alert record")
			dirty = true
			continue
		}
		if migrated {
			dirty = true
		}
		alerts[a.ID] = a
	}

	if dirty {
		if err := s.Save(ctx, alerts); err != nil {
			return nil, err
		}
		s.logger.Info().Int("alerts", len(alerts)).Msg("Rewrote alert store after migration")
	}

	return alerts, nil
}

// Save atomically replaces the store contents on disk
func (s *FileStore) Save(ctx context.Context, alerts map[string]*Alert) error {
	data, err := json.MarshalIndent(alerts, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "save", Err: err}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Op: "save", Err: err}
	}

	return nil
}

// decodeStoredAlert validates a raw record and applies migration defaults.
// The second return reports whether any default was applied.
func decodeStoredAlert(id string, msg json.RawMessage) (*Alert, bool, error) {
	var rec storedAlert
	if err := json.Unmarshal(msg, &rec); err != nil {
		return nil, false, err
	}

	if rec.ID == "" {
		rec.ID = id
	}
	if rec.Symbol == "" {
		return nil, false, errors.New("missing symbol")
	}

	kind, err := ParseKind(rec.Kind)
	if err != nil {
		return nil, false, err
	}
	cond, err := ParseCondition(rec.Condition)
	if err != nil {
		return nil, false, err
	}

	migrated := false

	enabled := true
	if rec.Enabled != nil {
		enabled = *rec.Enabled
	} else {
		migrated = true
	}

	// Older stores predate the one_time flag; those alerts were always
	// removed on first trigger, so the default is true.
	oneTime := true
	if rec.OneTime != nil {
		oneTime = *rec.OneTime
	} else {
		migrated = true
	}

	return &Alert{
		ID:             rec.ID,
		Symbol:         rec.Symbol,
		Kind:           kind,
		Condition:      cond,
		Description:    rec.Description,
		Parameters:     rec.Parameters,
		CreatedAt:      rec.CreatedAt,
		ExpiresAt:      rec.ExpiresAt,
		Enabled:        enabled,
		OneTime:        oneTime,
		TriggeredCount: rec.TriggeredCount,
		LastTriggered:  rec.LastTriggered,
	}, migrated, nil
}
