// Package snapshot persists exchange state between CLI invocations.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"swapCore/internal/exchange"
)

// Store loads and saves the exchange state.
type Store interface {
	Load(ctx context.Context) (*exchange.State, bool, error)
	Save(ctx context.Context, st *exchange.State) error
}

const formatVersion = 1

type envelope struct {
	Version   int             `json:"version"`
	UpdatedAt string          `json:"updated_at"`
	State     json.RawMessage `json:"state"`
}

// Encode wraps st in the versioned snapshot envelope.
func Encode(st *exchange.State) ([]byte, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return json.MarshalIndent(envelope{
		Version:   formatVersion,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		State:     raw,
	}, "", "  ")
}

// Decode unwraps and validates a snapshot.
func Decode(data []byte) (*exchange.State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if env.Version != formatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", env.Version)
	}
	var st exchange.State
	if err := json.Unmarshal(env.State, &st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("validate state: %w", err)
	}
	return &st, nil
}

// FileStore keeps the snapshot in a local JSON file, replaced atomically.
type FileStore struct {
	Path string
}

func (s *FileStore) Load(ctx context.Context) (*exchange.State, bool, error) {
	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat snapshot: %w", err)
	}
	if stat.IsDir() {
		return nil, false, fmt.Errorf("snapshot path is a directory")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	st, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *FileStore) Save(ctx context.Context, st *exchange.State) error {
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	data, err := Encode(st)
	if err != nil {
		return err
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Blobs is the raw persistence DBStore writes through.
type Blobs interface {
	LoadSnapshot(ctx context.Context, name string) ([]byte, bool, error)
	SaveSnapshot(ctx context.Context, name string, data []byte) error
}

// DBStore keeps the snapshot in a database row keyed by Name.
type DBStore struct {
	Blobs Blobs
	Name  string
}

func (s *DBStore) Load(ctx context.Context) (*exchange.State, bool, error) {
	data, ok, err := s.Blobs.LoadSnapshot(ctx, s.Name)
	if err != nil || !ok {
		return nil, ok, err
	}
	st, err := Decode(data)
	if err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *DBStore) Save(ctx context.Context, st *exchange.State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	return s.Blobs.SaveSnapshot(ctx, s.Name, data)
}
