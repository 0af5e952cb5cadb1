package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CursorStore remembers the audit sequence number up to which every closed
// window has been written, so a rerun resumes after it.
type CursorStore interface {
	Load(ctx context.Context) (seq uint64, ok bool, err error)
	Save(ctx context.Context, seq uint64) error
}

// FileCursorStore keeps the cursor in a small JSON file next to the audit log.
// An empty Path disables it.
type FileCursorStore struct {
	Path string
}

type cursorFile struct {
	AuditSeq  uint64 `json:"audit_seq"`
	UpdatedAt string `json:"updated_at"`
}

func (s *FileCursorStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read aggregation cursor %s: %w", s.Path, err)
	}

	var rec cursorFile
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, false, fmt.Errorf("decode aggregation cursor %s: %w", s.Path, err)
	}
	return rec.AuditSeq, true, nil
}

// Save replaces the cursor file atomically.
func (s *FileCursorStore) Save(ctx context.Context, seq uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	data, err := json.Marshal(cursorFile{
		AuditSeq:  seq,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode aggregation cursor: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write aggregation cursor: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("commit aggregation cursor at seq %d: %w", seq, err)
	}
	return nil
}
