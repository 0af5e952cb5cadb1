package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"swapCore/internal/model"
)

// JsonlStorage appends audit records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) Path() string {
	return s.path
}

// PutAuditBatch appends a batch of audit records as JSON lines.
func (s *JsonlStorage) PutAuditBatch(records []model.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal audit record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write audit record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// ReadAudit streams the records after seq in file order. fn returning an
// error stops the scan. A missing file yields no records.
func ReadAudit(path string, afterSeq uint64, fn func(model.AuditRecord) error) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	lineNo := 0
	for {
		line, err := reader.ReadBytes('\n')
		lineNo++
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var record model.AuditRecord
			if uerr := json.Unmarshal(trimmed, &record); uerr != nil {
				return fmt.Errorf("decode audit line %d: %w", lineNo, uerr)
			}
			if record.Seq > afterSeq {
				if ferr := fn(record); ferr != nil {
					return ferr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read audit log: %w", err)
		}
	}
}
