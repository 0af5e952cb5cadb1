package storage

import "swapCore/internal/model"

// Storage defines a sink for audit records.
type Storage interface {
	PutAuditBatch(records []model.AuditRecord) error
}

// Multi fans a batch out to every sink, stopping at the first failure.
type Multi []Storage

func (m Multi) PutAuditBatch(records []model.AuditRecord) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.PutAuditBatch(records); err != nil {
			return err
		}
	}
	return nil
}

// Buffer holds audit batches until the state they describe is persisted.
type Buffer struct {
	records []model.AuditRecord
}

func (b *Buffer) PutAuditBatch(records []model.AuditRecord) error {
	b.records = append(b.records, records...)
	return nil
}

// Len reports how many records are waiting.
func (b *Buffer) Len() int {
	return len(b.records)
}

// Flush writes every held record to dst in one batch. The buffer is emptied
// only when dst accepts it.
func (b *Buffer) Flush(dst Storage) error {
	if len(b.records) == 0 {
		return nil
	}
	if err := dst.PutAuditBatch(b.records); err != nil {
		return err
	}
	b.records = nil
	return nil
}

// Reset drops held records.
func (b *Buffer) Reset() {
	b.records = nil
}
