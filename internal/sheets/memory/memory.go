// Package memory is the journal used when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "ledgerdesk/internal/sheets"
)

type Journal struct {
	mu   sync.Mutex
	rows []ports.JournalRow
}

var _ ports.JournalWriter = (*Journal)(nil)

func New() *Journal {
	return &Journal{}
}

// AppendRows stores the rows and returns a synthetic range reference.
func (j *Journal) AppendRows(_ context.Context, rows []ports.JournalRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	first := len(j.rows) + 1
	j.rows = append(j.rows, rows...)
	return fmt.Sprintf("mem:%d-%d", first, len(j.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (j *Journal) Rows() []ports.JournalRow {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]ports.JournalRow(nil), j.rows...)
}

// DocumentRows returns the rows exported for one document.
func (j *Journal) DocumentRows(documentID string) []ports.JournalRow {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []ports.JournalRow
	for _, r := range j.rows {
		if r.DocumentID == documentID {
			out = append(out, r)
		}
	}
	return out
}
