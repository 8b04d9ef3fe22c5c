package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Snapshot is a full pre-mutation copy of every record a run is about to
// touch. It is written strictly before any patch is applied and is the sole
// input to an undo.
type Snapshot struct {
	Collection string    `json:"collection"`
	Timestamp  time.Time `json:"timestamp"`
	Records    []Record  `json:"records"`
}

// Validate checks that the snapshot carries everything an undo needs.
func (s *Snapshot) Validate() error {
	if strings.TrimSpace(s.Collection) == "" {
		return errors.New("snapshot collection identity is required")
	}
	if s.Timestamp.IsZero() {
		return errors.New("snapshot timestamp is required")
	}
	if s.Records == nil {
		return errors.New("snapshot records cannot be nil")
	}
	for i := range s.Records {
		if s.Records[i].ID == 0 {
			return fmt.Errorf("snapshot record at index %d has no id", i)
		}
	}
	return nil
}

// RecordCount returns the number of captured records.
func (s *Snapshot) RecordCount() int {
	return len(s.Records)
}

// RecordByID returns the captured record with the given id, or nil.
func (s *Snapshot) RecordByID(id int) *Record {
	for i := range s.Records {
		if s.Records[i].ID == id {
			return &s.Records[i]
		}
	}
	return nil
}

// Clone creates a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	clone := &Snapshot{Collection: s.Collection, Timestamp: s.Timestamp}
	if s.Records != nil {
		clone.Records = make([]Record, len(s.Records))
		for i := range s.Records {
			clone.Records[i] = *s.Records[i].Clone()
		}
	}
	return clone
}

// String returns a string representation of the snapshot.
func (s *Snapshot) String() string {
	return fmt.Sprintf("%s snapshot of %d records (%s)",
		s.Collection, len(s.Records), s.Timestamp.Format(time.RFC3339))
}
