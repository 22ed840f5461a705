package domain

import (
	"sort"
	"time"
)

// Draft is the pending submission built from the name field and the reels
type Draft struct {
	Name string `json:"name"`
	A    string `json:"A"`
	B    string `json:"B"`
	C    string `json:"C"`
}

// RecordEntry is a persisted submission. ID, Timestamp and Seq are assigned by the store.
type RecordEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	A         string    `json:"A"`
	B         string    `json:"B"`
	C         string    `json:"C"`
	Timestamp time.Time `json:"timestamp"`

	// Seq is the store's insertion order, used to break timestamp ties
	Seq int64 `json:"-"`
}

// Snapshot is a fully materialized, newest-first list of records
type Snapshot []RecordEntry

// SortSnapshot orders records by timestamp descending, then by Seq descending
func SortSnapshot(records []RecordEntry) Snapshot {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].Seq > records[j].Seq
	})
	return Snapshot(records)
}

// IDs returns the record ids in snapshot order
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s))
	for _, r := range s {
		ids = append(ids, r.ID)
	}
	return ids
}

// Clone returns a copy that can be handed to another goroutine
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
