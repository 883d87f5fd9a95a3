// Package roster holds the panel's view of connected clients and the merge
// policy for lifecycle notifications.
//
// A Roster is an immutable snapshot. The Apply functions never modify their
// input; they return the snapshot that results from merging one notification
// or one tick. Callers own the current snapshot and must serialise updates.
package roster

import (
	"github.com/mobile-controller/panel/internal/ingest"
)

// UnknownDevice is shown for clients without a display name.
const UnknownDevice = "Unknown Device"

// ClientRecord is one connected peer as known to the panel.
type ClientRecord struct {
	ID          int
	Address     string
	DisplayName *string
	Elapsed     Elapsed
}

// Name returns the display name or the UnknownDevice placeholder.
func (c ClientRecord) Name() string {
	if c.DisplayName == nil || *c.DisplayName == "" {
		return UnknownDevice
	}
	return *c.DisplayName
}

// Roster is an ordered set of client records, unique by ID, in insertion
// order. The zero value is an empty roster.
type Roster struct {
	records []ClientRecord
}

// Len returns the number of records.
func (r Roster) Len() int {
	return len(r.records)
}

// Records returns a copy of the records in roster order.
func (r Roster) Records() []ClientRecord {
	out := make([]ClientRecord, len(r.records))
	copy(out, r.records)
	return out
}

// IDs returns the client IDs in roster order.
func (r Roster) IDs() []int {
	ids := make([]int, len(r.records))
	for i, rec := range r.records {
		ids[i] = rec.ID
	}
	return ids
}

// Get looks up a record by client ID.
func (r Roster) Get(id int) (ClientRecord, bool) {
	if i := r.index(id); i >= 0 {
		return r.records[i], true
	}
	return ClientRecord{}, false
}

func (r Roster) index(id int) int {
	for i, rec := range r.records {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

// ApplyAdded appends a new record with a zeroed timer. A duplicate "added"
// for an existing ID overwrites address and display name but keeps the
// record's position and timer.
func ApplyAdded(r Roster, n ingest.Added) Roster {
	if i := r.index(n.ID); i >= 0 {
		out := r.Records()
		out[i].Address = n.Address
		out[i].DisplayName = n.DisplayName
		return Roster{records: out}
	}

	out := make([]ClientRecord, len(r.records), len(r.records)+1)
	copy(out, r.records)
	out = append(out, ClientRecord{
		ID:          n.ID,
		Address:     n.Address,
		DisplayName: n.DisplayName,
	})
	return Roster{records: out}
}

// ApplyRemoved drops the record with the given ID. Unknown IDs are ignored.
func ApplyRemoved(r Roster, n ingest.Removed) Roster {
	i := r.index(n.ID)
	if i < 0 {
		return r
	}
	out := make([]ClientRecord, 0, len(r.records)-1)
	out = append(out, r.records[:i]...)
	out = append(out, r.records[i+1:]...)
	return Roster{records: out}
}

// ApplyUpdated replaces the display name of an existing record; a nil name
// clears it. Updates for unknown IDs are dropped, never queued.
func ApplyUpdated(r Roster, n ingest.Updated) Roster {
	i := r.index(n.ID)
	if i < 0 {
		return r
	}
	out := r.Records()
	out[i].DisplayName = n.DisplayName
	return Roster{records: out}
}

// ApplyTick advances every record's timer by one second.
func ApplyTick(r Roster) Roster {
	if len(r.records) == 0 {
		return r
	}
	out := r.Records()
	for i := range out {
		out[i].Elapsed = out[i].Elapsed.Next()
	}
	return Roster{records: out}
}

// Apply merges any lifecycle notification.
func Apply(r Roster, n ingest.Notification) Roster {
	switch n := n.(type) {
	case ingest.Added:
		return ApplyAdded(r, n)
	case ingest.Removed:
		return ApplyRemoved(r, n)
	case ingest.Updated:
		return ApplyUpdated(r, n)
	}
	return r
}
