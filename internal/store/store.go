package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/robertos-pos/bc-bridge/internal/model"
)

// StateFileName is the single document the aggregate is mirrored to.
const StateFileName = "pos-state.json"

// Broadcaster receives the full post-mutation state after every
// successful mutation. The hub implements it; tests substitute a
// recorder.
type Broadcaster interface {
	Broadcast(model.PosState)
}

// Store is the sole owner of the POS aggregate. Every mutation runs
// under the mutex, so the sequence mutate, persist, broadcast is
// atomic with respect to other mutations; clients only ever receive
// deep copies, never references into the aggregate.
type Store struct {
	mu    sync.Mutex
	path  string
	state model.PosState
	bc    Broadcaster
}

// Open loads the persisted document from dir (creating dir if absent)
// and returns a ready store. A missing or unparseable document falls
// back to the default state; corruption must never prevent startup.
func Open(dir string, bc Broadcaster) *Store {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[store] mkdir %s: %v", dir, err)
	}
	s := &Store{
		path:  filepath.Join(dir, StateFileName),
		state: model.DefaultState(),
		bc:    bc,
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[store] read state: %v", err)
		}
		return s
	}
	var loaded model.PosState
	if err := json.Unmarshal(raw, &loaded); err != nil {
		log.Printf("[store] state file corrupt, starting fresh: %v", err)
		return s
	}
	// Absent collections keep their defaults, matching the partial
	// overlay the bridge has always done on load.
	if loaded.Tables != nil {
		s.state.Tables = loaded.Tables
	}
	if loaded.Tickets != nil {
		s.state.Tickets = loaded.Tickets
	}
	if loaded.UpdatedAt != "" {
		s.state.UpdatedAt = loaded.UpdatedAt
	}
	return s
}

// State returns a deep copy of the current aggregate.
func (s *Store) State() model.PosState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Snapshot is the wire form of a wholesale replacement: whichever of
// the two collections is present (and array-typed, enforced by the
// decoder) replaces the stored one; absent fields are left untouched.
type Snapshot struct {
	Tables  []model.Table  `json:"tables"`
	Tickets []model.Ticket `json:"tickets"`
}

// ReplaceSnapshot applies a wholesale replacement, persists, and
// broadcasts. It never fails: malformed fields were already discarded
// by decoding, and a snapshot with neither collection still counts as
// a (no-field) mutation, matching the bridge's historical behavior.
func (s *Store) ReplaceSnapshot(snap Snapshot) {
	s.mu.Lock()
	if snap.Tables != nil {
		s.state.Tables = snap.Tables
	}
	if snap.Tickets != nil {
		s.state.Tickets = snap.Tickets
	}
	s.saveLocked()
	state := s.state.Clone()
	s.mu.Unlock()
	s.broadcast(state)
}

// DecodeSnapshot reads a snapshot body, dropping any field that is
// not array-typed rather than failing the whole request.
func DecodeSnapshot(raw []byte) Snapshot {
	var probe struct {
		Tables  json.RawMessage `json:"tables"`
		Tickets json.RawMessage `json:"tickets"`
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &probe); err != nil {
		return snap
	}
	if len(probe.Tables) > 0 {
		var tables []model.Table
		if err := json.Unmarshal(probe.Tables, &tables); err == nil && tables != nil {
			snap.Tables = tables
		}
	}
	if len(probe.Tickets) > 0 {
		var tickets []model.Ticket
		if err := json.Unmarshal(probe.Tickets, &tickets); err == nil && tickets != nil {
			snap.Tickets = tickets
		}
	}
	return snap
}

// CreateTicket prepends a ticket (newest-first), assigning a
// time-derived id and creation timestamp when the client omitted
// them. Returns the id actually stored.
func (s *Store) CreateTicket(t model.Ticket) string {
	s.mu.Lock()
	if t.ID == "" {
		t.ID = strconv.FormatInt(time.Now().UnixMilli(), 10)
		// Guard against two id-less tickets landing in the same
		// millisecond: ids must be unique among live tickets.
		for s.hasTicketLocked(t.ID) {
			t.ID += "0"
		}
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if t.Status == "" {
		t.Status = model.TicketNew
	}
	if t.Items == nil {
		t.Items = []model.TicketItem{}
	}
	s.state.Tickets = append([]model.Ticket{t}, s.state.Tickets...)
	s.saveLocked()
	state := s.state.Clone()
	s.mu.Unlock()
	s.broadcast(state)
	return t.ID
}

// UpdateTicketStatus sets the status of the ticket with the given id.
// On a miss nothing is persisted and nothing is broadcast.
func (s *Store) UpdateTicketStatus(id, status string) error {
	s.mu.Lock()
	idx := -1
	for i := range s.state.Tickets {
		if s.state.Tickets[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrTicketNotFound
	}
	s.state.Tickets[idx].Status = status
	s.saveLocked()
	state := s.state.Clone()
	s.mu.Unlock()
	s.broadcast(state)
	return nil
}

// DeleteTicket removes every ticket matching id. Deleting a ticket
// that is already gone is a no-op that still succeeds; the delete is
// idempotent by contract.
func (s *Store) DeleteTicket(id string) {
	s.mu.Lock()
	kept := s.state.Tickets[:0]
	for _, t := range s.state.Tickets {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.state.Tickets = kept
	s.saveLocked()
	state := s.state.Clone()
	s.mu.Unlock()
	s.broadcast(state)
}

// PatchTable shallow-merges the raw JSON body onto the table with the
// given id: fields present in the body overwrite, absent fields are
// kept. Returns the merged table.
func (s *Store) PatchTable(id int, patch []byte) (model.Table, error) {
	s.mu.Lock()
	idx := -1
	for i := range s.state.Tables {
		if s.state.Tables[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return model.Table{}, ErrTableNotFound
	}
	// Merge into a deep copy so a malformed body leaves the stored
	// record byte-for-byte unchanged; decoding in place through the
	// struct copy would still write array elements into the stored
	// record's backing arrays. An array field named by the body also
	// replaces the stored one wholesale, never element-wise.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		s.mu.Unlock()
		return model.Table{}, ErrBadPatch
	}
	merged := s.state.Tables[idx].Clone()
	if _, ok := fields["cart"]; ok {
		merged.Cart = nil
	}
	if _, ok := fields["splits"]; ok {
		merged.Splits = nil
	}
	if err := json.Unmarshal(patch, &merged); err != nil {
		s.mu.Unlock()
		return model.Table{}, ErrBadPatch
	}
	merged.ID = id // the path wins over any id smuggled into the body
	s.state.Tables[idx] = merged
	s.saveLocked()
	state := s.state.Clone()
	table := state.Tables[idx]
	s.mu.Unlock()
	s.broadcast(state)
	return table, nil
}

// saveLocked stamps updatedAt and overwrites the document. Failures
// are logged and swallowed: the in-memory copy stays authoritative
// for the running process even when the disk write fails.
func (s *Store) saveLocked() {
	s.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		log.Printf("[store] marshal state: %v", err)
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		log.Printf("[store] save state: %v", err)
	}
}

func (s *Store) hasTicketLocked(id string) bool {
	for i := range s.state.Tickets {
		if s.state.Tickets[i].ID == id {
			return true
		}
	}
	return false
}

func (s *Store) broadcast(state model.PosState) {
	if s.bc != nil {
		s.bc.Broadcast(state)
	}
}
