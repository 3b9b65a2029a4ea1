package vdb

import (
	"crypto/ed25519"
	"encoding/json"
	"sync"

	"github.com/zeebo/blake3"
)

// Operation discriminates a single-key write event.
type Operation string

const (
	OpSet    Operation = "set"
	OpDelete Operation = "delete"
)

// WriteEvent records one Set/Delete against the tree.
type WriteEvent struct {
	Operation     Operation `json:"operation"`
	Key           []byte    `json:"key"`
	ValueHash     Hash32    `json:"value_hash"`
	PrevEventHash Hash32    `json:"prev_event_hash"`
	StateRoot     Hash32    `json:"state_root"`
	Timestamp     uint64    `json:"timestamp"`
}

// BatchWriteEvent records a BatchSet as a single log entry rather than one
// entry per key.
type BatchWriteEvent struct {
	BatchHash     Hash32 `json:"batch_hash"`
	OpCount       uint32 `json:"op_count"`
	PrevEventHash Hash32 `json:"prev_event_hash"`
	StateRoot     Hash32 `json:"state_root"`
	Timestamp     uint64 `json:"timestamp"`
}

// eventKind tags which arm of Event is populated, so canonical JSON encoding
// stays deterministic without relying on Go's lack of tagged unions.
type eventKind string

const (
	eventKindSingle eventKind = "single"
	eventKindBatch  eventKind = "batch"
)

// Event is either a WriteEvent or a BatchWriteEvent. Exactly one of Single
// or Batch is non-nil, selected by Kind.
type Event struct {
	Kind   eventKind        `json:"kind"`
	Single *WriteEvent      `json:"single,omitempty"`
	Batch  *BatchWriteEvent `json:"batch,omitempty"`
}

// SingleEvent wraps a WriteEvent as an Event.
func SingleEvent(e WriteEvent) Event {
	return Event{Kind: eventKindSingle, Single: &e}
}

// BatchEvent wraps a BatchWriteEvent as an Event.
func BatchEvent(e BatchWriteEvent) Event {
	return Event{Kind: eventKindBatch, Batch: &e}
}

// PrevEventHash returns the chain-link hash carried by whichever event arm
// is populated.
func (e Event) PrevEventHash() Hash32 {
	if e.Single != nil {
		return e.Single.PrevEventHash
	}
	return e.Batch.PrevEventHash
}

// StateRoot returns the resulting state root carried by whichever event arm
// is populated.
func (e Event) StateRoot() Hash32 {
	if e.Single != nil {
		return e.Single.StateRoot
	}
	return e.Batch.StateRoot
}

// LogEntry is one signed, hash-chained entry in the event log.
type LogEntry struct {
	EventHash Hash32 `json:"event_hash"`
	Event     Event  `json:"event"`
	Signature []byte `json:"signature"`
}

// EventLog is an append-only, signed, hash-chained log of every write
// against the tree. Canonical event bytes are produced by encoding/json,
// which marshals struct fields in declaration order, giving a stable
// preimage for both the chain hash and the signature.
type EventLog struct {
	mu      sync.Mutex
	entries []LogEntry
	signer  ed25519.PrivateKey
}

// NewEventLog creates an empty log signed with signer.
func NewEventLog(signer ed25519.PrivateKey) *EventLog {
	return &EventLog{signer: signer}
}

// LatestHash returns the hash of the most recent entry, or the zero hash if
// the log is empty.
func (l *EventLog) LatestHash() Hash32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latestHashLocked()
}

func (l *EventLog) latestHashLocked() Hash32 {
	if len(l.entries) == 0 {
		return Hash32{}
	}
	return l.entries[len(l.entries)-1].EventHash
}

// Append canonically serializes event, hashes and signs it, and appends the
// resulting LogEntry. The caller is responsible for having set event's
// PrevEventHash to LatestHash() beforehand so the chain link is correct.
func (l *EventLog) Append(event Event) (LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return LogEntry{}, NewSerializationError("marshal event", err)
	}
	hash := blake3.Sum256(eventBytes)
	sig := ed25519.Sign(l.signer, eventBytes)
	entry := LogEntry{EventHash: hash, Event: event, Signature: sig}
	l.entries = append(l.entries, entry)
	return entry, nil
}

// Entries returns a copy of the log's entries, in append order.
func (l *EventLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// VerifyChainAndSigs checks, for every entry, that the chain link to the
// previous entry holds, the event hash matches its canonical bytes, and the
// signature over those bytes verifies under vk.
func VerifyChainAndSigs(entries []LogEntry, vk ed25519.PublicKey) bool {
	var prev Hash32
	for _, e := range entries {
		if e.Event.PrevEventHash() != prev {
			return false
		}

		eventBytes, err := json.Marshal(e.Event)
		if err != nil {
			return false
		}
		computed := blake3.Sum256(eventBytes)
		if computed != e.EventHash {
			return false
		}

		if !ed25519.Verify(vk, eventBytes, e.Signature) {
			return false
		}

		prev = e.EventHash
	}
	return true
}
