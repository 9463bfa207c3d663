// Package audit implements the append-only, hash-chained audit log that records
// every mutation of an authorization request.
//
// Each entry's integrity hash covers its own content and the hash of the entry
// before it, so any retroactive edit, deletion or reordering is detected by Verify.
package audit

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalamgit143/validAIte-sub004/pkg/canonicalize"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// GenesisHash is the prev_hash of the first entry of every chain.
var GenesisHash = canonicalize.HashPrefix + strings.Repeat("0", 64)

// Actions recorded by the authorization workflow.
const (
	ActionRequestCreated      = "Authorization Request Created"
	ActionSubmittedForReview  = "Authorization Submitted For Review"
	ActionStakeholderApproved = "Stakeholder Approved"
	ActionStakeholderRejected = "Stakeholder Rejected"
	ActionStakeholderRecused  = "Stakeholder Recused"
	ActionConditionVerified   = "Deployment Condition Verified"
	ActionConditionReopened   = "Deployment Condition Reopened"
	ActionDecisionFinalized   = "Authorization Decision Finalized"
	ActionCertificateIssued   = "Authorization Certificate Issued"
)

// Entry is a single immutable record in the chain.
//
//nolint:govet // fieldalignment: field order mirrors the export format
type Entry struct {
	ID            string         `json:"id"`
	Sequence      uint64         `json:"sequence"`
	Timestamp     time.Time      `json:"timestamp"`
	Action        string         `json:"action"`
	Actor         string         `json:"actor"`
	ActorRole     string         `json:"actor_role"`
	Details       map[string]any `json:"details,omitempty"`
	PrevHash      string         `json:"prev_hash"`
	IntegrityHash string         `json:"integrity_hash"`
}

// Chain is the audit log of one authorization request. The zero value is an
// empty chain ready for use. Chain is not safe for concurrent use; callers
// serialize appends under the request lock.
type Chain struct {
	entries []Entry
	clock   func() time.Time
}

// SetClock overrides the timestamp source for deterministic testing.
func (c *Chain) SetClock(clock func() time.Time) {
	c.clock = clock
}

func (c *Chain) now() time.Time {
	if c.clock != nil {
		return c.clock().UTC()
	}
	return time.Now().UTC()
}

// Append adds an entry linked to the current head and returns it.
func (c *Chain) Append(action, actor, actorRole string, details map[string]any) (Entry, error) {
	if action == "" {
		return Entry{}, &contracts.ValidationError{Field: "action", Reason: "required"}
	}
	if len(details) == 0 {
		details = nil
	} else {
		details = maps.Clone(details)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, fmt.Errorf("audit: id generation failed: %w", err)
	}

	entry := Entry{
		ID:        id.String(),
		Sequence:  uint64(len(c.entries)) + 1,
		Timestamp: c.now(),
		Action:    action,
		Actor:     actor,
		ActorRole: actorRole,
		Details:   details,
		PrevHash:  c.Head(),
	}

	hash, err := ComputeHash(entry)
	if err != nil {
		return Entry{}, err
	}
	entry.IntegrityHash = hash
	c.entries = append(c.entries, entry)
	return entry, nil
}

// Head returns the integrity hash of the last entry, or GenesisHash.
func (c *Chain) Head() string {
	if len(c.entries) == 0 {
		return GenesisHash
	}
	return c.entries[len(c.entries)-1].IntegrityHash
}

// Len returns the number of entries.
func (c *Chain) Len() int {
	return len(c.entries)
}

// Entries returns a copy of all entries in append order.
func (c *Chain) Entries() []Entry {
	return c.Since(0)
}

// Since returns a copy of the entries appended after the first n.
func (c *Chain) Since(n int) []Entry {
	if n >= len(c.entries) {
		return []Entry{}
	}
	out := make([]Entry, len(c.entries)-n)
	for i, e := range c.entries[n:] {
		e.Details = maps.Clone(e.Details)
		out[i] = e
	}
	return out
}

// Verify recomputes the whole chain.
func (c *Chain) Verify() error {
	return Verify(c.entries)
}

// MarshalJSON encodes the chain as an ordered array of entries.
func (c Chain) MarshalJSON() ([]byte, error) {
	if c.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.entries)
}

// UnmarshalJSON decodes an ordered array of entries. It does not verify.
func (c *Chain) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	c.entries = entries
	return nil
}

// FromEntries builds a chain over previously exported entries.
func FromEntries(entries []Entry) *Chain {
	return &Chain{entries: append([]Entry(nil), entries...)}
}

// hashable is the preimage of an entry's integrity hash. Details are hashed in
// canonical form so map ordering and number encoding never affect the digest.
type hashable struct {
	ID        string         `json:"id"`
	PrevHash  string         `json:"prev_hash"`
	Sequence  uint64         `json:"sequence"`
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	ActorRole string         `json:"actor_role"`
	Details   map[string]any `json:"details"`
}

// ComputeHash returns the integrity hash of e given its PrevHash.
func ComputeHash(e Entry) (string, error) {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	h, err := canonicalize.PrefixedHash(hashable{
		ID:        e.ID,
		PrevHash:  e.PrevHash,
		Sequence:  e.Sequence,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:    e.Action,
		Actor:     e.Actor,
		ActorRole: e.ActorRole,
		Details:   details,
	})
	if err != nil {
		return "", fmt.Errorf("audit: failed to hash entry %d: %w", e.Sequence, err)
	}
	return h, nil
}

// Verify replays entries from the genesis seed and fails on the first
// discontinuity, sequence gap or hash mismatch.
func Verify(entries []Entry) error {
	expectedPrev := GenesisHash
	for i, entry := range entries {
		if entry.Sequence != uint64(i)+1 {
			return &contracts.IntegrityError{Index: i,
				Reason: fmt.Sprintf("sequence %d, expected %d", entry.Sequence, i+1)}
		}
		if entry.PrevHash != expectedPrev {
			return &contracts.IntegrityError{Index: i,
				Reason: fmt.Sprintf("prev_hash %s, expected %s", entry.PrevHash, expectedPrev)}
		}
		computed, err := ComputeHash(entry)
		if err != nil {
			return &contracts.IntegrityError{Index: i, Reason: err.Error()}
		}
		if computed != entry.IntegrityHash {
			return &contracts.IntegrityError{Index: i,
				Reason: fmt.Sprintf("integrity_hash mismatch (computed %s, stored %s)", computed, entry.IntegrityHash)}
		}
		expectedPrev = entry.IntegrityHash
	}
	return nil
}
