package record

import (
	"encoding/json"
	"strings"
	"time"
)

// Entry is one keyed value in the record store.
type Entry struct {
	Key       string            `json:"key"`
	Value     json.RawMessage   `json:"value"`
	Metadata  map[string]string `json:"metadata"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// Live reports whether the entry is still logically present at now.
func (e Entry) Live(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

type SaveOptions struct {
	// TTL of zero means the entry never expires.
	TTL      time.Duration
	Metadata map[string]string
	// Create makes Save fail with ErrExists instead of overwriting a live entry.
	Create bool
}

type Query struct {
	Prefix   string
	Metadata map[string]string
	// From is an inclusive lower bound on the key; empty means unbounded.
	From string
	// Desc orders by key descending. Limit then keeps the highest keys,
	// which for timestamped keys are the newest.
	Desc bool
	// Limit <= 0 means no limit.
	Limit int
}

// Matches reports whether key and metadata satisfy the prefix, the lower
// bound and every metadata field of q.
func (q Query) Matches(key string, md map[string]string) bool {
	if !strings.HasPrefix(key, q.Prefix) {
		return false
	}
	if q.From != "" && key < q.From {
		return false
	}
	for k, v := range q.Metadata {
		got, ok := md[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// ExpiresAt returns the retention deadline for a save at now.
func (o SaveOptions) ExpiresAt(now time.Time) *time.Time {
	if o.TTL <= 0 {
		return nil
	}
	t := now.Add(o.TTL)
	return &t
}
