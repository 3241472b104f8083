// Package vote defines the boundary between the scheduler and whatever
// actually submits a vote.
//
// A [Voter] performs one "submit and observe" action and reports the poll as
// a [Snapshot]. Everything else in rally only ever sees these types, so the
// browser automation, a scripted command or the built-in simulator are
// interchangeable.
package vote

import (
	"context"
	"strings"

	"github.com/rally-hq/rally/internal/errors"
)

//go:generate mockgen -destination=mocks/mock_voter.go -package=mocks github.com/rally-hq/rally/internal/vote Voter

// Entry is one row of the observed poll.
type Entry struct {
	Name    string  `json:"name" yaml:"name"`
	Percent float64 `json:"percent" yaml:"percent"`
}

// Snapshot is the poll as observed right after a vote, best first.
// Rank is the 1-based index of an entry.
type Snapshot []Entry

// Find returns the 1-based rank and the entry matching target. Names are
// compared case-insensitively after trimming surrounding whitespace.
func (s Snapshot) Find(target string) (rank int, entry Entry, ok bool) {
	want := normalize(target)
	for i, e := range s {
		if normalize(e.Name) == want {
			return i + 1, e, true
		}
	}
	return 0, Entry{}, false
}

// Top returns a copy of the first n entries.
func (s Snapshot) Top(n int) Snapshot {
	if n <= 0 || len(s) == 0 {
		return nil
	}
	if n > len(s) {
		n = len(s)
	}
	out := make(Snapshot, n)
	copy(out, s[:n])
	return out
}

// SameName reports whether two entry names refer to the same candidate.
func SameName(a, b string) bool {
	return normalize(a) == normalize(b)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Result is what a completed attempt reports. Success is false when the
// action ran to completion but the site rejected or did not confirm the vote.
type Result struct {
	Success  bool     `json:"success"`
	Snapshot Snapshot `json:"results"`
}

// Validate rejects a result that claims success without a snapshot. A poll
// the vote went into always lists at least one entry.
func (r Result) Validate() error {
	if r.Success && len(r.Snapshot) == 0 {
		return errors.NewVoteError("voter reported success without results", errors.ErrEmptyResults)
	}
	return nil
}

// Voter performs a single vote attempt. Any returned error is a transient
// failure: the caller logs it, waits and tries again.
type Voter interface {
	Attempt(ctx context.Context) (Result, error)
}

// VoterFunc adapts a function to the Voter interface.
type VoterFunc func(ctx context.Context) (Result, error)

// Attempt calls f(ctx).
func (f VoterFunc) Attempt(ctx context.Context) (Result, error) {
	return f(ctx)
}
