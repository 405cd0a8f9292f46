// Package candidates merges a username source and a password source into
// an ordered, lazy, resumable sequence of credential pairs.
package candidates

import (
	"sync"

	"github.com/eshanized/ERPCT/internal/models"
)

// Source is an index-addressable, finite sequence of words. The rule
// generator and plain slices both satisfy it. At returns false past the
// end of the sequence or for positions the source elides.
type Source interface {
	Len() int64
	At(i int64) (string, bool)
}

// SliceSource adapts an in-memory word list to a Source.
type SliceSource []string

// Len returns the number of words.
func (s SliceSource) Len() int64 { return int64(len(s)) }

// At returns the word at index i.
func (s SliceSource) At(i int64) (string, bool) {
	if i < 0 || i >= int64(len(s)) {
		return "", false
	}
	return s[i], true
}

// Ordering selects which dimension the stream exhausts first.
type Ordering int

const (
	// UsernameFirst fixes a username and exhausts all passwords before
	// advancing to the next username.
	UsernameFirst Ordering = iota
	// PasswordFirst fixes a password and exhausts all usernames before
	// advancing to the next password.
	PasswordFirst
)

// Stream produces every username x password combination exactly once, in
// a deterministic order, with O(1) cursor seek. Access is serialized so a
// pool of consumers sees each pair exactly once.
type Stream struct {
	usernames Source
	passwords Source
	ordering  Ordering

	mu   sync.Mutex
	uIdx int64
	pIdx int64
}

// New creates a stream over the two sources.
func New(usernames, passwords Source, ordering Ordering) *Stream {
	return &Stream{usernames: usernames, passwords: passwords, ordering: ordering}
}

// Len returns the total number of pair positions (U x P).
func (s *Stream) Len() int64 {
	return s.usernames.Len() * s.passwords.Len()
}

// Next returns the next credential pair, or false when the stream is
// exhausted. Pair positions whose password was elided by its source (for
// example a candidate dropped by a rule guard) are skipped.
func (s *Stream) Next() (models.CredentialPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.exhausted() {
		username, uok := s.usernames.At(s.uIdx)
		password, pok := s.passwords.At(s.pIdx)
		index := s.linearIndex()
		s.advance()
		if uok && pok {
			return models.CredentialPair{Username: username, Password: password, Index: index}, true
		}
	}
	return models.CredentialPair{}, false
}

// Cursor returns the current (usernameIndex, passwordIndex) position.
func (s *Stream) Cursor() (int64, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uIdx, s.pIdx
}

// Seek positions the stream at an explicit cursor without re-deriving
// earlier pairs. O(1): both sources are index-addressable.
func (s *Stream) Seek(usernameIndex, passwordIndex int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uIdx = usernameIndex
	s.pIdx = passwordIndex
}

// LinearIndex returns the current position as a flat pair index.
func (s *Stream) LinearIndex() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linearIndex()
}

// SeekLinear positions the stream at a flat pair index.
func (s *Stream) SeekLinear(i int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, p := s.usernames.Len(), s.passwords.Len()
	if u == 0 || p == 0 {
		return
	}
	switch s.ordering {
	case UsernameFirst:
		s.uIdx = i / p
		s.pIdx = i % p
	case PasswordFirst:
		s.pIdx = i / u
		s.uIdx = i % u
	}
}

func (s *Stream) linearIndex() int64 {
	switch s.ordering {
	case UsernameFirst:
		return s.uIdx*s.passwords.Len() + s.pIdx
	case PasswordFirst:
		return s.pIdx*s.usernames.Len() + s.uIdx
	}
	return 0
}

func (s *Stream) exhausted() bool {
	if s.usernames.Len() == 0 || s.passwords.Len() == 0 {
		return true
	}
	switch s.ordering {
	case UsernameFirst:
		return s.uIdx >= s.usernames.Len()
	case PasswordFirst:
		return s.pIdx >= s.passwords.Len()
	}
	return true
}

func (s *Stream) advance() {
	switch s.ordering {
	case UsernameFirst:
		s.pIdx++
		if s.pIdx >= s.passwords.Len() {
			s.pIdx = 0
			s.uIdx++
		}
	case PasswordFirst:
		s.uIdx++
		if s.uIdx >= s.usernames.Len() {
			s.uIdx = 0
			s.pIdx++
		}
	}
}
