package caigo

import "sync"

// Candidate is one alternative text realization of a turn.
type Candidate struct {
	// ID is the backend-assigned candidate identifier.
	ID string
	// Text is the candidate payload.
	Text string
}

// Turn is one exchange step in a chat: a single author's contribution with
// one or more candidate phrasings. Exactly one candidate is primary at any
// time; selection is an index into the candidate sequence, never a copy.
type Turn struct {
	// ID is the backend-assigned turn identifier.
	ID string
	// ChatID is the chat this turn belongs to.
	ChatID string
	// AuthorID identifies the turn's author.
	AuthorID string
	// AuthorName is the author's display name.
	AuthorName string
	// IsHuman reports whether the author is the user rather than a character.
	IsHuman bool

	mu         sync.RWMutex
	candidates []Candidate
	primary    int
}

// Candidates returns the turn's candidates in backend delivery order.
func (t *Turn) Candidates() []Candidate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Candidate, len(t.candidates))
	copy(out, t.candidates)
	return out
}

// PrimaryCandidate returns the candidate currently flagged primary.
// Decoding guarantees every surfaced turn has one; ErrNoPrimaryCandidate is
// a defensive check for an unreachable state.
func (t *Turn) PrimaryCandidate() (*Candidate, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.primary < 0 || t.primary >= len(t.candidates) {
		return nil, ErrNoPrimaryCandidate
	}
	c := t.candidates[t.primary]
	return &c, nil
}

// Select re-flags the named candidate as primary, un-flagging the previous
// one. Other candidates are untouched. Returns ErrCandidateNotFound if the
// id does not belong to this turn; selection is then left unchanged.
func (t *Turn) Select(candidateID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.candidates {
		if c.ID == candidateID {
			t.primary = i
			return nil
		}
	}
	return ErrCandidateNotFound
}
