package caigo

import "encoding/json"

// Wire schemas for backend payloads. Every payload is decoded once, at the
// boundary, against the fields enumerated here; anything missing a required
// identifier is rejected as a DecodeError instead of failing later at first
// field access.

type wireTurnKey struct {
	ChatID string `json:"chat_id"`
	TurnID string `json:"turn_id"`
}

type wireAuthor struct {
	AuthorID string `json:"author_id"`
	Name     string `json:"name"`
	IsHuman  bool   `json:"is_human"`
}

type wireCandidate struct {
	CandidateID string `json:"candidate_id"`
	RawContent  string `json:"raw_content"`
	IsFinal     bool   `json:"is_final"`
}

type wireTurn struct {
	TurnKey            wireTurnKey     `json:"turn_key"`
	Author             wireAuthor      `json:"author"`
	Candidates         []wireCandidate `json:"candidates"`
	PrimaryCandidateID string          `json:"primary_candidate_id"`
}

type wireChat struct {
	ChatID      string `json:"chat_id"`
	CharacterID string `json:"character_id"`
}

// turnPayload is the body of a stream frame carrying turn and/or chat state.
type turnPayload struct {
	Chat *wireChat `json:"chat,omitempty"`
	Turn *wireTurn `json:"turn,omitempty"`
}

// errorPayload is the body of a stream frame reporting a backend failure.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// turnCollector accumulates partial turn updates across the frames of one
// exchange. Updates for a known candidate replace its text; unknown
// candidates are appended in arrival order; a primary_candidate_id on a later
// frame supersedes earlier ones (last-applies-wins).
type turnCollector struct {
	op        string
	turn      *wireTurn
	order     []string
	texts     map[string]string
	primaryID string
}

func newTurnCollector(op string) *turnCollector {
	return &turnCollector{
		op:    op,
		texts: make(map[string]string),
	}
}

// apply folds one frame's turn update into the collector.
func (tc *turnCollector) apply(w *wireTurn) error {
	if w == nil {
		return nil
	}
	if w.TurnKey.TurnID == "" {
		return decodeErr(tc.op, "turn update is missing turn_key.turn_id")
	}
	if tc.turn != nil && tc.turn.TurnKey.TurnID != w.TurnKey.TurnID {
		return decodeErr(tc.op, "turn update for %q arrived during exchange for %q",
			w.TurnKey.TurnID, tc.turn.TurnKey.TurnID)
	}
	if tc.turn == nil {
		tc.turn = w
	}

	for _, c := range w.Candidates {
		if c.CandidateID == "" {
			return decodeErr(tc.op, "candidate is missing candidate_id")
		}
		if _, seen := tc.texts[c.CandidateID]; !seen {
			tc.order = append(tc.order, c.CandidateID)
		}
		tc.texts[c.CandidateID] = c.RawContent
	}
	if w.PrimaryCandidateID != "" {
		tc.primaryID = w.PrimaryCandidateID
	}
	return nil
}

// finalize freezes the collected state into a Turn. A turn with zero
// candidates is malformed; callers never observe an empty candidate
// sequence.
func (tc *turnCollector) finalize() (*Turn, error) {
	if tc.turn == nil {
		return nil, decodeErr(tc.op, "exchange completed without a turn")
	}
	if len(tc.order) == 0 {
		return nil, decodeErr(tc.op, "turn %q has zero candidates", tc.turn.TurnKey.TurnID)
	}

	candidates := make([]Candidate, 0, len(tc.order))
	primary := -1
	for i, id := range tc.order {
		candidates = append(candidates, Candidate{ID: id, Text: tc.texts[id]})
		if id == tc.primaryID {
			primary = i
		}
	}
	if tc.primaryID != "" && primary < 0 {
		return nil, decodeErr(tc.op, "primary candidate %q is not in turn %q",
			tc.primaryID, tc.turn.TurnKey.TurnID)
	}
	if primary < 0 {
		primary = 0
	}

	return &Turn{
		ID:         tc.turn.TurnKey.TurnID,
		ChatID:     tc.turn.TurnKey.ChatID,
		AuthorID:   tc.turn.Author.AuthorID,
		AuthorName: tc.turn.Author.Name,
		IsHuman:    tc.turn.Author.IsHuman,
		candidates: candidates,
		primary:    primary,
	}, nil
}

// decodeTurn decodes a complete turn from a single payload, outside any
// stream exchange (history fetches).
func decodeTurn(op string, w *wireTurn) (*Turn, error) {
	tc := newTurnCollector(op)
	if err := tc.apply(w); err != nil {
		return nil, err
	}
	return tc.finalize()
}

// unmarshalBody decodes a response body against an explicit schema, mapping
// malformed JSON to a DecodeError at the boundary.
func unmarshalBody(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return decodeErr(op, "malformed response body: %v", err)
	}
	return nil
}
