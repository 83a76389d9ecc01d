package caigo

import (
	"errors"
	"testing"
)

func TestTurnCollectorSingleUpdate(t *testing.T) {
	tc := newTurnCollector("send_message")

	update := turnUpdate("chat-1", "turn-1", "c1", candidate("c1", "hello", true))
	if err := tc.apply(update.Turn); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	turn, err := tc.finalize()
	if err != nil {
		t.Fatalf("finalize() error = %v", err)
	}
	if turn.ID != "turn-1" || turn.ChatID != "chat-1" {
		t.Errorf("turn identity = (%q, %q), want (turn-1, chat-1)", turn.ID, turn.ChatID)
	}

	primary, err := turn.PrimaryCandidate()
	if err != nil {
		t.Fatalf("PrimaryCandidate() error = %v", err)
	}
	if primary.Text != "hello" {
		t.Errorf("primary text = %q, want %q", primary.Text, "hello")
	}
}

func TestTurnCollectorMergesPartials(t *testing.T) {
	tc := newTurnCollector("send_message")

	updates := []turnPayload{
		turnUpdate("chat-1", "turn-1", "c1", candidate("c1", "Hel", false)),
		turnUpdate("chat-1", "turn-1", "c2",
			candidate("c1", "Hello there", true),
			candidate("c2", "Hi", false)),
		turnUpdate("chat-1", "turn-1", "", candidate("c2", "Hi!", true)),
	}
	for i, u := range updates {
		if err := tc.apply(u.Turn); err != nil {
			t.Fatalf("apply(update %d) error = %v", i, err)
		}
	}

	turn, err := tc.finalize()
	if err != nil {
		t.Fatalf("finalize() error = %v", err)
	}

	got := turn.Candidates()
	if len(got) != 2 {
		t.Fatalf("candidate count = %d, want 2", len(got))
	}
	// Arrival order is preserved; later updates replace text in place.
	if got[0].ID != "c1" || got[0].Text != "Hello there" {
		t.Errorf("candidate 0 = %+v, want c1/\"Hello there\"", got[0])
	}
	if got[1].ID != "c2" || got[1].Text != "Hi!" {
		t.Errorf("candidate 1 = %+v, want c2/\"Hi!\"", got[1])
	}

	// Primary reassignment is last-applies-wins; the empty primary on the
	// final update does not reset the earlier assignment.
	primary, err := turn.PrimaryCandidate()
	if err != nil {
		t.Fatalf("PrimaryCandidate() error = %v", err)
	}
	if primary.ID != "c2" {
		t.Errorf("primary = %q, want c2", primary.ID)
	}
}

func TestTurnCollectorRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		updates []turnPayload
	}{
		{
			name:    "zero candidates",
			updates: []turnPayload{turnUpdate("chat-1", "turn-1", "")},
		},
		{
			name: "missing turn id",
			updates: []turnPayload{
				turnUpdate("chat-1", "", "", candidate("c1", "x", true)),
			},
		},
		{
			name: "missing candidate id",
			updates: []turnPayload{
				turnUpdate("chat-1", "turn-1", "", candidate("", "x", true)),
			},
		},
		{
			name: "primary not in candidate set",
			updates: []turnPayload{
				turnUpdate("chat-1", "turn-1", "ghost", candidate("c1", "x", true)),
			},
		},
		{
			name: "interleaved turn ids",
			updates: []turnPayload{
				turnUpdate("chat-1", "turn-1", "", candidate("c1", "x", false)),
				turnUpdate("chat-1", "turn-2", "", candidate("c2", "y", true)),
			},
		},
		{
			name:    "no turn at all",
			updates: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTurnCollector("send_message")

			var applyErr error
			for _, u := range tt.updates {
				if applyErr = tc.apply(u.Turn); applyErr != nil {
					break
				}
			}
			if applyErr == nil {
				_, applyErr = tc.finalize()
			}

			var de *DecodeError
			if !errors.As(applyErr, &de) {
				t.Fatalf("error = %v, want *DecodeError", applyErr)
			}
		})
	}
}

func TestDecodeTurnDefaultsPrimaryToFirst(t *testing.T) {
	update := turnUpdate("chat-1", "turn-1", "",
		candidate("c1", "one", true),
		candidate("c2", "two", true))

	turn, err := decodeTurn("fetch_history", update.Turn)
	if err != nil {
		t.Fatalf("decodeTurn() error = %v", err)
	}

	primary, err := turn.PrimaryCandidate()
	if err != nil {
		t.Fatalf("PrimaryCandidate() error = %v", err)
	}
	if primary.ID != "c1" {
		t.Errorf("primary = %q, want first candidate", primary.ID)
	}
}
