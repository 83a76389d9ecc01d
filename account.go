package caigo

import (
	"context"
	"net/http"
)

// Account holds the minimal profile of the authenticated identity.
type Account struct {
	// ID is the backend-assigned account identifier.
	ID int64
	// Username is the unique account name.
	Username string
	// DisplayName is the human-readable name shown in chats.
	DisplayName string
}

// wireMe mirrors the backend's profile envelope.
type wireMe struct {
	User struct {
		User struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"user"`
	} `json:"user"`
}

// FetchMe retrieves the authenticated account's profile.
func (s *Session) FetchMe(ctx context.Context) (*Account, error) {
	return s.fetchMe(ctx, "fetch_me")
}

func (s *Session) fetchMe(ctx context.Context, op string) (*Account, error) {
	resp, err := s.request(ctx, op, http.MethodGet, pathMe, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, transportErr(op, errStatus(resp.Status))
	}

	var me wireMe
	if err := unmarshalBody(op, resp.Body, &me); err != nil {
		return nil, err
	}
	if me.User.User.Username == "" {
		return nil, decodeErr(op, "profile is missing username")
	}

	return &Account{
		ID:          me.User.User.ID,
		Username:    me.User.User.Username,
		DisplayName: me.User.User.Name,
	}, nil
}

// FetchSettings retrieves the account settings as reported by the backend.
// The settings document is backend-defined; it is passed through undecoded.
func (s *Session) FetchSettings(ctx context.Context) (map[string]any, error) {
	const op = "fetch_settings"

	resp, err := s.request(ctx, op, http.MethodGet, pathSettings, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, transportErr(op, errStatus(resp.Status))
	}

	var settings map[string]any
	if err := unmarshalBody(op, resp.Body, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}
