package repository

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gappsops/message-recall/internal/domain/recall"
)

// pageCursor is the decoded form of the opaque tokens handed to callers of
// the paged listings. Tokens are forward-only and listing-specific: a
// token minted by one query shape is rejected by another because the
// fields it needs are absent.
type pageCursor struct {
	Email string `json:"e,omitempty"`
	Time  string `json:"t,omitempty"`
	ID    string `json:"id,omitempty"`
}

func (c pageCursor) zero() bool {
	return c.Email == "" && c.Time == "" && c.ID == ""
}

func encodeCursor(c pageCursor) string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeCursor accepts the empty token as "start from the beginning".
func decodeCursor(token string) (pageCursor, error) {
	if token == "" {
		return pageCursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return pageCursor{}, recall.ErrInvalidCursor
	}
	var c pageCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return pageCursor{}, recall.ErrInvalidCursor
	}
	if c.zero() {
		return pageCursor{}, recall.ErrInvalidCursor
	}
	return c, nil
}
