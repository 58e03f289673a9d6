package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MediaItem is one attached file on a tweet. Kind is "image" or "video".
type MediaItem struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

// MediaList is stored as a JSON array in a text column.
type MediaList []MediaItem

func (m *MediaList) Scan(value interface{}) error {
	raw, err := columnText(value)
	if err != nil {
		return fmt.Errorf("media list: %v", err)
	}
	*m = nil
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), m)
}

func (m MediaList) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (s *StringList) Scan(value interface{}) error {
	raw, err := columnText(value)
	if err != nil {
		return fmt.Errorf("string list: %v", err)
	}
	*s = nil
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), s)
}

func (s StringList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

// ReactionSet holds the users who applied one reaction kind to a tweet or
// comment. Two stored forms exist side by side: the current JSON array of
// nicknames, and a legacy plain number that only recorded a count. Legacy
// rows decode to an empty member set but keep reporting their count until
// the first toggle converts them to the array form. Both forms are valid
// indefinitely.
type ReactionSet struct {
	users       []string
	legacyCount int64
	legacy      bool
}

func (r *ReactionSet) Scan(value interface{}) error {
	*r = ReactionSet{}
	raw, err := columnText(value)
	if err != nil {
		return fmt.Errorf("reaction set: %v", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		r.legacy = true
		r.legacyCount = n
		return nil
	}
	return json.Unmarshal([]byte(raw), &r.users)
}

// Value keeps an untouched legacy value verbatim so an unrelated save does
// not destroy the stored count.
func (r ReactionSet) Value() (driver.Value, error) {
	if r.legacy {
		return strconv.FormatInt(r.legacyCount, 10), nil
	}
	if len(r.users) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(r.users)
	return string(b), err
}

// Count reports the stored count for legacy rows and the member count otherwise.
func (r ReactionSet) Count() int {
	if r.legacy {
		return int(r.legacyCount)
	}
	return len(r.users)
}

// Users returns the member nicknames, never nil. Legacy rows have no
// recoverable members.
func (r ReactionSet) Users() []string {
	out := make([]string, len(r.users))
	copy(out, r.users)
	return out
}

func (r ReactionSet) Has(uid string) bool {
	for _, u := range r.users {
		if u == uid {
			return true
		}
	}
	return false
}

// Toggle adds uid if absent and removes it if present, reporting whether it
// was added. Toggling a legacy row converts it to the member-set form; the
// legacy count is dropped because its members were never recorded.
func (r *ReactionSet) Toggle(uid string) bool {
	if r.legacy {
		r.legacy = false
		r.legacyCount = 0
	}
	for i, u := range r.users {
		if u == uid {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return false
		}
	}
	r.users = append(r.users, uid)
	return true
}

func columnText(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case []byte:
		return string(v), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("unsupported column type %T", value)
	}
}
