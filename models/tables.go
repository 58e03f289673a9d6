package models

import (
	"strings"
	"time"
)

// VisitorPrefix marks author references that were synthesized for
// unauthenticated posting. Visitor identifiers never appear in the users
// table; registering with a carried-over visitor id transfers its content.
const VisitorPrefix = "visitor_"

func IsVisitor(uid string) bool {
	return strings.HasPrefix(uid, VisitorPrefix)
}

type User struct {
	Nickname  string    `gorm:"primary_key" json:"nickname"`
	Password  string    `gorm:"not null" json:"-"` // bcrypt hash, never exposed
	Bio       string    `gorm:"type:text" json:"bio"`
	Avatar    string    `json:"avatar"`
	Banner    string    `json:"banner"`
	CreatedAt time.Time `json:"created_at"`
}

type Tweet struct {
	ID       string      `gorm:"primary_key" json:"id"` // millisecond counter, sortable by creation order
	Author   string      `gorm:"not null;index" json:"uid"`
	Content  string      `gorm:"type:text" json:"content"`
	Media    MediaList   `gorm:"type:text" json:"media"`
	Tags     StringList  `gorm:"type:text" json:"tags"`
	Time     string      `json:"time"` // display timestamp, rewritten with an edited marker on update
	Likes    ReactionSet `gorm:"type:text" json:"-"`
	Confused ReactionSet `gorm:"type:text" json:"-"`
	Omg      ReactionSet `gorm:"type:text" json:"-"`
}

type Comment struct {
	ID       string      `gorm:"primary_key" json:"id"`
	TweetID  string      `gorm:"not null;index" json:"tweet_id"`
	Author   string      `gorm:"not null;index" json:"uid"`
	Text     string      `gorm:"type:text" json:"text"`
	Time     string      `json:"time"`
	ParentID *string     `gorm:"index" json:"parent_id,omitempty"` // one nesting level only
	Likes    ReactionSet `gorm:"type:text" json:"-"`
}

type Bookmark struct {
	Nickname  string    `gorm:"primary_key" json:"nickname"`
	TweetID   string    `gorm:"primary_key" json:"tweet_id"`
	CreatedAt time.Time `json:"created_at"`
}
