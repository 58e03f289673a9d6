package feed

import (
	"bytes"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"chirper/models"
)

// guestLabel is shown for visitor-authored content.
const guestLabel = "Guest"

// markdown renderer for tweet content; raw HTML stays escaped because the
// content is user supplied
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
)

func renderContent(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		log.Printf("Error rendering tweet content: %v", err)
		return ""
	}
	return buf.String()
}

// formatTweets joins raw rows with each author's current identity and the
// nested comment structure, one query per table.
func (f *FeedModule) formatTweets(tweets []models.Tweet) []gin.H {
	if len(tweets) == 0 {
		return []gin.H{}
	}

	ids := make([]string, 0, len(tweets))
	for _, t := range tweets {
		ids = append(ids, t.ID)
	}

	var comments []models.Comment
	if err := f.db.Where("tweet_id IN ?", ids).Order("id ASC").Find(&comments).Error; err != nil {
		log.Printf("Error loading comments: %v", err)
	}

	byTweet := make(map[string][]models.Comment)
	for _, cm := range comments {
		byTweet[cm.TweetID] = append(byTweet[cm.TweetID], cm)
	}

	authors := make([]string, 0, len(tweets)+len(comments))
	for _, t := range tweets {
		authors = append(authors, t.Author)
	}
	for _, cm := range comments {
		authors = append(authors, cm.Author)
	}
	users := f.loadIdentities(authors)

	out := make([]gin.H, 0, len(tweets))
	for _, t := range tweets {
		out = append(out, formatOne(t, byTweet[t.ID], users))
	}
	return out
}

// formatTweet formats a single tweet with its comments.
func (f *FeedModule) formatTweet(t models.Tweet) gin.H {
	var comments []models.Comment
	if err := f.db.Where("tweet_id = ?", t.ID).Order("id ASC").Find(&comments).Error; err != nil {
		log.Printf("Error loading comments: %v", err)
	}

	authors := []string{t.Author}
	for _, cm := range comments {
		authors = append(authors, cm.Author)
	}

	return formatOne(t, comments, f.loadIdentities(authors))
}

func (f *FeedModule) loadIdentities(authors []string) map[string]models.User {
	users := make(map[string]models.User)
	if len(authors) == 0 {
		return users
	}

	var rows []models.User
	if err := f.db.Where("nickname IN ?", authors).Find(&rows).Error; err != nil {
		log.Printf("Error loading user identities: %v", err)
		return users
	}

	for _, u := range rows {
		users[u.Nickname] = u
	}
	return users
}

// displayIdentity resolves an author reference against the current user
// table: a matching registered nickname wins, visitor identifiers show the
// guest label, anything else falls through as-is.
func displayIdentity(author string, users map[string]models.User) (name, avatar string) {
	if u, found := users[author]; found {
		return u.Nickname, u.Avatar
	}
	if models.IsVisitor(author) {
		return guestLabel, ""
	}
	return author, ""
}

func formatOne(t models.Tweet, comments []models.Comment, users map[string]models.User) gin.H {
	name, avatar := displayIdentity(t.Author, users)

	media := t.Media
	if media == nil {
		media = models.MediaList{}
	}
	tags := t.Tags
	if tags == nil {
		tags = models.StringList{}
	}

	// single-media fields kept for clients that predate multi-upload
	mediaURL, mediaKind := "", ""
	if len(media) > 0 {
		mediaURL = media[0].URL
		mediaKind = media[0].Kind
	}

	// comments arrive ordered oldest-first; replies keep that order under
	// their parents, top-level comments flip to newest-first
	repliesByParent := make(map[string][]gin.H)
	for _, cm := range comments {
		if cm.ParentID == nil {
			continue
		}
		repliesByParent[*cm.ParentID] = append(repliesByParent[*cm.ParentID], formatComment(cm, users))
	}

	topLevel := make([]gin.H, 0, len(comments))
	for i := len(comments) - 1; i >= 0; i-- {
		cm := comments[i]
		if cm.ParentID != nil {
			continue
		}
		formatted := formatComment(cm, users)
		replies := repliesByParent[cm.ID]
		if replies == nil {
			replies = []gin.H{}
		}
		formatted["replies"] = replies
		topLevel = append(topLevel, formatted)
	}

	return gin.H{
		"id":           t.ID,
		"uid":          t.Author,
		"name":         name,
		"avatar":       avatar,
		"content":      t.Content,
		"content_html": renderContent(t.Content),
		"time":         t.Time,
		"media":        media,
		"mediaUrl":     mediaURL,
		"mediaKind":    mediaKind,
		"tags":         tags,
		"reactions": gin.H{
			"like":     t.Likes.Count(),
			"confused": t.Confused.Count(),
			"omg":      t.Omg.Count(),
		},
		"reactionUsers": gin.H{
			"like":     t.Likes.Users(),
			"confused": t.Confused.Users(),
			"omg":      t.Omg.Users(),
		},
		"comments": topLevel,
	}
}

func formatComment(cm models.Comment, users map[string]models.User) gin.H {
	name, avatar := displayIdentity(cm.Author, users)

	formatted := gin.H{
		"id":         cm.ID,
		"uid":        cm.Author,
		"name":       name,
		"avatar":     avatar,
		"text":       cm.Text,
		"time":       cm.Time,
		"likes":      cm.Likes.Count(),
		"likesUsers": cm.Likes.Users(),
	}
	if cm.ParentID != nil {
		formatted["parent_id"] = *cm.ParentID
	}
	return formatted
}
