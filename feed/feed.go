package feed

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"chirper/analytics"
	"chirper/common"
	"chirper/models"
	"chirper/uploads"
)

type FeedModule struct {
	db        *gorm.DB
	analytics *analytics.AnalyticsModule
}

func NewFeedModule(db *gorm.DB, analyticsModule *analytics.AnalyticsModule) *FeedModule {
	return &FeedModule{
		db:        db,
		analytics: analyticsModule,
	}
}

func (f *FeedModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/tweets", f.listTweets)
	router.POST("/api/tweets", f.createTweet)
	router.GET("/api/tweets/:id", f.getTweet)
	router.PUT("/api/tweets/:id", f.updateTweet)
	router.DELETE("/api/tweets/:id", f.deleteTweet)
	router.POST("/api/tweets/:id/react", f.react)
	router.POST("/api/tweets/:id/comment", f.comment)
	router.POST("/api/tweets/:id/bookmark", f.bookmark)
	router.POST("/api/comments/:id/like", f.likeComment)
	router.GET("/api/bookmarks", f.listBookmarks)
	router.GET("/api/trending", f.trending)
}

var (
	idMu   sync.Mutex
	lastID int64
)

// newTimelineID returns the millisecond timestamp as a string, bumped past
// the previous one so IDs stay unique and sortable by creation order.
func newTimelineID() string {
	idMu.Lock()
	defer idMu.Unlock()
	ms := time.Now().UnixMilli()
	if ms <= lastID {
		ms = lastID + 1
	}
	lastID = ms
	return strconv.FormatInt(ms, 10)
}

func displayTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

func editedTime(t time.Time) string {
	return displayTime(t) + " (edited)"
}

func (f *FeedModule) listTweets(c *gin.Context) {
	search := c.Query("search")

	query := f.db.Order("id DESC")
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("content LIKE ? OR author LIKE ?", like, like)
	}

	var tweets []models.Tweet
	if err := query.Find(&tweets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tweets"})
		return
	}

	c.JSON(http.StatusOK, f.formatTweets(tweets))
}

func (f *FeedModule) createTweet(c *gin.Context) {
	uid := common.CurrentUID(c, c.PostForm("uid"))
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "uid is required"})
		return
	}

	content := c.PostForm("content")
	files := formFiles(c)
	if strings.TrimSpace(content) == "" && len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tweet needs content or media"})
		return
	}
	if len(files) > uploads.MaxFilesPerRequest {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at most 9 files per tweet"})
		return
	}

	media := models.MediaList{}
	for _, fh := range files {
		item, err := uploads.Save(fh)
		if err != nil {
			uploads.RemoveAll(media)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store media"})
			return
		}
		media = append(media, item)
	}

	tweet := models.Tweet{
		ID:      newTimelineID(),
		Author:  uid,
		Content: content,
		Media:   media,
		Tags:    parseTags(c.PostForm("tags")),
		Time:    displayTime(time.Now()),
	}

	if err := f.db.Create(&tweet).Error; err != nil {
		uploads.RemoveAll(media)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create tweet"})
		return
	}

	c.JSON(http.StatusCreated, f.formatTweet(tweet))
}

func (f *FeedModule) getTweet(c *gin.Context) {
	id := c.Param("id")

	var tweet models.Tweet
	if err := f.db.Where("id = ?", id).First(&tweet).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tweet not found"})
		return
	}

	f.analytics.TrackView(c, tweet.ID)

	c.JSON(http.StatusOK, f.formatTweet(tweet))
}

func (f *FeedModule) updateTweet(c *gin.Context) {
	id := c.Param("id")

	uid := common.CurrentUID(c, c.PostForm("uid"))
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "uid is required"})
		return
	}

	var tweet models.Tweet
	if err := f.db.Where("id = ?", id).First(&tweet).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tweet not found"})
		return
	}
	if tweet.Author != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your tweet"})
		return
	}

	files := formFiles(c)
	if len(files) > uploads.MaxFilesPerRequest {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at most 9 files per tweet"})
		return
	}

	// content and tags are replaced wholesale; media only when new files arrive
	tweet.Content = c.PostForm("content")
	tweet.Tags = parseTags(c.PostForm("tags"))
	tweet.Time = editedTime(time.Now())

	var oldMedia models.MediaList
	if len(files) > 0 {
		media := models.MediaList{}
		for _, fh := range files {
			item, err := uploads.Save(fh)
			if err != nil {
				uploads.RemoveAll(media)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store media"})
				return
			}
			media = append(media, item)
		}
		oldMedia = tweet.Media
		tweet.Media = media
	}

	if err := f.db.Save(&tweet).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update tweet"})
		return
	}

	uploads.RemoveAll(oldMedia)

	c.JSON(http.StatusOK, f.formatTweet(tweet))
}

func (f *FeedModule) deleteTweet(c *gin.Context) {
	id := c.Param("id")

	uid := common.CurrentUID(c, c.Query("uid"))
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "uid is required"})
		return
	}

	var tweet models.Tweet
	if err := f.db.Where("id = ?", id).First(&tweet).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tweet not found"})
		return
	}
	if tweet.Author != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your tweet"})
		return
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tweet_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tweet_id = ?", id).Delete(&models.Bookmark{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Tweet{}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete tweet"})
		return
	}

	uploads.RemoveAll(tweet.Media)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type reactRequest struct {
	UID  string `json:"uid"`
	Type string `json:"type"`
}

func (f *FeedModule) react(c *gin.Context) {
	id := c.Param("id")

	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	uid, ok := f.registeredUID(c, req.UID)
	if !ok {
		return
	}

	switch req.Type {
	case "like", "confused", "omg":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reaction type"})
		return
	}

	var tweet models.Tweet
	// re-read and toggle inside the transaction so concurrent toggles cannot
	// clobber each other
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&tweet).Error; err != nil {
			return err
		}
		switch req.Type {
		case "like":
			tweet.Likes.Toggle(uid)
		case "confused":
			tweet.Confused.Toggle(uid)
		case "omg":
			tweet.Omg.Toggle(uid)
		}
		return tx.Save(&tweet).Error
	})
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "tweet not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save reaction"})
		return
	}

	c.JSON(http.StatusOK, f.formatTweet(tweet))
}

type commentRequest struct {
	UID      string  `json:"uid"`
	Text     string  `json:"text"`
	ParentID *string `json:"parent_id"`
}

func (f *FeedModule) comment(c *gin.Context) {
	id := c.Param("id")

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	uid := common.CurrentUID(c, req.UID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "uid is required"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment text is required"})
		return
	}

	var tweet models.Tweet
	if err := f.db.Where("id = ?", id).First(&tweet).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tweet not found"})
		return
	}

	if req.ParentID != nil && *req.ParentID != "" {
		var parent models.Comment
		if err := f.db.Where("id = ?", *req.ParentID).First(&parent).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent comment not found"})
			return
		}
		if parent.TweetID != tweet.ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "parent comment belongs to another tweet"})
			return
		}
		if parent.ParentID != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "replies cannot be nested further"})
			return
		}
	} else {
		req.ParentID = nil
	}

	comment := models.Comment{
		ID:       newTimelineID(),
		TweetID:  tweet.ID,
		Author:   uid,
		Text:     req.Text,
		Time:     displayTime(time.Now()),
		ParentID: req.ParentID,
	}

	if err := f.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create comment"})
		return
	}

	c.JSON(http.StatusOK, f.formatTweet(tweet))
}

type uidRequest struct {
	UID string `json:"uid"`
}

func (f *FeedModule) likeComment(c *gin.Context) {
	id := c.Param("id")

	var req uidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	uid, ok := f.registeredUID(c, req.UID)
	if !ok {
		return
	}

	var comment models.Comment
	var liked bool
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&comment).Error; err != nil {
			return err
		}
		liked = comment.Likes.Toggle(uid)
		return tx.Save(&comment).Error
	})
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save like"})
		return
	}

	action := "unliked"
	if liked {
		action = "liked"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"action":     action,
		"likesCount": comment.Likes.Count(),
		"likesUsers": comment.Likes.Users(),
	})
}

func (f *FeedModule) bookmark(c *gin.Context) {
	id := c.Param("id")

	var req uidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	uid, ok := f.registeredUID(c, req.UID)
	if !ok {
		return
	}

	var tweet models.Tweet
	if err := f.db.Where("id = ?", id).First(&tweet).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tweet not found"})
		return
	}

	var existing models.Bookmark
	err := f.db.Where("nickname = ? AND tweet_id = ?", uid, id).First(&existing).Error
	if err == nil {
		if err := f.db.Where("nickname = ? AND tweet_id = ?", uid, id).
			Delete(&models.Bookmark{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove bookmark"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "bookmarked": false})
		return
	}

	bookmark := models.Bookmark{
		Nickname:  uid,
		TweetID:   id,
		CreatedAt: time.Now(),
	}
	if err := f.db.Create(&bookmark).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save bookmark"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "bookmarked": true})
}

func (f *FeedModule) listBookmarks(c *gin.Context) {
	uid, ok := f.registeredUID(c, c.Query("uid"))
	if !ok {
		return
	}

	var bookmarks []models.Bookmark
	if err := f.db.Where("nickname = ?", uid).Order("created_at DESC").
		Find(&bookmarks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bookmarks"})
		return
	}

	tweetIDs := make([]string, 0, len(bookmarks))
	bookmarkTimes := make(map[string]time.Time, len(bookmarks))
	for _, b := range bookmarks {
		tweetIDs = append(tweetIDs, b.TweetID)
		bookmarkTimes[b.TweetID] = b.CreatedAt
	}

	var tweets []models.Tweet
	if len(tweetIDs) > 0 {
		if err := f.db.Where("id IN ?", tweetIDs).Find(&tweets).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load bookmarks"})
			return
		}
	}

	byID := make(map[string]models.Tweet, len(tweets))
	for _, t := range tweets {
		byID[t.ID] = t
	}

	out := make([]gin.H, 0, len(bookmarks))
	for _, b := range bookmarks {
		t, found := byID[b.TweetID]
		if !found {
			continue
		}
		formatted := f.formatTweet(t)
		formatted["bookmark_time"] = displayTime(bookmarkTimes[t.ID])
		out = append(out, formatted)
	}

	c.JSON(http.StatusOK, out)
}

func (f *FeedModule) trending(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		days = 7
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}

	top := f.analytics.GetTopTweets(days, limit)
	if len(top) == 0 {
		c.JSON(http.StatusOK, []gin.H{})
		return
	}

	ids := make([]string, 0, len(top))
	views := make(map[string]int64, len(top))
	for _, entry := range top {
		ids = append(ids, entry.TweetID)
		views[entry.TweetID] = entry.Count
	}

	var tweets []models.Tweet
	if err := f.db.Where("id IN ?", ids).Find(&tweets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tweets"})
		return
	}

	byID := make(map[string]models.Tweet, len(tweets))
	for _, t := range tweets {
		byID[t.ID] = t
	}

	out := make([]gin.H, 0, len(top))
	for _, entry := range top {
		t, found := byID[entry.TweetID]
		if !found {
			continue
		}
		formatted := f.formatTweet(t)
		formatted["views"] = views[t.ID]
		out = append(out, formatted)
	}

	c.JSON(http.StatusOK, out)
}

// registeredUID resolves the request identity and rejects missing uids,
// visitor identifiers and unknown nicknames. Reactions, comment likes and
// bookmarks are for registered accounts only.
func (f *FeedModule) registeredUID(c *gin.Context, explicit string) (string, bool) {
	uid := common.CurrentUID(c, explicit)
	if uid == "" || models.IsVisitor(uid) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return "", false
	}

	var user models.User
	if err := f.db.Where("nickname = ?", uid).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return "", false
	}

	return uid, true
}

func formFiles(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File["files"]
}

func parseTags(raw string) models.StringList {
	tags := models.StringList{}
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
