package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// TweetEvent is one recorded view of a tweet. Events live in their own
// database file so view tracking can be disabled without touching the main
// store.
type TweetEvent struct {
	ID        uint      `gorm:"primary_key;autoIncrement"`
	TweetID   string    `gorm:"not null;index"`
	CookieID  string    `gorm:"not null;index"`
	Event     string    `gorm:"not null;default:'view'"`
	IP        string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index"`
}

type AnalyticsModule struct {
	db *gorm.DB
}

func NewAnalyticsModule(db *gorm.DB) *AnalyticsModule {
	if db == nil {
		log.Println("Analytics DB is nil, analytics will be disabled")
		return nil
	}

	if err := db.AutoMigrate(&TweetEvent{}); err != nil {
		log.Printf("Error migrating tweet_events table: %v", err)
		return nil
	}

	log.Println("Analytics module initialized successfully")
	return &AnalyticsModule{db: db}
}

// TrackView records a tweet view. Repeat views by the same visitor within 30
// minutes are dropped so refreshes do not inflate counts.
func (a *AnalyticsModule) TrackView(c *gin.Context, tweetID string) {
	if a == nil || a.db == nil {
		return
	}

	cookieID := a.getOrCreateCookieID(c)

	thirtyMinutesAgo := time.Now().Add(-30 * time.Minute)

	var recentView TweetEvent
	err := a.db.Where("cookie_id = ? AND tweet_id = ? AND created_at > ?",
		cookieID, tweetID, thirtyMinutesAgo).First(&recentView).Error
	if err == nil {
		return
	}

	event := TweetEvent{
		TweetID:   tweetID,
		CookieID:  cookieID,
		Event:     "view",
		IP:        a.getClientIP(c),
		CreatedAt: time.Now(),
	}

	// async so tracking never slows the request down
	go func() {
		if err := a.db.Create(&event).Error; err != nil {
			log.Printf("Error saving analytics event: %v", err)
		}
	}()
}

func (a *AnalyticsModule) getOrCreateCookieID(c *gin.Context) string {
	cookieName := "chirper_visitor_id"

	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}

	data := time.Now().String() + c.ClientIP() + c.Request.UserAgent()
	hash := sha256.Sum256([]byte(data))
	cookieID := hex.EncodeToString(hash[:])

	c.SetCookie(
		cookieName,
		cookieID,
		60*60*24*365*2, // 2 years
		"/",
		"",
		false,
		true,
	)

	return cookieID
}

func (a *AnalyticsModule) getClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	return c.ClientIP()
}

// TweetViews is the view count of one tweet over a query window.
type TweetViews struct {
	TweetID string
	Count   int64
}

// GetTweetViewCount returns the all-time view count of a tweet.
func (a *AnalyticsModule) GetTweetViewCount(tweetID string) int64 {
	if a == nil || a.db == nil {
		return 0
	}

	var count int64
	a.db.Model(&TweetEvent{}).Where("tweet_id = ?", tweetID).Count(&count)
	return count
}

// GetTopTweets returns the most viewed tweets of the last N days.
func (a *AnalyticsModule) GetTopTweets(days int, limit int) []TweetViews {
	if a == nil || a.db == nil {
		return []TweetViews{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []TweetViews
	a.db.Model(&TweetEvent{}).
		Select("tweet_id as tweet_id, COUNT(*) as count").
		Where("created_at >= ?", startDate).
		Group("tweet_id").
		Order("count DESC").
		Limit(limit).
		Scan(&results)

	return results
}
