package backoffice

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"chirper/models"
	"chirper/uploads"
)

// BackofficeModule exposes a small moderation surface for operators. Access
// is limited to logged-in nicknames listed in BACKOFFICE_USERS.
type BackofficeModule struct {
	db *gorm.DB
}

func NewBackofficeModule(db *gorm.DB) *BackofficeModule {
	return &BackofficeModule{db: db}
}

func (b *BackofficeModule) RegisterRoutes(router *gin.Engine) {
	backofficeGroup := router.Group("/$")
	backofficeGroup.Use(b.requireBackofficeAuth)
	{
		backofficeGroup.GET("/stats", b.stats)
		backofficeGroup.DELETE("/tweets/:id", b.removeTweet)
	}
}

func (b *BackofficeModule) requireBackofficeAuth(c *gin.Context) {
	session := sessions.Default(c)
	uid := session.Get("uid")

	nickname, ok := uid.(string)
	if !ok || nickname == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		c.Abort()
		return
	}

	if !b.isBackofficeUser(nickname) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized"})
		c.Abort()
		return
	}

	c.Set("backoffice_user", nickname)
	c.Next()
}

func (b *BackofficeModule) isBackofficeUser(nickname string) bool {
	backofficeUsers := os.Getenv("BACKOFFICE_USERS")
	if backofficeUsers == "" {
		return false
	}

	for _, u := range strings.Split(backofficeUsers, ",") {
		if strings.TrimSpace(u) == nickname {
			return true
		}
	}
	return false
}

func (b *BackofficeModule) stats(c *gin.Context) {
	var users, tweets, comments, bookmarks int64
	b.db.Model(&models.User{}).Count(&users)
	b.db.Model(&models.Tweet{}).Count(&tweets)
	b.db.Model(&models.Comment{}).Count(&comments)
	b.db.Model(&models.Bookmark{}).Count(&bookmarks)

	c.JSON(http.StatusOK, gin.H{
		"users":     users,
		"tweets":    tweets,
		"comments":  comments,
		"bookmarks": bookmarks,
	})
}

// removeTweet deletes any tweet regardless of ownership, with the same
// cascade as an owner delete.
func (b *BackofficeModule) removeTweet(c *gin.Context) {
	id := c.Param("id")

	var tweet models.Tweet
	if err := b.db.Where("id = ?", id).First(&tweet).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tweet not found"})
		return
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
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
