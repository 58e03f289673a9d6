package accounts

import (
	"log"
	"net/http"
	"regexp"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"chirper/common"
	"chirper/models"
	"chirper/uploads"
)

// defaultBio is the placeholder every new profile starts with.
const defaultBio = "This user prefers to keep an air of mystery."

var nicknameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type AccountModule struct {
	db *gorm.DB
}

func NewAccountModule(db *gorm.DB) *AccountModule {
	return &AccountModule{db: db}
}

func (a *AccountModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/api/register", a.register)
	router.POST("/api/login", a.login)
	router.GET("/api/check-nickname", a.checkNickname)
	router.GET("/api/profile", a.getProfile)
	router.POST("/api/profile", a.updateProfile)
	router.DELETE("/api/profile", a.deleteProfile)
}

type credentialsRequest struct {
	Nickname  string `json:"nickname"`
	Password  string `json:"password"`
	VisitorID string `json:"visitorId"`
}

func (a *AccountModule) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if !validNickname(req.Nickname) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nickname must contain only letters, digits, underscore or hyphen"})
		return
	}
	if req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	var existing models.User
	if err := a.db.Where("nickname = ?", req.Nickname).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "nickname already taken"})
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	user := models.User{
		Nickname: req.Nickname,
		Password: passwordHash,
		Bio:      defaultBio,
	}

	err = a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return claimVisitorContent(tx, req.VisitorID, req.Nickname)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create account"})
		return
	}

	setSessionUID(c, user.Nickname)

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"nickname": user.Nickname,
	})
}

func (a *AccountModule) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var user models.User
	if err := a.db.Where("nickname = ?", req.Nickname).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid nickname or password"})
		return
	}

	if !checkPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid nickname or password"})
		return
	}

	if err := claimVisitorContent(a.db, req.VisitorID, user.Nickname); err != nil {
		log.Printf("Error claiming visitor content for %s: %v", user.Nickname, err)
	}

	setSessionUID(c, user.Nickname)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user,
	})
}

func (a *AccountModule) checkNickname(c *gin.Context) {
	nickname := c.Query("nickname")

	if !validNickname(nickname) {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}

	var existing models.User
	taken := a.db.Where("nickname = ?", nickname).First(&existing).Error == nil

	c.JSON(http.StatusOK, gin.H{"available": !taken})
}

func (a *AccountModule) getProfile(c *gin.Context) {
	uid := c.Query("uid")

	if uid == "" || models.IsVisitor(uid) {
		c.JSON(http.StatusOK, placeholderProfile())
		return
	}

	var user models.User
	if err := a.db.Where("nickname = ?", uid).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, placeholderProfile())
		return
	}

	c.JSON(http.StatusOK, user)
}

func (a *AccountModule) updateProfile(c *gin.Context) {
	uid := common.CurrentUID(c, c.PostForm("uid"))
	if uid == "" || models.IsVisitor(uid) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}

	var user models.User
	if err := a.db.Where("nickname = ?", uid).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	updates := map[string]interface{}{}
	var replacedFiles []string

	if bio, ok := c.GetPostForm("bio"); ok {
		updates["bio"] = bio
	}

	if fh, err := c.FormFile("avatar"); err == nil {
		item, err := uploads.Save(fh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store avatar"})
			return
		}
		if user.Avatar != "" {
			replacedFiles = append(replacedFiles, user.Avatar)
		}
		updates["avatar"] = item.URL
	}

	if fh, err := c.FormFile("banner"); err == nil {
		item, err := uploads.Save(fh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store banner"})
			return
		}
		if user.Banner != "" {
			replacedFiles = append(replacedFiles, user.Banner)
		}
		updates["banner"] = item.URL
	}

	finalNickname := user.Nickname
	newNickname, renaming := c.GetPostForm("newNickname")
	if !renaming || newNickname == user.Nickname {
		renaming = false
	} else {
		if !validNickname(newNickname) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nickname must contain only letters, digits, underscore or hyphen"})
			return
		}
		var existing models.User
		if err := a.db.Where("nickname = ?", newNickname).First(&existing).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "nickname already taken"})
			return
		}
		finalNickname = newNickname
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if renaming {
			// the nickname is the primary key, so every referencing row follows
			if err := tx.Model(&models.User{}).Where("nickname = ?", user.Nickname).
				Update("nickname", finalNickname).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Tweet{}).Where("author = ?", user.Nickname).
				Update("author", finalNickname).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Comment{}).Where("author = ?", user.Nickname).
				Update("author", finalNickname).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Bookmark{}).Where("nickname = ?", user.Nickname).
				Update("nickname", finalNickname).Error; err != nil {
				return err
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.User{}).Where("nickname = ?", finalNickname).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
		return
	}

	for _, url := range replacedFiles {
		uploads.Remove(url)
	}

	if renaming {
		setSessionUID(c, finalNickname)
	}

	var updated models.User
	if err := a.db.Where("nickname = ?", finalNickname).First(&updated).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (a *AccountModule) deleteProfile(c *gin.Context) {
	uid := common.CurrentUID(c, c.Query("uid"))
	if uid == "" || models.IsVisitor(uid) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}

	var user models.User
	if err := a.db.Where("nickname = ?", uid).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}

	var tweets []models.Tweet
	if err := a.db.Where("author = ?", uid).Find(&tweets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete account"})
		return
	}

	tweetIDs := make([]string, 0, len(tweets))
	for _, t := range tweets {
		tweetIDs = append(tweetIDs, t.ID)
	}

	err := a.db.Transaction(func(tx *gorm.DB) error {
		if len(tweetIDs) > 0 {
			if err := tx.Where("tweet_id IN ?", tweetIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("tweet_id IN ?", tweetIDs).Delete(&models.Bookmark{}).Error; err != nil {
				return err
			}
			if err := tx.Where("author = ?", uid).Delete(&models.Tweet{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("author = ?", uid).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("nickname = ?", uid).Delete(&models.Bookmark{}).Error; err != nil {
			return err
		}
		return tx.Where("nickname = ?", uid).Delete(&models.User{}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete account"})
		return
	}

	for _, t := range tweets {
		uploads.RemoveAll(t.Media)
	}
	if user.Avatar != "" {
		uploads.Remove(user.Avatar)
	}
	if user.Banner != "" {
		uploads.Remove(user.Banner)
	}

	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// claimVisitorContent rewrites every tweet and comment authored under a
// visitor identifier to the registered nickname. Ownership moves; nothing is
// copied.
func claimVisitorContent(db *gorm.DB, visitorID, nickname string) error {
	if !models.IsVisitor(visitorID) {
		return nil
	}

	if err := db.Model(&models.Tweet{}).Where("author = ?", visitorID).
		Update("author", nickname).Error; err != nil {
		return err
	}
	return db.Model(&models.Comment{}).Where("author = ?", visitorID).
		Update("author", nickname).Error
}

func validNickname(nickname string) bool {
	return nickname != "" && nicknameRe.MatchString(nickname) && !models.IsVisitor(nickname)
}

func placeholderProfile() gin.H {
	return gin.H{
		"nickname": "Not logged in",
		"bio":      defaultBio,
		"avatar":   "",
		"banner":   "",
	}
}

func setSessionUID(c *gin.Context, nickname string) {
	session := sessions.Default(c)
	session.Set("uid", nickname)
	if err := session.Save(); err != nil {
		log.Printf("Error saving session: %v", err)
	}
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
