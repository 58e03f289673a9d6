package main

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"os"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chirper/accounts"
	"chirper/analytics"
	"chirper/backoffice"
	"chirper/cache"
	"chirper/common"
	"chirper/database"
	"chirper/feed"
	"chirper/uploads"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	db := common.ConnectDb()
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	router := gin.Default()

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		sessionSecret = randomSecret()
		log.Println("SESSION_SECRET not set, sessions will not survive restarts")
	}

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})

	router.Use(sessions.Sessions("chirper-session", store))
	router.Use(cache.ETagMiddleware())

	router.Static("/uploads", uploads.Dir())

	analyticsModule := analytics.NewAnalyticsModule(common.ConnectAnalyticsDb())

	accountModule := accounts.NewAccountModule(db)
	accountModule.RegisterRoutes(router)

	feedModule := feed.NewFeedModule(db, analyticsModule)
	feedModule.RegisterRoutes(router)

	backofficeModule := backoffice.NewBackofficeModule(db)
	backofficeModule.RegisterRoutes(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting server on port %s...", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatal("Failed to generate session secret:", err)
	}
	return base64.URLEncoding.EncodeToString(b)
}
