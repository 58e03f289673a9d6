package common

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// CurrentUID resolves the acting identity for a request. An explicit uid
// (query, form or JSON field) always wins; otherwise the nickname stored in
// the session at login is used. Empty means unauthenticated.
func CurrentUID(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	session := sessions.Default(c)
	if v := session.Get("uid"); v != nil {
		if uid, ok := v.(string); ok {
			return uid
		}
	}
	return ""
}
