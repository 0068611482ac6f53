package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const userContextKey = "currentUser"

// RequireAuth accepts the JWT from the Authorization header or the auth
// cookie, and enforces the single-device rule: the token's session claim must
// match the session currently stored on the user. A login from another device
// rotates that session and orphans this token.
func RequireAuth(db *gorm.DB, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		claims, err := parseAuthToken(raw, cfg.SecretKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		var u User
		if err := db.First(&u, claims.UserID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if u.SessionToken == nil || *u.SessionToken != claims.Session {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "session superseded by a login on another device",
			})
			return
		}
		c.Set(userContextKey, &u)
		c.Next()
	}
}

// RequireTeacher must run after RequireAuth.
func RequireTeacher() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c).Role != RoleTeacher {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "teacher role required"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *User {
	u, _ := c.Get(userContextKey)
	return u.(*User)
}

func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie(authCookieName); err == nil {
		return cookie
	}
	return ""
}
