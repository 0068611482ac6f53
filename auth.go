package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	authCookieName = "sh_token"
	tokenLifetime  = 7 * 24 * time.Hour
)

type AuthClaims struct {
	UserID  uint   `json:"uid"`
	Session string `json:"sid"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

func signAuthToken(user *User, session, secret string) (string, error) {
	claims := AuthClaims{
		UserID:  user.ID,
		Session: session,
		Role:    user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenLifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseAuthToken(raw, secret string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &AuthClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type RegisterReq struct {
	Username string `json:"username" binding:"required,min=3,max=80"`
	Email    string `json:"email" binding:"required,email,max=120"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=student teacher"`
}

type LoginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type MeResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func Register(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))

		var n int64
		if err := db.Model(&User{}).
			Where("username = ? OR email = ?", req.Username, req.Email).
			Count(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		if n > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
			return
		}

		hash, err := bcryptHash(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash"})
			return
		}
		u := User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			Role:         req.Role,
		}
		if err := db.Create(&u).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, MeResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role})
	}
}

// Login verifies credentials and rotates the user's session token, which
// invalidates any session still open on another device.
func Login(db *gorm.DB, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		var u User
		if err := db.First(&u, "username = ?", strings.TrimSpace(req.Username)).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		session := uuid.New().String()
		if err := db.Model(&u).Update("session_token", session).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		token, err := signAuthToken(&u, session, cfg.SecretKey)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token"})
			return
		}
		setAuthCookie(c, token, cfg.SecureCookies)
		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  MeResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role},
		})
	}
}

func Logout(db *gorm.DB, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := currentUser(c)
		if err := db.Model(u).Update("session_token", nil).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		clearAuthCookie(c, cfg.SecureCookies)
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	}
}

func GetMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := currentUser(c)
		c.JSON(http.StatusOK, MeResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role})
	}
}

func bcryptHash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func setAuthCookie(c *gin.Context, token string, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenLifetime / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookie(c *gin.Context, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
