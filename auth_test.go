package main

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRegisterLoginMe(t *testing.T) {
	_, r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username": "alice", "email": "alice@example.com", "password": "secret1", "role": "student",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "alice", "password": "secret1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d, body %s", w.Code, w.Body.String())
	}
	var login struct {
		Token string     `json:"token"`
		User  MeResponse `json:"user"`
	}
	decodeBody(t, w, &login)
	if login.Token == "" {
		t.Fatal("login returned no token")
	}
	if login.User.Role != RoleStudent {
		t.Errorf("role = %q, want student", login.User.Role)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/me", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me = %d, body %s", w.Code, w.Body.String())
	}
	var me MeResponse
	decodeBody(t, w, &me)
	if me.Username != "alice" {
		t.Errorf("me.username = %q, want alice", me.Username)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	_, r := newTestRouter(t)
	body := gin.H{"username": "bob", "email": "bob@example.com", "password": "secret1", "role": "student"}

	if w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", body); w.Code != http.StatusCreated {
		t.Fatalf("first register = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", body); w.Code != http.StatusConflict {
		t.Fatalf("duplicate register = %d, want 409", w.Code)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db, r := newTestRouter(t)
	createUser(t, db, "carol", RoleStudent)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "carol", "password": "not-the-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password login = %d, want 401", w.Code)
	}
}

// A second login rotates the session token, so the first device's JWT stops
// working even though it has not expired.
func TestSecondLoginSupersedesFirst(t *testing.T) {
	_, r := newTestRouter(t)

	body := gin.H{"username": "dave", "email": "dave@example.com", "password": "secret1", "role": "student"}
	if w := doJSON(t, r, http.MethodPost, "/api/v1/auth/register", "", body); w.Code != http.StatusCreated {
		t.Fatalf("register = %d", w.Code)
	}

	login := func() string {
		w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{
			"username": "dave", "password": "secret1",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("login = %d", w.Code)
		}
		var resp struct {
			Token string `json:"token"`
		}
		decodeBody(t, w, &resp)
		return resp.Token
	}

	first := login()
	second := login()

	if w := doJSON(t, r, http.MethodGet, "/api/v1/me", first, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("first device after second login = %d, want 401", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/me", second, nil); w.Code != http.StatusOK {
		t.Errorf("second device = %d, want 200", w.Code)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	db, r := newTestRouter(t)
	_, token := createUser(t, db, "erin", RoleStudent)

	if w := doJSON(t, r, http.MethodPost, "/api/v1/auth/logout", token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/v1/me", token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", w.Code)
	}
}

func TestTeacherRoutesRejectStudents(t *testing.T) {
	db, r := newTestRouter(t)
	_, token := createUser(t, db, "frank", RoleStudent)

	w := doJSON(t, r, http.MethodGet, "/api/v1/teacher/dashboard", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("student on teacher route = %d, want 403", w.Code)
	}
}
