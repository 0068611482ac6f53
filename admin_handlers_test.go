package main

import (
	"net/http"
	"testing"
)

func TestAdminOverviewCounts(t *testing.T) {
	db, r := newTestRouter(t)
	_, token := createUser(t, db, "adm1", RoleTeacher)
	createUser(t, db, "adm1stud", RoleStudent)

	w := doJSON(t, r, http.MethodGet, "/api/v1/teacher/admin/tables", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("overview = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Tables map[string]int64 `json:"tables"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Tables) != len(adminTables) {
		t.Errorf("overview lists %d tables, want %d", len(resp.Tables), len(adminTables))
	}
	if resp.Tables["users"] != 2 {
		t.Errorf("users count = %d, want 2", resp.Tables["users"])
	}
}

func TestAdminTableDumpScrubsCredentials(t *testing.T) {
	db, r := newTestRouter(t)
	_, token := createUser(t, db, "adm2", RoleTeacher)

	w := doJSON(t, r, http.MethodGet, "/api/v1/teacher/admin/tables/users", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dump = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Table string           `json:"table"`
		Total int64            `json:"total"`
		Limit int              `json:"limit"`
		Rows  []map[string]any `json:"rows"`
	}
	decodeBody(t, w, &resp)
	if resp.Table != "users" || resp.Total != 1 || resp.Limit != adminRowLimit {
		t.Fatalf("dump header = %+v", resp)
	}
	if len(resp.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(resp.Rows))
	}
	row := resp.Rows[0]
	if _, leaked := row["password_hash"]; leaked {
		t.Error("password_hash leaked in the dump")
	}
	if _, leaked := row["session_token"]; leaked {
		t.Error("session_token leaked in the dump")
	}
	if row["username"] != "adm2" {
		t.Errorf("username = %v, want adm2", row["username"])
	}
}

func TestAdminTableWhitelist(t *testing.T) {
	db, r := newTestRouter(t)
	_, token := createUser(t, db, "adm3", RoleTeacher)

	w := doJSON(t, r, http.MethodGet, "/api/v1/teacher/admin/tables/sqlite_master", token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("non-whitelisted table = %d, want 404", w.Code)
	}
}
