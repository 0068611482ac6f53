package main

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStudentStatsAggregates(t *testing.T) {
	db, r := newTestRouter(t)
	teacher, _ := createUser(t, db, "statteach", RoleTeacher)
	_, studentToken := createUser(t, db, "statstud", RoleStudent)

	subject := Subject{Name: "Geo", CreatedBy: teacher.ID}
	db.Create(&subject)
	section := Section{SubjectID: subject.ID, Title: "Maps", RequiresCode: false}
	db.Create(&section)
	test := seedTest(t, db, section.ID, nil, teacher.ID, 10)

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/tests/%d/take?count=10", test.ID), studentToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("take = %d, body %s", w.Code, w.Body.String())
	}
	var paper TestPaper
	decodeBody(t, w, &paper)
	if len(paper.Questions) != 10 {
		t.Fatalf("paper has %d questions, want 10", len(paper.Questions))
	}

	// five right, five deliberately wrong
	qids := make([]uint, 0, len(paper.Questions))
	answers := map[uint]uint{}
	for i, q := range paper.Questions {
		qids = append(qids, q.ID)
		correct := correctChoiceID(t, db, q.ID)
		if i < 5 {
			answers[q.ID] = correct
			continue
		}
		for _, ch := range q.Choices {
			if ch.ID != correct {
				answers[q.ID] = ch.ID
				break
			}
		}
	}
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/tests/%d/submit", test.ID), studentToken, gin.H{
		"questionIds": qids,
		"answers":     answers,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/results", studentToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("results = %d, body %s", w.Code, w.Body.String())
	}
	var history struct {
		Attempts []AttemptSummary `json:"attempts"`
	}
	decodeBody(t, w, &history)
	if len(history.Attempts) != 1 {
		t.Fatalf("history has %d attempts, want 1", len(history.Attempts))
	}
	if got := history.Attempts[0]; got.Score != 5 || got.Total != 10 || got.Percent != 50 || got.Student != "statstud" {
		t.Errorf("summary = %+v, want 5/10 at 50%% for statstud", got)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/stats", studentToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d, body %s", w.Code, w.Body.String())
	}
	var stats StatsResponse
	decodeBody(t, w, &stats)

	if stats.TotalAttempts != 1 {
		t.Errorf("totalAttempts = %d, want 1", stats.TotalAttempts)
	}
	if stats.CustomAttempts != 0 {
		t.Errorf("customAttempts = %d, want 0", stats.CustomAttempts)
	}
	if stats.TotalAnswers != 10 || stats.CorrectAnswers != 5 {
		t.Errorf("answers = %d/%d correct, want 10/5", stats.TotalAnswers, stats.CorrectAnswers)
	}
	if stats.AverageScore == nil || *stats.AverageScore != 50 {
		t.Errorf("averageScore = %v, want 50", stats.AverageScore)
	}
	if stats.AccuracyOverall == nil || *stats.AccuracyOverall != 50 {
		t.Errorf("accuracyOverall = %v, want 50", stats.AccuracyOverall)
	}
	if stats.AccuracyLast30d == nil || *stats.AccuracyLast30d != 50 {
		t.Errorf("accuracyLast30d = %v, want 50", stats.AccuracyLast30d)
	}
	if got := stats.AccuracyBySubject["Geo"]; got != 50 {
		t.Errorf("accuracyBySubject[Geo] = %v, want 50", got)
	}
	if got := stats.AnsweredBySubject["Geo"]; got != 10 {
		t.Errorf("answeredBySubject[Geo] = %d, want 10", got)
	}
}

func TestStudentStatsEmpty(t *testing.T) {
	db, r := newTestRouter(t)
	_, token := createUser(t, db, "freshstud", RoleStudent)

	w := doJSON(t, r, http.MethodGet, "/api/v1/stats", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats = %d, body %s", w.Code, w.Body.String())
	}
	var stats StatsResponse
	decodeBody(t, w, &stats)
	if stats.TotalAttempts != 0 || stats.TotalAnswers != 0 {
		t.Errorf("fresh student stats = %+v, want zeros", stats)
	}
	if stats.AccuracyOverall != nil {
		t.Errorf("accuracyOverall = %v, want nil with no answers", stats.AccuracyOverall)
	}
}
