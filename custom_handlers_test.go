package main

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCustomTestFlow(t *testing.T) {
	db, r := newTestRouter(t)
	teacher, _ := createUser(t, db, "cteach", RoleTeacher)
	_, studentToken := createUser(t, db, "cstud", RoleStudent)

	subject := Subject{Name: "Latin", CreatedBy: teacher.ID}
	db.Create(&subject)
	section := Section{SubjectID: subject.ID, Title: "Grammar", RequiresCode: false}
	db.Create(&section)
	lesson := Lesson{SectionID: section.ID, Title: "Declensions", Content: "x", RequiresCode: false}
	db.Create(&lesson)
	seedTest(t, db, section.ID, &lesson.ID, teacher.ID, 12)

	// options list the lesson with its pool size
	w := doJSON(t, r, http.MethodGet, "/api/v1/custom-tests/options", studentToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("options = %d, body %s", w.Code, w.Body.String())
	}
	var options struct {
		Lessons []CustomLessonOption `json:"lessons"`
	}
	decodeBody(t, w, &options)
	if len(options.Lessons) != 1 || options.Lessons[0].Available != 12 {
		t.Fatalf("options = %+v, want one lesson with 12 questions", options.Lessons)
	}

	// too few questions is refused
	w = doJSON(t, r, http.MethodPost, "/api/v1/custom-tests", studentToken, gin.H{
		"selections": map[string]int{fmt.Sprint(lesson.ID): 5},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("undersized custom test = %d, want 400", w.Code)
	}

	// create a proper one
	w = doJSON(t, r, http.MethodPost, "/api/v1/custom-tests", studentToken, gin.H{
		"label":      "Revision",
		"selections": map[string]int{fmt.Sprint(lesson.ID): 10},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create custom test = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID    uint `json:"id"`
		Total int  `json:"total"`
	}
	decodeBody(t, w, &created)
	if created.Total != 10 {
		t.Fatalf("total = %d, want 10", created.Total)
	}

	// the frozen paper comes back in a stable order
	takePath := fmt.Sprintf("/api/v1/custom-tests/%d", created.ID)
	w = doJSON(t, r, http.MethodGet, takePath, studentToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("take = %d, body %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "isCorrect") {
		t.Fatal("custom paper leaks correct flags")
	}
	var paper struct {
		Questions []QuestionView `json:"questions"`
	}
	decodeBody(t, w, &paper)
	if len(paper.Questions) != 10 {
		t.Fatalf("paper has %d questions, want 10", len(paper.Questions))
	}
	w = doJSON(t, r, http.MethodGet, takePath, studentToken, nil)
	var again struct {
		Questions []QuestionView `json:"questions"`
	}
	decodeBody(t, w, &again)
	for i := range paper.Questions {
		if paper.Questions[i].ID != again.Questions[i].ID {
			t.Fatal("question order changed between reloads")
		}
	}

	// submit with every answer correct
	answers := map[uint]uint{}
	for _, q := range paper.Questions {
		answers[q.ID] = correctChoiceID(t, db, q.ID)
	}
	submitPath := takePath + "/submit"
	w = doJSON(t, r, http.MethodPost, submitPath, studentToken, gin.H{"answers": answers})
	if w.Code != http.StatusOK {
		t.Fatalf("submit = %d, body %s", w.Code, w.Body.String())
	}
	var result struct {
		Score int `json:"score"`
		Total int `json:"total"`
	}
	decodeBody(t, w, &result)
	if result.Score != 10 || result.Total != 10 {
		t.Fatalf("score = %d/%d, want 10/10", result.Score, result.Total)
	}

	// a submitted attempt can neither be retaken nor resubmitted
	if w := doJSON(t, r, http.MethodGet, takePath, studentToken, nil); w.Code != http.StatusConflict {
		t.Errorf("retake = %d, want 409", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, submitPath, studentToken, gin.H{"answers": answers}); w.Code != http.StatusConflict {
		t.Errorf("resubmit = %d, want 409", w.Code)
	}

	// graded answers hang off the attempt
	var stored CustomAttempt
	if err := db.Preload("Answers").First(&stored, created.ID).Error; err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	if len(stored.Answers) != 10 {
		t.Fatalf("stored %d answers, want 10", len(stored.Answers))
	}

	// the review shows the frozen order with answers revealed
	w = doJSON(t, r, http.MethodGet, takePath+"/result", studentToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("result = %d, body %s", w.Code, w.Body.String())
	}
	var review struct {
		Review []AnswerReview `json:"review"`
	}
	decodeBody(t, w, &review)
	if len(review.Review) != 10 {
		t.Fatalf("review has %d entries, want 10", len(review.Review))
	}
}

func TestCustomTestLockedLessonRefused(t *testing.T) {
	db, r := newTestRouter(t)
	teacher, _ := createUser(t, db, "cteach2", RoleTeacher)
	_, studentToken := createUser(t, db, "cstud2", RoleStudent)

	subject := Subject{Name: "Greek", CreatedBy: teacher.ID}
	db.Create(&subject)
	section := Section{SubjectID: subject.ID, Title: "Verbs", RequiresCode: true}
	db.Create(&section)
	// two lessons so the second one is not the free first lesson
	open := Lesson{SectionID: section.ID, Title: "Basics", Content: "x", RequiresCode: false}
	db.Create(&open)
	locked := Lesson{SectionID: section.ID, Title: "Aorist", Content: "y", RequiresCode: true}
	db.Create(&locked)
	seedTest(t, db, section.ID, &locked.ID, teacher.ID, 12)

	w := doJSON(t, r, http.MethodPost, "/api/v1/custom-tests", studentToken, gin.H{
		"selections": map[string]int{fmt.Sprint(locked.ID): 10},
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("custom test over a locked lesson = %d, want 403", w.Code)
	}
}

func TestCustomTestNotYours(t *testing.T) {
	db, r := newTestRouter(t)
	owner, _ := createUser(t, db, "cstud3", RoleStudent)
	_, strangerToken := createUser(t, db, "cstud4", RoleStudent)

	attempt := CustomAttempt{
		StudentID:      owner.ID,
		Label:          "Private",
		Status:         CustomStatusActive,
		SelectionsJSON: "{}",
		QuestionOrder:  "[]",
		ChoiceOrder:    "{}",
	}
	db.Create(&attempt)

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/custom-tests/%d", attempt.ID), strangerToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("stranger on custom test = %d, want 403", w.Code)
	}
}
