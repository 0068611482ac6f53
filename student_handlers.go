package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func intQuery(c *gin.Context, name string) (int, error) {
	return strconv.Atoi(c.Query(name))
}

// sectionForStudent loads a section with everything the access rules need.
func sectionForStudent(db *gorm.DB, c *gin.Context, id uint) (*Section, bool) {
	var section Section
	if err := db.Preload("Lessons", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("lessons.id")
	}).Preload("Tests").First(&section, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "section not found"})
		return nil, false
	}
	return &section, true
}

func accessFor(db *gorm.DB, c *gin.Context, section *Section) (*AccessContext, bool) {
	ac, err := NewAccessContext(db, section, currentUser(c).ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
		return nil, false
	}
	return ac, true
}

/*** Catalog browsing ***/

type SubjectSummary struct {
	Subject
	Active       bool `json:"active"`
	SectionCount int  `json:"sectionCount"`
}

func ListSubjects(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var subjects []Subject
		if err := db.Preload("Sections").Order("id").Find(&subjects).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		var activations []SubjectActivation
		if err := db.Where("student_id = ? AND active = ?", currentUser(c).ID, true).
			Find(&activations).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		active := map[uint]bool{}
		for _, a := range activations {
			active[a.SubjectID] = true
		}
		out := make([]SubjectSummary, 0, len(subjects))
		for _, s := range subjects {
			count := len(s.Sections)
			s.Sections = nil
			out = append(out, SubjectSummary{Subject: s, Active: active[s.ID], SectionCount: count})
		}
		c.JSON(http.StatusOK, out)
	}
}

type SectionSummary struct {
	ID           uint   `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	RequiresCode bool   `json:"requiresCode"`
	Open         bool   `json:"open"`
	LessonCount  int    `json:"lessonCount"`
	TestCount    int    `json:"testCount"`
}

func SubjectDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var subject Subject
		if err := db.First(&subject, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "subject not found"})
			return
		}
		var sections []Section
		if err := db.Preload("Lessons").Preload("Tests").
			Where("subject_id = ?", subject.ID).Order("id").Find(&sections).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		summaries := make([]SectionSummary, 0, len(sections))
		for i := range sections {
			s := &sections[i]
			ac, ok := accessFor(db, c, s)
			if !ok {
				return
			}
			summaries = append(summaries, SectionSummary{
				ID:           s.ID,
				Title:        s.Title,
				Description:  s.Description,
				RequiresCode: s.RequiresCode,
				Open:         ac.SectionOpen,
				LessonCount:  len(s.Lessons),
				TestCount:    len(s.Tests),
			})
		}
		c.JSON(http.StatusOK, gin.H{"subject": subject, "sections": summaries})
	}
}

type LessonSummary struct {
	ID           uint   `json:"id"`
	Title        string `json:"title"`
	RequiresCode bool   `json:"requiresCode"`
	Open         bool   `json:"open"`
}

type TestSummary struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	LessonID *uint  `json:"lessonId,omitempty"`
	Open     bool   `json:"open"`
}

func SectionDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		section, ok := sectionForStudent(db, c, id)
		if !ok {
			return
		}
		ac, ok := accessFor(db, c, section)
		if !ok {
			return
		}
		lessons := make([]LessonSummary, 0, len(section.Lessons))
		for i := range section.Lessons {
			l := &section.Lessons[i]
			lessons = append(lessons, LessonSummary{
				ID:           l.ID,
				Title:        l.Title,
				RequiresCode: l.RequiresCode,
				Open:         ac.LessonOpen(l),
			})
		}
		tests := make([]TestSummary, 0, len(section.Tests))
		for i := range section.Tests {
			t := &section.Tests[i]
			tests = append(tests, TestSummary{
				ID:       t.ID,
				Title:    t.Title,
				LessonID: t.LessonID,
				Open:     ac.TestOpen(t),
			})
		}
		c.JSON(http.StatusOK, gin.H{
			"section": gin.H{
				"id":           section.ID,
				"subjectId":    section.SubjectID,
				"title":        section.Title,
				"description":  section.Description,
				"requiresCode": section.RequiresCode,
				"open":         ac.SectionOpen,
			},
			"lessons": lessons,
			"tests":   tests,
		})
	}
}

type ResourceView struct {
	ID           uint   `json:"id"`
	Label        string `json:"label"`
	URL          string `json:"url"`
	EmbedURL     string `json:"embedUrl"`
	ResourceType string `json:"resourceType"`
	Position     int    `json:"position"`
}

func LessonDetail(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var lesson Lesson
		if err := db.Preload("Resources", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("lesson_resources.position")
		}).Preload("Tests").First(&lesson, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "lesson not found"})
			return
		}
		section, ok := sectionForStudent(db, c, lesson.SectionID)
		if !ok {
			return
		}
		if currentUser(c).Role != RoleTeacher {
			ac, ok := accessFor(db, c, section)
			if !ok {
				return
			}
			if !ac.LessonOpen(&lesson) {
				c.JSON(http.StatusForbidden, gin.H{"error": "lesson is locked, enter an activation code"})
				return
			}
		}
		resources := make([]ResourceView, 0, len(lesson.Resources))
		for _, r := range lesson.Resources {
			resources = append(resources, ResourceView{
				ID:           r.ID,
				Label:        r.Label,
				URL:          r.URL,
				EmbedURL:     toEmbedURL(r.URL),
				ResourceType: inferResourceType(r.ResourceType, r.URL),
				Position:     r.Position,
			})
		}
		tests := make([]TestSummary, 0, len(lesson.Tests))
		for i := range lesson.Tests {
			t := &lesson.Tests[i]
			tests = append(tests, TestSummary{ID: t.ID, Title: t.Title, LessonID: t.LessonID, Open: true})
		}
		c.JSON(http.StatusOK, gin.H{
			"lesson":    lesson,
			"resources": resources,
			"tests":     tests,
		})
	}
}

/*** Taking tests ***/

type ChoiceView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type QuestionView struct {
	ID      uint         `json:"id"`
	Text    string       `json:"text"`
	Hint    *string      `json:"hint,omitempty"`
	Choices []ChoiceView `json:"choices"`
}

type TestPaper struct {
	TestID           uint           `json:"testId"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	TimeLimitSeconds int            `json:"timeLimitSeconds"`
	Questions        []QuestionView `json:"questions"`
}

// testForTaking loads the test and rejects students the access rules lock out.
func testForTaking(db *gorm.DB, c *gin.Context, id uint) (*Test, bool) {
	var test Test
	if err := db.Preload("Questions.Choices").First(&test, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "test not found"})
		return nil, false
	}
	if currentUser(c).Role == RoleTeacher {
		return &test, true
	}
	section, ok := sectionForStudent(db, c, test.SectionID)
	if !ok {
		return nil, false
	}
	ac, ok := accessFor(db, c, section)
	if !ok {
		return nil, false
	}
	if !ac.TestOpen(&test) {
		c.JSON(http.StatusForbidden, gin.H{"error": "test is locked, enter an activation code"})
		return nil, false
	}
	return &test, true
}

// GetTest hands out a randomized paper: a draw of questions in random order
// with shuffled choices, and never the correct flags.
func GetTest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		test, ok := testForTaking(db, c, id)
		if !ok {
			return
		}
		if len(test.Questions) == 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "test has no questions yet"})
			return
		}
		requested := minTestQuestions
		if v, err := intQuery(c, "count"); err == nil {
			requested = v
		}
		count := clampQuestionCount(requested, len(test.Questions))

		byID := make(map[uint]*Question, len(test.Questions))
		allIDs := make([]uint, 0, len(test.Questions))
		for i := range test.Questions {
			q := &test.Questions[i]
			byID[q.ID] = q
			allIDs = append(allIDs, q.ID)
		}
		drawn := drawQuestionIDs(allIDs, count)

		paper := TestPaper{
			TestID:           test.ID,
			Title:            test.Title,
			Description:      test.Description,
			TimeLimitSeconds: timeLimitSeconds(len(drawn)),
			Questions:        make([]QuestionView, 0, len(drawn)),
		}
		for _, qid := range drawn {
			q := byID[qid]
			view := QuestionView{ID: q.ID, Text: q.Text, Hint: q.Hint}
			for _, cid := range shuffledChoiceIDs(q.Choices) {
				for _, ch := range q.Choices {
					if ch.ID == cid {
						view.Choices = append(view.Choices, ChoiceView{ID: ch.ID, Text: ch.Text})
						break
					}
				}
			}
			paper.Questions = append(paper.Questions, view)
		}
		c.JSON(http.StatusOK, paper)
	}
}

type SubmitTestReq struct {
	QuestionIDs []uint        `json:"questionIds" binding:"required,min=1"`
	Answers     map[uint]uint `json:"answers"`
	StartedAt   *time.Time    `json:"startedAt"`
}

// SubmitTest grades the served questions. Unanswered questions count as wrong.
func SubmitTest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		test, ok := testForTaking(db, c, id)
		if !ok {
			return
		}
		var req SubmitTestReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		questions := make(map[uint]*Question, len(test.Questions))
		for i := range test.Questions {
			questions[test.Questions[i].ID] = &test.Questions[i]
		}
		for _, qid := range req.QuestionIDs {
			if questions[qid] == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "question does not belong to this test"})
				return
			}
		}

		started := time.Now()
		if req.StartedAt != nil {
			started = *req.StartedAt
		}
		attempt := Attempt{
			TestID:      test.ID,
			StudentID:   currentUser(c).ID,
			Total:       len(req.QuestionIDs),
			StartedAt:   started,
			SubmittedAt: time.Now(),
		}
		for _, qid := range req.QuestionIDs {
			q := questions[qid]
			answer := AttemptAnswer{QuestionID: qid}
			if cid, answered := req.Answers[qid]; answered {
				for _, ch := range q.Choices {
					if ch.ID == cid {
						chosen := ch
						answer.ChoiceID = &chosen.ID
						answer.IsCorrect = ch.IsCorrect
						break
					}
				}
				if answer.ChoiceID == nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "choice does not belong to the question"})
					return
				}
			}
			if answer.IsCorrect {
				attempt.Score++
			}
			attempt.Answers = append(attempt.Answers, answer)
		}
		if err := db.Create(&attempt).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"attemptId": attempt.ID,
			"score":     attempt.Score,
			"total":     attempt.Total,
			"percent":   percentScore(attempt.Score, attempt.Total),
		})
	}
}

/*** Results ***/

func MyResults(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		studentID := currentUser(c).ID
		var attempts []Attempt
		if err := db.Where("student_id = ?", studentID).
			Order("submitted_at DESC").Find(&attempts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		var customs []CustomAttempt
		if err := db.Where("student_id = ? AND status = ?", studentID, CustomStatusSubmitted).
			Order("created_at DESC").Find(&customs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"attempts":       attemptSummaries(db, attempts),
			"customAttempts": customs,
		})
	}
}

type AnswerReview struct {
	QuestionID   uint    `json:"questionId"`
	QuestionText string  `json:"questionText"`
	ChosenText   *string `json:"chosenText,omitempty"`
	CorrectText  string  `json:"correctText"`
	IsCorrect    bool    `json:"isCorrect"`
}

// AttemptResult shows the graded paper with the correct answers revealed.
// Students only see their own, teachers see any.
func AttemptResult(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var attempt Attempt
		if err := db.Preload("Answers").First(&attempt, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "attempt not found"})
			return
		}
		u := currentUser(c)
		if u.Role != RoleTeacher && attempt.StudentID != u.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your attempt"})
			return
		}
		qids := make([]uint, 0, len(attempt.Answers))
		for _, a := range attempt.Answers {
			qids = append(qids, a.QuestionID)
		}
		var questions []Question
		if len(qids) > 0 {
			if err := db.Preload("Choices").Where("id IN ?", qids).Find(&questions).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
				return
			}
		}
		byID := make(map[uint]*Question, len(questions))
		for i := range questions {
			byID[questions[i].ID] = &questions[i]
		}
		review := make([]AnswerReview, 0, len(attempt.Answers))
		for _, a := range attempt.Answers {
			r := AnswerReview{QuestionID: a.QuestionID, IsCorrect: a.IsCorrect}
			if q := byID[a.QuestionID]; q != nil {
				r.QuestionText = q.Text
				for _, ch := range q.Choices {
					if ch.IsCorrect {
						r.CorrectText = ch.Text
					}
					if a.ChoiceID != nil && ch.ID == *a.ChoiceID {
						text := ch.Text
						r.ChosenText = &text
					}
				}
			}
			review = append(review, r)
		}
		c.JSON(http.StatusOK, gin.H{
			"attempt": attempt,
			"percent": percentScore(attempt.Score, attempt.Total),
			"review":  review,
		})
	}
}
