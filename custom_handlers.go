package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Custom tests let a student assemble one paper out of several unlocked
// lessons. The draw is frozen at creation time so the paper survives reloads
// and cannot be rerolled for better questions.

type CustomLessonOption struct {
	LessonID     uint   `json:"lessonId"`
	LessonTitle  string `json:"lessonTitle"`
	SectionID    uint   `json:"sectionId"`
	SectionTitle string `json:"sectionTitle"`
	SubjectID    uint   `json:"subjectId"`
	Available    int    `json:"available"`
}

// openLessonOptions walks every section and keeps the lessons the student may
// open that have at least one question behind them.
func openLessonOptions(db *gorm.DB, studentID uint) ([]CustomLessonOption, error) {
	var sections []Section
	if err := db.Preload("Lessons").Preload("Tests").Order("id").Find(&sections).Error; err != nil {
		return nil, err
	}
	subjectTitles := map[uint]string{}
	options := []CustomLessonOption{}
	for i := range sections {
		s := &sections[i]
		ac, err := NewAccessContext(db, s, studentID)
		if err != nil {
			return nil, err
		}
		if _, ok := subjectTitles[s.SubjectID]; !ok {
			var subject Subject
			if err := db.Select("id", "name").First(&subject, s.SubjectID).Error; err == nil {
				subjectTitles[s.SubjectID] = subject.Name
			}
		}
		for j := range s.Lessons {
			l := &s.Lessons[j]
			if !ac.LessonOpen(l) {
				continue
			}
			available, err := lessonQuestionCount(db, l.ID)
			if err != nil {
				return nil, err
			}
			if available == 0 {
				continue
			}
			options = append(options, CustomLessonOption{
				LessonID:     l.ID,
				LessonTitle:  l.Title,
				SectionID:    s.ID,
				SectionTitle: s.Title,
				SubjectID:    s.SubjectID,
				Available:    available,
			})
		}
	}
	return options, nil
}

func lessonQuestionCount(db *gorm.DB, lessonID uint) (int, error) {
	var n int64
	err := db.Model(&Question{}).
		Joins("JOIN tests ON tests.id = questions.test_id").
		Where("tests.lesson_id = ?", lessonID).
		Count(&n).Error
	return int(n), err
}

func lessonQuestionIDs(db *gorm.DB, lessonID uint) ([]uint, error) {
	var ids []uint
	err := db.Model(&Question{}).
		Joins("JOIN tests ON tests.id = questions.test_id").
		Where("tests.lesson_id = ?", lessonID).
		Pluck("questions.id", &ids).Error
	return ids, err
}

func CustomTestOptions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		options, err := openLessonOptions(db, currentUser(c).ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"lessons":      options,
			"minQuestions": minTestQuestions,
			"maxQuestions": maxTestQuestions,
		})
	}
}

type CreateCustomReq struct {
	Label      string       `json:"label" binding:"max=50"`
	Selections map[uint]int `json:"selections" binding:"required"`
}

func CreateCustomTest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCustomReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		studentID := currentUser(c).ID

		options, err := openLessonOptions(db, studentID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		available := map[uint]int{}
		subjectOf := map[uint]uint{}
		for _, o := range options {
			available[o.LessonID] = o.Available
			subjectOf[o.LessonID] = o.SubjectID
		}

		total := 0
		var subjectID uint
		for lessonID, count := range req.Selections {
			if count <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "selection counts must be positive"})
				return
			}
			pool, ok := available[lessonID]
			if !ok {
				c.JSON(http.StatusForbidden, gin.H{"error": "lesson is locked or has no questions"})
				return
			}
			if count > pool {
				c.JSON(http.StatusBadRequest, gin.H{"error": "not enough questions in one of the lessons"})
				return
			}
			if subjectID == 0 {
				subjectID = subjectOf[lessonID]
			} else if subjectOf[lessonID] != subjectID {
				c.JSON(http.StatusBadRequest, gin.H{"error": "all lessons must belong to one subject"})
				return
			}
			total += count
		}
		if total < minTestQuestions || total > maxTestQuestions {
			c.JSON(http.StatusBadRequest, gin.H{"error": "total question count must be between 10 and 50"})
			return
		}

		questionIDs := []uint{}
		for lessonID, count := range req.Selections {
			pool, err := lessonQuestionIDs(db, lessonID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
				return
			}
			questionIDs = append(questionIDs, drawQuestionIDs(pool, count)...)
		}
		// One more shuffle so questions from different lessons interleave.
		order := drawQuestionIDs(questionIDs, len(questionIDs))

		var questions []Question
		if err := db.Preload("Choices").Where("id IN ?", order).Find(&questions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		choiceOrder := map[uint][]uint{}
		for i := range questions {
			choiceOrder[questions[i].ID] = shuffledChoiceIDs(questions[i].Choices)
		}

		label := req.Label
		if label == "" {
			label = "Custom Test"
		}
		attempt := CustomAttempt{
			StudentID:      studentID,
			Label:          label,
			Status:         CustomStatusActive,
			Total:          len(order),
			SelectionsJSON: marshalSelections(req.Selections),
			QuestionOrder:  marshalIDs(order),
			ChoiceOrder:    marshalChoiceOrder(choiceOrder),
		}
		if err := db.Create(&attempt).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"id":               attempt.ID,
			"label":            attempt.Label,
			"total":            attempt.Total,
			"timeLimitSeconds": timeLimitSeconds(attempt.Total),
		})
	}
}

func ownCustomAttempt(db *gorm.DB, c *gin.Context, id uint) (*CustomAttempt, bool) {
	var attempt CustomAttempt
	if err := db.First(&attempt, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "custom test not found"})
		return nil, false
	}
	if attempt.StudentID != currentUser(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your custom test"})
		return nil, false
	}
	return &attempt, true
}

// GetCustomTest replays the frozen paper for an active attempt.
func GetCustomTest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		attempt, ok := ownCustomAttempt(db, c, id)
		if !ok {
			return
		}
		if attempt.Status != CustomStatusActive {
			c.JSON(http.StatusConflict, gin.H{"error": "custom test already submitted"})
			return
		}
		order := unmarshalIDs(attempt.QuestionOrder)
		choiceOrder := unmarshalChoiceOrder(attempt.ChoiceOrder)

		var questions []Question
		if err := db.Preload("Choices").Where("id IN ?", order).Find(&questions).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		byID := make(map[uint]*Question, len(questions))
		for i := range questions {
			byID[questions[i].ID] = &questions[i]
		}

		views := make([]QuestionView, 0, len(order))
		for _, qid := range order {
			q := byID[qid]
			if q == nil {
				continue // question deleted since creation
			}
			view := QuestionView{ID: q.ID, Text: q.Text, Hint: q.Hint}
			for _, cid := range choiceOrder[qid] {
				for _, ch := range q.Choices {
					if ch.ID == cid {
						view.Choices = append(view.Choices, ChoiceView{ID: ch.ID, Text: ch.Text})
						break
					}
				}
			}
			views = append(views, view)
		}
		c.JSON(http.StatusOK, gin.H{
			"id":               attempt.ID,
			"label":            attempt.Label,
			"timeLimitSeconds": timeLimitSeconds(len(views)),
			"questions":        views,
		})
	}
}

type SubmitCustomReq struct {
	Answers map[uint]uint `json:"answers"`
}

// SubmitCustomTest grades and closes the attempt. Submitting twice fails.
func SubmitCustomTest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		attempt, ok := ownCustomAttempt(db, c, id)
		if !ok {
			return
		}
		if attempt.Status != CustomStatusActive {
			c.JSON(http.StatusConflict, gin.H{"error": "custom test already submitted"})
			return
		}
		var req SubmitCustomReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		order := unmarshalIDs(attempt.QuestionOrder)
		var questions []Question
		if len(order) > 0 {
			if err := db.Preload("Choices").Where("id IN ?", order).Find(&questions).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
				return
			}
		}
		byID := make(map[uint]*Question, len(questions))
		for i := range questions {
			byID[questions[i].ID] = &questions[i]
		}

		score := 0
		answers := make([]CustomAnswer, 0, len(order))
		for _, qid := range order {
			q := byID[qid]
			if q == nil {
				continue
			}
			answer := CustomAnswer{AttemptID: attempt.ID, QuestionID: qid}
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
				score++
			}
			answers = append(answers, answer)
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if len(answers) > 0 {
				if err := tx.Create(&answers).Error; err != nil {
					return err
				}
			}
			attempt.Status = CustomStatusSubmitted
			attempt.Score = score
			attempt.Total = len(answers)
			return tx.Save(attempt).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":      attempt.ID,
			"score":   attempt.Score,
			"total":   attempt.Total,
			"percent": percentScore(attempt.Score, attempt.Total),
		})
	}
}

// CustomResult reviews a submitted custom attempt in its frozen order.
func CustomResult(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		attempt, ok := ownCustomAttempt(db, c, id)
		if !ok {
			return
		}
		if attempt.Status != CustomStatusSubmitted {
			c.JSON(http.StatusConflict, gin.H{"error": "custom test not submitted yet"})
			return
		}
		var answers []CustomAnswer
		if err := db.Where("attempt_id = ?", attempt.ID).Find(&answers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		byQuestion := make(map[uint]*CustomAnswer, len(answers))
		for i := range answers {
			byQuestion[answers[i].QuestionID] = &answers[i]
		}

		order := unmarshalIDs(attempt.QuestionOrder)
		var questions []Question
		if len(order) > 0 {
			if err := db.Preload("Choices").Where("id IN ?", order).Find(&questions).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
				return
			}
		}
		byID := make(map[uint]*Question, len(questions))
		for i := range questions {
			byID[questions[i].ID] = &questions[i]
		}

		review := make([]AnswerReview, 0, len(order))
		for _, qid := range order {
			q := byID[qid]
			a := byQuestion[qid]
			if q == nil || a == nil {
				continue
			}
			r := AnswerReview{QuestionID: qid, QuestionText: q.Text, IsCorrect: a.IsCorrect}
			for _, ch := range q.Choices {
				if ch.IsCorrect {
					r.CorrectText = ch.Text
				}
				if a.ChoiceID != nil && ch.ID == *a.ChoiceID {
					text := ch.Text
					r.ChosenText = &text
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

// ListCustomTests shows the student's attempts, active first.
func ListCustomTests(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var attempts []CustomAttempt
		if err := db.Where("student_id = ?", currentUser(c).ID).
			Order("status ASC").Order("created_at DESC").Find(&attempts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, attempts)
	}
}
