package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ==== JSON input structures ====
//
// The quiz export format carries questions with answerOptions marked correct
// inline:
//
//	{"quiz": [{"question": "...", "hint": "...",
//	           "answerOptions": [{"text": "...", "isCorrect": true}, ...]}]}

type QuizOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type QuizQuestion struct {
	Question      string       `json:"question"`
	Hint          string       `json:"hint"`
	AnswerOptions []QuizOption `json:"answerOptions"`
}

type QuizImport struct {
	Quiz []QuizQuestion `json:"quiz"`
}

// ==== Importer ====

// ImportQuiz inserts questions into a test transactionally. Malformed entries
// (no text, fewer than two options, or not exactly one correct option) are
// skipped, not fatal.
func ImportQuiz(db *gorm.DB, testID uint, raw []byte) (added, skipped int, err error) {
	// Accept either: [ ... ] or { "quiz": [ ... ] }
	var wrapper QuizImport
	var arr []QuizQuestion

	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Quiz) > 0 {
		arr = wrapper.Quiz
	} else if err := json.Unmarshal(raw, &arr); err != nil {
		return 0, 0, fmt.Errorf("json parse: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, in := range arr {
			text := strings.TrimSpace(in.Question)
			if text == "" {
				skipped++
				continue
			}
			options := make([]QuizOption, 0, len(in.AnswerOptions))
			correct := 0
			for _, o := range in.AnswerOptions {
				if strings.TrimSpace(o.Text) == "" {
					continue
				}
				options = append(options, o)
				if o.IsCorrect {
					correct++
				}
			}
			if len(options) < 2 || correct != 1 {
				skipped++
				continue
			}

			q := Question{TestID: testID, Text: text}
			if hint := strings.TrimSpace(in.Hint); hint != "" {
				q.Hint = &hint
			}
			if err := tx.Create(&q).Error; err != nil {
				return err
			}
			for _, o := range options {
				choice := Choice{
					QuestionID: q.ID,
					Text:       strings.TrimSpace(o.Text),
					IsCorrect:  o.IsCorrect,
				}
				if err := tx.Create(&choice).Error; err != nil {
					return err
				}
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return added, skipped, nil
}

// ImportQuestions is the HTTP wrapper: the request body is the quiz JSON.
func ImportQuestions(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		test, ok := ownedTest(db, c, id)
		if !ok {
			return
		}
		raw, err := c.GetRawData()
		if err != nil || len(raw) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
			return
		}
		added, skipped, err := ImportQuiz(db, test.ID, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"added": added, "skipped": skipped})
	}
}
