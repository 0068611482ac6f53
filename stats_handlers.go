package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type StatsResponse struct {
	TotalAttempts     int64              `json:"totalAttempts"`
	CustomAttempts    int64              `json:"customAttempts"`
	AverageScore      *float64           `json:"averageScore,omitempty"`
	TotalAnswers      int64              `json:"totalAnswers"`
	CorrectAnswers    int64              `json:"correctAnswers"`
	AccuracyOverall   *float64           `json:"accuracyOverall,omitempty"`
	AnswersLast30d    int64              `json:"answersLast30d"`
	CorrectLast30d    int64              `json:"correctLast30d"`
	AccuracyLast30d   *float64           `json:"accuracyLast30d,omitempty"`
	AccuracyBySubject map[string]float64 `json:"accuracyBySubject,omitempty"` // subject -> percent
	AnsweredBySubject map[string]int64   `json:"answeredBySubject,omitempty"` // subject -> count
}

// StudentStats aggregates one student's history across regular and custom
// attempts.
func StudentStats(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c).ID

		resp := StatsResponse{
			AccuracyBySubject: make(map[string]float64),
			AnsweredBySubject: make(map[string]int64),
		}

		if err := db.Model(&Attempt{}).Where("student_id = ?", uid).Count(&resp.TotalAttempts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		if err := db.Model(&CustomAttempt{}).
			Where("student_id = ? AND status = ?", uid, CustomStatusSubmitted).
			Count(&resp.CustomAttempts).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}

		// average percent over regular attempts
		type RowAvg struct{ Avg *float64 }
		var rowAvg RowAvg
		_ = db.Table("attempts").
			Where("student_id = ? AND total > 0", uid).
			Select("AVG(score * 100.0 / total) as avg").
			Scan(&rowAvg).Error
		resp.AverageScore = rowAvg.Avg

		// overall answers & correct (join answers->attempts to filter by student)
		type RowCnt struct{ C int64 }
		var total RowCnt
		_ = db.Table("attempt_answers a").
			Joins("JOIN attempts at ON at.id = a.attempt_id").
			Where("at.student_id = ?", uid).
			Select("COUNT(*) as c").Scan(&total).Error
		resp.TotalAnswers = total.C

		var corr RowCnt
		_ = db.Table("attempt_answers a").
			Joins("JOIN attempts at ON at.id = a.attempt_id").
			Where("at.student_id = ? AND a.is_correct = 1", uid).
			Select("COUNT(*) as c").Scan(&corr).Error
		resp.CorrectAnswers = corr.C

		if resp.TotalAnswers > 0 {
			acc := float64(resp.CorrectAnswers) * 100.0 / float64(resp.TotalAnswers)
			resp.AccuracyOverall = &acc
		}

		// last 30 days
		since := time.Now().Add(-30 * 24 * time.Hour)
		var tot30 RowCnt
		_ = db.Table("attempt_answers a").
			Joins("JOIN attempts at ON at.id = a.attempt_id").
			Where("at.student_id = ? AND at.submitted_at >= ?", uid, since).
			Select("COUNT(*) as c").Scan(&tot30).Error
		resp.AnswersLast30d = tot30.C

		var cor30 RowCnt
		_ = db.Table("attempt_answers a").
			Joins("JOIN attempts at ON at.id = a.attempt_id").
			Where("at.student_id = ? AND at.submitted_at >= ? AND a.is_correct = 1", uid, since).
			Select("COUNT(*) as c").Scan(&cor30).Error
		resp.CorrectLast30d = cor30.C

		if resp.AnswersLast30d > 0 {
			acc30 := float64(resp.CorrectLast30d) * 100.0 / float64(resp.AnswersLast30d)
			resp.AccuracyLast30d = &acc30
		}

		// accuracy per subject: walk answers up to the subject name and
		// aggregate in Go, subjects stay a small set.
		type AnsJoin struct {
			IsCorrect bool
			Subject   string
		}
		var rows []AnsJoin
		_ = db.Table("attempt_answers a").
			Select("a.is_correct as is_correct, subjects.name as subject").
			Joins("JOIN attempts at ON at.id = a.attempt_id").
			Joins("JOIN tests t ON t.id = at.test_id").
			Joins("JOIN sections s ON s.id = t.section_id").
			Joins("JOIN subjects ON subjects.id = s.subject_id").
			Where("at.student_id = ?", uid).
			Scan(&rows).Error

		subjTotals := map[string]int64{}
		subjCorrect := map[string]int64{}
		for _, r := range rows {
			if r.Subject == "" {
				continue
			}
			subjTotals[r.Subject]++
			if r.IsCorrect {
				subjCorrect[r.Subject]++
			}
		}
		for subject, tot := range subjTotals {
			resp.AnsweredBySubject[subject] = tot
			if tot > 0 {
				resp.AccuracyBySubject[subject] = float64(subjCorrect[subject]) * 100.0 / float64(tot)
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}
