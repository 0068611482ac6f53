package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// uniqueCode draws codes until one is free in the given code table.
func uniqueCode(db *gorm.DB, model any) (string, error) {
	for {
		code := newActivationCode()
		var n int64
		if err := db.Model(model).Where("code = ?", code).Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
}

func studentByID(db *gorm.DB, c *gin.Context, id uint) (*User, bool) {
	var student User
	if err := db.First(&student, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return nil, false
	}
	if student.Role != RoleStudent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is not a student"})
		return nil, false
	}
	return &student, true
}

type StudentIDReq struct {
	StudentID uint `json:"studentId" binding:"required"`
}

type RedeemReq struct {
	Code string `json:"code" binding:"required,activationcode"`
}

/*** Subject access (teacher) ***/

func SubjectAccess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		subject, ok := ownedSubject(db, c, id)
		if !ok {
			return
		}
		var activations []SubjectActivation
		if err := db.Where("subject_id = ? AND active = ?", subject.ID, true).Find(&activations).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		var codes []SubjectActivationCode
		if err := db.Where("subject_id = ?", subject.ID).Order("created_at DESC").Find(&codes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		codesByStudent := map[uint][]SubjectActivationCode{}
		for _, code := range codes {
			codesByStudent[code.StudentID] = append(codesByStudent[code.StudentID], code)
		}
		c.JSON(http.StatusOK, gin.H{
			"subject":        subject,
			"activations":    activations,
			"codesByStudent": codesByStudent,
		})
	}
}

func GenerateSubjectCode(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		subject, ok := ownedSubject(db, c, id)
		if !ok {
			return
		}
		var req StudentIDReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "studentId required"})
			return
		}
		student, ok := studentByID(db, c, req.StudentID)
		if !ok {
			return
		}
		// One outstanding code per student and subject.
		var n int64
		if err := db.Model(&SubjectActivationCode{}).
			Where("subject_id = ? AND student_id = ? AND is_used = ?", subject.ID, student.ID, false).
			Count(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		if n > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "student already has an unused code for this subject"})
			return
		}
		code, err := uniqueCode(db, &SubjectActivationCode{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		row := SubjectActivationCode{SubjectID: subject.ID, StudentID: student.ID, Code: code}
		if err := db.Create(&row).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, row)
	}
}

func DeleteSubjectCode(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		subject, ok := ownedSubject(db, c, id)
		if !ok {
			return
		}
		codeID, ok := idParam(c, "codeId")
		if !ok {
			return
		}
		var code SubjectActivationCode
		if err := db.First(&code, codeID).Error; err != nil || code.SubjectID != subject.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "code not found"})
			return
		}
		if err := db.Delete(&code).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func ActivateSubjectForStudent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		subject, ok := ownedSubject(db, c, id)
		if !ok {
			return
		}
		var req StudentIDReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "studentId required"})
			return
		}
		student, ok := studentByID(db, c, req.StudentID)
		if !ok {
			return
		}
		if err := activateSubject(db, subject.ID, student.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activated": true})
	}
}

func RevokeSubjectForStudent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		subject, ok := ownedSubject(db, c, id)
		if !ok {
			return
		}
		studentID, ok := idParam(c, "studentId")
		if !ok {
			return
		}
		if err := revokeSubjectAccess(db, subject.ID, studentID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"revoked": true})
	}
}

/*** Section access (teacher) ***/

func SectionAccess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		section, ok := ownedSection(db, c, id)
		if !ok {
			return
		}
		var activations []SectionActivation
		if err := db.Where("section_id = ? AND active = ?", section.ID, true).Find(&activations).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		var codes []SectionActivationCode
		if err := db.Where("section_id = ?", section.ID).Order("created_at DESC").Find(&codes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		codesByStudent := map[uint][]SectionActivationCode{}
		for _, code := range codes {
			codesByStudent[code.StudentID] = append(codesByStudent[code.StudentID], code)
		}
		c.JSON(http.StatusOK, gin.H{
			"section":        section,
			"activations":    activations,
			"codesByStudent": codesByStudent,
		})
	}
}

func GenerateSectionCode(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		section, ok := ownedSection(db, c, id)
		if !ok {
			return
		}
		var req StudentIDReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "studentId required"})
			return
		}
		student, ok := studentByID(db, c, req.StudentID)
		if !ok {
			return
		}
		var n int64
		if err := db.Model(&SectionActivationCode{}).
			Where("section_id = ? AND student_id = ? AND is_used = ?", section.ID, student.ID, false).
			Count(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		if n > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "student already has an unused code for this section"})
			return
		}
		code, err := uniqueCode(db, &SectionActivationCode{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		row := SectionActivationCode{SectionID: section.ID, StudentID: student.ID, Code: code}
		if err := db.Create(&row).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, row)
	}
}

func DeleteSectionCode(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		section, ok := ownedSection(db, c, id)
		if !ok {
			return
		}
		codeID, ok := idParam(c, "codeId")
		if !ok {
			return
		}
		var code SectionActivationCode
		if err := db.First(&code, codeID).Error; err != nil || code.SectionID != section.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "code not found"})
			return
		}
		if err := db.Delete(&code).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func ActivateSectionForStudent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		section, ok := ownedSection(db, c, id, "Lessons")
		if !ok {
			return
		}
		var req StudentIDReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "studentId required"})
			return
		}
		student, ok := studentByID(db, c, req.StudentID)
		if !ok {
			return
		}
		if err := activateSection(db, section, student.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activated": true})
	}
}

func RevokeSectionForStudent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		section, ok := ownedSection(db, c, id, "Lessons")
		if !ok {
			return
		}
		studentID, ok := idParam(c, "studentId")
		if !ok {
			return
		}
		if err := revokeSectionAccess(db, section, studentID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"revoked": true})
	}
}

// ToggleSectionCode flips requires_code. Locking a section clears all
// activations in it, so only the freebies remain open.
func ToggleSectionCode(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		section, ok := ownedSection(db, c, id, "Lessons")
		if !ok {
			return
		}
		section.RequiresCode = !section.RequiresCode
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(section).Error; err != nil {
				return err
			}
			if section.RequiresCode {
				return lockSectionAccessForAll(tx, section)
			}
			return nil
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, section)
	}
}

/*** Lesson access (teacher) ***/

func LessonAccess(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		lesson, ok := ownedLesson(db, c, id)
		if !ok {
			return
		}
		var activations []LessonActivation
		if err := db.Where("lesson_id = ? AND active = ?", lesson.ID, true).Find(&activations).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		var codes []LessonActivationCode
		if err := db.Where("lesson_id = ?", lesson.ID).Order("created_at DESC").Find(&codes).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		codesByStudent := map[uint][]LessonActivationCode{}
		for _, code := range codes {
			codesByStudent[code.StudentID] = append(codesByStudent[code.StudentID], code)
		}
		c.JSON(http.StatusOK, gin.H{
			"lesson":         lesson,
			"activations":    activations,
			"codesByStudent": codesByStudent,
		})
	}
}

func GenerateLessonCode(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		lesson, ok := ownedLesson(db, c, id)
		if !ok {
			return
		}
		var req StudentIDReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "studentId required"})
			return
		}
		student, ok := studentByID(db, c, req.StudentID)
		if !ok {
			return
		}
		var n int64
		if err := db.Model(&LessonActivationCode{}).
			Where("lesson_id = ? AND student_id = ? AND is_used = ?", lesson.ID, student.ID, false).
			Count(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		if n > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "student already has an unused code for this lesson"})
			return
		}
		code, err := uniqueCode(db, &LessonActivationCode{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		row := LessonActivationCode{LessonID: lesson.ID, StudentID: student.ID, Code: code}
		if err := db.Create(&row).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusCreated, row)
	}
}

func DeleteLessonCode(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		lesson, ok := ownedLesson(db, c, id)
		if !ok {
			return
		}
		codeID, ok := idParam(c, "codeId")
		if !ok {
			return
		}
		var code LessonActivationCode
		if err := db.First(&code, codeID).Error; err != nil || code.LessonID != lesson.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "code not found"})
			return
		}
		if err := db.Delete(&code).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func ActivateLessonForStudent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		lesson, ok := ownedLesson(db, c, id)
		if !ok {
			return
		}
		var req StudentIDReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "studentId required"})
			return
		}
		student, ok := studentByID(db, c, req.StudentID)
		if !ok {
			return
		}
		if err := activateLesson(db, lesson.ID, student.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activated": true})
	}
}

func RevokeLessonForStudent(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		lesson, ok := ownedLesson(db, c, id)
		if !ok {
			return
		}
		studentID, ok := idParam(c, "studentId")
		if !ok {
			return
		}
		if err := revokeLessonAccess(db, lesson.ID, studentID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"revoked": true})
	}
}

/*** Code redemption (student) ***/

func RedeemSubjectCode(db *gorm.DB) gin.HandlerFunc {
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
		var req RedeemReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code required"})
			return
		}
		student := currentUser(c)
		var code SubjectActivationCode
		err := db.Where("subject_id = ? AND student_id = ? AND code = ?",
			subject.ID, student.ID, normalizeCode(req.Code)).First(&code).Error
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code for this subject"})
			return
		}
		if code.IsUsed {
			c.JSON(http.StatusConflict, gin.H{"error": "this code has already been used"})
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			code.IsUsed = true
			code.UsedAt = &now
			if err := tx.Save(&code).Error; err != nil {
				return err
			}
			return activateSubject(tx, subject.ID, student.ID)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activated": true})
	}
}

func RedeemSectionCode(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var section Section
		if err := db.Preload("Lessons").First(&section, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "section not found"})
			return
		}
		var req RedeemReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code required"})
			return
		}
		student := currentUser(c)
		var code SectionActivationCode
		err := db.Where("section_id = ? AND student_id = ? AND code = ?",
			section.ID, student.ID, normalizeCode(req.Code)).First(&code).Error
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code for this section"})
			return
		}
		if code.IsUsed {
			c.JSON(http.StatusConflict, gin.H{"error": "this code has already been used"})
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			code.IsUsed = true
			code.UsedAt = &now
			if err := tx.Save(&code).Error; err != nil {
				return err
			}
			return activateSection(tx, &section, student.ID)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activated": true})
	}
}

func RedeemLessonCode(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var lesson Lesson
		if err := db.First(&lesson, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "lesson not found"})
			return
		}
		var req RedeemReq
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code required"})
			return
		}
		student := currentUser(c)
		var code LessonActivationCode
		err := db.Where("lesson_id = ? AND student_id = ? AND code = ?",
			lesson.ID, student.ID, normalizeCode(req.Code)).First(&code).Error
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code for this lesson"})
			return
		}
		if code.IsUsed {
			c.JSON(http.StatusConflict, gin.H{"error": "this code has already been used"})
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			now := time.Now()
			code.IsUsed = true
			code.UsedAt = &now
			if err := tx.Save(&code).Error; err != nil {
				return err
			}
			return activateLesson(tx, lesson.ID, student.ID)
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activated": true})
	}
}
