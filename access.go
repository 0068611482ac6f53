package main

import (
	"time"

	"gorm.io/gorm"
)

// AccessContext answers "what can this student see in this section?" for the
// three-level hierarchy Subject -> Section -> Lesson.
//
// Rules:
//   - subject activated: everything inside is open
//   - section open = subject active OR section active OR section has no code
//   - first lesson of a locked section is always free, as is the first
//     section-wide test
//   - a lesson activation opens that lesson and its tests only
type AccessContext struct {
	SubjectActive bool
	SectionActive bool
	SectionOpen   bool

	lessonActivations  map[uint]bool
	firstLessonID      uint
	firstSectionTestID uint
}

// NewAccessContext expects section.Lessons and section.Tests to be preloaded.
func NewAccessContext(db *gorm.DB, section *Section, studentID uint) (*AccessContext, error) {
	ac := &AccessContext{lessonActivations: map[uint]bool{}}

	var n int64
	if err := db.Model(&SubjectActivation{}).
		Where("subject_id = ? AND student_id = ? AND active = ?", section.SubjectID, studentID, true).
		Count(&n).Error; err != nil {
		return nil, err
	}
	ac.SubjectActive = n > 0

	if err := db.Model(&SectionActivation{}).
		Where("section_id = ? AND student_id = ? AND active = ?", section.ID, studentID, true).
		Count(&n).Error; err != nil {
		return nil, err
	}
	ac.SectionActive = n > 0
	ac.SectionOpen = ac.SubjectActive || ac.SectionActive || !section.RequiresCode

	lessonIDs := make([]uint, 0, len(section.Lessons))
	for _, l := range section.Lessons {
		lessonIDs = append(lessonIDs, l.ID)
		if ac.firstLessonID == 0 || l.ID < ac.firstLessonID {
			ac.firstLessonID = l.ID
		}
	}
	for _, t := range section.Tests {
		if t.LessonID == nil && (ac.firstSectionTestID == 0 || t.ID < ac.firstSectionTestID) {
			ac.firstSectionTestID = t.ID
		}
	}

	if len(lessonIDs) > 0 {
		var las []LessonActivation
		if err := db.Where("lesson_id IN ? AND student_id = ? AND active = ?", lessonIDs, studentID, true).
			Find(&las).Error; err != nil {
			return nil, err
		}
		for _, la := range las {
			ac.lessonActivations[la.LessonID] = true
		}
	}
	return ac, nil
}

func (ac *AccessContext) LessonOpen(lesson *Lesson) bool {
	if ac.SectionOpen {
		return true
	}
	if ac.firstLessonID != 0 && lesson.ID == ac.firstLessonID {
		return true
	}
	return ac.lessonActivations[lesson.ID]
}

func (ac *AccessContext) TestOpen(test *Test) bool {
	if ac.SectionOpen {
		return true
	}
	if test.LessonID != nil {
		if ac.firstLessonID != 0 && *test.LessonID == ac.firstLessonID {
			return true
		}
		return ac.lessonActivations[*test.LessonID]
	}
	// Section-wide tests never unlock through a lesson code.
	return ac.firstSectionTestID != 0 && test.ID == ac.firstSectionTestID
}

// --- Activation cascades ---
//
// Direct activation and code redemption share these. Cascading down keeps the
// per-lesson activation rows in sync so later revokes behave predictably.

func activateSubject(db *gorm.DB, subjectID, studentID uint) error {
	if err := ensureSubjectActivation(db, subjectID, studentID); err != nil {
		return err
	}
	var sections []Section
	if err := db.Preload("Lessons").Where("subject_id = ?", subjectID).Find(&sections).Error; err != nil {
		return err
	}
	for i := range sections {
		if err := cascadeSectionActivation(db, &sections[i], studentID); err != nil {
			return err
		}
	}
	return nil
}

func activateSection(db *gorm.DB, section *Section, studentID uint) error {
	return cascadeSectionActivation(db, section, studentID)
}

func activateLesson(db *gorm.DB, lessonID, studentID uint) error {
	return ensureLessonActivation(db, lessonID, studentID)
}

// cascadeSectionActivation marks the section and every lesson in it active.
// Expects section.Lessons preloaded.
func cascadeSectionActivation(db *gorm.DB, section *Section, studentID uint) error {
	if err := ensureSectionActivation(db, section.ID, studentID); err != nil {
		return err
	}
	for _, l := range section.Lessons {
		if err := ensureLessonActivation(db, l.ID, studentID); err != nil {
			return err
		}
	}
	return nil
}

func ensureSubjectActivation(db *gorm.DB, subjectID, studentID uint) error {
	var n int64
	if err := db.Model(&SubjectActivation{}).
		Where("subject_id = ? AND student_id = ? AND active = ?", subjectID, studentID, true).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return db.Create(&SubjectActivation{
		SubjectID:   subjectID,
		StudentID:   studentID,
		Active:      true,
		ActivatedAt: time.Now(),
	}).Error
}

func ensureSectionActivation(db *gorm.DB, sectionID, studentID uint) error {
	var n int64
	if err := db.Model(&SectionActivation{}).
		Where("section_id = ? AND student_id = ? AND active = ?", sectionID, studentID, true).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return db.Create(&SectionActivation{
		SectionID:   sectionID,
		StudentID:   studentID,
		Active:      true,
		ActivatedAt: time.Now(),
	}).Error
}

func ensureLessonActivation(db *gorm.DB, lessonID, studentID uint) error {
	var n int64
	if err := db.Model(&LessonActivation{}).
		Where("lesson_id = ? AND student_id = ? AND active = ?", lessonID, studentID, true).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return db.Create(&LessonActivation{
		LessonID:    lessonID,
		StudentID:   studentID,
		Active:      true,
		ActivatedAt: time.Now(),
	}).Error
}

// revokeSubjectAccess deactivates the subject activation and everything the
// subject cascaded into.
func revokeSubjectAccess(db *gorm.DB, subjectID, studentID uint) error {
	if err := db.Model(&SubjectActivation{}).
		Where("subject_id = ? AND student_id = ? AND active = ?", subjectID, studentID, true).
		Update("active", false).Error; err != nil {
		return err
	}
	var sections []Section
	if err := db.Preload("Lessons").Where("subject_id = ?", subjectID).Find(&sections).Error; err != nil {
		return err
	}
	for i := range sections {
		if err := revokeSectionAccess(db, &sections[i], studentID); err != nil {
			return err
		}
	}
	return nil
}

// revokeSectionAccess deactivates the section and its lesson activations for
// one student. Expects section.Lessons preloaded.
func revokeSectionAccess(db *gorm.DB, section *Section, studentID uint) error {
	if err := db.Model(&SectionActivation{}).
		Where("section_id = ? AND student_id = ? AND active = ?", section.ID, studentID, true).
		Update("active", false).Error; err != nil {
		return err
	}
	lessonIDs := make([]uint, 0, len(section.Lessons))
	for _, l := range section.Lessons {
		lessonIDs = append(lessonIDs, l.ID)
	}
	if len(lessonIDs) == 0 {
		return nil
	}
	return db.Model(&LessonActivation{}).
		Where("lesson_id IN ? AND student_id = ? AND active = ?", lessonIDs, studentID, true).
		Update("active", false).Error
}

func revokeLessonAccess(db *gorm.DB, lessonID, studentID uint) error {
	return db.Model(&LessonActivation{}).
		Where("lesson_id = ? AND student_id = ? AND active = ?", lessonID, studentID, true).
		Update("active", false).Error
}

// lockSectionAccessForAll clears every student's activations in a section.
// Used when a teacher flips a section back to code-required: only the
// freebies (first lesson, first section-wide test) stay open afterwards.
func lockSectionAccessForAll(db *gorm.DB, section *Section) error {
	if err := db.Model(&SectionActivation{}).
		Where("section_id = ? AND active = ?", section.ID, true).
		Update("active", false).Error; err != nil {
		return err
	}
	lessonIDs := make([]uint, 0, len(section.Lessons))
	for _, l := range section.Lessons {
		lessonIDs = append(lessonIDs, l.ID)
	}
	if len(lessonIDs) == 0 {
		return nil
	}
	return db.Model(&LessonActivation{}).
		Where("lesson_id IN ? AND active = ?", lessonIDs, true).
		Update("active", false).Error
}
