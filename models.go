package main

import (
	"time"
)

// --- Accounts ---

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:80;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:120;not null" json:"email"`
	PasswordHash string    `gorm:"size:256;not null" json:"-"`
	Role         string    `gorm:"size:20;not null;default:student" json:"role"`
	SessionToken *string   `gorm:"size:64" json:"-"` // rotated on login; only the newest session stays valid
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}

// --- Course content ---

type Subject struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Description string    `json:"description"`
	CreatedBy   uint      `gorm:"index;not null" json:"createdBy"`
	Sections    []Section `gorm:"constraint:OnDelete:CASCADE" json:"sections,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`
}

type Section struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	SubjectID    uint     `gorm:"index;not null" json:"subjectId"`
	Title        string   `gorm:"size:120;not null" json:"title"`
	Description  string   `json:"description"`
	RequiresCode bool     `gorm:"not null;default:false" json:"requiresCode"`
	Lessons      []Lesson `gorm:"constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
	Tests        []Test   `gorm:"constraint:OnDelete:CASCADE" json:"tests,omitempty"`
}

type Lesson struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	SectionID    uint             `gorm:"index;not null" json:"sectionId"`
	Title        string           `gorm:"size:200;not null" json:"title"`
	Content      string           `gorm:"not null" json:"content"`
	RequiresCode bool             `gorm:"not null;default:true" json:"requiresCode"`
	LinkLabel    *string          `gorm:"size:120" json:"linkLabel,omitempty"`
	LinkURL      *string          `gorm:"size:500" json:"linkUrl,omitempty"`
	Resources    []LessonResource `gorm:"constraint:OnDelete:CASCADE" json:"resources,omitempty"`
	Tests        []Test           `json:"tests,omitempty"`
}

type LessonResource struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	LessonID     uint   `gorm:"index;not null" json:"lessonId"`
	Label        string `gorm:"size:120;not null" json:"label"`
	URL          string `gorm:"size:500;not null" json:"url"`
	ResourceType string `gorm:"size:40" json:"resourceType"` // empty means "infer from URL"
	Position     int    `gorm:"not null;default:0" json:"position"`
}

// --- Tests ---

type Test struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SectionID    uint       `gorm:"index;not null" json:"sectionId"`
	LessonID     *uint      `gorm:"index" json:"lessonId,omitempty"` // nil = section-wide test
	Title        string     `gorm:"size:200;not null" json:"title"`
	Description  string     `json:"description"`
	RequiresCode bool       `gorm:"not null;default:true" json:"requiresCode"`
	CreatedBy    uint       `gorm:"not null" json:"createdBy"`
	Questions    []Question `gorm:"constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

type Question struct {
	ID      uint     `gorm:"primaryKey" json:"id"`
	TestID  uint     `gorm:"index;not null" json:"testId"`
	Text    string   `gorm:"not null" json:"text"`
	Hint    *string  `json:"hint,omitempty"`
	Choices []Choice `gorm:"constraint:OnDelete:CASCADE" json:"choices,omitempty"`
}

type Choice struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"size:400;not null" json:"text"`
	IsCorrect  bool   `gorm:"not null;default:false" json:"-"`
}

// --- Attempts ---

type Attempt struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	TestID      uint            `gorm:"index;not null" json:"testId"`
	StudentID   uint            `gorm:"index;not null" json:"studentId"`
	Score       int             `gorm:"not null" json:"score"`
	Total       int             `gorm:"not null" json:"total"`
	StartedAt   time.Time       `json:"startedAt"`
	SubmittedAt time.Time       `json:"submittedAt"`
	Answers     []AttemptAnswer `gorm:"constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

type AttemptAnswer struct {
	ID         uint  `gorm:"primaryKey" json:"id"`
	AttemptID  uint  `gorm:"index;not null" json:"attemptId"`
	QuestionID uint  `gorm:"not null" json:"questionId"`
	ChoiceID   *uint `json:"choiceId,omitempty"`
	IsCorrect  bool  `gorm:"not null;default:false" json:"isCorrect"`
}

// Custom tests are student-assembled from unlocked lessons. The drawn question
// order and per-question choice order are frozen as JSON so the paper looks
// the same on take, submit and review.

const (
	CustomStatusActive    = "active"
	CustomStatusSubmitted = "submitted"
)

type CustomAttempt struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	StudentID      uint           `gorm:"index;not null" json:"studentId"`
	Label          string         `gorm:"size:50;not null;default:Custom Test" json:"label"`
	Status         string         `gorm:"size:20;not null;default:active" json:"status"`
	Total          int            `gorm:"not null;default:0" json:"total"`
	Score          int            `gorm:"not null;default:0" json:"score"`
	SelectionsJSON string         `gorm:"not null" json:"-"`
	QuestionOrder  string         `gorm:"not null" json:"-"` // JSON array of question IDs
	ChoiceOrder    string         `gorm:"not null" json:"-"` // JSON map question ID -> choice IDs
	CreatedAt      time.Time      `json:"createdAt"`
	Answers        []CustomAnswer `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

type CustomAnswer struct {
	ID         uint  `gorm:"primaryKey" json:"id"`
	AttemptID  uint  `gorm:"index;not null" json:"attemptId"`
	QuestionID uint  `gorm:"not null" json:"questionId"`
	ChoiceID   *uint `json:"choiceId,omitempty"`
	IsCorrect  bool  `gorm:"not null;default:false" json:"isCorrect"`
}

// --- Activations ---
//
// A teacher grants access per student either directly or through a one-time
// 6-char code. Activations are soft: revoking flips `active` off so history
// survives.

type SubjectActivation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SubjectID   uint      `gorm:"index;not null" json:"subjectId"`
	StudentID   uint      `gorm:"index;not null" json:"studentId"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	ActivatedAt time.Time `json:"activatedAt"`
}

type SubjectActivationCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	SubjectID uint       `gorm:"index;not null" json:"subjectId"`
	StudentID uint       `gorm:"index;not null" json:"studentId"`
	Code      string     `gorm:"uniqueIndex;size:6;not null" json:"code"`
	IsUsed    bool       `gorm:"not null;default:false" json:"isUsed"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type SectionActivation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SectionID   uint      `gorm:"index;not null" json:"sectionId"`
	StudentID   uint      `gorm:"index;not null" json:"studentId"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	ActivatedAt time.Time `json:"activatedAt"`
}

type SectionActivationCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	SectionID uint       `gorm:"index;not null" json:"sectionId"`
	StudentID uint       `gorm:"index;not null" json:"studentId"`
	Code      string     `gorm:"uniqueIndex;size:6;not null" json:"code"`
	IsUsed    bool       `gorm:"not null;default:false" json:"isUsed"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type LessonActivation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	LessonID    uint      `gorm:"index;not null" json:"lessonId"`
	StudentID   uint      `gorm:"index;not null" json:"studentId"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	ActivatedAt time.Time `json:"activatedAt"`
}

type LessonActivationCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	LessonID  uint       `gorm:"index;not null" json:"lessonId"`
	StudentID uint       `gorm:"index;not null" json:"studentId"`
	Code      string     `gorm:"uniqueIndex;size:6;not null" json:"code"`
	IsUsed    bool       `gorm:"not null;default:false" json:"isUsed"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
