package main

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func OpenDB(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{})
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Subject{},
		&Section{},
		&Lesson{},
		&LessonResource{},
		&Test{},
		&Question{},
		&Choice{},
		&Attempt{},
		&AttemptAnswer{},
		&CustomAttempt{},
		&CustomAnswer{},
		&SubjectActivation{},
		&SubjectActivationCode{},
		&SectionActivation{},
		&SectionActivationCode{},
		&LessonActivation{},
		&LessonActivationCode{},
	)
}

func IsUserTableEmpty(db *gorm.DB) (bool, error) {
	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}
