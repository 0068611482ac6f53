package main

import (
	"log"

	"gorm.io/gorm"
)

// BootstrapTeacher creates the first teacher account from the environment
// when the users table is empty. Without it a fresh database has nobody who
// can create content.
func BootstrapTeacher(db *gorm.DB, cfg Config) error {
	empty, err := IsUserTableEmpty(db)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}
	if cfg.BootstrapUsername == "" || cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		log.Printf("No bootstrap teacher configured; register one via the API")
		return nil
	}
	hash, err := bcryptHash(cfg.BootstrapPassword)
	if err != nil {
		return err
	}
	u := User{
		Username:     cfg.BootstrapUsername,
		Email:        cfg.BootstrapEmail,
		PasswordHash: hash,
		Role:         RoleTeacher,
	}
	if err := db.Create(&u).Error; err != nil {
		return err
	}
	log.Printf("Bootstrapped teacher account %q", u.Username)
	return nil
}
