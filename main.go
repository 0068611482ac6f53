package main

import (
	"log"
)

func main() {
	cfg := LoadConfig()

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := BootstrapTeacher(db, cfg); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	r := NewRouter(db, cfg)

	log.Printf("Listening on :%s (SecureCookies=%v)", cfg.Port, cfg.SecureCookies)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("run: %v", err)
	}
}
