package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// adminTables whitelists what the inspection endpoints may touch. Anything
// else in the database file stays invisible.
var adminTables = []string{
	"users",
	"subjects",
	"sections",
	"lessons",
	"lesson_resources",
	"tests",
	"questions",
	"choices",
	"attempts",
	"attempt_answers",
	"custom_attempts",
	"custom_answers",
	"subject_activations",
	"subject_activation_codes",
	"section_activations",
	"section_activation_codes",
	"lesson_activations",
	"lesson_activation_codes",
}

const adminRowLimit = 100

func adminTableAllowed(name string) bool {
	for _, t := range adminTables {
		if t == name {
			return true
		}
	}
	return false
}

// AdminOverview returns per-table row counts.
func AdminOverview(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts := make(map[string]int64, len(adminTables))
		for _, table := range adminTables {
			var n int64
			if err := db.Table(table).Count(&n).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
				return
			}
			counts[table] = n
		}
		c.JSON(http.StatusOK, gin.H{"tables": counts})
	}
}

// AdminTable dumps up to 100 rows of one whitelisted table. Password hashes
// are scrubbed before the rows go out.
func AdminTable(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		table := c.Param("name")
		if !adminTableAllowed(table) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown table"})
			return
		}
		var rows []map[string]interface{}
		if err := db.Table(table).Limit(adminRowLimit).Find(&rows).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		for _, row := range rows {
			delete(row, "password_hash")
			delete(row, "session_token")
		}
		var total int64
		if err := db.Table(table).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"table": table,
			"total": total,
			"limit": adminRowLimit,
			"rows":  rows,
		})
	}
}
