package database

import "threadline/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Comment{},
		&models.CommentReaction{},
	}
}
