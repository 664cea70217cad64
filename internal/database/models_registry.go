package database

import "github.com/kazumasamatsumoto/api-insta/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models,
// parents before children so foreign keys resolve during AutoMigrate.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Profile{},
		&models.Post{},
		&models.PostLike{},
		&models.Comment{},
	}
}
