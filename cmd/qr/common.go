package main

import (
	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/db"
	"gorm.io/gorm"
)

// defaultConfigPath is the config file commands look for when -c is omitted.
const defaultConfigPath = "quorum.yaml"

// connectFromConfig loads configuration and opens the database connection
// shared by most commands.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 3 {
		max = 3
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
