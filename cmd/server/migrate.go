package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"soc-assistant/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据库表",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := repository.OpenDatabase(cfg.Database, cfg.Server.Mode)
		if err != nil {
			return err
		}
		if err := repository.AutoMigrate(db); err != nil {
			return err
		}

		log.Info().Str("driver", cfg.Database.Driver).Msg("database migrated")
		return nil
	},
}
