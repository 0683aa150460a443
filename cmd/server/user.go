package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"soc-assistant/internal/cache"
	"soc-assistant/internal/config"
	"soc-assistant/internal/relay"
	"soc-assistant/internal/repository"
	"soc-assistant/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "用户管理",
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "删除用户及其全部会话、消息和附件",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || userID <= 0 {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		removed, err := deleteUser(cmd.Context(), cfg, userID)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "user %d deleted, %d attachment file(s) removed\n", userID, removed)
		return nil
	},
}

// deleteUser 级联删除用户，返回删除的附件文件数
// Redis 只用于清理当前会话，连接失败时记录警告并继续
func deleteUser(ctx context.Context, cfg *config.Config, userID int64) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := repository.OpenDatabase(cfg.Database, cfg.Server.Mode)
	if err != nil {
		return 0, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0, err
	}
	defer sqlDB.Close()

	var redisCache *cache.RedisCache
	if rc, err := cache.NewRedisCache(cfg.Redis); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr()).Msg("redis unavailable, skipping active session cleanup")
	} else {
		redisCache = rc
		defer redisCache.Close()
	}

	attachmentRepo := repository.NewAttachmentRepository(db)
	users := service.NewUserService(
		repository.NewUserRepository(db),
		redisCache,
		newIngestor(cfg.Upload, attachmentRepo),
		relay.NewRegistry(),
	)
	return users.DeleteAccount(ctx, userID)
}

func init() {
	userCmd.AddCommand(userDeleteCmd)
}
