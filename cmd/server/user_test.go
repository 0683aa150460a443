package main

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soc-assistant/internal/config"
	"soc-assistant/internal/model"
	"soc-assistant/internal/repository"
)

func testConfig(t *testing.T, mr *miniredis.Miniredis) *config.Config {
	t.Helper()
	dir := t.TempDir()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	return &config.Config{
		Server:   config.ServerConfig{Mode: "release"},
		Database: config.DatabaseConfig{Driver: repository.DriverSQLite, SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "soc.db")}},
		Redis:    config.RedisConfig{Host: mr.Host(), Port: port, PoolSize: 1},
		Upload: config.UploadConfig{
			Dir:          dir,
			Subdir:       "attachments",
			MaxSizeKB:    10240,
			AllowedTypes: []string{"application/pdf", "text/csv", "application/xml"},
		},
	}
}

// seedUser 建表并创建一个带会话的用户
func seedUser(t *testing.T, cfg *config.Config) int64 {
	t.Helper()
	db, err := repository.OpenDatabase(cfg.Database, cfg.Server.Mode)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, repository.AutoMigrate(db))
	u := &model.User{Username: "analyst", PasswordHash: "x"}
	require.NoError(t, db.Create(u).Error)
	require.NoError(t, db.Create(&model.Session{UserID: u.ID, Title: "triage"}).Error)
	return u.ID
}

func countUsers(t *testing.T, cfg *config.Config) int64 {
	t.Helper()
	db, err := repository.OpenDatabase(cfg.Database, cfg.Server.Mode)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	var n int64
	require.NoError(t, db.Model(&model.User{}).Count(&n).Error)
	return n
}

func TestDeleteUserClearsActiveSession(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr)
	userID := seedUser(t, cfg)

	require.NoError(t, mr.Set("soc:user:"+strconv.FormatInt(userID, 10)+":active_session", "1"))

	removed, err := deleteUser(context.Background(), cfg, userID)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.False(t, mr.Exists("soc:user:"+strconv.FormatInt(userID, 10)+":active_session"))
	assert.Zero(t, countUsers(t, cfg))
}

func TestDeleteUserWithoutRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cfg := testConfig(t, mr)
	mr.Close()
	userID := seedUser(t, cfg)

	removed, err := deleteUser(context.Background(), cfg, userID)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Zero(t, countUsers(t, cfg))

	_, err = deleteUser(context.Background(), cfg, userID)
	assert.Error(t, err)
}
