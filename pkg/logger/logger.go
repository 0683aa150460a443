// Package logger 初始化全局 zerolog 日志
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"soc-assistant/internal/config"
)

// Init 根据配置设置全局日志级别和输出格式
// format 为 console 时输出带颜色的可读格式，其余情况输出 JSON
func Init(cfg config.LogConfig) zerolog.Logger {
	return InitWithWriter(cfg, os.Stdout)
}

// InitWithWriter 与 Init 相同，但可以指定输出目标
func InitWithWriter(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
