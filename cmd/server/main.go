// Package main 是服务端的入口点
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"soc-assistant/internal/config"
	"soc-assistant/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "soc-assistant",
	Short: "SOC 助手服务端",
	Long: `SOC 助手服务端

提供 HTTP API、WebSocket 界面事件推送和流式 AI 回复。
配置从 <config>/config.yaml 读取，环境变量可以覆盖配置项（例如 OLLAMA_BASE_URL）。`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs", "配置文件目录")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
