// Package main 是终端客户端的入口点
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"soc-assistant/internal/cli/cmd"
)

func main() {
	// 客户端只把诊断信息写到 stderr
	level := zerolog.WarnLevel
	if os.Getenv("SOC_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cmd.Execute()
}
