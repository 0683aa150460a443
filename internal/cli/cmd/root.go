// Package cmd 实现 CLI 命令
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"soc-assistant/internal/cli/api"
	"soc-assistant/internal/cli/config"
)

var rootCmd = &cobra.Command{
	Use:   "soc-cli",
	Short: "SOC 助手终端客户端",
	Long: `SOC 助手终端客户端

在终端里和 SOC 助手对话：管理会话、发送消息和附件、实时查看 AI 回复。

首次使用请先运行 'soc-cli login'。`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute 执行根命令
// Ctrl+C 会取消命令的 Context
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringP("server", "s", "", "服务器地址 (默认: http://localhost:8080)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	if err := config.Init(); err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}

	// 如果指定了服务器地址，更新配置
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		if err := config.SetServerURL(server); err != nil {
			return fmt.Errorf("保存服务器地址失败: %w", err)
		}
	}
	return nil
}

// errNotLoggedIn 未登录
var errNotLoggedIn = errors.New("当前未登录，请先运行 'soc-cli login'")

// withClient 使用已登录的 API 客户端执行 fn
// Access Token 过期时用 Refresh Token 换一个新的再重试一次
func withClient(ctx context.Context, fn func(*api.Client) error) error {
	if !config.IsLoggedIn() {
		return errNotLoggedIn
	}

	client := api.NewClient(config.GetServerURL(), config.GetAccessToken())
	err := fn(client)
	if !errors.Is(err, api.ErrUnauthorized) || config.GetRefreshToken() == "" {
		return err
	}

	token, refreshErr := client.Refresh(ctx, config.GetRefreshToken())
	if refreshErr != nil {
		return api.ErrUnauthorized
	}
	if err := config.SaveAccessToken(token); err != nil {
		return fmt.Errorf("保存登录信息失败: %w", err)
	}
	return fn(client)
}

// readLine 从标准输入读取一行
func readLine(prompt string) string {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}
