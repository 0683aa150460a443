package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"soc-assistant/internal/cli/api"
	"soc-assistant/internal/cli/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "登出并清除本地凭证",
	Long: `登出当前账号：服务端让 Token 失效，并清除本地保存的 Token。

登出后需要重新运行 'soc-cli login' 才能使用。`,
	RunE: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) error {
	// 检查是否已登录
	if !config.IsLoggedIn() {
		fmt.Println("当前未登录")
		return nil
	}

	// 服务端失败时仍然清除本地凭证
	client := api.NewClient(config.GetServerURL(), config.GetAccessToken())
	if err := client.Logout(cmd.Context()); err != nil {
		fmt.Printf("⚠️  服务端登出失败: %v\n", err)
	}

	if err := config.ClearToken(); err != nil {
		return fmt.Errorf("清除凭证失败: %w", err)
	}

	fmt.Println("✓ 已登出并清除本地凭证")
	return nil
}
