package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"soc-assistant/internal/cli/api"
	"soc-assistant/internal/cli/config"
	"soc-assistant/internal/cli/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示当前状态",
	Long: `显示当前登录状态和配置信息。

包括：
- 服务器地址
- 登录用户
- 当前会话`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Printf("服务器: %s\n", config.GetServerURL())
	fmt.Printf("配置文件: %s\n", config.Path())

	if !config.IsLoggedIn() {
		fmt.Println("登录状态: ✗ 未登录")
		fmt.Println("请运行 'soc-cli login' 完成登录")
		return nil
	}

	return withClient(cmd.Context(), func(client *api.Client) error {
		user, err := client.Profile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("登录状态: ✓ %s (ID: %d)\n", user.Username, user.ID)

		active, err := client.ActiveSession(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("当前会话: %s\n", session.FormatSession(active))
		return nil
	})
}
