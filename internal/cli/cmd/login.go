package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"soc-assistant/internal/cli/api"
	"soc-assistant/internal/cli/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "登录（或使用 --register 注册）",
	Long: `使用用户名和密码登录，Token 保存在 ~/.soc-assistant/config.yaml。

加上 --register 会先注册新账号。`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringP("username", "u", "", "用户名")
	loginCmd.Flags().Bool("register", false, "注册新账号")
	loginCmd.Flags().String("email", "", "注册时的邮箱（可选）")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	if username == "" {
		username = readLine("请输入用户名: ")
	}
	if username == "" {
		return fmt.Errorf("用户名不能为空")
	}

	// 输入密码（隐藏输入）
	fmt.Print("请输入密码: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("读取密码失败: %w", err)
	}
	password := strings.TrimSpace(string(passwordBytes))
	if password == "" {
		return fmt.Errorf("密码不能为空")
	}

	client := api.NewClient(config.GetServerURL(), "")
	ctx := cmd.Context()

	var resp *api.LoginResponse
	if register, _ := cmd.Flags().GetBool("register"); register {
		email, _ := cmd.Flags().GetString("email")
		resp, err = client.Register(ctx, username, password, email)
	} else {
		resp, err = client.Login(ctx, username, password)
	}
	if err != nil {
		return fmt.Errorf("登录失败: %w", err)
	}

	if err := config.SaveAuth(username, resp.AccessToken, resp.RefreshToken); err != nil {
		return fmt.Errorf("保存登录信息失败: %w", err)
	}

	fmt.Printf("✓ 已登录为 %s\n", username)
	return nil
}
