package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"soc-assistant/internal/cli/api"
	"soc-assistant/internal/cli/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "列出会话（最新的在前）",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		ctx := cmd.Context()

		return withClient(ctx, func(client *api.Client) error {
			list, err := client.ListSessions(ctx, page, 20)
			if err != nil {
				return err
			}
			active, err := client.ActiveSession(ctx)
			if err != nil {
				return err
			}

			for i := range list.Sessions {
				marker := " "
				if list.Sessions[i].ID == active.ID {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, session.FormatSession(&list.Sessions[i]))
			}
			fmt.Printf("共 %d 个会话\n", list.Total)
			return nil
		})
	},
}

var newCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "创建新会话并切换过去",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withClient(ctx, func(client *api.Client) error {
			created, err := client.CreateSession(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Printf("✓ 已创建 %s\n", session.FormatSession(created))
			return nil
		})
	},
}

var switchCmd = &cobra.Command{
	Use:   "switch <session-id>",
	Short: "切换当前会话",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("无效的会话ID: %s", args[0])
		}

		ctx := cmd.Context()
		return withClient(ctx, func(client *api.Client) error {
			switched, err := client.SwitchSession(ctx, sessionID)
			if err != nil {
				return err
			}
			fmt.Printf("✓ 当前会话 %s\n", session.FormatSession(switched))
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "显示会话的消息和附件",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withClient(ctx, func(client *api.Client) error {
			sessionID, err := sessionArg(cmd, client, args)
			if err != nil {
				return err
			}
			timeline, err := client.GetTimeline(ctx, sessionID)
			if err != nil {
				return err
			}

			view := session.NewView()
			view.Load(timeline)
			view.Render(os.Stdout)
			return nil
		})
	},
}

// sessionArg 参数中的会话ID，没有时使用当前会话
func sessionArg(cmd *cobra.Command, client *api.Client, args []string) (int64, error) {
	if len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("无效的会话ID: %s", args[0])
		}
		return id, nil
	}
	active, err := client.ActiveSession(cmd.Context())
	if err != nil {
		return 0, err
	}
	return active.ID, nil
}

func init() {
	sessionsCmd.Flags().Int("page", 1, "页码")

	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(historyCmd)
}
