package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"soc-assistant/internal/cli/config"
	"soc-assistant/internal/cli/websocket"
	"soc-assistant/pkg/util"
)

// 单行事件中消息内容的最大长度
const maxEventContent = 80

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "实时显示界面事件（Ctrl+C 退出）",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !config.IsLoggedIn() {
			return errNotLoggedIn
		}

		ws := websocket.NewClient(config.GetServerURL(), config.GetAccessToken())
		ws.OnMessage(func(msg *websocket.Message) {
			fmt.Println(formatEvent(msg))
		})
		if err := ws.Connect(cmd.Context()); err != nil {
			return err
		}
		defer ws.Disconnect()

		fmt.Println("✓ 已连接，等待事件...")
		select {
		case <-cmd.Context().Done():
		case <-ws.Done():
			return fmt.Errorf("连接已断开")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// formatEvent 单行显示一个事件
func formatEvent(msg *websocket.Message) string {
	at := time.UnixMilli(msg.Timestamp).Format("15:04:05")

	switch msg.Type {
	case websocket.TypeResponseStarted, websocket.TypeResponseEnded:
		var p websocket.ResponsePayload
		if msg.Decode(&p) == nil {
			return fmt.Sprintf("%s %-16s session=%d", at, msg.Type, p.SessionID)
		}
	case websocket.TypeMessageUpdated:
		var p websocket.MessagePayload
		if msg.Decode(&p) == nil {
			return fmt.Sprintf("%s %-16s session=%d message=%d [%s] %s", at, msg.Type, p.SessionID, p.MessageID, p.Role, util.TruncateString(p.Content, maxEventContent))
		}
	case websocket.TypeSessionSwitched:
		var p websocket.SessionPayload
		if msg.Decode(&p) == nil {
			return fmt.Sprintf("%s %-16s session=%d %s", at, msg.Type, p.SessionID, p.Title)
		}
	}
	return fmt.Sprintf("%s %-16s %s", at, msg.Type, string(msg.Payload))
}
