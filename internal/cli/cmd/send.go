package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"soc-assistant/internal/cli/api"
	"soc-assistant/internal/cli/config"
	"soc-assistant/internal/cli/terminal"
	"soc-assistant/internal/cli/websocket"
	"soc-assistant/internal/model"
)

// endWait 请求返回后等待 response.ended 事件的最长时间
const endWait = 2 * time.Second

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "发送消息到当前会话，实时显示 AI 回复",
	Long: `发送消息到当前会话（或 --session 指定的会话）。

可以用 --file 附带一个 PDF / CSV / XML 文件；只发送附件时消息可以为空。
回复通过 WebSocket 实时显示，连接失败时在回复结束后一次性显示。`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringP("file", "f", "", "附件路径（pdf / csv / xml）")
	sendCmd.Flags().Int64("session", 0, "会话ID（默认当前会话）")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	filePath, _ := cmd.Flags().GetString("file")
	if strings.TrimSpace(text) == "" && filePath == "" {
		return fmt.Errorf("消息内容和附件不能同时为空")
	}
	ctx := cmd.Context()

	return withClient(ctx, func(client *api.Client) error {
		sessionID, _ := cmd.Flags().GetInt64("session")
		if sessionID == 0 {
			active, err := client.ActiveSession(ctx)
			if err != nil {
				return err
			}
			sessionID = active.ID
		}

		live := newLiveReply(sessionID, terminal.NewPrinter(os.Stdout))
		ws := websocket.NewClient(config.GetServerURL(), config.GetAccessToken())
		ws.OnMessage(live.handle)
		if err := ws.Connect(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  无法接收实时回复: %v\n", err)
		} else {
			live.connected = true
			defer ws.Disconnect()
		}

		result, err := client.SendMessage(ctx, sessionID, text, filePath)
		if err != nil {
			return err
		}
		if result.Attachment != nil {
			fmt.Printf("📎 %s (%s)\n", result.Attachment.OriginalName, result.Attachment.FileType)
		}
		if result.IncidentID != "" {
			fmt.Printf("🔖 事件 %s 已关联到会话\n", result.IncidentID)
		}

		live.finish(ctx, result.Reply)
		return nil
	})
}

// liveReply 把界面事件转成终端输出
type liveReply struct {
	sessionID int64
	printer   *terminal.Printer
	connected bool
	ended     chan struct{}
	updates   chan string
}

func newLiveReply(sessionID int64, printer *terminal.Printer) *liveReply {
	return &liveReply{
		sessionID: sessionID,
		printer:   printer,
		ended:     make(chan struct{}, 1),
		updates:   make(chan string, 1),
	}
}

// handle 在 WebSocket 读协程中调用
func (l *liveReply) handle(msg *websocket.Message) {
	switch msg.Type {
	case websocket.TypeResponseStarted:
		var p websocket.ResponsePayload
		if msg.Decode(&p) == nil && p.SessionID == l.sessionID {
			l.printer.Start()
		}

	case websocket.TypeMessageUpdated:
		var p websocket.MessagePayload
		if msg.Decode(&p) == nil && p.SessionID == l.sessionID && p.Role == model.MessageRoleAI {
			l.printer.Update(p.Content)
			select {
			case l.updates <- p.Content:
			default:
			}
		}

	case websocket.TypeResponseEnded:
		var p websocket.ResponsePayload
		if msg.Decode(&p) == nil && p.SessionID == l.sessionID {
			l.printer.End()
			select {
			case l.ended <- struct{}{}:
			default:
			}
		}
	}
}

// finish 等待回复结束；没有收到任何实时内容时直接输出最终回复
func (l *liveReply) finish(ctx context.Context, reply *model.Message) {
	if l.connected {
		select {
		case <-l.ended:
		case <-time.After(endWait):
		case <-ctx.Done():
		}
	}

	select {
	case <-l.updates:
		return
	default:
	}
	if reply != nil {
		l.printer.Update(reply.Content)
		l.printer.End()
	}
}
