// Package prompt 组装发送给推理服务的提示词
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"soc-assistant/internal/incident"
)

// Preamble 固定的系统指令，始终位于提示词开头
const Preamble = "You are a SOC assistant. Provide concise, accurate, security-focused responses."

// Compose 组装提示词
// 顺序固定：系统指令、User message、Incident Data、File Summary
// 每个段落只在对应输入非空时出现，每段以换行结尾
// 参数:
//   - userText: 用户输入，可以为空（只上传文件时）
//   - data: 事件上下文，nil 表示没有
//   - fileSummary: 附件摘要，可以为空
//
// 返回:
//   - string: 完整提示词
func Compose(userText string, data *incident.Context, fileSummary string) string {
	var b strings.Builder
	b.WriteString(Preamble)
	b.WriteString("\n")

	if userText != "" {
		fmt.Fprintf(&b, "User message: %s\n", userText)
	}
	if data != nil {
		fmt.Fprintf(&b, "Incident Data: %s\n", FormatIncident(data))
	}
	if fileSummary != "" {
		fmt.Fprintf(&b, "File Summary: %s\n", fileSummary)
	}

	return b.String()
}

// FormatIncident 把事件上下文格式化为缩进 4 空格的 JSON
// 不转义 HTML 字符，保持可读
func FormatIncident(data *incident.Context) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(data); err != nil {
		return fmt.Sprintf("%+v", *data)
	}
	return strings.TrimRight(buf.String(), "\n")
}
