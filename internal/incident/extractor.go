// Package incident 识别消息中的事件编号，并查询事件上下文
package incident

import "regexp"

// referencePattern 匹配 INC 加可选连字符加 6~7 位数字，后面必须是单词边界
var referencePattern = regexp.MustCompile(`INC-?\d{6,7}\b`)

// Extract 返回文本中第一个事件编号（原样返回，包括连字符）
// 没有匹配时返回空字符串
func Extract(text string) string {
	return referencePattern.FindString(text)
}
