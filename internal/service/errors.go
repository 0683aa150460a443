// Package service 提供业务逻辑层的实现
// 服务层封装具体的业务逻辑，协调 Repository、Cache 和推理中继
package service

import "errors"

// 定义业务错误
var (
	ErrUserExists    = errors.New("用户名已存在")
	ErrEmailExists   = errors.New("邮箱已被注册")
	ErrUserNotFound  = errors.New("用户不存在")
	ErrPasswordWrong = errors.New("密码错误")
	ErrUserDisabled  = errors.New("账号已被禁用")

	ErrSessionNotFound = errors.New("会话不存在")
	ErrNoPermission    = errors.New("无权访问此会话")

	ErrEmptyMessage = errors.New("消息内容和附件不能同时为空")
	ErrSendFailed   = errors.New("消息处理失败")
)
