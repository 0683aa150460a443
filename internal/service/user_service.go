package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"soc-assistant/internal/cache"
	"soc-assistant/internal/model"
	"soc-assistant/internal/relay"
	"soc-assistant/internal/repository"
	"soc-assistant/pkg/util"
)

// FileRemover 删除已存储的附件文件
type FileRemover interface {
	RemoveFiles(paths []string)
}

// UserService 用户服务
// 处理用户信息的查询、更新和注销
type UserService struct {
	userRepo *repository.UserRepository // 用户数据访问层
	cache    *cache.RedisCache          // Redis 缓存
	files    FileRemover                // 附件文件清理
	streams  *relay.Registry            // 进行中的推理流
}

// NewUserService 创建 UserService 实例
// cache 可以为 nil，此时注销用户不清理 Redis 中的当前会话
func NewUserService(
	userRepo *repository.UserRepository,
	cache *cache.RedisCache,
	files FileRemover,
	streams *relay.Registry,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		cache:    cache,
		files:    files,
		streams:  streams,
	}
}

// GetProfile 获取用户资料
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - *model.User: 用户信息
//   - error: 用户不存在返回错误
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfileRequest 更新用户资料请求
type UpdateProfileRequest struct {
	Email *string `json:"email" binding:"omitempty,email"` // 邮箱
}

// UpdateProfile 更新用户资料
// 返回:
//   - *model.User: 更新后的用户信息
//   - error: 邮箱被占用等情况返回错误
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*model.User, error) {
	// 1. 获取当前用户信息
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 2. 准备要更新的字段
	fields := make(map[string]interface{})
	if req.Email != nil {
		if *req.Email == "" {
			fields["email"] = nil
		} else {
			existing, err := s.userRepo.GetByEmail(ctx, *req.Email)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != userID {
				return nil, ErrEmailExists
			}
			fields["email"] = *req.Email
		}
	}

	// 3. 如果没有要更新的字段，直接返回
	if len(fields) == 0 {
		return user, nil
	}

	if err := s.userRepo.UpdateFields(ctx, userID, fields); err != nil {
		return nil, err
	}

	return s.userRepo.GetByID(ctx, userID)
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`       // 旧密码
	NewPassword string `json:"new_password" binding:"required,min=6"` // 新密码
}

// ChangePassword 修改密码
func (s *UserService) ChangePassword(ctx context.Context, userID int64, req *ChangePasswordRequest) error {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	if !util.CheckPassword(req.OldPassword, user.PasswordHash) {
		return ErrPasswordWrong
	}

	newHash, err := util.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	return s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{
		"password_hash": newHash,
	})
}

// DeleteAccount 注销用户
// 先停止进行中的推理流，再在一个事务中删除用户及其全部会话、消息、附件，
// 最后删除附件文件和 Redis 中的当前会话
// 参数:
//   - ctx: 上下文
//   - userID: 用户ID
//
// 返回:
//   - int: 删除的附件文件数
//   - error: 用户不存在返回 ErrUserNotFound
func (s *UserService) DeleteAccount(ctx context.Context, userID int64) (int, error) {
	s.streams.Cancel(userID)

	paths, err := s.userRepo.DeleteCascade(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}

	s.files.RemoveFiles(paths)

	if s.cache == nil {
		log.Warn().Int64("user_id", userID).Msg("redis unavailable, active session not cleared")
	} else if err := s.cache.ClearActiveSession(ctx, userID); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("failed to clear active session")
	}

	log.Info().Int64("user_id", userID).Int("attachments", len(paths)).Msg("user deleted")
	return len(paths), nil
}
