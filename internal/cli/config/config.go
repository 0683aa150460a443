// Package config 管理 CLI 客户端配置
// 配置保存在 ~/.soc-assistant/config.yaml，包括服务器地址、登录 Token 和当前会话
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Config CLI 配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	URL string `mapstructure:"url"` // HTTP API 地址
}

// AuthConfig 登录信息
type AuthConfig struct {
	AccessToken  string `mapstructure:"access_token"`  // 访问 Token（REST 和 WebSocket）
	RefreshToken string `mapstructure:"refresh_token"` // 刷新 Token
	Username     string `mapstructure:"username"`      // 登录用户名
}

// DefaultServerURL 默认服务器地址
const DefaultServerURL = "http://localhost:8080"

var (
	cfg        *Config
	v          *viper.Viper
	configPath string
)

// Init 初始化配置，使用 ~/.soc-assistant 目录
func Init() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("获取用户目录失败: %w", err)
	}
	return InitWithFs(afero.NewOsFs(), filepath.Join(home, ".soc-assistant"))
}

// InitWithFs 在指定文件系统的目录下初始化配置
// 参数:
//   - fs: 文件系统，测试时使用内存文件系统
//   - dir: 配置目录
func InitWithFs(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}
	configPath = filepath.Join(dir, "config.yaml")

	v = viper.New()
	v.SetFs(fs)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 例如 SOC_SERVER_URL
	v.SetEnvPrefix("soc")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	v.SetDefault("server.url", DefaultServerURL)
	v.SetDefault("auth.access_token", "")
	v.SetDefault("auth.refresh_token", "")
	v.SetDefault("auth.username", "")

	// 文件不存在时写入默认配置
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("读取配置失败: %w", err)
		}
		if err := v.WriteConfigAs(configPath); err != nil {
			return fmt.Errorf("写入默认配置失败: %w", err)
		}
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("解析配置失败: %w", err)
	}
	return nil
}

// Get 获取配置
func Get() *Config {
	return cfg
}

// Path 配置文件路径
func Path() string {
	return configPath
}

// SaveAuth 保存登录信息
func SaveAuth(username, accessToken, refreshToken string) error {
	v.Set("auth.username", username)
	v.Set("auth.access_token", accessToken)
	v.Set("auth.refresh_token", refreshToken)
	cfg.Auth = AuthConfig{AccessToken: accessToken, RefreshToken: refreshToken, Username: username}
	return v.WriteConfig()
}

// SaveAccessToken 刷新后只更新访问 Token
func SaveAccessToken(accessToken string) error {
	v.Set("auth.access_token", accessToken)
	cfg.Auth.AccessToken = accessToken
	return v.WriteConfig()
}

// ClearToken 清除本地凭证
func ClearToken() error {
	return SaveAuth("", "", "")
}

// GetAccessToken 获取访问 Token
func GetAccessToken() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.AccessToken
}

// GetRefreshToken 获取刷新 Token
func GetRefreshToken() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.RefreshToken
}

// GetUsername 获取登录用户名
func GetUsername() string {
	if cfg == nil {
		return ""
	}
	return cfg.Auth.Username
}

// GetServerURL 获取服务器地址
func GetServerURL() string {
	if cfg == nil || cfg.Server.URL == "" {
		return DefaultServerURL
	}
	return strings.TrimRight(cfg.Server.URL, "/")
}

// SetServerURL 设置服务器地址并保存
func SetServerURL(url string) error {
	v.Set("server.url", url)
	cfg.Server.URL = url
	return v.WriteConfig()
}

// IsLoggedIn 检查是否已登录
func IsLoggedIn() bool {
	return GetAccessToken() != ""
}
