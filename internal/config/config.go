// Package config 负责加载和管理应用程序的配置
// 使用 viper 库支持 YAML 配置文件和环境变量覆盖
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 是应用程序的根配置结构
// 包含所有子配置模块
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig `mapstructure:"database"` // 数据库配置
	Redis    RedisConfig    `mapstructure:"redis"`    // Redis 配置
	JWT      JWTConfig      `mapstructure:"jwt"`      // JWT 配置
	Log      LogConfig      `mapstructure:"log"`      // 日志配置
	Ollama   OllamaConfig   `mapstructure:"ollama"`   // 推理服务配置
	Upload   UploadConfig   `mapstructure:"upload"`   // 附件上传配置
	Chat     ChatConfig     `mapstructure:"chat"`     // 聊天发送配置
}

// ServerConfig 服务器相关配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`          // 监听端口，默认 8080
	Mode         string        `mapstructure:"mode"`          // 运行模式: debug / release
	CORS         []string      `mapstructure:"cors"`          // CORS 允许的域名
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写超时，需要大于一次完整的流式响应
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string       `mapstructure:"driver"` // mysql / sqlite
	SQLite SQLiteConfig `mapstructure:"sqlite"` // driver=sqlite 时使用
	MySQL  MySQLConfig  `mapstructure:"mysql"`  // driver=mysql 时使用
}

// SQLiteConfig 嵌入式数据库配置
type SQLiteConfig struct {
	Path string `mapstructure:"path"` // 数据库文件路径，":memory:" 表示内存库
}

// MySQLConfig MySQL 数据库连接配置
type MySQLConfig struct {
	Host         string `mapstructure:"host"`           // 数据库主机地址
	Port         int    `mapstructure:"port"`           // 数据库端口
	Username     string `mapstructure:"username"`       // 数据库用户名
	Password     string `mapstructure:"password"`       // 数据库密码
	Database     string `mapstructure:"database"`       // 数据库名称
	Charset      string `mapstructure:"charset"`        // 字符集
	MaxIdleConns int    `mapstructure:"max_idle_conns"` // 最大空闲连接数
	MaxOpenConns int    `mapstructure:"max_open_conns"` // 最大打开连接数
	MaxLifetime  int    `mapstructure:"max_lifetime"`   // 连接最大生命周期（秒）
}

// DSN 生成 MySQL 连接字符串
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`      // Redis 主机地址
	Port     int    `mapstructure:"port"`      // Redis 端口
	Username string `mapstructure:"username"`  // Redis 用户名
	Password string `mapstructure:"password"`  // Redis 密码
	DB       int    `mapstructure:"db"`        // 数据库索引 (0-15)
	PoolSize int    `mapstructure:"pool_size"` // 连接池大小
}

// Addr 返回 host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`         // JWT 签名密钥，至少32字符
	AccessExpire  time.Duration `mapstructure:"access_expire"`  // Access Token 过期时间
	RefreshExpire time.Duration `mapstructure:"refresh_expire"` // Refresh Token 过期时间
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug/info/warn/error
	Format string `mapstructure:"format"` // 日志格式: json/console
}

// OllamaConfig 推理服务配置
type OllamaConfig struct {
	BaseURL  string        `mapstructure:"base_url"` // 例如 http://localhost:11434
	Model    string        `mapstructure:"model"`    // 模型名称
	Timeout  time.Duration `mapstructure:"timeout"`  // 整个请求（含流式读取）的超时
	Throttle time.Duration `mapstructure:"throttle"` // 每个片段处理后的停顿，0 表示不停顿
}

// UploadConfig 附件上传配置
type UploadConfig struct {
	Dir          string   `mapstructure:"dir"`           // 存储根目录
	Subdir       string   `mapstructure:"subdir"`        // 附件子目录
	MaxSizeKB    int64    `mapstructure:"max_size_kb"`   // 最大文件大小（KiB）
	AllowedTypes []string `mapstructure:"allowed_types"` // 允许的 Content-Type
}

// ChatConfig 发送消息相关配置
type ChatConfig struct {
	RateLimit float64 `mapstructure:"rate_limit"` // 每个用户每秒允许的发送次数
	RateBurst int     `mapstructure:"rate_burst"` // 突发上限
}

// Load 从指定路径加载配置文件
// 支持环境变量覆盖配置项
// 参数:
//   - configPath: 配置文件目录路径 (如 "./configs")
//
// 返回:
//   - *Config: 配置对象
//   - error: 如果加载失败则返回错误
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// 例如: OLLAMA_BASE_URL -> ollama.base_url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVariables(v)
	setDefaults(v)

	// 配置文件不存在时使用默认值和环境变量
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindEnvVariables 绑定环境变量到配置项
func bindEnvVariables(v *viper.Viper) {
	// 服务器配置
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// 数据库配置
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.sqlite.path", "SQLITE_PATH")
	v.BindEnv("database.mysql.host", "MYSQL_HOST")
	v.BindEnv("database.mysql.port", "MYSQL_PORT")
	v.BindEnv("database.mysql.username", "MYSQL_USERNAME")
	v.BindEnv("database.mysql.password", "MYSQL_PASSWORD")
	v.BindEnv("database.mysql.database", "MYSQL_DATABASE")

	// Redis 配置
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.username", "REDIS_USERNAME")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT 配置
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// 推理服务配置
	v.BindEnv("ollama.base_url", "OLLAMA_BASE_URL")
	v.BindEnv("ollama.model", "OLLAMA_MODEL")
}

// setDefaults 设置配置项的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "90s")

	// 数据库默认配置
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.sqlite.path", "storage/soc-assistant.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.charset", "utf8mb4")
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("database.mysql.max_open_conns", 100)
	v.SetDefault("database.mysql.max_lifetime", 3600)

	// Redis 默认配置
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	// JWT 默认配置
	v.SetDefault("jwt.access_expire", "24h")
	v.SetDefault("jwt.refresh_expire", "168h")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// 推理服务默认配置
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "mistral")
	v.SetDefault("ollama.timeout", "60s")
	v.SetDefault("ollama.throttle", "30ms")

	// 上传默认配置
	v.SetDefault("upload.dir", "storage")
	v.SetDefault("upload.subdir", "attachments")
	v.SetDefault("upload.max_size_kb", 10240)
	v.SetDefault("upload.allowed_types", []string{"application/pdf", "text/csv", "application/xml"})

	// 发送频率默认配置
	v.SetDefault("chat.rate_limit", 1.0)
	v.SetDefault("chat.rate_burst", 3)
}
