package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MilvusConfig 定义了 Milvus 向量库的连接配置。
type MilvusConfig struct {
	Address          string `yaml:"address"`          // Milvus 服务地址
	VectorDim        int    `yaml:"vectorDim"`        // 向量维度
	IndexNList       int    `yaml:"indexNList"`       // IVF_FLAT 索引的 nlist 参数
	CollectionPrefix string `yaml:"collectionPrefix"` // 集合名称前缀（可被数据库配置覆盖）
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 默认存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"` // 是否启用 Kafka 审计事件发布
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topic   string   `yaml:"topic"`   // 审计事件主题
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Milvus MilvusConfig `yaml:"milvus"` // Milvus 向量库配置
	Redis  RedisConfig  `yaml:"redis"`  // Redis 数据库配置
	MySQL  MySQLConfig  `yaml:"mysql"`  // MySQL 数据库配置
	MinIO  MinIOConfig  `yaml:"minio"`  // MinIO 对象存储配置
	Kafka  KafkaConfig  `yaml:"kafka"`  // Kafka 消息队列配置
}

// AuthConfig 用于配置认证方法和相关设置。
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"` // JWT 密钥
	TokenTTL  int    `yaml:"tokenTTL"`  // JWT 令牌的有效期（秒）
}

// StorageConfig 定义了文档文件的存储后端。
type StorageConfig struct {
	Backend  string `yaml:"backend"`  // 存储后端: "filesystem" 或 "minio"
	BasePath string `yaml:"basePath"` // filesystem 后端的根目录
}

// WorkerConfig 定义了文档处理后台任务的运行参数。
type WorkerConfig struct {
	Concurrency   int `yaml:"concurrency"`   // 并发 worker 数量
	ParseRetries  int `yaml:"parseRetries"`  // 解析阶段的重试次数
	QueueCapacity int `yaml:"queueCapacity"` // 任务信号通道容量
}

// RateLimiterConfig 定义了 HTTP 层限流的参数。
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`  // 是否启用限流
	Rate     float64 `yaml:"rate"`     // 每秒生成令牌数
	Capacity float64 `yaml:"capacity"` // 令牌桶容量
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Address     string `yaml:"address"`     // HTTP 监听地址
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App         AppInfo           `yaml:"app"`         // 应用程序信息
	Auth        AuthConfig        `yaml:"auth"`        // 认证配置
	Logger      LoggerConfig      `yaml:"logger"`      // 日志记录器配置
	Storage     StorageConfig     `yaml:"storage"`     // 文件存储配置
	Worker      WorkerConfig      `yaml:"worker"`      // 后台任务配置
	RateLimiter RateLimiterConfig `yaml:"rateLimiter"` // 限流配置
	Databases   DatabaseConfigs   `yaml:"databases"`   // 数据库配置
}

// Load 从指定路径读取并解析 YAML 配置文件。
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.App.Address == "" {
		c.App.Address = ":8080"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 2
	}
	if c.Worker.ParseRetries <= 0 {
		c.Worker.ParseRetries = 3
	}
	if c.Worker.QueueCapacity <= 0 {
		c.Worker.QueueCapacity = 256
	}
	if c.Databases.Milvus.VectorDim <= 0 {
		c.Databases.Milvus.VectorDim = 1536
	}
	if c.Databases.Milvus.IndexNList <= 0 {
		c.Databases.Milvus.IndexNList = 128
	}
	if c.Databases.Milvus.CollectionPrefix == "" {
		c.Databases.Milvus.CollectionPrefix = "doc_qa"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "filesystem"
	}
	if c.Storage.BasePath == "" {
		c.Storage.BasePath = "./data/files"
	}
}
