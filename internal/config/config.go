// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Model     ModelConfig     `mapstructure:"model"`
	Index     IndexConfig     `mapstructure:"index"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ModelConfig 存储 ONNX 模型与分词器相关的配置。
// 模型与 tokenizer.json 必须来自同一次离线训练产物，否则向量空间不可比。
type ModelConfig struct {
	ONNXPath          string `mapstructure:"onnx_path"`
	TokenizerPath     string `mapstructure:"tokenizer_path"`
	Dimensions        int    `mapstructure:"dimensions"`
	MaxSequenceLength int    `mapstructure:"max_sequence_length"`
	// ORTLibraryPath 指定 onnxruntime 动态库路径，留空则使用默认查找规则。
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	// IntraOpThreads 控制单次推理的算子内并行度，0 表示由运行时自行决定。
	IntraOpThreads int `mapstructure:"intra_op_threads"`
}

// IndexConfig 存储 Annoy 向量索引相关的配置。
type IndexConfig struct {
	Path string `mapstructure:"path"`
	// SearchK 是召回精度/速度的权衡旋钮，0 表示使用 n_trees * top_k 的默认值。
	SearchK int `mapstructure:"search_k"`
}

// CatalogConfig 存储影片目录映射相关的配置。
type CatalogConfig struct {
	MappingPath string `mapstructure:"mapping_path"`
}

// RecommendConfig 存储推荐接口的默认参数。
// top_k 的上限 50 是请求契约的一部分，固定在请求体校验规则里，不开放配置。
type RecommendConfig struct {
	DefaultTopK int `mapstructure:"default_top_k"`
}

// ArtifactsConfig 控制启动时的产物获取行为。
type ArtifactsConfig struct {
	MinIO MinIOConfig `mapstructure:"minio"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。启用后，本地缺失的产物
// 会在启动阶段从存储桶下载；请求路径上永远不会触碰对象存储。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// CacheConfig 存储可选的向量缓存配置，默认关闭。
type CacheConfig struct {
	Enabled    bool        `mapstructure:"enabled"`
	Redis      RedisConfig `mapstructure:"redis"`
	TTLSeconds int         `mapstructure:"ttl_seconds"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults(&Conf)
}

// applyDefaults 填充未配置项的默认值，保持与离线训练产物一致的契约。
func applyDefaults(c *Config) {
	if c.Model.Dimensions == 0 {
		c.Model.Dimensions = 384
	}
	if c.Model.MaxSequenceLength == 0 {
		c.Model.MaxSequenceLength = 512
	}
	if c.Recommend.DefaultTopK == 0 {
		c.Recommend.DefaultTopK = 10
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 3600
	}
}
