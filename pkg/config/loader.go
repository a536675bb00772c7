package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀 (SLN_STORAGE_PATH 等)
const EnvPrefix = "SLN"

// New 创建一个带默认值的 Viper 实例
// 每次调用都是独立的实例，调用方可以在 Load 之前绑定命令行参数
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load 读取配置文件并解码成 Config
// cfgFile: 可选，用户显式指定的配置文件路径；显式指定但不存在时报错
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}

		// 搜索顺序：
		// 1. ~/.config/stronglink (与旧客户端共用)
		v.AddConfigPath(filepath.Join(home, ".config", "stronglink"))
		// 2. 当前目录
		v.AddConfigPath(".")
		// 3. 用户主目录下的 .sln
		v.AddConfigPath(filepath.Join(home, ".sln"))

		v.SetConfigType("json")
		v.SetConfigName("client") // 找 client.json
	}

	if err := v.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，可以只用环境变量和裸 URL
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fatal error config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".sln")

	// 本地镜像存储
	v.SetDefault("storage.type", "disk")
	v.SetDefault("storage.path", filepath.Join(base, "objects"))

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.bucket", "stronglink")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")

	// redis.url 为空表示不启用存在性缓存
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", "24h")

	// 本地目录
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(base, "catalog.db"))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "stronglink")
	v.SetDefault("database.sslmode", "disable")

	// 同步
	v.SetDefault("pull.workers", 8)
	v.SetDefault("pull.retry", "5s")
	v.SetDefault("pull.overlap", 10)

	v.SetDefault("default", "")
}
