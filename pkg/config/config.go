// Package config 管理客户端配置：命名仓库、本地镜像存储、目录数据库与同步参数
//
// 配置文件是 JSON，格式与旧版客户端兼容：
//
//	{
//	  "repos": {
//	    "main": {"url": "https://example.com/repo", "session": "..."}
//	  }
//	}
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

var (
	ErrUnknownRepo = errors.New("unknown repo")
	ErrNoRepo      = errors.New("no repo specified")
)

// Config 是解码后的完整配置
type Config struct {
	Default  string                `mapstructure:"default"`
	Repos    map[string]RepoConfig `mapstructure:"repos"`
	Storage  StorageConfig         `mapstructure:"storage"`
	S3       S3Config              `mapstructure:"s3"`
	Redis    RedisConfig           `mapstructure:"redis"`
	Database DatabaseConfig        `mapstructure:"database"`
	Pull     PullConfig            `mapstructure:"pull"`

	// File 是实际读取的配置文件，没有则为空
	File string `mapstructure:"-"`
}

// RepoConfig 描述一个远端仓库
type RepoConfig struct {
	Name    string `mapstructure:"-"`
	URL     string `mapstructure:"url"`
	Session string `mapstructure:"session"`
}

type StorageConfig struct {
	Type string `mapstructure:"type"` // disk | s3
	Path string `mapstructure:"path"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite | postgres
	Path     string `mapstructure:"path"`   // sqlite 文件
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// PullConfig 控制镜像同步
type PullConfig struct {
	Workers int           `mapstructure:"workers"`
	Retry   time.Duration `mapstructure:"retry"`
	Overlap int           `mapstructure:"overlap"`
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "disk", "s3":
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Pull.Workers <= 0 {
		return fmt.Errorf("pull.workers must be positive, got %d", c.Pull.Workers)
	}
	if c.Pull.Overlap < 0 {
		return fmt.Errorf("pull.overlap must not be negative, got %d", c.Pull.Overlap)
	}
	return nil
}

// Repo 按名字解析仓库
//
// 1. 空名字使用 default
// 2. 配置文件中的命名仓库 (名字大小写不敏感)
// 3. 带主机名的 http(s) URL 作为匿名仓库
func (c *Config) Repo(name string) (RepoConfig, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		return RepoConfig{}, ErrNoRepo
	}

	// viper 会把 key 转成小写
	if rc, ok := c.Repos[strings.ToLower(name)]; ok {
		if rc.URL == "" {
			return RepoConfig{}, fmt.Errorf("repo %q has no url", name)
		}
		rc.Name = name
		return rc, nil
	}

	u, err := url.Parse(name)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != "" {
		return RepoConfig{Name: name, URL: name}, nil
	}
	return RepoConfig{}, fmt.Errorf("%w: %s", ErrUnknownRepo, name)
}

// RepoNames 返回所有命名仓库 (已排序)
func (c *Config) RepoNames() []string {
	names := make([]string, 0, len(c.Repos))
	for name := range c.Repos {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DSN 生成 postgres 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode,
	)
}
