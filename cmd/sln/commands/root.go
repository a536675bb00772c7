package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"stronglink/pkg/app"
	"stronglink/pkg/client"
	"stronglink/pkg/config"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfgFile  string
	repoName string
	verbose  bool
	logFile  string

	// 全局应用实例，供子命令使用
	SLN *app.App
)

var rootCmd = &cobra.Command{
	Use:           "sln",
	Short:         "StrongLink repository client",
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		// 用户既可以在 client.json 里写，也可以用 --storage-path 覆盖
		if err := v.BindPFlag("storage.path", cmd.Root().PersistentFlags().Lookup("storage-path")); err != nil {
			return err
		}
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		logger := newLogger(cmd.ErrOrStderr())
		slog.SetDefault(logger)
		SLN = app.NewApp(cfg, logger)
		return nil
	},
}

// ExecuteContext 是入口，ctx 取消 (Ctrl-C) 时长连接命令正常退出
// 命令失败时 cobra 不会执行 PostRun，所以本地资源在这里统一释放
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if SLN != nil {
		if cerr := SLN.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "❌", err)
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.config/stronglink/client.json)")
	pf.StringVarP(&repoName, "repo", "r", "", "repo name from config, or a repo URL")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&logFile, "log-file", "", "write logs to a rotated file instead of stderr")
	pf.String("storage-path", "", "directory for mirrored objects")
}

// newLogger 默认只输出 warn 以上到 stderr；--log-file 时以 JSON 写入滚动日志
func newLogger(stderr io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if logFile != "" {
		w := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		if !verbose {
			opts.Level = slog.LevelInfo
		}
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(stderr, opts))
}

// currentRepo 解析 --repo (为空时使用配置中的 default)
func currentRepo() (*client.Repo, error) {
	if SLN == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	repo, err := SLN.Repo(repoName)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// exitOnCancel 把 Ctrl-C 导致的取消视为正常结束
func exitOnCancel(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
