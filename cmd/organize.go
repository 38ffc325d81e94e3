package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moyu-x/organize/app"
	"github.com/moyu-x/organize/config"
	"github.com/moyu-x/organize/internal"
	"github.com/moyu-x/organize/pkg/logger"
)

type organizeFlags struct {
	dryRun  bool
	copy    bool
	verbose bool
	quiet   bool
}

// viper 键与命令行参数的对应关系，命令行显式给出时覆盖配置文件
var flagBindings = map[string]string{
	"organize.policy":         "policy",
	"organize.rules_file":     "config",
	"organize.recursive":      "recursive",
	"organize.skip_hidden":    "skip-hidden",
	"organize.detect_content": "detect-content",
	"organize.workers":        "workers",
	"organize.lock":           "lock",
	"logging.level":           "log-level",
	"logging.file":            "log-file",
}

func (f *organizeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringP("policy", "p", string(internal.PolicySkip), "冲突策略: skip, overwrite, rename")
	cmd.Flags().StringP("config", "c", "", "规则文件路径（TOML），为空时使用内置规则")
	cmd.Flags().BoolP("recursive", "r", false, "递归处理子目录中的文件")
	cmd.Flags().Bool("skip-hidden", false, "跳过以点开头的隐藏文件和目录")
	cmd.Flags().Bool("detect-content", false, "扩展名未匹配时根据文件内容判断类型")
	cmd.Flags().IntP("workers", "w", internal.DefaultWorkers, "并发处理的工作线程数")
	cmd.Flags().Bool("lock", true, "运行期间锁定源目录，防止多个进程同时整理")
	cmd.Flags().String("log-level", "info", "日志级别")
	cmd.Flags().String("log-file", "", "日志文件路径")

	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "预览模式，不实际移动文件")
	cmd.Flags().BoolVar(&f.copy, "copy", false, "复制而不是移动文件")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "显示详细日志")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "不输出明细表格")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	for key, name := range flagBindings {
		if flag := cmd.Flags().Lookup(name); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}
	return config.Load(v)
}

func runOrganize(cmd *cobra.Command, args []string, flags *organizeFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logLevel := cfg.Logging.Level
	if flags.verbose {
		logLevel = "debug"
	}
	if err := logger.Init(logLevel, cfg.Logging.File, cmd.ErrOrStderr()); err != nil {
		return &internal.ConfigError{Path: cfg.Logging.File, Err: err}
	}

	opts := &app.OrganizeOptions{
		SourceDir:     args[0],
		Policy:        cfg.Organize.Policy,
		RulesFile:     cfg.Organize.RulesFile,
		Recursive:     cfg.Organize.Recursive,
		SkipHidden:    cfg.Organize.SkipHidden,
		DetectContent: cfg.Organize.DetectContent,
		DryRun:        flags.dryRun,
		Copy:          flags.copy,
		Workers:       cfg.Organize.Workers,
		Lock:          cfg.Organize.Lock,
	}

	rep, runErr := app.RunOrganize(cmd.Context(), afero.NewOsFs(), opts)
	if rep != nil {
		out := cmd.OutOrStdout()
		if !flags.quiet && rep.Len() > 0 {
			fmt.Fprintln(out, rep.Table(stdoutIsTerminal(out)))
		}
		fmt.Fprintln(out, rep.String())
	}
	if runErr != nil {
		return runErr
	}

	if failed := rep.Summary().Failed; failed > 0 {
		return fmt.Errorf("%w: %d 个", internal.ErrEntriesFailed, failed)
	}
	return nil
}

func stdoutIsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
