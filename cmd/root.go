package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moyu-x/organize/internal"
)

// 退出码
const (
	ExitOK      = 0 // 所有条目处理成功
	ExitFailure = 1 // 至少一个条目失败或运行被中断
	ExitUsage   = 2 // 参数无效、配置错误或源目录不可用
)

// newRootCmd 创建根命令，根命令本身执行整理
func newRootCmd() *cobra.Command {
	flags := &organizeFlags{}

	rootCmd := &cobra.Command{
		Use:   "organize <sourceDir>",
		Short: "按文件类型将目录中的文件整理到子目录",
		Long: `遍历源目录中的文件，按扩展名查找分类规则，并移动到 源目录/<分类>/ 下。
未匹配任何规则的文件归入 misc 目录。目标文件已存在时按冲突策略处理:
  skip       保留源文件不动（默认）
  overwrite  覆盖已有文件
  rename     追加序号，如 "name (1).ext"

规则文件为 TOML 格式，见 organize rules --help。`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrganize(cmd, args, flags)
		},
	}

	flags.register(rootCmd)
	rootCmd.AddCommand(newRulesCmd())

	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode 将命令错误映射为退出码：单条目失败和中断为 1，其余错误（包括参数解析错误）为 2
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case internal.IsFatal(err):
		return ExitUsage
	case errors.Is(err, internal.ErrEntriesFailed), errors.Is(err, context.Canceled):
		return ExitFailure
	default:
		return ExitUsage
	}
}
