package app

import (
	"context"
	"os"

	"github.com/spf13/afero"

	"github.com/moyu-x/organize/internal"
	"github.com/moyu-x/organize/pkg/logger"
	"github.com/moyu-x/organize/pkg/organizer"
	"github.com/moyu-x/organize/pkg/report"
	"github.com/moyu-x/organize/pkg/rules"
)

type OrganizeOptions struct {
	SourceDir     string
	Policy        string
	RulesFile     string
	Recursive     bool
	SkipHidden    bool
	DetectContent bool
	DryRun        bool
	Copy          bool
	Workers       int
	Lock          bool
}

// RunOrganize 校验参数、加载规则并执行整理。
// 参数和规则错误在修改文件系统之前返回。
func RunOrganize(ctx context.Context, fs afero.Fs, opts *OrganizeOptions) (*report.RunReport, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	policy, err := internal.ParsePolicy(opts.Policy)
	if err != nil {
		return nil, err
	}

	rs, err := rules.Load(fs, opts.RulesFile, rules.Default())
	if err != nil {
		return nil, err
	}

	log := logger.Get()
	log.Info().Msgf("源目录: %s", opts.SourceDir)
	if opts.RulesFile != "" {
		log.Info().Msgf("规则文件: %s", opts.RulesFile)
	}
	log.Debug().Int("rules", rs.Len()).Strs("folders", rs.Folders()).Msg("加载规则完成")

	orgOpts := organizer.Options{
		Recursive:     opts.Recursive,
		SkipHidden:    opts.SkipHidden,
		DetectContent: opts.DetectContent,
		DryRun:        opts.DryRun,
		Mode:          internal.ModeMove,
		Workers:       opts.Workers,
	}
	if opts.Copy {
		orgOpts.Mode = internal.ModeCopy
	}
	if opts.Lock {
		orgOpts.LockDir = os.TempDir()
	}

	return organizer.New(fs, rs, orgOpts).Run(ctx, opts.SourceDir, policy)
}
