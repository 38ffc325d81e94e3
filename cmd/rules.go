package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/moyu-x/organize/pkg/rules"
)

func newRulesCmd() *cobra.Command {
	var rulesFile string

	cmd := &cobra.Command{
		Use:   "rules [文件名...]",
		Short: "显示生效的分类规则，或给定文件名将归入的目录",
		Long: `显示内置规则与规则文件叠加后的结果。规则文件为 TOML:

  fallback = "misc"          # 未匹配文件的目录
  replace_defaults = false   # true 时不使用内置规则

  [categories]
  images = [".jpg", ".png"]

  [extensions]
  ".heic" = "images"

同一扩展名在文件中出现两次视为配置错误。
给出文件名时只按扩展名显示每个文件将归入的目录，不访问文件。`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := rules.Load(afero.NewOsFs(), rulesFile, rules.Default())
			if err != nil {
				return err
			}
			if len(args) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderCategories(rs, args))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRules(rs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&rulesFile, "config", "c", "", "规则文件路径（TOML）")
	return cmd
}

func renderRules(rs *rules.RuleSet) string {
	byFolder := make(map[string][]string)
	for _, r := range rs.Rules() {
		byFolder[r.Folder] = append(byFolder[r.Folder], "."+r.Extension)
	}

	var rows [][]string
	for _, folder := range rs.Folders() {
		exts := byFolder[folder]
		if folder == rs.Fallback() && len(exts) == 0 {
			rows = append(rows, []string{folder, "(其他所有文件)"})
			continue
		}
		rows = append(rows, []string{folder, strings.Join(exts, " ")})
	}

	return renderTable([]string{"目录", "扩展名"}, rows, []columnAlignment{alignLeft, alignLeft})
}

func renderCategories(rs *rules.RuleSet, names []string) string {
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, rs.Category(name)})
	}
	return renderTable([]string{"文件", "目录"}, rows, []columnAlignment{alignLeft, alignLeft})
}
