package report

import (
	"path/filepath"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var outcomeStyles = map[Outcome]lipgloss.Style{
	Moved:       lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
	Overwritten: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
	Skipped:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	Failed:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	Planned:     lipgloss.NewStyle().Foreground(lipgloss.Color("147")).Italic(true),
}

// Table 以表格形式渲染所有记录，按源路径排序。
// color 为 true 时为结果列着色。
func (r *RunReport) Table(color bool) string {
	records := r.Records()
	sort.Slice(records, func(i, j int) bool { return records[i].Source < records[j].Source })

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"源文件", "分类", "目标", "结果", "原因"})

	for _, rec := range records {
		outcome := string(rec.Outcome)
		if color {
			if style, ok := outcomeStyles[rec.Outcome]; ok {
				outcome = style.Render(outcome)
			}
		}
		tw.AppendRow(table.Row{
			r.relative(rec.Source),
			rec.Category,
			r.relative(rec.Destination),
			outcome,
			rec.Reason,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 5, WidthMax: 60},
	})
	return tw.Render()
}

func (r *RunReport) relative(path string) string {
	if path == "" || r.SourceDir == "" {
		return path
	}
	rel, err := filepath.Rel(r.SourceDir, path)
	if err != nil {
		return path
	}
	return rel
}
