package aggregate

import (
	"fmt"
	"sort"

	"cveroast/internal/model"
)

// Summarize counts findings into the four severity bins. UNKNOWN findings
// are not counted.
func Summarize(findings []model.Finding) model.SeveritySummary {
	var s model.SeveritySummary
	for _, f := range findings {
		s.Count(f.Severity)
	}
	return s
}

// SummarizeByTool returns one summary per tool, in the order of tools.
// Tools without findings get a zero summary.
func SummarizeByTool(findings []model.Finding, tools []model.Tool) []model.ToolSummary {
	byTool := make(map[model.Tool][]model.Finding, len(tools))
	for _, f := range findings {
		byTool[f.SourceTool] = append(byTool[f.SourceTool], f)
	}

	out := make([]model.ToolSummary, 0, len(tools))
	for _, t := range tools {
		out = append(out, model.ToolSummary{
			Tool:     t,
			Summary:  Summarize(byTool[t]),
			Findings: len(byTool[t]),
		})
	}
	return out
}

// RankAndTrim returns at most limit findings, most severe first. Findings of
// equal severity keep their input order. The input slice is not modified.
func RankAndTrim(findings []model.Finding, limit int) []model.Finding {
	if limit <= 0 {
		return []model.Finding{}
	}

	ranked := make([]model.Finding, len(findings))
	copy(ranked, findings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Severity.Order() < ranked[j].Severity.Order()
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Dedupe drops exact duplicates, keeping the first occurrence and the
// input order.
func Dedupe(findings []model.Finding) []model.Finding {
	seen := make(map[string]struct{}, len(findings))
	result := make([]model.Finding, 0, len(findings))

	for _, f := range findings {
		key := dedupeKey(f)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, f)
	}
	return result
}

func dedupeKey(f model.Finding) string {
	// tool|package|version|id|severity
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		f.SourceTool, f.Package, f.InstalledVersion, f.Identifier, f.Severity)
}
