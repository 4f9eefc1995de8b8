package report

import (
	"fmt"
	"sort"
	"strings"

	"cveroast/internal/model"
)

// Markdown renders a human-readable report for a record and the findings
// that were ranked for its narrative.
func Markdown(rec model.AnalysisRecord, ranked []model.Finding) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Security Analysis: `%s`\n\n", rec.CommitID)
	fmt.Fprintf(&sb, "**Status:** %s\n\n", rec.Status())

	total := rec.Total()
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Tool | Status | Critical | High | Medium | Low |\n")
	sb.WriteString("| :--- | :--- | :--- | :--- | :--- | :--- |\n")
	for _, s := range rec.SecurityScans {
		v := s.Vulnerabilities
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %d | %d |\n",
			s.Tool, s.Status(), v.Critical, v.High, v.Medium, v.Low)
	}
	fmt.Fprintf(&sb, "| **Total** | %s | %d | %d | %d | %d |\n\n",
		rec.Status(), total.Critical, total.High, total.Medium, total.Low)

	sb.WriteString("## Top Findings\n\n")
	if len(ranked) == 0 {
		sb.WriteString("_No findings._\n")
	} else {
		sb.WriteString("| Sev | Tool | Package | Installed | Fixed | ID | Title |\n")
		sb.WriteString("| :--- | :--- | :--- | :--- | :--- | :--- | :--- |\n")
		for _, f := range ranked {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %s |\n",
				f.Severity, f.SourceTool, cell(f.Package), cell(f.InstalledVersion),
				cell(f.FixedVersion), cell(f.Identifier), cell(f.Title))
		}
	}

	if len(rec.RawDigests) > 0 {
		sb.WriteString("\n## Raw Reports\n\n")
		tools := make([]string, 0, len(rec.RawDigests))
		for t := range rec.RawDigests {
			tools = append(tools, string(t))
		}
		sort.Strings(tools)
		for _, t := range tools {
			fmt.Fprintf(&sb, "- %s: `%s`\n", t, rec.RawDigests[model.Tool(t)])
		}
	}

	sb.WriteString("\n## Narrative\n\n")
	sb.WriteString(rec.Narrative)
	sb.WriteString("\n")

	return sb.String()
}

// cell escapes a value for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
