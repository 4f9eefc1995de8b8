package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"cveroast/internal/model"
)

// DefaultPersona is used when no humor template is configured or readable.
const DefaultPersona = `You are Sheldon Cooper from The Big Bang Theory, specializing in roasting vulnerabilities with Penny jokes.
Rules:
- Always compare vulnerabilities to Penny's quirks
- Include scientific references
- Use signature phrases like "Bazinga!"
- Keep jokes 1-2 sentences
- Include emojis related to physics/science 🔭⚛️
Example: "This buffer overflow is as unpredictable as Penny's acting career! Bazinga! 🎭"`

// NoFindings replaces the findings list in a prompt when there is nothing
// to report.
const NoFindings = "No findings: both scanners came back clean. Roast the empty report instead of inventing a table."

const instructions = `Analyze these vulnerabilities (sorted by severity) and generate:
1. A short joke in the persona above.
2. A markdown table with columns: Package, Severity, CVE, Fixed Version, How to Fix.
3. Key technical notes for critical/high vulnerabilities.
4. Actionable remediation steps.`

const exampleFormat = "--- Example Format ---\n" +
	"**Joke**: \"This SQL injection is as messy as Penny's apartment! Bazinga! 🛋️\"\n\n" +
	"**Vulnerabilities**:\n" +
	"| Package | Severity | CVE | Fixed Version | How to Fix |\n" +
	"|---------|----------|-----|---------------|------------|\n" +
	"| libaom3 | CRITICAL | CVE-2023-6879 | not available | Upgrade via Debian security updates |\n\n" +
	"**Key Notes**:\n" +
	"- libaom3: Heap overflow (CRITICAL).\n\n" +
	"**Action**:\n" +
	"- Patch CRITICAL issues immediately."

type overview struct {
	Tools []model.ToolSummary   `json:"tools"`
	Total model.SeveritySummary `json:"total"`
}

// BuildPrompt assembles the narration prompt from the persona template,
// a JSON severity overview and the ranked findings. The output depends only
// on its inputs.
func BuildPrompt(template string, summaries []model.ToolSummary, ranked []model.Finding) string {
	persona := strings.TrimSpace(template)
	if persona == "" {
		persona = DefaultPersona
	}

	var (
		total    model.SeveritySummary
		reported int
	)
	for _, s := range summaries {
		total = total.Add(s.Summary)
		reported += max(s.Findings, s.Summary.Total())
	}
	if summaries == nil {
		summaries = []model.ToolSummary{}
	}

	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\n\n")
	sb.WriteString(instructions)
	sb.WriteString("\n\nSeverity overview:\n")
	sb.WriteString(mustJSON(overview{Tools: summaries, Total: total}))
	sb.WriteString("\n\n")

	switch {
	case reported == 0 && len(ranked) == 0:
		sb.WriteString(NoFindings)
	case len(ranked) == 0:
		fmt.Fprintf(&sb, "The scanners reported %d findings; none are listed here. Use the severity overview above.", reported)
	default:
		fmt.Fprintf(&sb, "Vulnerabilities (first %d by severity):\n", len(ranked))
		sb.WriteString(mustJSON(ranked))
	}
	sb.WriteString("\n\n")
	sb.WriteString(exampleFormat)
	sb.WriteString("\n")

	return sb.String()
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		// Only plain structs and strings are encoded here.
		panic(err)
	}
	return string(b)
}
