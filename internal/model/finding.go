package model

// Tool identifies the scanner a finding came from. The values double as
// artifact prefixes for raw reports.
type Tool string

const (
	// ToolTrivy is the dependency-vulnerability scanner.
	ToolTrivy Tool = "trivy"
	// ToolDependencyCheck is the OWASP dependency-audit scanner.
	ToolDependencyCheck Tool = "owasp"
)

type Kind string

const (
	KindVulnerability    Kind = "Vulnerability"
	KindMisconfiguration Kind = "Misconfiguration"
	KindSecret           Kind = "Secret"
	KindDependencyAudit  Kind = "DependencyAudit"
)

// Placeholders substituted for missing report fields.
const (
	NotApplicable = "N/A"
	Unknown       = "unknown"
	NotAvailable  = "not available"
)

// Finding represents a normalized security finding.
// Findings are built by the report parsers and never modified afterwards.
type Finding struct {
	SourceTool       Tool     `json:"source_tool"`
	Package          string   `json:"package"`
	InstalledVersion string   `json:"installed_version"`
	FixedVersion     string   `json:"fixed_version"`
	Severity         Severity `json:"severity"`
	Identifier       string   `json:"identifier"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Kind             Kind     `json:"kind"`
}

// OrDefault returns s, or def when s is empty.
func OrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
