package trivy

import (
	"path/filepath"
	"strings"

	"cveroast/internal/model"
)

const reportName = "trivy.json"

// Scanner runs `trivy fs` over a source tree.
type Scanner struct {
	// Threshold is the least severe level reported.
	Threshold model.Severity
	// SkipDirs are passed through --skip-dirs, relative to the target.
	SkipDirs []string
}

func (s *Scanner) Tool() model.Tool { return model.ToolTrivy }

func (s *Scanner) Binary() string { return "trivy" }

func (s *Scanner) Args(target, outDir, identifier string) []string {
	threshold := s.Threshold
	if threshold == "" {
		threshold = model.SeverityLow
	}
	var sevs []string
	for _, sev := range model.SeveritiesAtOrAbove(threshold) {
		sevs = append(sevs, sev.String())
	}

	args := []string{
		"fs",
		"--format", "json",
		"--severity", strings.Join(sevs, ","),
		"--scanners", "vuln,misconfig,secret",
		"--no-progress",
		"--output", s.OutputFile(outDir),
	}
	for _, dir := range s.SkipDirs {
		args = append(args, "--skip-dirs", filepath.ToSlash(filepath.Join(target, dir)))
	}
	return append(args, target)
}

func (s *Scanner) OutputFile(outDir string) string {
	return filepath.Join(outDir, reportName)
}

func (s *Scanner) EmptyReport() []byte {
	return append([]byte(nil), EmptyReport...)
}

func (s *Scanner) Parse(raw []byte) ([]model.Finding, error) {
	return ParseTrivyOutput(raw)
}
