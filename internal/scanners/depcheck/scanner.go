package depcheck

import (
	"path/filepath"

	"cveroast/internal/model"
)

// reportName is fixed by dependency-check for --format JSON.
const reportName = "dependency-check-report.json"

// Scanner runs OWASP Dependency-Check over a source tree.
type Scanner struct {
	// SkipDirs become --exclude globs, relative to the target.
	SkipDirs []string
	// NoUpdate skips the NVD refresh (for offline CI runners with a warm cache).
	NoUpdate bool
}

func (s *Scanner) Tool() model.Tool { return model.ToolDependencyCheck }

func (s *Scanner) Binary() string { return "dependency-check" }

func (s *Scanner) Args(target, outDir, identifier string) []string {
	args := []string{
		"--scan", target,
		"--format", "JSON",
		"--out", outDir,
		"--project", identifier,
	}
	for _, dir := range s.SkipDirs {
		args = append(args, "--exclude", "**/"+filepath.ToSlash(dir)+"/**")
	}
	if s.NoUpdate {
		args = append(args, "--noupdate")
	}
	return args
}

func (s *Scanner) OutputFile(outDir string) string {
	return filepath.Join(outDir, reportName)
}

func (s *Scanner) EmptyReport() []byte {
	return append([]byte(nil), EmptyReport...)
}

func (s *Scanner) Parse(raw []byte) ([]model.Finding, error) {
	return ParseDependencyCheckOutput(raw)
}
