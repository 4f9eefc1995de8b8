package depcheck

import (
	"encoding/json"
	"fmt"
	"strings"

	"cveroast/internal/model"
)

// EmptyReport is what a scan that found nothing (or failed) looks like.
var EmptyReport = []byte(`{"dependencies":[]}`)

type Report struct {
	Dependencies []Dependency `json:"dependencies"`
}

type Dependency struct {
	FileName        string          `json:"fileName"`
	FilePath        string          `json:"filePath"`
	Packages        []Package       `json:"packages"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

type Package struct {
	ID string `json:"id"` // package URL, e.g. pkg:maven/org.apache/log4j@2.14.1
}

type Vulnerability struct {
	Source      string `json:"source"`
	Name        string `json:"name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	CVSSv3      *struct {
		BaseSeverity string `json:"baseSeverity"`
	} `json:"cvssv3"`
}

// ParseDependencyCheckOutput converts a Dependency-Check JSON report into
// findings, one per (dependency, vulnerability) pair.
func ParseDependencyCheckOutput(raw []byte) ([]model.Finding, error) {
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dependency-check json: %w", err)
	}

	findings := []model.Finding{}

	for _, dep := range report.Dependencies {
		if len(dep.Vulnerabilities) == 0 {
			continue
		}
		version := installedVersion(dep.Packages)

		for _, v := range dep.Vulnerabilities {
			sev := v.Severity
			if sev == "" && v.CVSSv3 != nil {
				sev = v.CVSSv3.BaseSeverity
			}

			findings = append(findings, model.Finding{
				SourceTool:       model.ToolDependencyCheck,
				Package:          model.OrDefault(dep.FileName, model.Unknown),
				InstalledVersion: version,
				FixedVersion:     model.NotAvailable,
				Severity:         model.Normalize(sev),
				Identifier:       model.OrDefault(v.Name, model.NotApplicable),
				Title:            title(v),
				Description:      v.Description,
				Kind:             model.KindDependencyAudit,
			})
		}
	}

	return findings, nil
}

const maxTitleRunes = 80

// title is the first sentence of the description, capped at maxTitleRunes,
// or the vulnerability name when there is no description.
func title(v Vulnerability) string {
	t := strings.TrimSpace(v.Description)
	if i := strings.IndexAny(t, "\r\n"); i >= 0 {
		t = t[:i]
	}
	if i := strings.Index(t, ". "); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), ".")
	if t == "" {
		return model.OrDefault(v.Name, model.NotApplicable)
	}
	if r := []rune(t); len(r) > maxTitleRunes {
		t = strings.TrimSpace(string(r[:maxTitleRunes-3])) + "..."
	}
	return t
}

// installedVersion pulls the version out of the first package URL that has
// one.
func installedVersion(pkgs []Package) string {
	for _, p := range pkgs {
		i := strings.LastIndex(p.ID, "@")
		if i < 0 || i == len(p.ID)-1 {
			continue
		}
		v := p.ID[i+1:]
		if j := strings.IndexAny(v, "?#"); j >= 0 {
			v = v[:j]
		}
		if v != "" {
			return v
		}
	}
	return model.Unknown
}
