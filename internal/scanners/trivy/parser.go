package trivy

import (
	"encoding/json"
	"fmt"

	"cveroast/internal/model"
)

// EmptyReport is what a scan that found nothing (or failed) looks like.
var EmptyReport = []byte(`{"Results":[]}`)

type TrivyReport struct {
	Results []TrivyResult `json:"Results"`
}

type TrivyResult struct {
	Target            string                  `json:"Target"`
	Vulnerabilities   []TrivyVulnerability    `json:"Vulnerabilities"`
	Misconfigurations []TrivyMisconfiguration `json:"Misconfigurations"`
	Secrets           []TrivySecret           `json:"Secrets"`
}

type TrivyVulnerability struct {
	VulnerabilityID  string `json:"VulnerabilityID"`
	PkgName          string `json:"PkgName"`
	InstalledVersion string `json:"InstalledVersion"`
	FixedVersion     string `json:"FixedVersion"`
	Title            string `json:"Title"`
	Description      string `json:"Description"`
	Severity         string `json:"Severity"`
}

type TrivyMisconfiguration struct {
	ID          string `json:"ID"`
	AVDID       string `json:"AVDID"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Resolution  string `json:"Resolution"`
	Severity    string `json:"Severity"`
}

type TrivySecret struct {
	RuleID   string `json:"RuleID"`
	Category string `json:"Category"`
	Severity string `json:"Severity"`
	Title    string `json:"Title"`
	Match    string `json:"Match"`
}

// ParseTrivyOutput converts a `trivy fs --format json` report into findings.
// Missing sections are treated as empty. Secrets are always HIGH, whatever
// severity the report gives them.
func ParseTrivyOutput(raw []byte) ([]model.Finding, error) {
	var report TrivyReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trivy json: %w", err)
	}

	findings := []model.Finding{}

	for _, result := range report.Results {
		target := model.OrDefault(result.Target, model.Unknown)

		for _, v := range result.Vulnerabilities {
			findings = append(findings, model.Finding{
				SourceTool:       model.ToolTrivy,
				Package:          model.OrDefault(v.PkgName, model.Unknown),
				InstalledVersion: model.OrDefault(v.InstalledVersion, model.Unknown),
				FixedVersion:     model.OrDefault(v.FixedVersion, model.NotAvailable),
				Severity:         model.Normalize(v.Severity),
				Identifier:       model.OrDefault(v.VulnerabilityID, model.NotApplicable),
				Title:            v.Title,
				Description:      v.Description,
				Kind:             model.KindVulnerability,
			})
		}

		for _, m := range result.Misconfigurations {
			id := m.ID
			if id == "" {
				id = m.AVDID
			}
			findings = append(findings, model.Finding{
				SourceTool:       model.ToolTrivy,
				Package:          target,
				InstalledVersion: model.NotApplicable,
				FixedVersion:     model.OrDefault(m.Resolution, model.NotAvailable),
				Severity:         model.Normalize(m.Severity),
				Identifier:       model.OrDefault(id, model.NotApplicable),
				Title:            m.Title,
				Description:      m.Description,
				Kind:             model.KindMisconfiguration,
			})
		}

		for _, s := range result.Secrets {
			findings = append(findings, model.Finding{
				SourceTool:       model.ToolTrivy,
				Package:          target,
				InstalledVersion: model.NotApplicable,
				FixedVersion:     model.NotAvailable,
				Severity:         model.SeverityHigh,
				Identifier:       model.OrDefault(s.RuleID, model.NotApplicable),
				Title:            s.Title,
				Description:      s.Category,
				Kind:             model.KindSecret,
			})
		}
	}

	return findings, nil
}
