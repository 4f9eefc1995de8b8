package model

import "encoding/json"

// SeveritySummary counts findings per severity bin. UNKNOWN findings are
// not tracked.
type SeveritySummary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Count adds one finding of severity s. It reports whether s landed in a bin.
func (s *SeveritySummary) Count(sev Severity) bool {
	switch sev {
	case SeverityCritical:
		s.Critical++
	case SeverityHigh:
		s.High++
	case SeverityMedium:
		s.Medium++
	case SeverityLow:
		s.Low++
	default:
		return false
	}
	return true
}

// Add returns the bin-wise sum of s and o.
func (s SeveritySummary) Add(o SeveritySummary) SeveritySummary {
	return SeveritySummary{
		Critical: s.Critical + o.Critical,
		High:     s.High + o.High,
		Medium:   s.Medium + o.Medium,
		Low:      s.Low + o.Low,
	}
}

// Total is the number of findings across all four bins.
func (s SeveritySummary) Total() int {
	return s.Critical + s.High + s.Medium + s.Low
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// DeriveStatus is error if any summary has critical or high findings,
// warning if any has medium findings, success otherwise.
func DeriveStatus(summaries ...SeveritySummary) Status {
	status := StatusSuccess
	for _, s := range summaries {
		if s.Critical > 0 || s.High > 0 {
			return StatusError
		}
		if s.Medium > 0 {
			status = StatusWarning
		}
	}
	return status
}

// ToolSummary is the severity summary contributed by one scanner. Findings
// counts every finding, including those of unknown severity.
type ToolSummary struct {
	Tool     Tool            `json:"tool"`
	Summary  SeveritySummary `json:"summary"`
	Findings int             `json:"findings"`
}

// ScanSummary is the per-tool entry of an AnalysisRecord.
type ScanSummary struct {
	Tool            Tool
	Vulnerabilities SeveritySummary
	Details         string
}

// Status is derived from the tool's own counts.
func (s ScanSummary) Status() Status {
	return DeriveStatus(s.Vulnerabilities)
}

type scanSummaryJSON struct {
	Tool            Tool            `json:"tool"`
	Status          Status          `json:"status"`
	Vulnerabilities SeveritySummary `json:"vulnerabilities"`
	Details         string          `json:"details"`
}

func (s ScanSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(scanSummaryJSON{
		Tool:            s.Tool,
		Status:          s.Status(),
		Vulnerabilities: s.Vulnerabilities,
		Details:         s.Details,
	})
}

// UnmarshalJSON ignores the persisted status; it is always recomputed.
func (s *ScanSummary) UnmarshalJSON(data []byte) error {
	var raw scanSummaryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ScanSummary{
		Tool:            raw.Tool,
		Vulnerabilities: raw.Vulnerabilities,
		Details:         raw.Details,
	}
	return nil
}

// AnalysisRecord is the persisted result of one pipeline run for a commit
// identifier. It carries no timestamps so reruns over unchanged scanner
// output serialize identically (apart from the narrative).
type AnalysisRecord struct {
	CommitID      string
	Narrative     string
	SecurityScans []ScanSummary
	RawDigests    map[Tool]string
}

// Total sums the per-tool summaries.
func (r AnalysisRecord) Total() SeveritySummary {
	var total SeveritySummary
	for _, s := range r.SecurityScans {
		total = total.Add(s.Vulnerabilities)
	}
	return total
}

// Status is derived from the per-tool summaries and cannot be set.
func (r AnalysisRecord) Status() Status {
	summaries := make([]SeveritySummary, 0, len(r.SecurityScans))
	for _, s := range r.SecurityScans {
		summaries = append(summaries, s.Vulnerabilities)
	}
	return DeriveStatus(summaries...)
}

type analysisRecordJSON struct {
	CommitID      string          `json:"commitId"`
	Status        Status          `json:"status"`
	Narrative     string          `json:"narrative"`
	Total         SeveritySummary `json:"total"`
	SecurityScans []ScanSummary   `json:"securityScans"`
	RawDigests    map[Tool]string `json:"rawDigests,omitempty"`
}

func (r AnalysisRecord) MarshalJSON() ([]byte, error) {
	scans := r.SecurityScans
	if scans == nil {
		scans = []ScanSummary{}
	}
	return json.Marshal(analysisRecordJSON{
		CommitID:      r.CommitID,
		Status:        r.Status(),
		Narrative:     r.Narrative,
		Total:         r.Total(),
		SecurityScans: scans,
		RawDigests:    r.RawDigests,
	})
}

// UnmarshalJSON drops the derived status and total fields.
func (r *AnalysisRecord) UnmarshalJSON(data []byte) error {
	var raw analysisRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = AnalysisRecord{
		CommitID:      raw.CommitID,
		Narrative:     raw.Narrative,
		SecurityScans: raw.SecurityScans,
		RawDigests:    raw.RawDigests,
	}
	return nil
}
