package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cveroast/internal/model"
	"cveroast/internal/scanners"
)

// Source produces and parses one tool's raw report.
type Source interface {
	Tool() model.Tool
	// Scan never fails; a failed scan returns EmptyReport.
	Scan(ctx context.Context, target, identifier string) []byte
	Parse(raw []byte) ([]model.Finding, error)
	EmptyReport() []byte
}

// Narrator turns a prompt into narrative text and never fails.
type Narrator interface {
	Narrate(ctx context.Context, prompt string) string
}

type Notifier interface {
	Send(ctx context.Context, message string) error
}

// ParsingScanner is a scanner adapter that can also parse its own report.
type ParsingScanner interface {
	scanners.Scanner
	Parse(raw []byte) ([]model.Finding, error)
}

type scannerSource struct {
	ParsingScanner
	timeout time.Duration
	logger  *zap.Logger
}

// FromScanner runs s as an external process through scanners.Run.
func FromScanner(s ParsingScanner, timeout time.Duration, logger *zap.Logger) Source {
	return &scannerSource{ParsingScanner: s, timeout: timeout, logger: logger}
}

func (s *scannerSource) Scan(ctx context.Context, target, identifier string) []byte {
	return scanners.Run(ctx, s.ParsingScanner, target, identifier, s.timeout, s.logger)
}
