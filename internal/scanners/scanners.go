package scanners

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	depExec "cveroast/internal/exec"
	"cveroast/internal/model"
)

// Scanner describes how to invoke one external scanner binary.
type Scanner interface {
	Tool() model.Tool
	Binary() string
	// Args builds the command line scanning target and writing the JSON
	// report somewhere inside outDir.
	Args(target, outDir, identifier string) []string
	// OutputFile is where the report lands for a given outDir.
	OutputFile(outDir string) string
	// EmptyReport is the canonical "found nothing" report shape.
	EmptyReport() []byte
}

// Run invokes the scanner against target and returns its raw JSON report.
// It never fails: a missing binary, nonzero exit, timeout, or a missing or
// empty report all degrade to the scanner's empty report.
// The report is written to a private temporary directory that is removed
// before Run returns.
func Run(ctx context.Context, s Scanner, target, identifier string, timeout time.Duration, logger *zap.Logger) []byte {
	log := logger.With(zap.String("tool", string(s.Tool())), zap.String("commit", identifier))

	if _, err := exec.LookPath(s.Binary()); err != nil {
		log.Warn("scanner executable not found in PATH", zap.String("binary", s.Binary()))
		return s.EmptyReport()
	}

	outDir, err := os.MkdirTemp("", fmt.Sprintf("cveroast-%s-", s.Tool()))
	if err != nil {
		log.Error("failed to create temp output dir", zap.Error(err))
		return s.EmptyReport()
	}
	defer func() {
		if err := os.RemoveAll(outDir); err != nil {
			log.Warn("failed to remove temp output dir", zap.String("dir", outDir), zap.Error(err))
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := s.Args(target, outDir, identifier)
	log.Info("running scanner", zap.String("target", target), zap.Strings("args", args))

	res, err := depExec.Run(ctx, s.Binary(), args, "", func(stream, line string) {
		logLine(log, stream, line)
	})
	if err != nil || res.ExitCode != 0 {
		log.Error("scanner failed",
			zap.Int("exit_code", res.ExitCode),
			zap.Duration("duration", res.Duration),
			zap.Error(err))
		return s.EmptyReport()
	}

	data, err := os.ReadFile(s.OutputFile(outDir))
	if err != nil {
		log.Error("scanner produced no report", zap.Error(err))
		return s.EmptyReport()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		log.Error("scanner produced an empty report")
		return s.EmptyReport()
	}

	log.Info("scanner finished", zap.Duration("duration", res.Duration), zap.Int("bytes", len(data)))
	return data
}

// ClassifyLine picks a log level for one line of scanner output by simple
// substring match. It is advisory only.
func ClassifyLine(line string) zapcore.Level {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "error"), strings.Contains(lower, "fatal"):
		return zapcore.ErrorLevel
	case strings.Contains(lower, "warn"):
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func logLine(log *zap.Logger, stream, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if ce := log.Check(ClassifyLine(line), line); ce != nil {
		ce.Write(zap.String("stream", stream))
	}
}
