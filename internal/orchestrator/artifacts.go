package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Artifact file names under Config.OutputDir.
const (
	SummaryFile = "self_improve_summary.json"
	ReportFile  = "report.json"
	RecordFile  = "record.json"
)

// IterationDir is the per-iteration artifact directory name.
func IterationDir(index int) string { return fmt.Sprintf("iteration_%d", index) }

// writeIterationArtifacts dumps the baseline report and the record. Skipped
// when no output directory is configured.
func (o *Orchestrator) writeIterationArtifacts(log *zap.Logger, rec IterationRecord) {
	if o.cfg.OutputDir == "" {
		return
	}
	dir := filepath.Join(o.cfg.OutputDir, IterationDir(rec.Index))
	if rec.PreReport != nil {
		if err := writeJSON(filepath.Join(dir, ReportFile), rec.PreReport); err != nil {
			log.Warn("write iteration report", zap.String("dir", dir), zap.Error(err))
		}
	}
	if err := writeJSON(filepath.Join(dir, RecordFile), rec); err != nil {
		log.Warn("write iteration record", zap.String("dir", dir), zap.Error(err))
	}
}

func (o *Orchestrator) writeSummary(log *zap.Logger, res RunResult) {
	if o.cfg.OutputDir == "" {
		return
	}
	path := filepath.Join(o.cfg.OutputDir, SummaryFile)
	if err := writeJSON(path, res); err != nil {
		log.Warn("write run summary", zap.String("path", path), zap.Error(err))
		return
	}
	log.Info("summary written", zap.String("path", path))
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}
