package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// RecordWriter receives one JSON record per call.
type RecordWriter interface {
	Write(value interface{}) error
}

// ReplayConfig wires the outputs of Replay. Nil writers drop their records.
type ReplayConfig struct {
	Input      string
	Results    RecordWriter
	Failures   RecordWriter
	Checkpoint *CheckpointStore
	// CheckpointEvery saves progress after this many lines; 0 saves only at the end.
	CheckpointEvery int
}

// Stats counts what a replay did.
type Stats struct {
	Total   int `json:"total"`
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Replay reads JSONL intents from r and dispatches them in order. Lines at
// or before the checkpoint are skipped. A failed intent is recorded and the
// replay moves on; only I/O and cancellation stop it.
func (d *Dispatcher) Replay(ctx context.Context, r io.Reader, cfg ReplayConfig) (Stats, error) {
	var stats Stats

	resumeAfter := 0
	if cp, ok, err := cfg.Checkpoint.Load(); err != nil {
		return stats, err
	} else if ok {
		if cp.Input != "" && cp.Input != cfg.Input {
			return stats, fmt.Errorf("checkpoint belongs to %s, not %s", cp.Input, cfg.Input)
		}
		resumeAfter = cp.LastProcessedLine
		d.logger.Info("resuming from checkpoint", zap.Int("line", resumeAfter))
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	lastSaved := resumeAfter
	for scanner.Scan() {
		lineNo++
		if lineNo <= resumeAfter {
			stats.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, d.saveCheckpoint(cfg, lineNo-1, err)
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var intent Intent
		if err := json.Unmarshal(line, &intent); err != nil {
			stats.Failed++
			if werr := write(cfg.Failures, Failure{Line: lineNo, Kind: ErrorKind(ErrBadIntent), Error: err.Error()}); werr != nil {
				return stats, werr
			}
			continue
		}

		res, err := d.Dispatch(ctx, intent)
		if err != nil {
			stats.Failed++
			d.logger.Debug("intent failed",
				zap.Int("line", lineNo),
				zap.String("op", intent.Op),
				zap.String("id", intent.ID),
				zap.Error(err),
			)
			failure := Failure{
				Line:   lineNo,
				ID:     intent.ID,
				Op:     intent.Op,
				Caller: intent.Caller,
				Kind:   ErrorKind(err),
				Error:  err.Error(),
			}
			if werr := write(cfg.Failures, failure); werr != nil {
				return stats, werr
			}
		} else {
			stats.Applied++
			res.Line = lineNo
			if werr := write(cfg.Results, res); werr != nil {
				return stats, werr
			}
		}

		if cfg.CheckpointEvery > 0 && lineNo-lastSaved >= cfg.CheckpointEvery {
			if err := cfg.Checkpoint.Save(cfg.Input, lineNo); err != nil {
				return stats, err
			}
			lastSaved = lineNo
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	if err := cfg.Checkpoint.Save(cfg.Input, lineNo); err != nil {
		return stats, err
	}
	return stats, nil
}

func (d *Dispatcher) saveCheckpoint(cfg ReplayConfig, line int, cause error) error {
	if err := cfg.Checkpoint.Save(cfg.Input, line); err != nil {
		d.logger.Warn("checkpoint save failed", zap.Int("line", line), zap.Error(err))
	}
	return cause
}

func write(w RecordWriter, value interface{}) error {
	if w == nil {
		return nil
	}
	return w.Write(value)
}
