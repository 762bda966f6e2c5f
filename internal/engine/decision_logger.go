package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	ResultSubmitted = "submitted"
	ResultRejected  = "rejected"
	ResultFailed    = "failed"
)

// Decision is one journal line per intent outcome.
type Decision struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Strategy  string    `json:"strategy"`
	TraderID  string    `json:"trader_id"`
	Side      string    `json:"side"`
	Type      string    `json:"type"`
	Price     string    `json:"price,omitempty"`
	Size      string    `json:"size"`
	Leverage  int       `json:"leverage"`
	Reason    string    `json:"reason,omitempty"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	Trades    int       `json:"trades"`
}

// DecisionLogger appends decisions as NDJSON. A nil *DecisionLogger discards
// everything, which is what an empty journal path gives you.
type DecisionLogger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	log    zerolog.Logger
	mu     sync.Mutex
}

func NewRunID() string {
	return uuid.NewString()
}

func NewDecisionLogger(path string, runID string, log zerolog.Logger) (*DecisionLogger, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
		log:    log,
	}, nil
}

func (d *DecisionLogger) RunID() string {
	if d == nil {
		return ""
	}
	return d.runID
}

func (d *DecisionLogger) Append(decision Decision) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	decision.RunID = d.runID
	payload, err := json.Marshal(decision)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to marshal decision")
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		d.log.Error().Err(err).Msg("failed to write decision")
		return
	}
	if err := d.writer.Flush(); err != nil {
		d.log.Error().Err(err).Msg("failed to flush decision journal")
	}
}

func (d *DecisionLogger) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
