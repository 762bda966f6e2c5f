package engine

import (
	"context"
	"time"

	"tradebots/internal/strategy"
)

// reportStatus logs the agent's counters and current exchange position. The
// position read is best effort.
func (a *Agent) reportStatus(ctx context.Context, view strategy.MarketView) {
	snap := a.stats.Snapshot()
	event := a.log.Info().
		Uint64("cycles", snap.Cycles).
		Uint64("cycle_errors", snap.CycleErrors).
		Uint64("submitted", snap.Submitted).
		Uint64("rejected", snap.Rejected).
		Uint64("failed", snap.Failed).
		Dur("uptime", a.now().Sub(snap.StartedAt).Round(time.Second))
	if snap.LastError != "" {
		event = event.Str("last_error", snap.LastError)
	}

	position, found, err := view.Position(ctx)
	switch {
	case err != nil:
		a.log.Warn().Err(err).Msg("status position read failed")
	case found:
		event = event.Str("position", position.Size.String()).Str("entry_price", position.EntryPrice.String())
	default:
		event = event.Str("position", "0")
	}

	if a.fills != nil {
		fills := a.fills.Snapshot()
		event = event.Int("fills", fills.Fills).Str("tape_position", fills.Position.String()).Str("tape_cash", fills.Cash.String())
		if fills.HasMean {
			event = event.Str("tape_mean_price", fills.MeanPrice.String())
		}
	}
	event.Msg("status")
}
