package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Supervisor runs several agents side by side, one goroutine each. Agents
// share nothing but the process.
type Supervisor struct {
	agents []*Agent
	log    zerolog.Logger
}

func NewSupervisor(agents []*Agent, log zerolog.Logger) *Supervisor {
	return &Supervisor{agents: agents, log: log}
}

// Run blocks until every agent has stopped. A registration failure in any
// agent stops the others and is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, agent := range s.agents {
		a := agent
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Run(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				s.log.Error().Err(err).Str("strategy", string(a.strategy.Kind())).Msg("agent failed, stopping all agents")
				cancel()
			}
		}()
	}
	s.log.Info().Int("agents", len(s.agents)).Msg("supervisor started")
	wg.Wait()
	return errors.Join(errs...)
}
