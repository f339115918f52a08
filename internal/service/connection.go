package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ales-api/internal/chain"
	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/retry"
	"github.com/ales-api/internal/wallet"
	"github.com/rs/zerolog"
)

// connectionService is the concrete implementation of ConnectionService
type connectionService struct {
	connector chain.Connector
	policy    retry.Policy
	session   *wallet.Session
	log       zerolog.Logger
}

// NewConnectionService wraps connector in the bounded retry policy and
// mirrors every attempt into the signer's wallet session.
func NewConnectionService(connector chain.Connector, policy retry.Policy, session *wallet.Session, log zerolog.Logger) ConnectionService {
	s := &connectionService{
		connector: connector,
		session:   session,
		log:       log.With().Str("service", "connection").Logger(),
	}

	policy.Retryable = retryableConnectError
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		s.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Contract connection failed, retrying")
	}
	s.policy = policy
	return s
}

// Session returns the signer's wallet session
func (s *connectionService) Session() *wallet.Session {
	return s.session
}

// Resolve returns a handle the caller must Close
func (s *connectionService) Resolve(ctx context.Context) (chain.Contract, error) {
	s.session.Apply(wallet.Event{Type: wallet.EventConnecting})

	contract, err := retry.DoValue(ctx, s.policy, func(ctx context.Context, attempt int) (chain.Contract, error) {
		c, err := s.connector.Connect(ctx)
		if err != nil {
			return nil, err
		}

		state, err := s.session.Apply(wallet.Event{
			Type:    wallet.EventConnect,
			Address: c.Address().Hex(),
			ChainID: c.ChainID().Int64(),
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		if state.Status == wallet.StatusUnsupportedNetwork {
			c.Close()
			return nil, fmt.Errorf("chain %d: %w", state.ChainID, models.ErrUnsupportedNetwork)
		}
		return c, nil
	})
	if err == nil {
		return contract, nil
	}

	// Unsupported network keeps its own session state
	if !errors.Is(err, models.ErrUnsupportedNetwork) {
		s.session.Apply(wallet.Event{Type: wallet.EventDisconnect})
	}

	switch {
	case errors.Is(err, models.ErrProviderUnavailable), errors.Is(err, models.ErrUnsupportedNetwork):
		return nil, err
	case errors.Is(err, retry.ErrExhausted):
		s.log.Error().Err(err).Msg("Contract connection failed")
		return nil, fmt.Errorf("%w: %v", models.ErrConnectionFailed, err)
	}
	return nil, err
}

func retryableConnectError(err error) bool {
	switch {
	case errors.Is(err, models.ErrProviderUnavailable),
		errors.Is(err, models.ErrUnsupportedNetwork),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
