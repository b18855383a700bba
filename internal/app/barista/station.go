package barista

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

// Station keeps one barista visible as online while the process runs.
type Station struct {
	preparers         interfaces.PreparerRepository
	logger            logger.Logger
	name              string
	heartbeatInterval time.Duration
	now               func() time.Time
}

func NewStation(preparers interfaces.PreparerRepository, logger logger.Logger, name string, heartbeatInterval time.Duration) *Station {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Station{
		preparers:         preparers,
		logger:            logger,
		name:              name,
		heartbeatInterval: heartbeatInterval,
		now:               time.Now,
	}
}

// Start registers the barista and runs the heartbeat until ctx is done.
func (s *Station) Start(ctx context.Context, timeout time.Duration) error {
	if s.name == "" {
		return fmt.Errorf("barista name is required: %w", domain.ErrConfig)
	}

	// two processes must not run under one name
	existing, err := s.preparers.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list baristas: %w", err)
	}
	for _, p := range existing {
		if p.Name == s.name && p.IsOnline(s.now(), timeout) {
			return fmt.Errorf("barista %s is already online: %w", s.name, domain.ErrAlreadyExists)
		}
	}

	if err := s.preparers.Touch(ctx, s.name, s.now()); err != nil {
		return fmt.Errorf("failed to register barista: %w", err)
	}
	s.logger.Info("barista_registered", fmt.Sprintf("Barista %s registered", s.name), "", nil)

	go s.heartbeatLoop(ctx)
	return nil
}

func (s *Station) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Heartbeat(ctx)
		}
	}
}

func (s *Station) Heartbeat(ctx context.Context) {
	if err := s.preparers.Touch(ctx, s.name, s.now()); err != nil {
		s.logger.Error("heartbeat_failed", "Failed to update heartbeat", "", nil, err)
		return
	}
	s.logger.Debug("heartbeat_sent", "Heartbeat sent", "", map[string]interface{}{"barista": s.name})
}

func (s *Station) Shutdown(ctx context.Context) error {
	if err := s.preparers.SetOffline(ctx, s.name); err != nil {
		return fmt.Errorf("failed to mark barista offline: %w", err)
	}
	s.logger.Info("barista_offline", fmt.Sprintf("Barista %s went offline", s.name), "", nil)
	return nil
}
