package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrOracleUnavailable means the membership oracle could not be reached. The
// caller must treat the verdict as unknown, not as "not a member".
var ErrOracleUnavailable = errors.New("membership oracle unavailable")

// Oracle answers whether a user currently belongs to a channel.
type Oracle interface {
	IsMember(ctx context.Context, channel string, userID int64) (bool, error)
}

// Cache holds recent definite verdicts. A miss returns found=false.
type Cache interface {
	Get(ctx context.Context, channel string, userID int64) (member bool, found bool, err error)
	Set(ctx context.Context, channel string, userID int64, member bool, ttl time.Duration) error
}

type Config struct {
	Channel  string
	CacheTTL time.Duration
}

type Service struct {
	oracle Oracle
	cache  Cache
	cfg    Config
	logger *zap.Logger
}

func NewService(oracle Oracle, cache Cache, cfg Config, logger *zap.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{oracle: oracle, cache: cache, cfg: cfg, logger: logger}
}

// Check resolves the membership verdict for the configured channel, consulting
// the cache first. Oracle failures propagate as ErrOracleUnavailable and are
// never cached.
func (s *Service) Check(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, fmt.Errorf("invalid user id")
	}
	if s.oracle == nil {
		return false, fmt.Errorf("membership oracle is nil")
	}
	channel := strings.TrimSpace(s.cfg.Channel)
	if channel == "" {
		return false, fmt.Errorf("membership channel is not configured")
	}

	if s.cache != nil {
		member, found, err := s.cache.Get(ctx, channel, userID)
		if err != nil {
			s.logger.Warn("membership cache read failed", zap.Error(err))
		} else if found {
			return member, nil
		}
	}

	member, err := s.oracle.IsMember(ctx, channel, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, channel, userID, member, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("membership cache write failed", zap.Error(err))
		}
	}

	return member, nil
}
