package checkout

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepInterval = 10 * time.Minute

// Sweeper expires abandoned checkout sessions. Expiring never touches the
// member record.
type Sweeper struct {
	repo     Repository
	log      *zap.SugaredLogger
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(repo Repository, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{repo: repo, log: log, interval: sweepInterval, now: time.Now}
}

// Sweep runs one expiry pass.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireBefore(ctx, s.now())
	if err != nil {
		s.log.Errorw("checkout sweep failed", "err", err)
		return 0, err
	}
	if n > 0 {
		s.log.Infow("expired abandoned checkout sessions", "count", n)
	}
	return n, nil
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}

func registerSweeper(lc fx.Lifecycle, s *Sweeper) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
