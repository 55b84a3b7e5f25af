package auditlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/tool"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const queueSize = 512

type job struct {
	ctx  context.Context
	what string
	row  any
}

// Service writes audit rows in the background, in submission order, so a
// notification's final status never lands before its receipt. Failures are
// logged and never reach the caller.
type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	queue chan job
	done  chan struct{}
	// save is replaced in tests.
	save func(ctx context.Context, row any) error
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	s := &Service{db: db, log: log, queue: make(chan job, queueSize), done: make(chan struct{})}
	s.save = func(ctx context.Context, row any) error {
		return s.db.WithContext(ctx).Save(row).Error
	}
	go s.run()
	return s
}

func (s *Service) run() {
	defer close(s.done)
	for j := range s.queue {
		if err := s.save(j.ctx, j.row); err != nil {
			logctx.FromCtx(j.ctx, s.log).Errorf("failed to save %s: %v", j.what, err)
		}
	}
}

func (s *Service) async(ctx context.Context, what string, row any) {
	select {
	case s.queue <- job{ctx: logctx.Detach(ctx), what: what, row: row}:
	default:
		logctx.FromCtx(ctx, s.log).Warnw("audit queue full, row dropped", "what", what)
	}
}

// Close drains queued rows or gives up when ctx ends.
func (s *Service) Close(ctx context.Context) error {
	close(s.queue)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func registerClose(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{OnStop: s.Close})
}

// SaveSubscriptionLog asynchronously persists a member change log.
func (s *Service) SaveSubscriptionLog(ctx context.Context, log *models.SubscriptionLog) {
	if log == nil {
		return
	}
	if log.ID == "" {
		log.ID = tool.GenerateUUIDV7()
	}
	if log.Extra == nil {
		log.Extra = datatypes.JSONMap{}
	}
	s.async(ctx, "subscription log", log)
}

// Received records an incoming payment confirmation and returns the row so
// the caller can Finish it.
func (s *Service) Received(ctx context.Context, kind models.PaymentNotificationKind, providerID string, userID *string, ref string, data any) *models.PaymentNotificationLog {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	row := &models.PaymentNotificationLog{
		ID:               tool.GenerateUUIDV7(),
		ProviderID:       providerID,
		UserID:           userID,
		TraceID:          logctx.TraceID(ctx),
		Ref:              ref,
		Kind:             kind,
		NotificationTime: time.Now(),
		Data:             datatypes.JSON(raw),
		Status:           models.PaymentNotificationLogStatusReceived,
	}
	cp := *row
	s.async(ctx, "payment notification log", &cp)
	return row
}

// Finish records the handling result of a row returned by Received.
func (s *Service) Finish(ctx context.Context, row *models.PaymentNotificationLog, result any, handleErr error) {
	if row == nil {
		return
	}
	cp := *row
	cp.Status = models.PaymentNotificationLogStatusHandled
	payload := map[string]any{"result": result}
	if handleErr != nil {
		cp.Status = models.PaymentNotificationLogStatusHandleFailed
		payload["error"] = handleErr.Error()
	}
	if raw, err := json.Marshal(payload); err == nil {
		j := datatypes.JSON(raw)
		cp.Result = &j
	}
	s.async(ctx, "payment notification log", &cp)
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerClose),
)
