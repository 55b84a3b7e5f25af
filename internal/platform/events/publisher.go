// Package events publishes entitlement changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/app/service/subscription"
	"github.com/fatflowers/gympass/internal/models"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/tool"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	TypeEntitlementChanged      = "entitlement.changed"
	TypeEntitlementCommitDenied = "entitlement.commit_denied"
)

// Event is the message value. The key is the member id so one member's
// events stay ordered within a partition.
type Event struct {
	Type     string                        `json:"type"`
	MemberID string                        `json:"member_id"`
	Reason   types.SubscriptionChangeReason `json:"reason,omitempty"`
	Ref      string                        `json:"ref,omitempty"`
	PlanID   string                        `json:"plan_id,omitempty"`
	Source   types.PurchaseSource          `json:"source,omitempty"`
	Before   *types.MemberEntitlementInfo  `json:"before,omitempty"`
	After    *types.MemberEntitlementInfo  `json:"after,omitempty"`
	Error    string                        `json:"error,omitempty"`
	TraceID  string                        `json:"trace_id,omitempty"`
	At       time.Time                     `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is a member.Observer and a subscription.DenialReporter. With no
// brokers configured it only logs.
type Publisher struct {
	cfg   *cfgpkg.Config
	topic string
	w     messageWriter
	log   *zap.SugaredLogger
	now   func() time.Time
}

var (
	_ member.Observer             = (*Publisher)(nil)
	_ subscription.DenialReporter = (*Publisher)(nil)
)

func NewPublisher(lc fx.Lifecycle, cfg *cfgpkg.Config, l *zap.SugaredLogger) *Publisher {
	p := &Publisher{cfg: cfg, topic: cfg.Kafka.Topic, log: l, now: time.Now}
	if len(cfg.Kafka.Brokers) == 0 {
		l.Infow("kafka not configured, entitlement events disabled")
		return p
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Kafka.Brokers...),
		Topic:                  cfg.Kafka.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	l.Infow("kafka producer initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Infow("closing kafka writer")
			return p.w.Close()
		},
	})
	return p
}

func (p *Publisher) Name() string { return "kafka" }

func (p *Publisher) OnMemberChanged(ctx context.Context, c *member.Change) {
	if c == nil || c.After == nil {
		return
	}
	today := p.today()
	ev := &Event{
		Type:     TypeEntitlementChanged,
		MemberID: c.After.ID,
		Reason:   c.Reason,
		Ref:      c.Ref,
		Source:   c.Source,
		After:    evaluate(c.After, today),
		At:       p.at(c.At),
	}
	if c.Before != nil {
		ev.Before = evaluate(c.Before, today)
	}
	_ = p.Publish(ctx, ev)
}

func (p *Publisher) ReportCommitDenied(ctx context.Context, d *subscription.Denial) {
	ev := &Event{
		Type:     TypeEntitlementCommitDenied,
		MemberID: d.MemberID,
		Ref:      d.Ref,
		PlanID:   d.PlanID,
		Source:   d.Source,
		At:       p.at(d.At),
	}
	if d.Err != nil {
		ev.Error = d.Err.Error()
	}
	_ = p.Publish(ctx, ev)
}

// Publish writes one event. Errors are logged and returned.
func (p *Publisher) Publish(ctx context.Context, ev *Event) error {
	log := logctx.FromCtx(ctx, p.log)
	if ev.TraceID == "" {
		ev.TraceID = logctx.TraceID(ctx)
	}
	if p.w == nil {
		log.Debugw("entitlement event dropped, kafka disabled", "type", ev.Type, "member_id", ev.MemberID)
		return nil
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	msg := kafka.Message{Key: []byte(ev.MemberID), Value: value, Time: ev.At}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		log.Errorw("failed to publish entitlement event", "type", ev.Type, "member_id", ev.MemberID, "err", err)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}
	log.Infow("entitlement event published", "type", ev.Type, "member_id", ev.MemberID, "topic", p.topic)
	return nil
}

func (p *Publisher) today() time.Time {
	return tool.DateOf(p.now(), p.cfg.Location())
}

func (p *Publisher) at(t time.Time) time.Time {
	if t.IsZero() {
		return p.now()
	}
	return t
}

func evaluate(m *models.Member, today time.Time) *types.MemberEntitlementInfo {
	info := m.Evaluate(today)
	return &info
}

var Module = fx.Options(
	fx.Provide(
		NewPublisher,
		fx.Annotate(
			func(p *Publisher) member.Observer { return p },
			fx.ResultTags(`group:"member_observers"`),
		),
		func(p *Publisher) subscription.DenialReporter { return p },
	),
)
