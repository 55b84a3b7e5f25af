package firebase

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/models"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/tool"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type docWriter interface {
	Merge(ctx context.Context, id string, data map[string]any) error
}

type firestoreWriter struct {
	client     *firestore.Client
	collection string
}

func (w *firestoreWriter) Merge(ctx context.Context, id string, data map[string]any) error {
	_, err := w.client.Collection(w.collection).Doc(id).Set(ctx, data, firestore.MergeAll)
	return err
}

// Mirror copies the evaluated entitlement of changed members into a
// Firestore collection read by the member app.
type Mirror struct {
	cfg *cfgpkg.Config
	w   docWriter
	log *zap.SugaredLogger
	now func() time.Time
}

var _ member.Observer = (*Mirror)(nil)

func NewMirror(cfg *cfgpkg.Config, c *Clients, l *zap.SugaredLogger) *Mirror {
	m := &Mirror{cfg: cfg, log: l, now: time.Now}
	if c.Firestore != nil {
		m.w = &firestoreWriter{client: c.Firestore, collection: cfg.Firebase.MirrorCollection}
	}
	return m
}

func (m *Mirror) Name() string { return "firestore_mirror" }

func (m *Mirror) OnMemberChanged(ctx context.Context, c *member.Change) {
	if m.w == nil || c == nil || c.After == nil {
		return
	}
	if err := m.Write(ctx, c.After); err != nil {
		logctx.FromCtx(ctx, m.log).Errorw("firestore mirror write failed", "member_id", c.After.ID, "err", err)
	}
}

// Write merges the member document. A rules rejection is reported as
// member.ErrPermissionDenied.
func (m *Mirror) Write(ctx context.Context, mem *models.Member) error {
	info := mem.Evaluate(tool.DateOf(m.now(), m.cfg.Location()))
	data := map[string]any{
		"name":              mem.Name,
		"phone":             mem.Phone,
		"qr_code":           mem.QRCode,
		"status":            string(info.Status),
		"days_remaining":    info.DaysRemaining,
		"subscription_type": nil,
		"expiration_date":   nil,
		"updated_at":        m.now(),
	}
	if info.SubscriptionType != nil {
		data["subscription_type"] = *info.SubscriptionType
	}
	if info.ExpirationDate != nil {
		data["expiration_date"] = info.ExpirationDate.Format(time.DateOnly)
	}
	if mem.PhotoURL != nil {
		data["photo_url"] = *mem.PhotoURL
	}
	if err := m.w.Merge(ctx, mem.ID, data); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", member.ErrPermissionDenied, err)
	case codes.NotFound:
		return fmt.Errorf("%w: %v", member.ErrNotFound, err)
	default:
		return fmt.Errorf("firestore: %w", err)
	}
}
