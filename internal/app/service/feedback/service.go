package feedback

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/internal/platform/mailer"
	"github.com/fatflowers/gympass/pkg/apperr"
	"github.com/fatflowers/gympass/pkg/logctx"
	"github.com/fatflowers/gympass/pkg/tool"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCommentLen = 2000

// Mailer is the notification provider.
type Mailer interface {
	SendMail(ctx context.Context, from, to, subject, htmlBody string) error
}

type Submission struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

type Service struct {
	db     *gorm.DB
	mailer Mailer
	log    *zap.SugaredLogger
	save   func(ctx context.Context, f *models.Feedback) error
	// sent, when set, observes the async mail result.
	sent func(err error)
}

func NewService(db *gorm.DB, m *mailer.Mailer, log *zap.SugaredLogger) *Service {
	s := &Service{db: db, mailer: m, log: log}
	s.save = s.saveDB
	return s
}

func (s *Service) saveDB(ctx context.Context, f *models.Feedback) error {
	return s.db.WithContext(ctx).Create(f).Error
}

// Submit stores the feedback and mails the gym owner in the background.
// Mail failures are logged only.
func (s *Service) Submit(ctx context.Context, memberID string, in *Submission) (*models.Feedback, error) {
	if memberID == "" {
		return nil, apperr.New(apperr.ErrValidation, "member id required")
	}
	if in == nil || in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.New(apperr.ErrValidation, "rating must be between 1 and 5")
	}
	comment := strings.TrimSpace(in.Comment)
	if len(comment) > maxCommentLen {
		return nil, apperr.New(apperr.ErrValidation, "comment too long")
	}

	f := &models.Feedback{
		ID:        tool.GenerateUUIDV7(),
		MemberID:  memberID,
		Rating:    in.Rating,
		Comment:   comment,
		CreatedAt: time.Now(),
	}
	if err := s.save(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}

	go s.notify(logctx.Detach(ctx), f)
	return f, nil
}

func (s *Service) notify(ctx context.Context, f *models.Feedback) {
	log := logctx.FromCtx(ctx, s.log)
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("feedback mail panicked", "panic", r)
		}
	}()

	subject := fmt.Sprintf("New feedback: %d/5", f.Rating)
	err := s.mailer.SendMail(ctx, "", "", subject, renderMail(f))
	if err != nil {
		log.Warnw("feedback mail not sent", "feedback_id", f.ID, "err", err)
	}
	if s.sent != nil {
		s.sent(err)
	}
}

func renderMail(f *models.Feedback) string {
	var b strings.Builder
	b.WriteString("<h2>New member feedback</h2>")
	fmt.Fprintf(&b, "<p><b>Rating:</b> %s (%d/5)</p>", strings.Repeat("&#9733;", f.Rating), f.Rating)
	fmt.Fprintf(&b, "<p><b>Member:</b> %s</p>", html.EscapeString(f.MemberID))
	if f.Comment != "" {
		fmt.Fprintf(&b, "<p><b>Comment:</b><br>%s</p>", strings.ReplaceAll(html.EscapeString(f.Comment), "\n", "<br>"))
	}
	fmt.Fprintf(&b, "<p><small>%s</small></p>", f.CreatedAt.UTC().Format(time.RFC1123))
	return b.String()
}

var Module = fx.Options(
	fx.Provide(NewService),
)
