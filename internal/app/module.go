package app

import (
	"time"

	"github.com/fatflowers/gympass/internal/app/api/server"
	"github.com/fatflowers/gympass/internal/app/service/auditlog"
	"github.com/fatflowers/gympass/internal/app/service/catalog"
	"github.com/fatflowers/gympass/internal/app/service/checkout"
	"github.com/fatflowers/gympass/internal/app/service/feedback"
	"github.com/fatflowers/gympass/internal/app/service/identity"
	"github.com/fatflowers/gympass/internal/app/service/member"
	"github.com/fatflowers/gympass/internal/app/service/statistics"
	"github.com/fatflowers/gympass/internal/app/service/subscription"
	"github.com/fatflowers/gympass/internal/platform/db"
	"github.com/fatflowers/gympass/internal/platform/events"
	"github.com/fatflowers/gympass/internal/platform/firebase"
	"github.com/fatflowers/gympass/internal/platform/mailer"
	"github.com/fatflowers/gympass/internal/platform/redis"
	"github.com/fatflowers/gympass/internal/platform/stripe"
	"github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/logger"
	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// audit routes subscription and identity change logs to the auditlog queue.
var audit = fx.Provide(
	func(s *auditlog.Service) subscription.AuditWriter { return s },
	func(s *auditlog.Service) identity.AuditWriter { return s },
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	redis.Module,
	firebase.Module,
	events.Module,
	mailer.Module,
	stripe.Module,
	auditlog.Module,
	audit,
	member.Module,
	catalog.Module,
	checkout.Module,
	subscription.Module,
	identity.Module,
	feedback.Module,
	statistics.Module,
	server.Module,
)
