// Package firebase wires the Firebase Admin SDK: ID token verification for
// the auth middleware and the optional Firestore entitlement mirror.
package firebase

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/fatflowers/gympass/internal/app/service/member"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var ErrNotConfigured = errors.New("firebase not configured")

// Clients holds the SDK clients. Fields are nil when Firebase is not
// configured.
type Clients struct {
	Auth      *auth.Client
	Firestore *firestore.Client
}

func NewClients(lc fx.Lifecycle, cfg *cfgpkg.Config, l *zap.SugaredLogger) (*Clients, error) {
	fc := cfg.Firebase
	if !cfgpkg.Configured(fc.ProjectID) {
		l.Warnw("firebase not configured, token verification disabled")
		return &Clients{}, nil
	}

	ctx := context.Background()
	var opts []option.ClientOption
	if fc.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(fc.CredentialsFile))
	}
	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: fc.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Auth: %w", err)
	}
	out := &Clients{Auth: authClient}
	l.Infow("firebase auth client initialized", "project_id", fc.ProjectID)

	if fc.MirrorCollection != "" {
		fs, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("app.Firestore: %w", err)
		}
		out.Firestore = fs
		l.Infow("firestore client initialized", "collection", fc.MirrorCollection)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				l.Infow("closing firestore client")
				return fs.Close()
			},
		})
	}
	return out, nil
}

// Identity is the verified subject of an ID token.
type Identity struct {
	UID   string
	Phone string
	Email string
}

// Verifier checks Firebase ID tokens.
type Verifier struct {
	client *auth.Client
}

func NewVerifier(c *Clients) *Verifier {
	return &Verifier{client: c.Auth}
}

func (v *Verifier) Configured() bool { return v != nil && v.client != nil }

func (v *Verifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	id := &Identity{UID: tok.UID}
	if p, ok := tok.Claims["phone_number"].(string); ok {
		id.Phone = p
	}
	if e, ok := tok.Claims["email"].(string); ok {
		id.Email = e
	}
	return id, nil
}

var Module = fx.Options(
	fx.Provide(
		NewClients,
		NewVerifier,
		NewMirror,
		fx.Annotate(
			func(m *Mirror) member.Observer { return m },
			fx.ResultTags(`group:"member_observers"`),
		),
	),
)
