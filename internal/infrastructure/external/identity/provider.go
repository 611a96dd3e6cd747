// Package identity verifies bearer tokens issued by the identity provider and
// mints custom tokens for linked users.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/dailycodechallenge/backend/internal/domain/shared"
)

// Provider verifies tokens and issues custom tokens.
type Provider interface {
	// Verify returns the subject of a valid token, or shared.ErrInvalidToken.
	Verify(ctx context.Context, token string) (shared.SubjectID, error)

	// CustomToken mints a sign-in token for a subject.
	CustomToken(ctx context.Context, subject shared.SubjectID) (string, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ══════════════════════════════════════════════════════════════════════════════
// FIREBASE
// ══════════════════════════════════════════════════════════════════════════════

// Config contains identity provider settings.
type Config struct {
	ProjectID       string
	CredentialsFile string
	Logger          *slog.Logger
}

// FirebaseProvider verifies Firebase ID tokens.
type FirebaseProvider struct {
	client *auth.Client
	logger *slog.Logger
}

var _ Provider = (*FirebaseProvider)(nil)

// NewFirebaseProvider initializes the Firebase Admin SDK.
// Without a credentials file the SDK falls back to application default credentials.
func NewFirebaseProvider(ctx context.Context, cfg Config) (*FirebaseProvider, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("identity: init firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity: init firebase auth: %w", err)
	}

	return &FirebaseProvider{
		client: client,
		logger: cfg.Logger.With("component", "identity"),
	}, nil
}

// Verify checks an ID token and returns its subject.
func (p *FirebaseProvider) Verify(ctx context.Context, token string) (shared.SubjectID, error) {
	if token == "" {
		return "", shared.ErrTokenRequired
	}

	decoded, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		if !auth.IsIDTokenInvalid(err) && !auth.IsIDTokenExpired(err) {
			p.logger.Warn("token verification failed", "error", err)
		}
		return "", shared.ErrInvalidToken.WithErr(err)
	}

	return shared.NewSubjectID(decoded.UID)
}

// CustomToken mints a custom token for a subject.
func (p *FirebaseProvider) CustomToken(ctx context.Context, subject shared.SubjectID) (string, error) {
	token, err := p.client.CustomToken(ctx, subject.String())
	if err != nil {
		return "", shared.WrapError("identity", "CustomToken", shared.ErrUpstream, "failed to create custom token", err)
	}
	return token, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DEVELOPMENT
// ══════════════════════════════════════════════════════════════════════════════

// DevTokenPrefix marks development tokens: "dev:<subject>".
const DevTokenPrefix = "dev:"

// DevProvider accepts unsigned "dev:<subject>" tokens. Never use in production.
type DevProvider struct{}

var _ Provider = DevProvider{}

// Verify accepts "dev:<subject>".
func (DevProvider) Verify(_ context.Context, token string) (shared.SubjectID, error) {
	if token == "" {
		return "", shared.ErrTokenRequired
	}
	subject, ok := strings.CutPrefix(token, DevTokenPrefix)
	if !ok {
		return "", shared.ErrInvalidToken.WithErr(errors.New("not a development token"))
	}
	return shared.NewSubjectID(subject)
}

// CustomToken returns the development token for subject.
func (DevProvider) CustomToken(_ context.Context, subject shared.SubjectID) (string, error) {
	return DevTokenPrefix + subject.String(), nil
}
