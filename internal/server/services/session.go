package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
)

// Session is an accepted, verified access token.
type Session struct {
	Token    string
	Username string
}

// SessionService decides whether a presented bearer token grants access.
// A token is accepted only while it is both registered and unexpired.
type SessionService struct {
	tokens  tokens.Repository
	codec   *auth.TokenCodec
	metrics *metrics.Metrics
	log     logging.Logger
}

// NewSessionService constructs a SessionService. m may be nil.
func NewSessionService(t tokens.Repository, codec *auth.TokenCodec, m *metrics.Metrics, log logging.Logger) *SessionService {
	if log == nil {
		log = logging.Nop()
	}
	return &SessionService{
		tokens:  t,
		codec:   codec,
		metrics: m,
		log:     log.With("module", "sessions"),
	}
}

// Verify checks the Authorization header value. It returns
// common.ErrorInvalidCredentials for missing, malformed or unregistered
// tokens, common.ErrTokenExpired for registered tokens past their exp
// (which are evicted), and common.ErrorInternal for registry failures.
func (s *SessionService) Verify(ctx context.Context, authorizationHeader string) (*Session, error) {
	token, err := auth.ParseBearerToken(authorizationHeader)
	if err != nil {
		s.metrics.ObserveVerification(metrics.ResultInvalid)
		return nil, common.ErrorInvalidCredentials
	}

	if _, err := s.tokens.Find(ctx, token); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.ObserveVerification(metrics.ResultInvalid)
			return nil, common.ErrorInvalidCredentials
		}
		s.metrics.ObserveVerification(metrics.ResultError)
		s.log.Error(ctx, "error looking up token", "error", err)
		return nil, common.ErrorInternal
	}

	if s.codec.IsExpired(token) {
		s.log.Debug(ctx, "evicting expired token")
		if err := s.tokens.Delete(ctx, token); err != nil {
			s.log.Warn(ctx, "error evicting expired token", "error", err)
		}
		s.metrics.ObserveVerification(metrics.ResultExpired)
		return nil, common.ErrTokenExpired
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		s.metrics.ObserveVerification(metrics.ResultInvalid)
		return nil, common.ErrorInvalidCredentials
	}
	username, _ := claims[auth.ClaimUsername].(string)

	s.metrics.ObserveVerification(metrics.ResultAccepted)
	return &Session{Token: token, Username: username}, nil
}

// Logout verifies the header and then revokes that one token. Other tokens
// of the same user stay valid.
func (s *SessionService) Logout(ctx context.Context, authorizationHeader string) error {
	sess, err := s.Verify(ctx, authorizationHeader)
	if err != nil {
		return err
	}

	if err := s.tokens.Delete(ctx, sess.Token); err != nil {
		s.log.Error(ctx, "error revoking token", "error", err)
		return common.ErrorInternal
	}

	s.log.Info(ctx, "user logged out", "username", sess.Username)
	return nil
}
