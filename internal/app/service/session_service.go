package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TPAIN22/nubian-storefront/internal/httpclient"
	"github.com/TPAIN22/nubian-storefront/pkg/logger"
)

var ErrInvalidCredential = errors.New("invalid credential")

// SessionService hands the upstream credential of a session to the HTTP
// layer and takes it back on sign-out
type SessionService interface {
	SetCredential(ctx context.Context, sessionID, token string) error
	ClearCredential(ctx context.Context, sessionID string) error
	HasCredential(ctx context.Context, sessionID string) (bool, error)
}

type sessionService struct {
	creds     httpclient.CredentialStore
	responses *httpclient.ResponseCache
	now       func() time.Time
}

func NewSessionService(creds httpclient.CredentialStore, responses *httpclient.ResponseCache) SessionService {
	return &sessionService{
		creds:     creds,
		responses: responses,
		now:       time.Now,
	}
}

func (s *sessionService) SetCredential(ctx context.Context, sessionID, token string) error {
	token = bearerToken(token)
	if token == "" {
		return ErrInvalidCredential
	}
	if httpclient.TokenExpired(token, s.now()) {
		logger.Warn("Rejected expired credential", map[string]interface{}{
			"session_id": sessionID,
		})
		return fmt.Errorf("%w: %w", ErrInvalidCredential, httpclient.ErrAuthExpired)
	}

	if err := s.creds.SetToken(ctx, sessionID, token); err != nil {
		logger.Error("Failed to store credential", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return err
	}

	// reads cached under the previous identity must not leak into the new one
	removed := s.responses.InvalidateScope(ctx, sessionID)

	logger.Info("Session credential set", map[string]interface{}{
		"session_id":      sessionID,
		"invalidated":     removed,
		"expires_at_unix": expiryUnix(token),
	})
	return nil
}

func (s *sessionService) ClearCredential(ctx context.Context, sessionID string) error {
	if err := s.creds.Clear(ctx, sessionID); err != nil {
		logger.Error("Failed to clear credential", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return err
	}
	removed := s.responses.InvalidateScope(ctx, sessionID)

	logger.Info("Session credential cleared", map[string]interface{}{
		"session_id":  sessionID,
		"invalidated": removed,
	})
	return nil
}

func (s *sessionService) HasCredential(ctx context.Context, sessionID string) (bool, error) {
	token, err := s.creds.Token(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// bearerToken strips an optional "Bearer" scheme; a scheme with no token
// yields ""
func bearerToken(header string) string {
	fields := strings.Fields(header)
	switch {
	case len(fields) == 0:
		return ""
	case strings.EqualFold(fields[0], "bearer"):
		if len(fields) != 2 {
			return ""
		}
		return fields[1]
	case len(fields) == 1:
		return fields[0]
	default:
		return ""
	}
}

func expiryUnix(token string) int64 {
	if exp, ok := httpclient.TokenExpiry(token); ok {
		return exp.Unix()
	}
	return 0
}
