package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/auth"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

type AuthOptions struct {
	Secret           string
	SessionTTL       time.Duration
	RequireEmailCode bool
}

// AuthService owns sessions. A session exists only after an explicit login,
// a verified code or first-governor registration; nothing logs in implicitly.
type AuthService struct {
	store   store.Store
	funcs   *Functions
	opts    AuthOptions
	revoked *auth.Revocations
	logger  *zap.Logger
}

func NewAuthService(s store.Store, funcs *Functions, opts AuthOptions, logger *zap.Logger) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &AuthService{
		store:   s,
		funcs:   funcs,
		opts:    opts,
		revoked: auth.NewRevocations(),
		logger:  logger.Named("auth"),
	}
}

type AuthResult struct {
	Token               string       `json:"token,omitempty"`
	ExpiresAt           string       `json:"expires_at,omitempty"`
	User                store.Record `json:"user,omitempty"`
	PendingVerification bool         `json:"pending_verification,omitempty"`
	Email               string       `json:"email,omitempty"`
}

func (s *AuthService) Login(ctx context.Context, nationalID, password string) (*AuthResult, error) {
	members, err := s.store.Filter(ctx, models.EntityTeamMember, store.Record{"national_id": nationalID}, "", 1)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, ErrInvalidCredentials
	}
	member := members[0]
	hash, _ := member["password_hash"].(string)
	if !auth.CheckPassword(password, hash) {
		return nil, ErrInvalidCredentials
	}
	if !active(member) {
		return nil, fmt.Errorf("%w: account is not active", ErrForbidden)
	}

	email, _ := member["email"].(string)
	if s.opts.RequireEmailCode && email != "" {
		res, err := s.funcs.SendVerificationCode(ctx, email)
		if err != nil {
			return nil, err
		}
		if !res.Success {
			return nil, fmt.Errorf("send verification code: %s", res.Error)
		}
		return &AuthResult{PendingVerification: true, Email: normalizeEmail(email)}, nil
	}
	return s.SetUser(member)
}

// VerifyLogin completes a login that was held for an emailed code.
func (s *AuthService) VerifyLogin(ctx context.Context, email, code string) (*AuthResult, error) {
	res, err := s.funcs.VerifyCode(ctx, email, code)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCode, res.Error)
	}
	member, err := s.memberByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if member == nil || !active(member) {
		return nil, ErrInvalidCredentials
	}
	return s.SetUser(member)
}

// memberByEmail matches case-insensitively; stored emails keep the case they were entered with.
func (s *AuthService) memberByEmail(ctx context.Context, email string) (store.Record, error) {
	members, err := s.store.List(ctx, models.EntityTeamMember, "")
	if err != nil {
		return nil, err
	}
	want := normalizeEmail(email)
	for _, m := range members {
		if e, _ := m["email"].(string); normalizeEmail(e) == want {
			return m, nil
		}
	}
	return nil, nil
}

// SetUser issues a session token for member.
func (s *AuthService) SetUser(member store.Record) (*AuthResult, error) {
	id, _ := member["id"].(string)
	role, _ := member["role"].(string)
	email, _ := member["email"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: member has no id", ErrValidation)
	}
	token, claims, err := auth.GenerateToken(s.opts.Secret, id, email, role, s.opts.SessionTTL)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session issued", zap.String("member_id", id), zap.String("role", role))
	return &AuthResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.UTC().Format(time.RFC3339),
		User:      sanitize(models.EntityTeamMember, copyRecord(member)),
	}, nil
}

// Verify implements auth.Verifier. The member must still exist and be
// active, and the token must not have been logged out.
func (s *AuthService) Verify(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := auth.ValidateToken(s.opts.Secret, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if s.revoked.Revoked(claims.ID) {
		return nil, fmt.Errorf("%w: session ended", ErrUnauthenticated)
	}
	member, err := s.store.Get(ctx, models.EntityTeamMember, claims.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil || !active(member) {
		return nil, fmt.Errorf("%w: member unavailable", ErrUnauthenticated)
	}
	if role, _ := member["role"].(string); role != "" {
		claims.Role = role
	}
	return claims, nil
}

// Me returns the session's member.
func (s *AuthService) Me(ctx context.Context, token string) (store.Record, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	member, err := s.store.Get(ctx, models.EntityTeamMember, claims.UserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrUnauthenticated
	}
	return sanitize(models.EntityTeamMember, member), nil
}

// IsAuthenticated never fails; any error means no.
func (s *AuthService) IsAuthenticated(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	_, err := s.Verify(ctx, token)
	return err == nil
}

// Logout revokes the token and echoes redirectURL for the client to follow.
// Logging out an invalid token is not an error.
func (s *AuthService) Logout(_ context.Context, token, redirectURL string) string {
	if claims, err := auth.ValidateToken(s.opts.Secret, token); err == nil {
		s.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
		s.logger.Info("session revoked", zap.String("member_id", claims.UserID))
	}
	return redirectURL
}

func active(member store.Record) bool {
	status, _ := member["status"].(string)
	return status == "" || status == models.StatusActive
}

func copyRecord(r store.Record) store.Record {
	out := make(store.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
