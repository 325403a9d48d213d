package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/mailer"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

const (
	FnCreateFirstGovernor  = "createFirstGovernor"
	FnSendVerificationCode = "sendVerificationCode"
	FnVerifyCode           = "verifyCode"

	codeTTL    = 5 * time.Minute
	codeDigits = 6
)

// Failure messages returned in Result.Error.
const (
	MsgAlreadyRegistered = "already registered"
	MsgMissingFields     = "missing fields"
	MsgInvalidCode       = "invalid"
	MsgExpiredCode       = "expired"
	MsgDeliveryFailed    = "delivery failed"
)

// Result is what every function returns. Business failures are reported
// here, never as Go errors.
type Result struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Functions dispatches the named pre-authentication procedures.
type Functions struct {
	store    store.Store
	entities *EntityService
	mailer   mailer.Mailer
	failOpen bool
	logger   *zap.Logger
	now      func() time.Time

	// codes guards issuing and consuming verification codes.
	codes sync.Mutex
}

// NewFunctions wires the procedures. With failOpen a code whose email could
// not be delivered is kept and reported as issued.
func NewFunctions(s store.Store, entities *EntityService, m mailer.Mailer, failOpen bool, logger *zap.Logger) *Functions {
	return &Functions{
		store:    s,
		entities: entities,
		mailer:   m,
		failOpen: failOpen,
		logger:   logger.Named("functions"),
		now:      time.Now,
	}
}

// Invoke runs the function called name with payload.
func (f *Functions) Invoke(ctx context.Context, name string, payload map[string]any) (Result, error) {
	switch name {
	case FnCreateFirstGovernor:
		return f.CreateFirstGovernor(ctx, FirstGovernorInput{
			FullName:   str(payload, "full_name"),
			NationalID: str(payload, "national_id"),
			Email:      str(payload, "email"),
			Password:   str(payload, "password"),
		})
	case FnSendVerificationCode:
		return f.SendVerificationCode(ctx, str(payload, "email"))
	case FnVerifyCode:
		return f.VerifyCode(ctx, str(payload, "email"), str(payload, "code"))
	}
	return Result{}, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
}

type FirstGovernorInput struct {
	FullName   string
	NationalID string
	Email      string
	Password   string
}

// CreateFirstGovernor bootstraps the first account. It refuses as soon as any
// team member exists, whatever the payload.
func (f *Functions) CreateFirstGovernor(ctx context.Context, in FirstGovernorInput) (Result, error) {
	existing, err := f.store.Filter(ctx, models.EntityTeamMember, nil, "", 1)
	if err != nil {
		return Result{}, err
	}
	if len(existing) > 0 {
		return failure(MsgAlreadyRegistered), nil
	}
	if in.FullName == "" || in.NationalID == "" || in.Email == "" || in.Password == "" {
		return failure(MsgMissingFields), nil
	}
	member, created, err := f.entities.createIfEmpty(ctx, models.EntityTeamMember, store.Record{
		"full_name":   in.FullName,
		"national_id": in.NationalID,
		"email":       normalizeEmail(in.Email),
		"password":    in.Password,
		"role":        models.RoleGovernor,
		"status":      models.StatusActive,
	}, "")
	if err != nil {
		return Result{}, err
	}
	if !created {
		return failure(MsgAlreadyRegistered), nil
	}
	f.logger.Info("first governor created", zap.String("member_id", fmt.Sprint(member["id"])))
	return Result{Success: true, Message: "governor created", Data: map[string]any{"member": member}}, nil
}

// SendVerificationCode replaces every unconsumed code for email with a fresh
// one and emails it.
func (f *Functions) SendVerificationCode(ctx context.Context, email string) (Result, error) {
	email = normalizeEmail(email)
	if email == "" {
		return failure(MsgMissingFields), nil
	}
	code, rec, err := f.issueCode(ctx, email)
	if err != nil {
		return Result{}, err
	}

	sendErr := f.mailer.Send(ctx, mailer.Message{
		To:      email,
		Subject: "Your Healthy City verification code",
		HTML:    fmt.Sprintf("<p>Your verification code is <strong>%s</strong>. It expires in %d minutes.</p>", code, int(codeTTL.Minutes())),
	})
	if sendErr == nil {
		return Result{Success: true, Message: "code sent", Data: map[string]any{"delivered": true}}, nil
	}

	f.logger.Warn("verification email failed", zap.String("email", email), zap.Bool("fail_open", f.failOpen), zap.Error(sendErr))
	if f.failOpen {
		return Result{Success: true, Message: "code issued but email delivery failed", Data: map[string]any{"delivered": false}}, nil
	}
	if id, _ := rec["id"].(string); id != "" {
		if err := f.store.Delete(ctx, models.EntityVerificationCode, id); err != nil {
			return Result{}, err
		}
	}
	return failure(MsgDeliveryFailed), nil
}

// VerifyCode consumes a matching unconsumed code. An expired match reports
// "expired" rather than "invalid".
func (f *Functions) VerifyCode(ctx context.Context, email, code string) (Result, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return failure(MsgMissingFields), nil
	}
	f.codes.Lock()
	defer f.codes.Unlock()
	candidates, err := f.store.Filter(ctx, models.EntityVerificationCode, store.Record{"email": email, "code": code}, "-expires_at", 0)
	if err != nil {
		return Result{}, err
	}
	var match store.Record
	for _, c := range candidates {
		if v, _ := c["verified"].(bool); !v {
			match = c
			break
		}
	}
	if match == nil {
		return failure(MsgInvalidCode), nil
	}
	expires, err := parseTime(match["expires_at"])
	if err != nil || f.now().After(expires) {
		return failure(MsgExpiredCode), nil
	}
	id, _ := match["id"].(string)
	if _, err := f.store.Update(ctx, models.EntityVerificationCode, id, store.Record{
		"verified":     true,
		"updated_date": f.now().UTC().Format(time.RFC3339),
	}); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: "verified"}, nil
}

// issueCode replaces the pending codes for email with a fresh stored one.
func (f *Functions) issueCode(ctx context.Context, email string) (string, store.Record, error) {
	f.codes.Lock()
	defer f.codes.Unlock()
	if err := f.discardPending(ctx, email); err != nil {
		return "", nil, err
	}
	code, err := generateCode()
	if err != nil {
		return "", nil, err
	}
	rec, err := f.entities.create(ctx, models.EntityVerificationCode, store.Record{
		"email":      email,
		"code":       code,
		"expires_at": f.now().Add(codeTTL).UTC().Format(time.RFC3339Nano),
		"verified":   false,
	}, "")
	if err != nil {
		return "", nil, err
	}
	return code, rec, nil
}

func (f *Functions) discardPending(ctx context.Context, email string) error {
	pending, err := f.store.Filter(ctx, models.EntityVerificationCode, store.Record{"email": email}, "", 0)
	if err != nil {
		return err
	}
	for _, p := range pending {
		if v, _ := p["verified"].(bool); v {
			continue
		}
		id, _ := p["id"].(string)
		if err := f.store.Delete(ctx, models.EntityVerificationCode, id); err != nil {
			return err
		}
	}
	return nil
}

func generateCode() (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(codeDigits), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func str(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return strings.TrimSpace(v)
}

// parseTime accepts RFC 3339 timestamps with or without fractional seconds,
// and bare dates.
func parseTime(v any) (time.Time, error) {
	s, _ := v.(string)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
