// Package mailer delivers transactional email through a configured provider.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/config"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the provider named in cfg. Unknown providers fall back to logging.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	logger = logger.Named("mailer")
	switch cfg.Provider {
	case "http":
		return &HTTPMailer{
			URL:    cfg.APIURL,
			APIKey: cfg.APIKey,
			From:   cfg.From,
			Client: &http.Client{Timeout: 10 * time.Second},
		}
	case "smtp":
		return &SMTPMailer{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.From,
		}
	}
	if cfg.Provider != "" && cfg.Provider != "log" {
		logger.Warn("unknown mail provider, logging messages instead", zap.String("provider", cfg.Provider))
	}
	return &LogMailer{Logger: logger}
}

// HTTPMailer posts messages to a transactional email API.
type HTTPMailer struct {
	URL    string
	APIKey string
	From   string
	Client *http.Client
}

func (m *HTTPMailer) Send(ctx context.Context, msg Message) error {
	if m.URL == "" {
		return fmt.Errorf("mailer: MAIL_API_URL is not set")
	}
	body, err := json.Marshal(map[string]any{
		"from":    m.From,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.APIKey)
	}
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailer: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// SMTPMailer sends through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.Host == "" {
		return fmt.Errorf("mailer: SMTP_HOST is not set")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}
	if err := smtp.SendMail(addr, auth, m.From, []string{msg.To}, m.build(msg)); err != nil {
		return fmt.Errorf("mailer: smtp: %w", err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}

// LogMailer only records that a message would have been sent.
type LogMailer struct {
	Logger *zap.Logger
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.Logger.Info("email not delivered (log provider)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
