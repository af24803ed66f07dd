package auth

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"sync"
	"time"

	"trattoria/rdx"
	"trattoria/utils"

	"github.com/rs/zerolog/log"
)

const (
	otpTTL   = 10 * time.Minute
	resetTTL = 30 * time.Minute
)

// Codes holds short-lived values: OTPs, reset tokens and the logout denylist.
type Codes interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns rdx.ErrNil when the key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// RedisCodes stores codes through the shared rdx connection.
type RedisCodes struct{}

func (RedisCodes) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return rdx.SetWithExpiry(ctx, key, value, ttl)
}
func (RedisCodes) Get(ctx context.Context, key string) (string, error) { return rdx.Get(ctx, key) }
func (RedisCodes) Del(ctx context.Context, key string) error           { return rdx.Del(ctx, key) }
func (RedisCodes) Exists(ctx context.Context, key string) (bool, error) {
	return rdx.Exists(ctx, key)
}

type memEntry struct {
	value   string
	expires time.Time
}

// MemoryCodes is an in-process Codes used when Redis is not configured.
type MemoryCodes struct {
	mu  sync.Mutex
	m   map[string]memEntry
	now func() time.Time
}

func NewMemoryCodes() *MemoryCodes {
	return &MemoryCodes{m: make(map[string]memEntry), now: time.Now}
}

func (c *MemoryCodes) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = memEntry{value: value, expires: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCodes) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return "", rdx.ErrNil
	}
	if !c.now().Before(e.expires) {
		delete(c.m, key)
		return "", rdx.ErrNil
	}
	return e.value, nil
}

func (c *MemoryCodes) Del(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCodes) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if errors.Is(err, rdx.ErrNil) {
		return false, nil
	}
	return err == nil, err
}

func GenerateOTP() string {
	return utils.GenerateRandomDigitString(6)
}

// Mailer delivers plain-text messages.
type Mailer interface {
	Send(to, subject, body string) error
}

type SMTPMailer struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := []byte("From: " + m.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n\r\n" + body + "\r\n")
	var a smtp.Auth
	if m.User != "" {
		a = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}
	if err := smtp.SendMail(m.Host+":"+m.Port, a, m.From, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used in
// development when SMTP_HOST is empty.
type LogMailer struct{}

func (LogMailer) Send(to, subject, body string) error {
	log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("mail not sent (no SMTP configured)")
	return nil
}
