package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/notesummarizer/internal/model"
)

const defaultRetryStep = 2 * time.Second

// Config holds SMTP and encryption settings.
type Config struct {
	Host        string
	Port        int
	User        string
	Pass        string
	FromAddress string
	FromName    string

	// Keyring is an armored public keyring. Recipients with a key in it
	// receive PGP/MIME encrypted mail.
	Keyring string

	MaxRetry  int
	RetryStep time.Duration
}

// Message is a single outgoing email.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
	Encrypt bool
}

// Mailer sends summaries via SMTP, one message per recipient.
type Mailer struct {
	mu   sync.RWMutex
	cfg  *Config
	keys openpgp.EntityList

	// sendFn replaces SMTP delivery in tests.
	sendFn func(msg Message) error
}

// New returns a Mailer. A keyring that fails to parse is logged and ignored.
func New(cfg *Config) *Mailer {
	m := &Mailer{}
	if err := m.Reconfigure(cfg); err != nil {
		slog.Error("mailer: keyring rejected, sending unencrypted", "err", err)
	}
	return m
}

// Reconfigure swaps the settings used for subsequent sends.
func (m *Mailer) Reconfigure(cfg *Config) error {
	var keys openpgp.EntityList
	var err error
	if strings.TrimSpace(cfg.Keyring) != "" {
		keys, err = openpgp.ReadArmoredKeyRing(strings.NewReader(cfg.Keyring))
		if err != nil {
			err = fmt.Errorf("parse keyring: %w", err)
			keys = nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.keys = keys
	return err
}

func (m *Mailer) config() (*Config, openpgp.EntityList) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, m.keys
}

// Send delivers markdown to every recipient and reports per-recipient
// results. It only returns an error when nobody could be reached.
func (m *Mailer) Send(ctx context.Context, markdown string, recipients []string) (model.Outcome, error) {
	outcome := model.Outcome{}
	for _, to := range recipients {
		msg, err := Compose(markdown, to)
		if err != nil {
			return outcome, fmt.Errorf("compose: %w", err)
		}
		msg.Encrypt = m.CanEncrypt(to)

		if err := m.deliver(ctx, msg); err != nil {
			slog.Error("mailer: delivery failed", "to", to, "err", err)
			if outcome.Failed == nil {
				outcome.Failed = make(map[string]string)
			}
			outcome.Failed[to] = err.Error()
			continue
		}
		outcome.Delivered = append(outcome.Delivered, to)
	}

	if len(outcome.Delivered) == 0 && len(recipients) > 0 {
		return outcome, errors.New("mailer: no recipient could be reached")
	}
	return outcome, nil
}

// deliver sends msg, retrying with a linear backoff until the retry budget
// or ctx runs out.
func (m *Mailer) deliver(ctx context.Context, msg Message) error {
	cfg, _ := m.config()
	step := cfg.RetryStep
	if step <= 0 {
		step = defaultRetryStep
	}

	for attempt := 0; ; attempt++ {
		err := m.send(msg)
		if err == nil {
			return nil
		}
		if attempt >= cfg.MaxRetry {
			return err
		}

		backoff := time.Duration(attempt+1) * step
		slog.Warn("mailer: send failed, retrying with backoff", "to", msg.To, "retry", attempt+1, "backoff", backoff, "err", err)

		t := time.NewTimer(backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}
}

func (m *Mailer) send(msg Message) error {
	if m.sendFn != nil {
		return m.sendFn(msg)
	}

	cfg, _ := m.config()
	if cfg.Host == "" {
		return fmt.Errorf("mailer: not configured")
	}
	raw, err := m.formatMessage(msg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	return smtp.SendMail(addr, auth, cfg.FromAddress, msg.To, raw)
}

// formatMessage renders msg as an RFC 5322 message.
func (m *Mailer) formatMessage(msg Message) ([]byte, error) {
	cfg, keys := m.config()

	entity, err := buildBody(msg.Text, msg.HTML)
	if err != nil {
		return nil, err
	}
	if msg.Encrypt {
		entity, err = encryptEntity(entity, keysFor(keys, msg.To))
		if err != nil {
			return nil, fmt.Errorf("pgp encryption: %w", err)
		}
	}

	var b strings.Builder
	from := cfg.FromAddress
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", cfg.FromName), cfg.FromAddress)
	}
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.Write(entity)
	return []byte(b.String()), nil
}

// CanEncrypt reports whether the keyring holds a key for recipient.
func (m *Mailer) CanEncrypt(recipient string) bool {
	_, keys := m.config()
	return len(keysFor(keys, []string{recipient})) > 0
}

// Ping checks that the SMTP server accepts connections.
func (m *Mailer) Ping(ctx context.Context) error {
	cfg, _ := m.config()
	if cfg.Host == "" {
		return fmt.Errorf("mailer: not configured")
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return fmt.Errorf("mailer: dial: %w", err)
	}
	return conn.Close()
}
