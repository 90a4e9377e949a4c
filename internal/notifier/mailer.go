package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

var _ monitor.EmailSender = (*Mailer)(nil)

type SMTPConfig struct {
	Addr       string
	User       string
	Password   string
	From       string
	UseTLS     bool
	SkipVerify bool
	Timeout    time.Duration
	SubjPrefix string
}

// Mailer sends HTML mail over SMTP, either plain (with STARTTLS when offered)
// or over implicit TLS.
type Mailer struct {
	cfg  SMTPConfig
	auth smtp.Auth
	log  *zap.Logger
}

func NewMailer(cfg SMTPConfig) *Mailer {
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, host(cfg.Addr))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Mailer{
		cfg:  cfg,
		auth: auth,
		log:  zap.L().With(zap.String("component", "notifier.mailer")),
	}
}

func (m *Mailer) WithLogger(l *zap.Logger) *Mailer {
	if l == nil {
		return m
	}
	cp := *m
	cp.log = l.With(zap.String("component", "notifier.mailer"))
	return &cp
}

func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	subj := strings.TrimSpace(m.cfg.SubjPrefix + " " + subject)
	msg := buildMessage(m.cfg.From, to, subj, html)

	start := time.Now()
	log := m.log.With(
		zap.String("smtp_addr", m.cfg.Addr),
		zap.Bool("tls", m.cfg.UseTLS),
		zap.String("to", to),
		zap.String("subject", subj),
	)

	conn, err := m.dial(ctx)
	if err != nil {
		log.Warn("smtp dial failed", zap.Error(err))
		return fmt.Errorf("dial smtp: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, host(m.cfg.Addr))
	if err != nil {
		_ = conn.Close()
		log.Warn("smtp client failed", zap.Error(err))
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = c.Close() }()

	if err := m.deliver(c, to, msg); err != nil {
		log.Warn("smtp delivery failed", zap.Error(err))
		return err
	}
	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (m *Mailer) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: m.cfg.Timeout}
	if m.cfg.UseTLS {
		td := &tls.Dialer{NetDialer: d, Config: m.tlsConfig()}
		return td.DialContext(ctx, "tcp", m.cfg.Addr)
	}
	return d.DialContext(ctx, "tcp", m.cfg.Addr)
}

func (m *Mailer) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: host(m.cfg.Addr), InsecureSkipVerify: m.cfg.SkipVerify}
}

func (m *Mailer) deliver(c *smtp.Client, to string, msg []byte) error {
	if !m.cfg.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(m.tlsConfig()); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if m.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(m.auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return c.Quit()
}

func buildMessage(from, to, subject, html string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func host(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
