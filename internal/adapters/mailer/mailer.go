package mailer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/torrent-hook/internal/core"
)

// DefaultTimeout bounds a single delivery when no timeout is configured
const DefaultTimeout = 30 * time.Second

// Config holds the SMTP account used for device deliveries
type Config struct {
	Host     string
	Port     int
	Email    string
	Password string
	Subject  string
	Timeout  time.Duration

	// TLSConfig is used for STARTTLS. When nil a config verifying Host
	// against the system roots is used.
	TLSConfig *tls.Config
}

// Mailer sends files as mail attachments through an authenticated SMTP
// submission server
type Mailer struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewMailer creates a new device mailer
func NewMailer(cfg Config, logger *zap.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TLSConfig == nil {
		cfg.TLSConfig = &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Mailer{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// LoadTLSConfig builds the client TLS config for host, adding the PEM
// certificates in caFile to the system roots when caFile is set
func LoadTLSConfig(host, caFile string) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}
	if caFile == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in CA file %s", caFile)
	}
	cfg.RootCAs = pool

	return cfg, nil
}

// SendFile mails the file at filePath as the only attachment to address
func (m *Mailer) SendFile(ctx context.Context, filePath, address string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return &core.IOError{Op: "read", Path: filePath, Err: err}
	}

	msg, err := buildMessage(Envelope{
		From:    m.cfg.Email,
		To:      address,
		Subject: m.cfg.Subject,
		Date:    m.now(),
	}, Attachment{
		Filename: filepath.Base(filePath),
		Content:  content,
	})
	if err != nil {
		return &core.IOError{Op: "compose", Path: filePath, Err: err}
	}

	start := time.Now()
	if err := m.send(ctx, address, msg); err != nil {
		return err
	}

	m.logger.Info("Sent file to device",
		zap.String("file", filePath),
		zap.String("address", address),
		zap.Int("message_bytes", len(msg)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// send delivers msg to address over a fresh connection
func (m *Mailer) send(ctx context.Context, address string, msg []byte) error {
	serverAddr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	fail := func(stage string, err error) error {
		return newSMTPError(stage, address, err)
	}

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return fail("dial", err)
	}

	deadline := time.Now().Add(m.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fail("dial", err)
	}

	// Unblock any pending read or write on cancellation
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	// Fails when the server does not advertise STARTTLS
	c, err := smtp.NewClientStartTLS(conn, m.cfg.TLSConfig)
	if err != nil {
		return fail("starttls", err)
	}
	defer c.Close()

	// The handshake is lazy, complete it before credentials are sent
	if err := c.Noop(); err != nil {
		return fail("starttls", err)
	}

	if err := c.Auth(m.saslClient(c)); err != nil {
		return fail("auth", err)
	}

	if err := c.Mail(m.cfg.Email, nil); err != nil {
		return fail("mail", err)
	}
	if err := c.Rcpt(address, nil); err != nil {
		return fail("rcpt", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fail("data", err)
	}
	if _, err := wc.Write(msg); err != nil {
		wc.Close()
		return fail("data", err)
	}
	if err := wc.Close(); err != nil {
		return fail("data", err)
	}

	// Quit the connection
	if err := c.Quit(); err != nil {
		m.logger.Warn("QUIT command failed", zap.String("address", address), zap.Error(err))
		// The message has already been accepted
	}

	return nil
}

// saslClient picks PLAIN when offered, LOGIN otherwise
func (m *Mailer) saslClient(c *smtp.Client) sasl.Client {
	_, params := c.Extension("AUTH")
	for _, mech := range strings.Fields(strings.ToUpper(params)) {
		if mech == sasl.Plain {
			return sasl.NewPlainClient("", m.cfg.Email, m.cfg.Password)
		}
	}
	for _, mech := range strings.Fields(strings.ToUpper(params)) {
		if mech == sasl.Login {
			return sasl.NewLoginClient(m.cfg.Email, m.cfg.Password)
		}
	}
	return sasl.NewPlainClient("", m.cfg.Email, m.cfg.Password)
}

// newSMTPError wraps err with its protocol stage, keeping the server reply
// code when there is one
func newSMTPError(stage, address string, err error) *core.SMTPError {
	smtpErr := &core.SMTPError{Stage: stage, Address: address, Err: err}

	var reply *smtp.SMTPError
	if errors.As(err, &reply) {
		smtpErr.Code = reply.Code
	}

	return smtpErr
}
