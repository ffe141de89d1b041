// Package mailertest runs an in-process SMTP submission server for exercising
// device deliveries end to end.
package mailertest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Default credentials accepted by the server
const (
	Username = "hook@example.com"
	Password = "secret"
)

// Message is a message accepted by the server
type Message struct {
	From string
	To   []string
	Data []byte
}

// Options tweak the server behaviour
type Options struct {
	// DisableTLS stops the server from offering STARTTLS
	DisableTLS bool
	// RejectRecipients are refused at RCPT with a 550 reply
	RejectRecipients []string
	// Username and Password override the accepted credentials
	Username string
	Password string
}

// Server is a go-smtp server listening on a loopback port
type Server struct {
	srv      *smtp.Server
	listener net.Listener
	opts     Options
	certPEM  []byte
	pool     *x509.CertPool

	mu       sync.Mutex
	messages []Message
}

// NewServer starts a server and stops it when the test ends
func NewServer(t testing.TB, opts Options) *Server {
	t.Helper()

	if opts.Username == "" {
		opts.Username = Username
	}
	if opts.Password == "" {
		opts.Password = Password
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &Server{listener: ln, opts: opts}

	s.srv = smtp.NewServer(&backend{server: s})
	s.srv.Domain = "localhost"
	s.srv.ReadTimeout = 10 * time.Second
	s.srv.WriteTimeout = 10 * time.Second
	s.srv.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	s.srv.MaxRecipients = 50

	if opts.DisableTLS {
		s.srv.AllowInsecureAuth = true
	} else {
		cert, certPEM, err := generateSelfSignedCert()
		if err != nil {
			ln.Close()
			t.Fatalf("failed to generate certificate: %v", err)
		}
		s.certPEM = certPEM
		s.pool = x509.NewCertPool()
		s.pool.AppendCertsFromPEM(certPEM)
		s.srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{*cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	go func() {
		_ = s.srv.Serve(ln)
	}()
	t.Cleanup(func() {
		s.srv.Close()
	})

	return s
}

// Addr returns the host:port the server listens on
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listening host
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// CertPEM returns the PEM encoded server certificate, nil without TLS
func (s *Server) CertPEM() []byte {
	return s.certPEM
}

// ClientTLSConfig returns a client config trusting the server certificate
func (s *Server) ClientTLSConfig() *tls.Config {
	return &tls.Config{
		ServerName: s.Host(),
		RootCAs:    s.pool,
		MinVersion: tls.VersionTLS12,
	}
}

// Messages returns the messages accepted so far
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Server) record(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *Server) rejects(to string) bool {
	for _, r := range s.opts.RejectRecipients {
		if strings.EqualFold(r, to) {
			return true
		}
	}
	return false
}

// backend implements the go-smtp Backend interface
type backend struct {
	server *Server
}

// NewSession creates a new SMTP session
func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{server: b.server}, nil
}

// session implements the go-smtp Session and AuthSession interfaces
type session struct {
	server        *Server
	authenticated bool
	from          string
	to            []string
}

func (s *session) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.server.opts.Username || password != s.server.opts.Password {
			return &smtp.SMTPError{
				Code:         535,
				EnhancedCode: smtp.EnhancedCode{5, 7, 8},
				Message:      "Authentication failed",
			}
		}
		s.authenticated = true
		return nil
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.server.rejects(to) {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      fmt.Sprintf("Mailbox %s unavailable", to),
		}
	}
	s.to = append(s.to, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.server.record(Message{From: s.from, To: s.to, Data: data})
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

// generateSelfSignedCert creates an ECDSA P-256 certificate for localhost
// and 127.0.0.1
func generateSelfSignedCert() (*tls.Certificate, []byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: "localhost",
		},
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(24 * time.Hour),

		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,

		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create X509 key pair: %w", err)
	}

	return &cert, certPEM, nil
}
