package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// WelcomeSubject is the subject line of the credentials email
const WelcomeSubject = "Welcome to RCFMS - Your Account Credentials"

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!DOCTYPE html>
<html>
<head>
  <style>
    body { font-family: 'Segoe UI', Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #2A9D8F; color: white; padding: 30px; text-align: center; }
    .credentials { background: white; padding: 20px; margin: 20px 0; border-left: 4px solid #2A9D8F; }
    .label { color: #666; font-size: 12px; text-transform: uppercase; }
    .value { font-size: 16px; font-weight: bold; color: #2A9D8F; }
    .warning { background: #fff3cd; border: 1px solid #ffc107; padding: 15px; margin-top: 20px; }
    .footer { text-align: center; margin-top: 30px; color: #666; font-size: 12px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Welcome to RCFMS</h1>
      <p>Resident Care &amp; Facility Management System</p>
    </div>
    <p>Hello <strong>{{.FullName}}</strong>,</p>
    <p>Your RCFMS account has been created. You can now access the system using the credentials below:</p>
    <div class="credentials">
      <div class="label">Email</div>
      <div class="value">{{.Email}}</div>
      <div class="label">Work ID</div>
      <div class="value">{{.WorkID}}</div>
      <div class="label">Temporary Password</div>
      <div class="value">{{.Password}}</div>
    </div>
    <div class="warning">
      <strong>Important:</strong> Please change your password after your first login.
    </div>
    <p>If you have any questions, please contact your system administrator.</p>
    <div class="footer">
      <p>This is an automated message from RCFMS. Please do not reply to this email.</p>
      <p>&copy; {{.Year}} RCFMS - All rights reserved</p>
    </div>
  </div>
</body>
</html>
`))

// SMTPConfig holds SMTP relay settings
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string // e.g. "RCFMS <noreply@rcfms.com>"
	DialTimeout time.Duration
}

// SMTPSender emails credentials through an SMTP relay
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 8 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// Name implements Sender
func (s *SMTPSender) Name() string { return "smtp" }

// SendCredentials renders the welcome email and sends it
func (s *SMTPSender) SendCredentials(ctx context.Context, c Credentials) error {
	msg, err := s.buildMessage(c, time.Now())
	if err != nil {
		return err
	}
	return s.send(ctx, c.Email, msg)
}

func (s *SMTPSender) buildMessage(c Credentials, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	err := welcomeTemplate.Execute(&body, map[string]string{
		"FullName": c.FullName,
		"Email":    c.Email,
		"WorkID":   c.WorkID,
		"Password": c.Password.Reveal(),
		"Year":     strconv.Itoa(now.Year()),
	})
	if err != nil {
		return nil, fmt.Errorf("render welcome email: %w", err)
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", s.cfg.From),
		fmt.Sprintf("To: %s", c.Email),
		fmt.Sprintf("Subject: %s", WelcomeSubject),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		body.String(),
	}, "\r\n")
	return []byte(msg), nil
}

func (s *SMTPSender) send(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := &net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(envelopeAddress(s.cfg.From)); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// envelopeAddress extracts the bare address from "Name <addr>"
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return strings.TrimSpace(from)
}
