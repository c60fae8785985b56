package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"otp-auth/internal/logging"
)

const DefaultSMTPTimeout = 10 * time.Second

type SMTPClient struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// Timeout bounds the whole exchange, dial included.
	Timeout time.Duration

	// send is swapped in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPClient(host string, port int, user, pass, from string) *SMTPClient {
	if port == 0 {
		port = 587
	}
	if from == "" {
		from = user
	}
	return &SMTPClient{Host: host, Port: port, User: user, Password: pass, From: from, Timeout: DefaultSMTPTimeout}
}

func (s *SMTPClient) Send(to, subject, body string) error {
	if s == nil || s.Host == "" || s.User == "" {
		return fmt.Errorf("smtp not configured")
	}
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	auth := smtp.PlainAuth("", s.User, s.Password, s.Host)
	msg := []byte("From: \"OTP Auth\" <" + s.From + ">\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" + body + "\r\n")
	if s.send != nil {
		return s.send(addr, auth, s.From, []string{to}, msg)
	}
	return sendMail(addr, s.Timeout, auth, s.From, []string{to}, msg)
}

// sendMail is smtp.SendMail with a deadline on the connection.
func sendMail(addr string, timeout time.Duration, a smtp.Auth, from string, to []string, msg []byte) error {
	if timeout <= 0 {
		timeout = DefaultSMTPTimeout
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

const otpSubject = "Your OTP Code"

func otpBody(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your OTP code is %s. It will expire in %d minutes.", code, TTLMinutes(ttl))
}

// OTPMailer delivers verification codes over SMTP.
type OTPMailer struct {
	client *SMTPClient
	ttl    time.Duration
}

func NewOTPMailer(client *SMTPClient, ttl time.Duration) *OTPMailer {
	return &OTPMailer{client: client, ttl: ttl}
}

func (m *OTPMailer) SendOTP(_ context.Context, email, code string) error {
	if err := m.client.Send(email, otpSubject, otpBody(code, m.ttl)); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

// LogMailer writes codes to the log instead of sending them. For local
// development only; config rejects it in release mode.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendOTP(ctx context.Context, email, code string) error {
	m.log.Warn(ctx, "otp log delivery, not emailed", "email", email, "otp", code)
	return nil
}
