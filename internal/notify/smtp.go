package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends messages as plain-text email.
type SMTPNotifier struct {
	cfg      SMTPConfig
	auth     smtp.Auth
	sendMail sendMailFunc
	logger   *zap.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPNotifier{cfg: cfg, auth: auth, sendMail: smtp.SendMail, logger: logger}
}

// Notify sends msg. A message without recipients is accepted and dropped,
// since a mail relay rejects an empty RCPT list.
func (n *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		n.logger.Warn("alert has no recipients",
			zap.String("subject", msg.Subject),
			zap.Int("channel_id", msg.ChannelID),
		)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(n.cfg.Host, fmt.Sprint(n.cfg.Port))
	if err := n.sendMail(addr, n.auth, n.cfg.From, msg.To, buildMail(n.cfg.From, msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func buildMail(from string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
