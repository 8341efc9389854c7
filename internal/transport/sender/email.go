// Package sender holds the outbound mail transport.
package sender

import (
	"context"
	"fmt"

	"bandonotifier/internal/entity"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPSender delivers queue rows over SMTP.
type SMTPSender struct {
	dialer     *gomail.Dialer
	from       string
	configured bool
	log        *zap.SugaredLogger
}

func NewSMTPSender(host string, port int, username, password, from string, log *zap.SugaredLogger) *SMTPSender {
	dialer := gomail.NewDialer(host, port, username, password)

	log.Infow("smtp sender initialized",
		"host", host,
		"port", port,
		"from", from,
		"configured", username != "",
	)

	return &SMTPSender{
		dialer:     dialer,
		from:       from,
		configured: username != "" && password != "",
		log:        log,
	}
}

// Send delivers one message. Missing credentials fail here, per message, so
// every row in a drain batch records a descriptive error instead of the
// batch aborting.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if !s.configured {
		return entity.ErrMailNotConfigured
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}

	s.log.Debugw("email sent", "to", to, "subject", subject)
	return nil
}
