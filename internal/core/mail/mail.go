package mail

import (
	"context"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"go-task-manager/internal/core/config"
)

// Sender 在请求内同步调用；发送失败由调用方决定如何上报，这里不重试
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPSender struct {
	cfg config.SMTP
}

func NewSMTPSender(cfg config.SMTP) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.Username),
		gomail.WithPassword(s.cfg.Password),
	}
	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// DevSender 本地开发用：不发信，打一条日志（带收件人和主题）
type DevSender struct {
	log *zap.Logger
}

func NewDevSender(log *zap.Logger) *DevSender { return &DevSender{log: log} }

func (s *DevSender) Send(_ context.Context, to, subject, htmlBody string) error {
	s.log.Info("mail (dev mode, not sent)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)),
	)
	return nil
}

// FromConfig DevMode 或未配置 host 时退回日志发送
func FromConfig(cfg config.SMTP, log *zap.Logger) Sender {
	if cfg.DevMode || cfg.Host == "" {
		return NewDevSender(log)
	}
	return NewSMTPSender(cfg)
}
