package notification

import (
	"context"
	"fmt"
	"net/smtp"
)

type SMTPSender struct {
	host     string
	port     string
	user     string
	pass     string
	from     string
	fromName string
}

func NewSMTPSender(host, port, user, pass, from, fromName string) *SMTPSender {
	return &SMTPSender{host: host, port: port, user: user, pass: pass, from: from, fromName: fromName}
}

func (s *SMTPSender) Send(_ context.Context, job Job) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n"
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.user != "" && s.pass != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	return smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{job.To}, []byte(message))
}

// LogSender writes messages to the log. Used when SMTP is not configured.
type LogSender struct {
	loggerf func(format string, args ...interface{})
}

func NewLogSender(loggerf func(format string, args ...interface{})) *LogSender {
	return &LogSender{loggerf: loggerf}
}

func (s *LogSender) Send(_ context.Context, job Job) error {
	if s.loggerf != nil {
		s.loggerf("level=info msg=notification kind=%s to=%s subject=%q", job.Kind, job.To, job.Subject)
	}
	return nil
}
