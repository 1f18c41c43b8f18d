package accounts

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	verifySubject = "Please use the token to verify your email"
	resetSubject  = "Password Reset"
)

// SendGridMailer delivers token emails through SendGrid.
type SendGridMailer struct {
	client   *sendgrid.Client
	from     *mail.Email
	fromName string
}

// NewSendGridMailer builds a mailer for the given API key and sender.
func NewSendGridMailer(apiKey, fromName, fromAddress string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, toAddress string, kind MailKind, code, displayName string) error {
	subject, plain, html := renderMail(kind, code, displayName)

	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail(displayName, toAddress), plain, html)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "sendgrid send failed")
	}

	if resp.StatusCode >= 400 {
		return goerrors.New("sendgrid rejected the message", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"status_code": resp.StatusCode})
	}

	return nil
}

func renderMail(kind MailKind, code, displayName string) (subject, plain, html string) {
	switch kind {
	case MailKindReset:
		subject = resetSubject
		plain = fmt.Sprintf("Hi %s, use this code to reset your password: %s. It expires in 30 minutes.", displayName, code)
	default:
		subject = verifySubject
		plain = fmt.Sprintf("Hi %s, use this code to verify your email: %s. It expires in 30 minutes.", displayName, code)
	}
	html = fmt.Sprintf("<p>%s</p>", plain)
	return subject, plain, html
}

// LogMailer is the development fallback: it prints the code instead of
// sending it.
type LogMailer struct {
	logger Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger Logger) LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return LogMailer{logger: logger}
}

func (m LogMailer) Send(_ context.Context, toAddress string, kind MailKind, code, displayName string) error {
	logger := m.logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("mail %s to=%s name=%s code=%s", kind, toAddress, displayName, code)
	return nil
}

var (
	_ Mailer = (*SendGridMailer)(nil)
	_ Mailer = LogMailer{}
)
