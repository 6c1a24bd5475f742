package accounts

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const mailTimeout = 10 * time.Second

// MessageContent is a rendered outbound message. HTML is optional; when
// empty the message goes out as bare plain text.
type MessageContent struct {
	Subject string
	Text    string
	HTML    string
}

// ContentBuilder renders the message for a given action link.
type ContentBuilder func(link string) MessageContent

// ActivationMailer builds and sends account activation messages. It is a
// standalone capability so any workflow that needs an activation mail can
// hold one.
type ActivationMailer struct {
	mailer  Mailer
	from    string
	baseURL string
	logger  Logger
	build   ContentBuilder
}

// NewActivationMailer creates an activation mailer from auth options.
func NewActivationMailer(mailer Mailer, cfg Config, logger Logger) *ActivationMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &ActivationMailer{
		mailer:  mailer,
		from:    cfg.GetMailFrom(),
		baseURL: strings.TrimRight(cfg.GetBaseURL(), "/"),
		logger:  logger,
		build:   defaultActivationContent,
	}
}

// SetContentBuilder overrides the default message rendering.
func (m *ActivationMailer) SetContentBuilder(build ContentBuilder) {
	if build != nil {
		m.build = build
	}
}

// Send delivers the activation link for the token to the account's email.
func (m *ActivationMailer) Send(ctx context.Context, account *Account, token string) error {
	if account == nil || account.Email == "" {
		return ErrDeliveryFailed
	}

	link := fmt.Sprintf("%s/activation/%s", m.baseURL, url.PathEscape(token))

	return deliver(ctx, m.mailer, m.logger, m.from, account.Email, m.build(link))
}

func defaultActivationContent(link string) MessageContent {
	return MessageContent{
		Subject: "Activate your account",
		Text: "Welcome!\r\n\r\n" +
			"Please confirm your email address by following this link:\r\n\r\n" +
			link + "\r\n",
	}
}

// ResetMailer builds and sends password reset messages.
type ResetMailer struct {
	mailer  Mailer
	from    string
	baseURL string
	logger  Logger
	build   ContentBuilder
}

// NewResetMailer creates a reset mailer from auth options.
func NewResetMailer(mailer Mailer, cfg Config, logger Logger) *ResetMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &ResetMailer{
		mailer:  mailer,
		from:    cfg.GetMailFrom(),
		baseURL: strings.TrimRight(cfg.GetBaseURL(), "/"),
		logger:  logger,
		build:   defaultResetContent,
	}
}

// SetContentBuilder overrides the default message rendering.
func (m *ResetMailer) SetContentBuilder(build ContentBuilder) {
	if build != nil {
		m.build = build
	}
}

// Send delivers the reset link for the stored key to the account's email.
func (m *ResetMailer) Send(ctx context.Context, account *Account, resetKey string) error {
	if account == nil || account.Email == "" {
		return ErrDeliveryFailed
	}

	query := url.Values{}
	query.Set("email", account.Email)
	query.Set("reset_key", resetKey)
	link := fmt.Sprintf("%s/password-reset/complete?%s", m.baseURL, query.Encode())

	return deliver(ctx, m.mailer, m.logger, m.from, account.Email, m.build(link))
}

func defaultResetContent(link string) MessageContent {
	return MessageContent{
		Subject: "Reset your password",
		Text: "A password reset was requested for this address.\r\n\r\n" +
			"Follow this link to choose a new password:\r\n\r\n" +
			link + "\r\n\r\n" +
			"If you did not request this, you can ignore this message.\r\n",
	}
}

// deliver serializes and hands the message to the transport with a bounded
// context. Transport failures wrap as DeliveryFailed; any account state
// committed before the send stays committed.
func deliver(ctx context.Context, mailer Mailer, logger Logger, from, to string, content MessageContent) error {
	msg, err := buildMIME(from, to, content)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build mail message")
	}

	ctx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()

	if err := mailer.Send(ctx, from, to, msg); err != nil {
		logger.Error("mail delivery to %s failed: %v", to, err)
		return errors.Wrap(err, ErrDeliveryFailed.Category, ErrDeliveryFailed.Message).
			WithTextCode(ErrDeliveryFailed.TextCode)
	}

	return nil
}

// buildMIME assembles the wire message: multipart/alternative when an HTML
// body is present, bare text/plain otherwise.
func buildMIME(from, to string, content MessageContent) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", content.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if content.HTML == "" {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(content.Text)
		return buf.Bytes(), nil
	}

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	plain, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := plain.Write([]byte(content.Text)); err != nil {
		return nil, err
	}

	html, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := html.Write([]byte(content.HTML)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
