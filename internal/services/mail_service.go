package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mrz1836/postmark"

	"habitloop/internal/billing"
	"habitloop/internal/config"
)

type IMailService interface {
	SendMailToNotifyUser(ctx context.Context, to, subject, body, ctaText, ctaURL string) error
	SendPaymentFailedNotice(ctx context.Context, to string, invoice billing.InvoiceSnapshot) error
}

// mailTransport delivers an already rendered message.
type mailTransport interface {
	deliver(ctx context.Context, to, subject, htmlBody, textBody string) error
}

type mailService struct {
	cfg       config.MailConfig
	appName   string
	transport mailTransport
	htmlTpl   *template.Template
	textTpl   *texttemplate.Template
}

// NewMailService sends through Postmark when a server token is configured and
// falls back to SMTP otherwise.
func NewMailService(cfg config.MailConfig) IMailService {
	var transport mailTransport
	if cfg.UsePostmark() {
		transport = &postmarkTransport{
			client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
			from:   formatFromHeader(cfg.FromName, cfg.From),
		}
	} else {
		transport = &smtpTransport{cfg: cfg}
	}
	return newMailService(cfg, transport)
}

func newMailService(cfg config.MailConfig, transport mailTransport) *mailService {
	appName := cfg.FromName
	if appName == "" {
		appName = "Habitloop"
	}
	return &mailService{
		cfg:       cfg,
		appName:   appName,
		transport: transport,
		htmlTpl:   template.Must(template.New("html").Parse(baseHTMLTemplate)),
		textTpl:   texttemplate.Must(texttemplate.New("text").Parse(plainTextTemplate)),
	}
}

func (s *mailService) SendMailToNotifyUser(ctx context.Context, to, subject, body, ctaText, ctaURL string) error {
	html, text, err := s.renderEmail(EmailData{
		Title:     subject,
		Intro:     body,
		ButtonURL: ctaURL,
		ButtonTxt: ctaText,
		AppName:   s.appName,
		Year:      time.Now().Year(),
	})
	if err != nil {
		return err
	}
	return s.transport.deliver(ctx, to, subject, html, text)
}

func (s *mailService) SendPaymentFailedNotice(ctx context.Context, to string, invoice billing.InvoiceSnapshot) error {
	subject := "Your payment didn't go through"
	body := fmt.Sprintf(
		"We couldn't collect %s for your %s subscription, so your premium features are paused. Update your payment method and they come back as soon as the payment succeeds.",
		formatAmount(invoice.AmountDue, invoice.Currency), s.appName)

	ctaURL := invoice.HostedInvoiceURL
	ctaText := "Pay invoice"
	if ctaURL == "" {
		ctaURL = strings.TrimRight(s.cfg.AppBaseURL, "/") + "/settings/billing"
		ctaText = "Update payment method"
	}
	return s.SendMailToNotifyUser(ctx, to, subject, body, ctaText, ctaURL)
}

type EmailData struct {
	Title     string
	Intro     string
	ButtonURL string
	ButtonTxt string
	AppName   string
	Year      int
}

const baseHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #f1f5f9; color: #0f172a; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
    .container { max-width: 560px; margin: 32px auto; background: #ffffff; border-radius: 12px; overflow: hidden; }
    .header { padding: 24px 28px; border-bottom: 1px solid #e2e8f0; font-weight: 700; font-size: 20px; color: #16a34a; }
    .hero { padding: 28px; }
    h1 { margin: 0 0 12px; font-size: 24px; }
    p { margin: 0 0 16px; line-height: 1.6; color: #475569; }
    .btn { display: inline-block; padding: 14px 28px; background: #16a34a; color: #ffffff !important; text-decoration: none; border-radius: 10px; font-weight: 600; }
    .muted { color: #94a3b8; font-size: 13px; word-break: break-all; }
    .footer { padding: 20px 28px; color: #94a3b8; font-size: 12px; text-align: center; border-top: 1px solid #e2e8f0; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">{{.AppName}}</div>
    <div class="hero">
      <h1>{{.Title}}</h1>
      <p>{{.Intro}}</p>
      {{if .ButtonURL}}
        <p><a class="btn" href="{{.ButtonURL}}">{{.ButtonTxt}}</a></p>
        <p class="muted">If the button doesn't work, open this link: {{.ButtonURL}}</p>
      {{end}}
    </div>
    <div class="footer">&copy; {{.Year}} {{.AppName}}</div>
  </div>
</body>
</html>`

const plainTextTemplate = `{{.Title}}

{{.Intro}}
{{if .ButtonURL}}
{{.ButtonTxt}}: {{.ButtonURL}}
{{end}}
{{.AppName}} (c) {{.Year}}
`

func (s *mailService) renderEmail(data EmailData) (html string, text string, err error) {
	var hb, tb bytes.Buffer
	if err = s.htmlTpl.Execute(&hb, data); err != nil {
		return "", "", err
	}
	if err = s.textTpl.Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

// Stripe amounts are in the currency's smallest unit; most currencies have
// two decimals, these do not.
var (
	zeroDecimalCurrencies = map[string]bool{
		"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
		"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
		"vuv": true, "xaf": true, "xof": true, "xpf": true,
	}
	threeDecimalCurrencies = map[string]bool{
		"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
	}
)

func formatAmount(minor int64, currency string) string {
	code := strings.ToLower(currency)
	switch {
	case zeroDecimalCurrencies[code]:
		return fmt.Sprintf("%d %s", minor, strings.ToUpper(code))
	case threeDecimalCurrencies[code]:
		return fmt.Sprintf("%d.%03d %s", minor/1000, minor%1000, strings.ToUpper(code))
	default:
		return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, strings.ToUpper(code))
	}
}

func formatFromHeader(name, from string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return from
	}
	return fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", name), from)
}

// ------------------- Postmark -------------------

type postmarkTransport struct {
	client *postmark.Client
	from   string
}

func (t *postmarkTransport) deliver(ctx context.Context, to, subject, htmlBody, textBody string) error {
	resp, err := t.client.SendEmail(ctx, postmark.Email{
		From:       t.from,
		To:         to,
		Subject:    subject,
		Tag:        "billing",
		HTMLBody:   htmlBody,
		TextBody:   textBody,
		TrackOpens: false,
	})
	if err != nil {
		return errors.Wrap(err, "postmark: send email")
	}
	if resp.ErrorCode > 0 {
		return errors.Newf("postmark: error %d: %s", resp.ErrorCode, resp.Message)
	}
	return nil
}

// ------------------- SMTP -------------------

type smtpTransport struct {
	cfg config.MailConfig
}

func (t *smtpTransport) deliver(ctx context.Context, to, subject, htmlBody, textBody string) error {
	msg := buildMIMEMessage(formatFromHeader(t.cfg.FromName, t.cfg.From), to, subject, htmlBody, textBody)

	addr := fmt.Sprintf("%s:%d", t.cfg.SMTPHost, t.cfg.SMTPPort)
	dialer := &net.Dialer{Timeout: 10 * time.Second}

	var conn net.Conn
	var err error
	if t.cfg.SMTPUseSSL {
		// Implicit TLS, usually port 465.
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: t.tlsConfig()}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return errors.Wrap(err, "smtp: dial")
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		return errors.Wrap(err, "smtp: handshake")
	}
	defer c.Quit()

	if !t.cfg.SMTPUseSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err = c.StartTLS(t.tlsConfig()); err != nil {
				return errors.Wrap(err, "smtp: starttls")
			}
		}
	}

	if t.cfg.SMTPUsername != "" {
		if err = c.Auth(smtp.PlainAuth("", t.cfg.SMTPUsername, t.cfg.SMTPPassword, t.cfg.SMTPHost)); err != nil {
			return errors.Wrap(err, "smtp: auth")
		}
	}
	if err = c.Mail(t.cfg.From); err != nil {
		return err
	}
	if err = c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (t *smtpTransport) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: t.cfg.SMTPHost, MinVersion: tls.VersionTLS12}
}

func buildMIMEMessage(from, to, subject, htmlBody, textBody string) []byte {
	boundary := fmt.Sprintf("mixed_%d", time.Now().UnixNano())

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = fmt.Fprintf(&msg, format, a...) }

	write("From: %s\r\n", from)
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	write("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	write("%s\r\n\r\n", textBody)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	write("%s\r\n\r\n", htmlBody)

	write("--%s--\r\n", boundary)
	return msg.Bytes()
}
