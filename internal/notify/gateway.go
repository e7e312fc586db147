package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"go.uber.org/zap"
)

// Method selects the delivery channel for a verification code.
type Method string

const (
	MethodEmail Method = "email"
	MethodPhone Method = "phone"
)

func (m Method) Valid() bool {
	return m == MethodEmail || m == MethodPhone
}

// EmailSender is the email capability the gateway depends on.
type EmailSender interface {
	SendEmail(ctx context.Context, toEmail, subject, html string) error
}

// SMSSender is the SMS capability the gateway depends on.
type SMSSender interface {
	SendSMS(ctx context.Context, toPhoneNumber, message string) error
}

const verificationEmailTmpl = `
<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: auto; padding: 20px; border: 1px solid #ddd; border-radius: 10px;">
      <h2 style="text-align: center; color: #007bff;">Verification Code</h2>
      <p>Hello,</p>
      <p>Your verification code is:</p>
      <p style="font-size: 24px; font-weight: bold; text-align: center; background: #f2f2f2; padding: 10px; border-radius: 5px;">
        {{.Code}}
      </p>
      <p>This code will expire in <strong>{{.Minutes}} minutes</strong>. Please do not share it with anyone.</p>
      <p>Thank you,<br>Your Company Team</p>
    </div>
  </body>
</html>
`

// Gateway dispatches verification codes and reset links over pluggable
// channels. It is constructed once at startup and passed in explicitly.
type Gateway struct {
	mail     EmailSender
	sms      SMSSender
	codeTmpl *template.Template
	logger   *zap.SugaredLogger
}

func NewGateway(mail EmailSender, sms SMSSender, logger *zap.SugaredLogger) *Gateway {
	return &Gateway{
		mail:     mail,
		sms:      sms,
		codeTmpl: template.Must(template.New("verification_email").Parse(verificationEmailTmpl)),
		logger:   logger,
	}
}

// SendVerificationCode delivers the OTP via the requested method. A single
// synchronous attempt; the caller decides what a failure means.
func (g *Gateway) SendVerificationCode(ctx context.Context, method Method, email, phone string, code, ttlMinutes int) error {
	switch method {
	case MethodEmail:
		var buf bytes.Buffer
		if err := g.codeTmpl.Execute(&buf, struct {
			Code    int
			Minutes int
		}{code, ttlMinutes}); err != nil {
			return err
		}
		if err := g.mail.SendEmail(ctx, email, "Your Verification Code", buf.String()); err != nil {
			return err
		}
		g.logger.Infof("verification code sent to %s via email", email)
		return nil
	case MethodPhone:
		msg := fmt.Sprintf("Your verification code is %d", code)
		if err := g.sms.SendSMS(ctx, phone, msg); err != nil {
			return err
		}
		g.logger.Infof("verification code sent to %s via sms", phone)
		return nil
	default:
		return fmt.Errorf("invalid verification method %q", method)
	}
}

// SendPasswordReset emails the reset link embedding the plaintext secret.
func (g *Gateway) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	html := fmt.Sprintf("<p>Your password reset link:</p><p><a href=%q>%s</a></p>", resetURL, resetURL)
	if err := g.mail.SendEmail(ctx, email, "Password Recovery", html); err != nil {
		return err
	}
	g.logger.Infof("password reset email sent to %s", email)
	return nil
}
