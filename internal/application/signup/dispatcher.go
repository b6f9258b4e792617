package signup

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"

	"github.com/eduretrieve-api/internal/domain"
)

const verificationSubject = "Complete Your EduRetrieve Registration"

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937; max-width: 560px; margin: 0 auto;">
  <h2 style="color: #2563eb;">Welcome to EduRetrieve{{if .Name}}, {{.Name}}{{end}}!</h2>
  <p>Your Google account has been verified. Enter the code below to finish creating your account:</p>
  <p style="font-size: 32px; font-weight: bold; letter-spacing: 8px; text-align: center; background: #f3f4f6; padding: 16px; border-radius: 8px;">{{.Code}}</p>
  <p>This code expires in {{.ExpiryMinutes}} minutes.</p>
  <h3>Account details</h3>
  <ul>
    <li>Email: {{.Email}}</li>
    {{if .Name}}<li>Name: {{.Name}}</li>{{end}}
    <li>Signed in with Google</li>
  </ul>
  <p style="color: #6b7280; font-size: 12px;">If you did not start an EduRetrieve signup, you can ignore this email.</p>
</body>
</html>
`))

type verificationEmail struct {
	Name          string
	Email         string
	Code          string
	ExpiryMinutes int
}

type mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

type emailMetrics interface {
	RecordEmailSent()
	RecordEmailFailure()
}

// EmailDispatcher delivers verification emails on a best-effort basis:
// a failed send is logged and counted, never returned.
type EmailDispatcher struct {
	mailer  mailer
	metrics emailMetrics
}

func NewEmailDispatcher(m mailer, metrics emailMetrics) *EmailDispatcher {
	return &EmailDispatcher{mailer: m, metrics: metrics}
}

// Send makes a single delivery attempt.
func (d *EmailDispatcher) Send(ctx context.Context, to, subject, htmlBody string) {
	if err := d.mailer.SendEmail(to, subject, htmlBody); err != nil {
		slog.WarnContext(ctx, "failed to send email", "to", to, "subject", subject, "err", err)
		if d.metrics != nil {
			d.metrics.RecordEmailFailure()
		}
		return
	}
	if d.metrics != nil {
		d.metrics.RecordEmailSent()
	}
}

// SendVerificationCode renders and sends the code email for v.
func (d *EmailDispatcher) SendVerificationCode(ctx context.Context, v *domain.PendingVerification) {
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, verificationEmail{
		Name:          v.Profile.Name,
		Email:         v.Email,
		Code:          v.Code,
		ExpiryMinutes: int(domain.VerificationTTL.Minutes()),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to render verification email", "to", v.Email, "err", err)
		if d.metrics != nil {
			d.metrics.RecordEmailFailure()
		}
		return
	}
	d.Send(ctx, v.Email, verificationSubject, buf.String())
}
