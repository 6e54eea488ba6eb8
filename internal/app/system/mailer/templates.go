// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"
)

// Template data keys understood by the notification templates.
const (
	KeySiteName    = "SiteName"
	KeyBaseURL     = "BaseURL"
	KeyOrgName     = "OrgName"
	KeyContactName = "ContactName"
	KeyReason      = "Reason"
	KeyTrialEnd    = "TrialEnd"
)

type emailTemplate struct {
	subject *template.Template
	text    *template.Template
	html    *htmltemplate.Template
}

var funcs = map[string]any{
	"date": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			return t.UTC().Format("January 2, 2006")
		case *time.Time:
			if t != nil {
				return t.UTC().Format("January 2, 2006")
			}
		}
		return ""
	},
}

func mustTemplate(name, subject, text, body string) emailTemplate {
	html := htmltemplate.Must(htmltemplate.New(name + ".html").Funcs(funcs).Parse(layoutHTML))
	htmltemplate.Must(html.New("content").Parse(body))
	return emailTemplate{
		subject: template.Must(template.New(name + ".subject").Funcs(funcs).Parse(subject)),
		text:    template.Must(template.New(name + ".text").Funcs(funcs).Parse(text)),
		html:    html,
	}
}

var templates = map[string]emailTemplate{
	"request_approved": mustTemplate("request_approved",
		`Your {{.SiteName}} organization request was approved`,
		`Hi {{.ContactName}},

Good news: {{.OrgName}} has been approved for {{.SiteName}}.
Your free Premium trial is active until {{date .TrialEnd}}.

Sign in at {{.BaseURL}} to start sending alerts.
`,
		`<p>Hi {{.ContactName}},</p>
<p>Good news: <strong>{{.OrgName}}</strong> has been approved for {{.SiteName}}.</p>
<p>Your free Premium trial is active until <strong>{{date .TrialEnd}}</strong>.</p>
<p><a href="{{.BaseURL}}">Sign in to get started</a></p>`),

	"request_rejected": mustTemplate("request_rejected",
		`Update on your {{.SiteName}} organization request`,
		`Hi {{.ContactName}},

Thank you for your interest in {{.SiteName}}. We were unable to approve the
request for {{.OrgName}} at this time.

Reason: {{.Reason}}

You are welcome to submit a new request at {{.BaseURL}}.
`,
		`<p>Hi {{.ContactName}},</p>
<p>Thank you for your interest in {{.SiteName}}. We were unable to approve the request for <strong>{{.OrgName}}</strong> at this time.</p>
<p>Reason: {{.Reason}}</p>
<p>You are welcome to <a href="{{.BaseURL}}">submit a new request</a>.</p>`),

	"trial_started": mustTemplate("trial_started",
		`Your {{.SiteName}} Premium trial has started`,
		`Your Premium trial for {{.OrgName}} is active.

Every Premium feature is unlocked until {{date .TrialEnd}}. After that you can
choose a plan at {{.BaseURL}}/pricing.
`,
		`<p>Your Premium trial for <strong>{{.OrgName}}</strong> is active.</p>
<p>Every Premium feature is unlocked until <strong>{{date .TrialEnd}}</strong>.</p>
<p>After that you can <a href="{{.BaseURL}}/pricing">choose a plan</a>.</p>`),

	"payment_required": mustTemplate("payment_required",
		`Your {{.SiteName}} trial has ended`,
		`The Premium trial for {{.OrgName}} ended on {{date .TrialEnd}}.

Choose a plan at {{.BaseURL}}/pricing to keep sending alerts.
`,
		`<p>The Premium trial for <strong>{{.OrgName}}</strong> ended on {{date .TrialEnd}}.</p>
<p><a href="{{.BaseURL}}/pricing">Choose a plan</a> to keep sending alerts.</p>`),
}

// Render builds the email for a named template. To is left for the caller.
func Render(name string, data map[string]any) (Email, error) {
	t, ok := templates[name]
	if !ok {
		return Email{}, fmt.Errorf("mailer: unknown template %q", name)
	}

	var subject, text, html bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Email{}, fmt.Errorf("mailer: %s subject: %w", name, err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("mailer: %s text: %w", name, err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("mailer: %s html: %w", name, err)
	}
	return Email{
		Subject:  subject.String(),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}

const layoutHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.SiteName}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 520px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 28px 32px; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 22px; color: #dc2626;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 28px 32px; font-size: 15px; color: #374151; line-height: 1.5;">
              {{template "content" .}}
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
