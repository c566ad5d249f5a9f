package email

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"leadrelay/internal/config"
	"leadrelay/internal/models"
)

// Templates provides email template generation.
type Templates struct {
	cfg *config.Config
}

// NewTemplates creates a new templates instance.
func NewTemplates(cfg *config.Config) *Templates {
	return &Templates{cfg: cfg}
}

// baseHTML wraps content in a consistent HTML email template.
func (t *Templates) baseHTML(title, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #2563eb; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { background: #f9fafb; padding: 20px; border: 1px solid #e5e7eb; }
        .footer { background: #f3f4f6; padding: 15px; text-align: center; font-size: 12px; color: #6b7280; border-radius: 0 0 8px 8px; border: 1px solid #e5e7eb; border-top: none; }
        .button { display: inline-block; background: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; margin: 10px 0; }
        .button:hover { background: #1d4ed8; }
        .info-box { background: white; border: 1px solid #e5e7eb; border-radius: 6px; padding: 15px; margin: 15px 0; }
        .label { font-weight: 600; color: #374151; }
        .value { color: #6b7280; }
        .success { color: #059669; }
        .warning { color: #d97706; }
        .error { color: #dc2626; }
        code { background: #e5e7eb; padding: 2px 6px; border-radius: 4px; font-family: monospace; }
    </style>
</head>
<body>
    <div class="header">
        <h1>%s</h1>
    </div>
    <div class="content">
        %s
    </div>
    <div class="footer">
        <p>This email was sent by %s</p>
        <p><a href="%s">%s</a></p>
    </div>
</body>
</html>`, html.EscapeString(title), html.EscapeString(t.cfg.SiteTitle), content, html.EscapeString(t.cfg.SiteTitle), t.cfg.BaseURL, t.cfg.BaseURL)
}

// QuoteSubmitted generates the staff alert for a newly stored submission.
func (t *Templates) QuoteSubmitted(q *models.QuoteSubmission) (subject, htmlBody, textBody string) {
	name := q.DisplayName()
	if name == "" {
		name = "Website visitor"
	}
	subject = fmt.Sprintf("[%s] New %s quote request from %s", t.cfg.SiteTitle, q.QuoteType, name)

	contact := contactLines(q)
	rows := payloadRows(q.Payload)

	var info strings.Builder
	for _, c := range contact {
		info.WriteString(fmt.Sprintf("            <p><span class=\"label\">%s:</span> <span class=\"value\">%s</span></p>\n",
			html.EscapeString(c[0]), html.EscapeString(c[1])))
	}

	var details strings.Builder
	for _, r := range rows {
		details.WriteString(fmt.Sprintf("            <p><span class=\"label\">%s:</span> %s</p>\n",
			html.EscapeString(r[0]), html.EscapeString(r[1])))
	}

	content := fmt.Sprintf(`
        <p>A new <strong>%s</strong> quote request was submitted on the website.</p>

        <div class="info-box">
%s        </div>

        <div class="info-box">
%s        </div>

        <p style="text-align: center;">
            <a href="%s/admin/quotes/%s/%s" class="button">Open in Dashboard</a>
        </p>
    `,
		html.EscapeString(q.QuoteType),
		info.String(),
		details.String(),
		t.cfg.BaseURL,
		html.EscapeString(q.QuoteType),
		q.ID.String(),
	)

	htmlBody = t.baseHTML(subject, content)

	var text strings.Builder
	text.WriteString(fmt.Sprintf("New %s quote request\n\n", q.QuoteType))
	for _, c := range contact {
		text.WriteString(fmt.Sprintf("%s: %s\n", c[0], c[1]))
	}
	text.WriteString("\n")
	for _, r := range rows {
		text.WriteString(fmt.Sprintf("%s: %s\n", r[0], r[1]))
	}
	text.WriteString(fmt.Sprintf("\nView at: %s/admin/quotes/%s/%s\n\n--\n%s\n%s",
		t.cfg.BaseURL, q.QuoteType, q.ID.String(), t.cfg.SiteTitle, t.cfg.BaseURL))
	textBody = text.String()

	return subject, htmlBody, textBody
}

func contactLines(q *models.QuoteSubmission) [][2]string {
	var out [][2]string
	add := func(label string, v *string) {
		if v != nil && *v != "" {
			out = append(out, [2]string{label, *v})
		}
	}
	if name := q.DisplayName(); name != "" && (q.FirstName != nil || q.LastName != nil) {
		out = append(out, [2]string{"Name", name})
	}
	add("Email", q.Email)
	add("Phone", q.Phone)
	add("ZIP", q.ZipCode)
	return out
}

// skipInAlert are payload keys already shown as contact lines.
var skipInAlert = map[string]bool{
	"first_name": true, "last_name": true, "name": true, "full_name": true,
	"email": true, "phone": true, "phone_number": true, "mobile": true,
	"zip": true, "zip_code": true, "postal_code": true,
}

// payloadRows flattens top-level payload fields into sorted label/value
// pairs. Nested values are rendered with %v.
func payloadRows(payload map[string]any) [][2]string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if !skipInAlert[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	rows := make([][2]string, 0, len(keys))
	for _, k := range keys {
		label := strings.ReplaceAll(k, "_", " ")
		if label != "" {
			label = strings.ToUpper(label[:1]) + label[1:]
		}
		rows = append(rows, [2]string{label, fmt.Sprintf("%v", payload[k])})
	}
	return rows
}
