package dispatcher

import (
	"fmt"
	"html/template"
	"strings"

	"reddit_alert/internal/model"
)

var emailTmpl = template.Must(template.New("alert").Parse(`<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>{{len .Records}} new matches for "<b>{{.Keyword}}</b>"</h2>
  <p style="color: #666;">Here are the latest posts found on Reddit:</p>
  <hr style="border: 0; border-top: 1px solid #eee; margin: 20px 0;">
  {{range .Records}}<div style="margin-bottom: 15px; border-bottom: 1px solid #eee; padding-bottom: 10px;">
    <a href="{{.Post.URL}}" style="font-size: 16px; font-weight: bold; color: #0070f3; text-decoration: none;">{{.Post.Title}}</a>
    <div style="color: #555; font-size: 14px; margin-top: 5px;">{{if .Post.Preview}}{{.Post.Preview}}{{else}}No preview available{{end}}...</div>
  </div>
  {{end}}<p style="font-size: 12px; color: #999; margin-top: 30px;">
    You are receiving this because you subscribed to alerts for "{{.Keyword}}".
  </p>
</div>`))

// renderEmail produces the subject and HTML body for one
// (user, keyword) group.
func renderEmail(keyword string, recs []model.AlertRecord) (subject, htmlBody string, err error) {
	subject = fmt.Sprintf("New Matches: %q (%d posts)", keyword, len(recs))

	var b strings.Builder
	err = emailTmpl.Execute(&b, struct {
		Keyword string
		Records []model.AlertRecord
	}{Keyword: keyword, Records: recs})
	if err != nil {
		return "", "", fmt.Errorf("render email: %w", err)
	}
	return subject, b.String(), nil
}
