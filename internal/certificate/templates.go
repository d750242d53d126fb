package certificate

import "html/template"

const markupLayout = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} - {{.ParticipantName}}</title>
<style>
body { font-family: Georgia, serif; text-align: center; padding: 48px; border: 12px double #1f3a5f; }
h1 { font-size: 42px; color: #1f3a5f; margin-bottom: 4px; }
.name { font-size: 34px; font-weight: bold; margin: 24px 0; }
.badge { display: inline-block; padding: 6px 18px; border-radius: 16px; background: #c9a227; color: #fff; }
.meta { color: #555; font-size: 14px; margin-top: 36px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>This is to certify that</p>
<div class="name">{{.ParticipantName}}</div>
{{if .Winner}}<p>secured <strong>{{.PositionText}}</strong> in</p>
{{if .PositionBadge}}<div class="badge">{{.PositionBadge}}</div>{{end}}
{{else}}<p>has successfully participated in</p>
{{end}}<h2>{{.EventName}}</h2>
<p>{{.Sport}} &middot; {{.EventDate}}</p>
<div class="meta">Certificate ID: {{.UID}} &middot; Issued on {{.IssueDate}}</div>
</body>
</html>
`

var markupTemplate = template.Must(template.New("certificate").Parse(markupLayout))
