package mailer

import (
	"html/template"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/packmind/internal/model"
)

// ReminderItem pairs one predicted item with its signed one-click
// mark-packed link.
type ReminderItem struct {
	Prediction    model.Prediction
	MarkPackedURL string
}

var reminderTemplate = template.Must(template.New("reminder").
	Funcs(template.FuncMap{
		"percent": func(p float64) float64 { return p * 100 },
	}).
	Parse(`<html>
<body style="font-family: sans-serif;">
<h2>Packing reminder for {{.Date}}</h2>
<p>Based on your history, don't forget:</p>
<ul>
{{- range .Items}}
<li>
<strong>{{.Prediction.Name}}</strong>
({{printf "%.0f" (percent .Prediction.NeedProbability)}}% likely needed)
&mdash; <a href="{{.MarkPackedURL}}">mark packed</a>
</li>
{{- end}}
</ul>
<p style="color: #888; font-size: 12px;">Sent by packmind. Marking an item packed records it for today only.</p>
</body>
</html>
`))

// ReminderBody renders the HTML digest for one user's daily reminder.
func ReminderBody(date string, items []ReminderItem) (string, error) {
	var buf strings.Builder
	data := struct {
		Date  string
		Items []ReminderItem
	}{Date: date, Items: items}
	if err := reminderTemplate.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, "mailer: render reminder body")
	}
	return buf.String(), nil
}
