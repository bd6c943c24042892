// AngelaMos | 2026
// templates.go

package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// TemplateData is what subjects and bodies are rendered against.
type TemplateData struct {
	RecipientName string
	TaskTitle     string
	TaskID        string
	Priority      string
	DueDate       *time.Time
	ActorName     string
	Filename      string
	RowCount      int
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var funcs = template.FuncMap{
	"date": func(t *time.Time) string {
		if t == nil {
			return "none"
		}
		return t.Format("Mon, 02 Jan 2006 15:04 MST")
	},
}

func mustTemplate(kind Kind, subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New(string(kind) + "_subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New(string(kind) + "_body").Funcs(funcs).Parse(body)),
	}
}

var templates = map[Kind]mailTemplate{
	KindTaskAssigned: mustTemplate(KindTaskAssigned,
		`Task assigned: {{.TaskTitle}}`,
		`Hi {{.RecipientName}},

{{if .ActorName}}{{.ActorName}} assigned you{{else}}You have been assigned{{end}} the task "{{.TaskTitle}}".

Priority: {{.Priority}}
Due: {{date .DueDate}}
`),
	KindTaskCompleted: mustTemplate(KindTaskCompleted,
		`Task completed: {{.TaskTitle}}`,
		`Hi {{.RecipientName}},

The task "{{.TaskTitle}}" you created was marked completed{{if .ActorName}} by {{.ActorName}}{{end}}.
`),
	KindTaskReminder: mustTemplate(KindTaskReminder,
		`Reminder: {{.TaskTitle}} is due tomorrow`,
		`Hi {{.RecipientName}},

This is a reminder that "{{.TaskTitle}}" is due {{date .DueDate}}.

Priority: {{.Priority}}
`),
	KindDataExport: mustTemplate(KindDataExport,
		`Your task export`,
		`Hi {{.RecipientName}},

Your export is attached as {{.Filename}} ({{.RowCount}} {{if eq .RowCount 1}}task{{else}}tasks{{end}}).
`),
}

// Render builds the subject and body for kind.
func Render(kind Kind, data TemplateData) (subject, body string, err error) {
	tmpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for %s", kind)
	}

	var sb, bb bytes.Buffer
	if err := tmpl.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", kind, err)
	}
	if err := tmpl.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", kind, err)
	}

	return sb.String(), bb.String(), nil
}
