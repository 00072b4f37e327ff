// Package templates renders notification and email bodies. Its inputs are
// already-shaped projections, so a template can only show what the
// recipient's tier allows.
package templates

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"mentorjournal/internal/sharing"
)

// Rendered is a subject with matching plain text and HTML bodies.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type DisclosureView struct {
	JournalerName string
	Projection    sharing.Projection
	ActionURL     string
	Updated       bool
}

type MilestoneView struct {
	JournalerName string
	FormTitles    []string
	ActionURL     string
}

type MenteeView struct {
	Name    string
	Entries []sharing.Projection
}

type DigestView struct {
	MentorName string
	Since      time.Time
	Until      time.Time
	Mentees    []MenteeView
	TotalCount int
	ActionURL  string
}

type DecisionView struct {
	Name     string
	Approved bool
	Note     string
}

type RequestView struct {
	ActorName string
	Status    string
	Message   string
	ActionURL string
}

var funcs = map[string]any{
	"date": func(t time.Time) string { return t.Format("Mon Jan 2") },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"join": strings.Join,
}

const projectionText = `{{define "projection"}}{{.FormTitle}} ({{date .EntryDate}})
{{- with deref .Mood}}
Mood: {{.}}{{end}}
{{- with deref .Summary}}
Summary: {{.}}{{end}}
{{- range .Responses}}
- {{.Label}}: {{.Value}}{{end}}
{{end}}`

const projectionHTML = `{{define "projection"}}<h3>{{.FormTitle}} <small>{{date .EntryDate}}</small></h3>
{{- with deref .Mood}}<p><strong>Mood:</strong> {{.}}</p>{{end}}
{{- with deref .Summary}}<p>{{.}}</p>{{end}}
{{- if .Responses}}<dl>{{range .Responses}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>{{end}}</dl>{{end}}
{{end}}`

var textSources = map[string]string{
	"disclosure": projectionText + `{{.JournalerName}} {{if .Updated}}updated{{else}}shared{{end}} a journal entry with you.

{{template "projection" .Projection}}
{{- with .ActionURL}}
View it: {{.}}{{end}}`,
	"milestone": `{{.JournalerName}} has completed every form you assigned: {{join .FormTitles ", "}}.
{{- with .ActionURL}}
View their journal: {{.}}{{end}}`,
	"digest": projectionText + `Hi {{.MentorName}},

{{.TotalCount}} shared {{if eq .TotalCount 1}}entry{{else}}entries{{end}} between {{date .Since}} and {{date .Until}}.
{{range .Mentees}}
== {{.Name}} ==
{{range .Entries}}{{template "projection" .}}{{end}}{{end}}
{{- with .ActionURL}}
Open your dashboard: {{.}}{{end}}`,
	"decision": `Hi {{.Name}},

{{if .Approved}}Your mentor application was approved. You can now accept journalers.{{else}}Your mentor application was not approved.{{end}}
{{- with .Note}}

Note from the reviewer: {{.}}{{end}}`,
	"request": `{{.ActorName}} {{.Status}}.
{{- with .Message}}

"{{.}}"{{end}}
{{- with .ActionURL}}
Review it: {{.}}{{end}}`,
}

var htmlSources = map[string]string{
	"disclosure": projectionHTML + `<p>{{.JournalerName}} {{if .Updated}}updated{{else}}shared{{end}} a journal entry with you.</p>
{{template "projection" .Projection}}
{{- with .ActionURL}}<p><a href="{{.}}">View it</a></p>{{end}}`,
	"milestone": `<p>{{.JournalerName}} has completed every form you assigned: {{join .FormTitles ", "}}.</p>
{{- with .ActionURL}}<p><a href="{{.}}">View their journal</a></p>{{end}}`,
	"digest": projectionHTML + `<p>Hi {{.MentorName}},</p>
<p>{{.TotalCount}} shared {{if eq .TotalCount 1}}entry{{else}}entries{{end}} between {{date .Since}} and {{date .Until}}.</p>
{{range .Mentees}}<h2>{{.Name}}</h2>
{{range .Entries}}{{template "projection" .}}{{end}}{{end}}
{{- with .ActionURL}}<p><a href="{{.}}">Open your dashboard</a></p>{{end}}`,
	"decision": `<p>Hi {{.Name}},</p>
<p>{{if .Approved}}Your mentor application was approved. You can now accept journalers.{{else}}Your mentor application was not approved.{{end}}</p>
{{- with .Note}}<p>Note from the reviewer: {{.}}</p>{{end}}`,
	"request": `<p>{{.ActorName}} {{.Status}}.</p>
{{- with .Message}}<blockquote>{{.}}</blockquote>{{end}}
{{- with .ActionURL}}<p><a href="{{.}}">Review it</a></p>{{end}}`,
}

// Renderer holds the parsed templates. It is safe for concurrent use.
type Renderer struct {
	text map[string]*texttemplate.Template
	html map[string]*htmltemplate.Template
}

func New() *Renderer {
	r := &Renderer{
		text: make(map[string]*texttemplate.Template, len(textSources)),
		html: make(map[string]*htmltemplate.Template, len(htmlSources)),
	}
	for name, src := range textSources {
		r.text[name] = texttemplate.Must(texttemplate.New(name).Funcs(funcs).Parse(src))
	}
	for name, src := range htmlSources {
		r.html[name] = htmltemplate.Must(htmltemplate.New(name).Funcs(funcs).Parse(src))
	}
	return r
}

func (r *Renderer) render(name, subject string, data any) (Rendered, error) {
	var text, html bytes.Buffer
	if err := r.text[name].Execute(&text, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s text: %w", name, err)
	}
	if err := r.html[name].Execute(&html, data); err != nil {
		return Rendered{}, fmt.Errorf("render %s html: %w", name, err)
	}
	return Rendered{Subject: subject, Text: strings.TrimSpace(text.String()), HTML: strings.TrimSpace(html.String())}, nil
}

func (r *Renderer) Disclosure(v DisclosureView) (Rendered, error) {
	verb := "shared"
	if v.Updated {
		verb = "updated"
	}
	return r.render("disclosure", fmt.Sprintf("%s %s a journal entry", v.JournalerName, verb), v)
}

func (r *Renderer) Milestone(v MilestoneView) (Rendered, error) {
	return r.render("milestone", fmt.Sprintf("%s completed their assigned forms", v.JournalerName), v)
}

func (r *Renderer) Digest(v DigestView) (Rendered, error) {
	return r.render("digest", fmt.Sprintf("Your journal digest: %d new %s", v.TotalCount, plural(v.TotalCount, "entry", "entries")), v)
}

func (r *Renderer) Decision(v DecisionView) (Rendered, error) {
	subject := "Your mentor application was not approved"
	if v.Approved {
		subject = "Your mentor application was approved"
	}
	return r.render("decision", subject, v)
}

func (r *Renderer) Request(v RequestView) (Rendered, error) {
	return r.render("request", fmt.Sprintf("%s %s", v.ActorName, v.Status), v)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
