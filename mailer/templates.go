package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const (
	TemplateNewCommentAlert = "new-comment-admin-alert"
	TemplateReply           = "reply-notification"
	TemplateApproval        = "approval-notification"
	TemplateRejection       = "rejection-notification"
	TemplateSignInLink      = "sign-in-link"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var subjects = map[string]string{
	TemplateNewCommentAlert: "New comment awaiting moderation",
	TemplateReply:           "Someone replied to your comment",
	TemplateApproval:        "Your comment has been published",
	TemplateRejection:       "Your comment was not published",
	TemplateSignInLink:      "Your sign-in link",
}

// Renderer turns a named template and its data into a mail body pair.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Renderer{html: html, text: text}, nil
}

// Render returns subject, HTML and plain text for name.
func (r *Renderer) Render(name string, data any) (string, string, string, error) {
	subject, ok := subjects[name]
	if !ok {
		return "", "", "", fmt.Errorf("unknown mail template %q", name)
	}

	var html bytes.Buffer
	if err := r.html.ExecuteTemplate(&html, name+".html", data); err != nil {
		return "", "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	var text bytes.Buffer
	if err := r.text.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return "", "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	return subject, html.String(), text.String(), nil
}
