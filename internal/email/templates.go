package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type nurtureEmailData struct {
	Title     string
	BodyLines []string
}

type appointmentConfirmedEmailData struct {
	Title        string
	Heading      string
	ConsumerName string
	SlotText     string
}

type appointmentReminderEmailData struct {
	Title        string
	Heading      string
	ConsumerName string
	SlotText     string
}

type opsAlertEmailData struct {
	Title     string
	Heading   string
	BodyLines []string
	CTALabel  string
	CTAURL    string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// splitParagraphs turns composed plain text into template paragraphs,
// dropping blank lines.
func splitParagraphs(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}
