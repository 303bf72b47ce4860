// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	// Simple multipart message
	boundary := "boundary-studioflow"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// AssignmentData holds data for the task assignment template
type AssignmentData struct {
	AppName    string
	UserName   string
	TaskTitle  string
	Department string
	TaskURL    string
}

// EscalationData holds data for the revision escalation template
type EscalationData struct {
	AppName       string
	TaskTitle     string
	RevisionCount int
	Cap           int
	TaskURL       string
}

// SendAssignmentEmail notifies a user that a task has been assigned to them
func (s *Service) SendAssignmentEmail(to, userName, taskTitle, department, taskURL string) error {
	data := AssignmentData{
		AppName:    "StudioFlow",
		UserName:   userName,
		TaskTitle:  taskTitle,
		Department: department,
		TaskURL:    taskURL,
	}

	subject := fmt.Sprintf("New task assigned: %s", taskTitle)
	html, err := renderTemplate(assignmentEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render assignment template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendEscalationEmail notifies leads that a task has exceeded its revision cap
func (s *Service) SendEscalationEmail(to []string, taskTitle string, revisionCount, cap int, taskURL string) error {
	data := EscalationData{
		AppName:       "StudioFlow",
		TaskTitle:     taskTitle,
		RevisionCount: revisionCount,
		Cap:           cap,
		TaskURL:       taskURL,
	}

	subject := fmt.Sprintf("Revision cap exceeded: %s", taskTitle)
	html, err := renderTemplate(escalationEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render escalation template: %w", err)
	}

	return s.SendHTMLEmail(to, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const assignmentEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New task assigned</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .meta { background: #f5f7fa; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.UserName}},</h2>

    <p>A task has been assigned to you:</p>

    <div class="meta">
        <strong>{{.TaskTitle}}</strong><br>
        Department: {{.Department}}
    </div>

    {{if .TaskURL}}
    <p>
        <a href="{{.TaskURL}}" class="button">Open Task</a>
    </p>
    {{end}}

    <div class="footer">
        <p>You are receiving this because you have a {{.AppName}} account.</p>
    </div>
</body>
</html>`

const escalationEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Revision cap exceeded</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #cc3300; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #cc3300; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .warning { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Revision cap exceeded</h2>

    <div class="warning">
        <strong>{{.TaskTitle}}</strong> has been sent back for revision
        {{.RevisionCount}} times, over the cap of {{.Cap}}. The task is still
        in the normal workflow, but it may need a conversation with the client.
    </div>

    {{if .TaskURL}}
    <p>
        <a href="{{.TaskURL}}" class="button">Review Task</a>
    </p>
    {{end}}

    <div class="footer">
        <p>You are receiving this because you lead work in this department.</p>
    </div>
</body>
</html>`
