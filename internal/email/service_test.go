package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "noreply@studio.test",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.studio.test",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.studio.test",
				Port: "587",
				From: "noreply@studio.test",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if got := svc.IsConfigured(); got != tt.expected {
				t.Fatalf("IsConfigured() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSendFailsWhenUnconfigured(t *testing.T) {
	svc := NewService(Config{})

	if err := svc.SendEmail([]string{"a@studio.test"}, "subject", "body"); err == nil {
		t.Fatal("expected error when email is not configured")
	}
	if err := svc.SendHTMLEmail([]string{"a@studio.test"}, "subject", "<p>body</p>"); err == nil {
		t.Fatal("expected error when email is not configured")
	}
}

func TestAssignmentTemplateRenders(t *testing.T) {
	html, err := renderTemplate(assignmentEmailTemplate, AssignmentData{
		AppName:    "StudioFlow",
		UserName:   "Maya",
		TaskTitle:  "Spring campaign hero shot",
		Department: "photography",
		TaskURL:    "https://studio.test/tasks/tsk_1",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{"Maya", "Spring campaign hero shot", "photography", "https://studio.test/tasks/tsk_1"} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered template missing %q", want)
		}
	}
}

func TestAssignmentTemplateOmitsButtonWithoutURL(t *testing.T) {
	html, err := renderTemplate(assignmentEmailTemplate, AssignmentData{
		AppName:   "StudioFlow",
		UserName:  "Maya",
		TaskTitle: "Spring campaign hero shot",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(html, "Open Task") {
		t.Fatal("button should be omitted when no task URL is set")
	}
}

func TestEscalationTemplateRenders(t *testing.T) {
	html, err := renderTemplate(escalationEmailTemplate, EscalationData{
		AppName:       "StudioFlow",
		TaskTitle:     "Homepage redesign",
		RevisionCount: 4,
		Cap:           3,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{"Homepage redesign", "4", "cap of 3"} {
		if !strings.Contains(html, want) {
			t.Fatalf("rendered template missing %q", want)
		}
	}
}
