package reply

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/nurtureai/nurture-go/internal/intent"
)

// Templates holds the outbound message bodies as text/template sources
// over messageData. Operators may override any of them through a YAML
// file; empty fields keep the built-in text.
type Templates struct {
	Acknowledgment    string `yaml:"acknowledgment"`
	Nudge             string `yaml:"nudge"`
	SalesNotification string `yaml:"sales_notification"`
}

// messageData is the rendering context for all outbound templates.
type messageData struct {
	LeadName        string
	LeadEmail       string
	LeadPhone       string
	ProjectName     string
	CampaignName    string
	Channel         string
	GoalText        string
	GoalDescription string
	CustomerMessage string
}

const defaultAcknowledgment = `Hi {{.LeadName}},

Thank you for your interest in {{.ProjectName}}! We've received your request for a {{.GoalText}} and our sales team will be in touch with you shortly to schedule a convenient time.

In the meantime, if you have any questions, please feel free to reply to this email.

Best regards,
NurtureAI Sales Team`

const defaultNudge = `

---

I hope this information helps! If you'd like to learn more or schedule a viewing of {{.ProjectName}}, please let me know and I'll connect you with our sales team.

Best regards,
NurtureAI`

const defaultSalesNotification = `A lead has expressed interest in taking the next step!

Lead Information:
- Name: {{.LeadName}}
- Email: {{.LeadEmail}}
- Phone: {{.LeadPhone}}
- Project: {{.ProjectName}}
- Goal Type: {{.GoalDescription}}

Customer Message:
"{{.CustomerMessage}}"

Campaign Details:
- Campaign: {{.CampaignName}}
- Channel: {{.Channel}}

Please follow up with this lead promptly.

---
This is an automated notification from NurtureAI.`

// LoadTemplates returns the built-in templates, with overrides applied
// from the YAML file at path when one is given. Every template is
// validated against a zero messageData so a broken override fails at
// startup rather than mid-reply.
func LoadTemplates(path string) (Templates, error) {
	t := Templates{
		Acknowledgment:    defaultAcknowledgment,
		Nudge:             defaultNudge,
		SalesNotification: defaultSalesNotification,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Templates{}, fmt.Errorf("read templates %s: %w", path, err)
		}
		var override Templates
		if err := yaml.Unmarshal(raw, &override); err != nil {
			return Templates{}, fmt.Errorf("parse templates %s: %w", path, err)
		}
		if override.Acknowledgment != "" {
			t.Acknowledgment = override.Acknowledgment
		}
		if override.Nudge != "" {
			t.Nudge = override.Nudge
		}
		if override.SalesNotification != "" {
			t.SalesNotification = override.SalesNotification
		}
	}

	for name, src := range map[string]string{
		"acknowledgment":     t.Acknowledgment,
		"nudge":              t.Nudge,
		"sales_notification": t.SalesNotification,
	} {
		if _, err := render(name, src, messageData{}); err != nil {
			return Templates{}, fmt.Errorf("validate %s template: %w", name, err)
		}
	}

	return t, nil
}

func (t Templates) acknowledgment(data messageData) (string, error) {
	return render("acknowledgment", t.Acknowledgment, data)
}

func (t Templates) nudgeSuffix(data messageData) (string, error) {
	return render("nudge", t.Nudge, data)
}

func (t Templates) salesNotification(data messageData) (string, error) {
	return render("sales_notification", t.SalesNotification, data)
}

func render(name, src string, data messageData) (string, error) {
	tmpl, err := template.New(name).Parse(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// goalText is the customer-facing phrase for a goal subtype.
func goalText(goalType string) string {
	switch goalType {
	case intent.GoalViewing:
		return "property viewing"
	case intent.GoalSalesCall:
		return "sales call"
	default:
		return "next step"
	}
}

// goalDescription is the sales-facing label for a goal subtype.
func goalDescription(goalType string) string {
	switch goalType {
	case intent.GoalViewing:
		return "Property Viewing"
	case intent.GoalSalesCall:
		return "Sales Call"
	default:
		return "Next Step"
	}
}
