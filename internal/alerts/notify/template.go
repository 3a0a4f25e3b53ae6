package notify

import (
	"bytes"
	"errors"
	"strconv"
	"text/template"
	"time"

	alerts "aquatracking/internal/alerts/domain"
	biotopes "aquatracking/internal/biotopes/domain"
	measurements "aquatracking/internal/measurements/domain"
)

const DefaultSubjectTemplate = `Alerte {{.Metric}} - {{.Biotope}}`

const DefaultBodyTemplate = `Bonjour,

La mesure "{{.Metric}}" de votre {{.BiotopeKind}} "{{.Biotope}}" est {{.DirectionWord}} à la valeur {{.BoundLabel}} souhaitée.

Valeur actuelle : {{.Value}}{{.UnitSuffix}}
Valeur {{.BoundLabel}} : {{.Threshold}}{{.UnitSuffix}}
Mesurée le : {{.MeasuredAt}}
{{ if .SettingsURL }}
Vous pouvez modifier les paramètres d'alerte ici : {{.SettingsURL}}
{{ else }}
Vous pouvez modifier les paramètres d'alerte dans les réglages des mesures de votre {{.BiotopeKind}}.
{{ end }}`

// TemplateData provides fields for rendering alert mails.
type TemplateData struct {
	Metric        string
	MetricCode    string
	Unit          string
	UnitSuffix    string
	Biotope       string
	BiotopeID     string
	BiotopeKind   string
	Direction     string
	DirectionWord string
	BoundLabel    string
	Value         string
	Threshold     string
	MeasuredAt    string
	SettingsURL   string
}

// Alert is everything known about a confirmed breach.
type Alert struct {
	Metric      measurements.MetricType
	Owner       biotopes.Owner
	Measurement measurements.Measurement
	Decision    alerts.Decision
}

// Composer renders alert mails.
type Composer struct {
	subject     *template.Template
	body        *template.Template
	settingsURL string
}

// ComposerOption configures the composer.
type ComposerOption func(*composerConfig)

type composerConfig struct {
	subject     string
	body        string
	settingsURL string
}

// WithSubjectTemplate overrides DefaultSubjectTemplate.
func WithSubjectTemplate(tpl string) ComposerOption {
	return func(c *composerConfig) {
		if tpl != "" {
			c.subject = tpl
		}
	}
}

// WithBodyTemplate overrides DefaultBodyTemplate.
func WithBodyTemplate(tpl string) ComposerOption {
	return func(c *composerConfig) {
		if tpl != "" {
			c.body = tpl
		}
	}
}

// WithSettingsURL sets the link to the alert settings page. The biotope id
// is appended as the last path segment.
func WithSettingsURL(url string) ComposerOption {
	return func(c *composerConfig) {
		c.settingsURL = url
	}
}

// NewComposer parses the templates.
func NewComposer(opts ...ComposerOption) (*Composer, error) {
	cfg := composerConfig{subject: DefaultSubjectTemplate, body: DefaultBodyTemplate}
	for _, opt := range opts {
		opt(&cfg)
	}
	subject, err := template.New("alert-subject").Parse(cfg.subject)
	if err != nil {
		return nil, err
	}
	body, err := template.New("alert-body").Parse(cfg.body)
	if err != nil {
		return nil, err
	}
	return &Composer{subject: subject, body: body, settingsURL: cfg.settingsURL}, nil
}

// Compose renders the mail for an alert.
func (c *Composer) Compose(alert Alert) (Message, error) {
	if c == nil || c.subject == nil || c.body == nil {
		return Message{}, errors.New("alert composer: nil template")
	}
	if !alert.Decision.Breached {
		return Message{}, errors.New("alert composer: decision not breached")
	}
	if alert.Owner.Email == "" {
		return Message{}, errors.New("alert composer: empty recipient")
	}
	data := c.templateData(alert)

	var subject, body bytes.Buffer
	if err := c.subject.Execute(&subject, data); err != nil {
		return Message{}, err
	}
	if err := c.body.Execute(&body, data); err != nil {
		return Message{}, err
	}
	return Message{To: alert.Owner.Email, Subject: subject.String(), Body: body.String()}, nil
}

func (c *Composer) templateData(alert Alert) TemplateData {
	metricName := alert.Metric.Name
	if metricName == "" {
		metricName = alert.Measurement.MetricCode
	}
	biotopeName := alert.Owner.BiotopeName
	if biotopeName == "" {
		biotopeName = alert.Measurement.BiotopeID
	}
	unitSuffix := ""
	if alert.Metric.Unit != "" {
		unitSuffix = " " + alert.Metric.Unit
	}
	settingsURL := ""
	if c.settingsURL != "" {
		settingsURL = c.settingsURL + "/" + alert.Measurement.BiotopeID
	}
	return TemplateData{
		Metric:        metricName,
		MetricCode:    alert.Measurement.MetricCode,
		Unit:          alert.Metric.Unit,
		UnitSuffix:    unitSuffix,
		Biotope:       biotopeName,
		BiotopeID:     alert.Measurement.BiotopeID,
		BiotopeKind:   alert.Owner.BiotopeKind.Label(),
		Direction:     string(alert.Decision.Direction),
		DirectionWord: directionWord(alert.Decision.Direction),
		BoundLabel:    boundLabel(alert.Decision.Direction),
		Value:         formatFloat(alert.Measurement.Value),
		Threshold:     formatFloat(alert.Decision.Threshold),
		MeasuredAt:    alert.Measurement.MeasuredAt.UTC().Format(time.RFC3339),
		SettingsURL:   settingsURL,
	}
}

func directionWord(direction alerts.Direction) string {
	switch direction {
	case alerts.DirectionBelowMin:
		return "inférieure"
	case alerts.DirectionAboveMax:
		return "supérieure"
	default:
		return string(direction)
	}
}

func boundLabel(direction alerts.Direction) string {
	switch direction {
	case alerts.DirectionBelowMin:
		return "minimale"
	case alerts.DirectionAboveMax:
		return "maximale"
	default:
		return ""
	}
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
