package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/spec-kit/facility-requests/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var severityColors = map[domain.Severity]string{
	domain.SeverityCritical: "#DC2626",
	domain.SeverityHigh:     "#EA580C",
	domain.SeverityMedium:   "#F59E0B",
	domain.SeverityLow:      "#10B981",
}

type labeled struct {
	Label string
	Value any
}

var templates = template.Must(template.New("mail").
	Funcs(template.FuncMap{"field": func(label string, value any) labeled { return labeled{label, value} }}).
	ParseFS(templateFS, "templates/*.html"))

type createdView struct {
	Request       domain.FacilityRequest
	Owner         domain.UserProfile
	SeverityColor string
	Link          string
}

type respondedView struct {
	Request domain.FacilityRequest
	Message string
	Link    string
}

func severityColor(s domain.Severity) string {
	if c, ok := severityColors[s]; ok {
		return c
	}
	return "#6B7280"
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
