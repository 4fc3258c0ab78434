package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type digestRow struct {
	AccountName    string
	EstimateNumber string
	RenewalDate    string
	Timing         string
	Duplicates     bool
}

type renewalDigestEmailData struct {
	baseEmailData
	Items []digestRow
}

func digestRows(items []DigestItem) []digestRow {
	rows := make([]digestRow, 0, len(items))
	for _, it := range items {
		name := it.AccountName
		if name == "" {
			name = it.AccountID
		}
		rows = append(rows, digestRow{
			AccountName:    name,
			EstimateNumber: it.EstimateNumber,
			RenewalDate:    it.RenewalDate,
			Timing:         timingLabel(it.DaysUntilRenewal),
			Duplicates:     it.HasDuplicates,
		})
	}
	return rows
}

func timingLabel(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%d day(s) overdue", -days)
	case days == 0:
		return "due today"
	default:
		return fmt.Sprintf("in %d day(s)", days)
	}
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
