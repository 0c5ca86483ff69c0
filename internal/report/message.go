package report

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/kadkongta/crowd-insight/internal/database"
)

var dailyReportTemplate = template.Must(template.New("daily").Parse(`Daily crowd report
{{.Date}}

Visitors
- Peak: {{.Max}} people
- Average: {{.Avg}} people
- Low: {{.Min}} people
- Samples: {{.Samples}}

Weather: {{.Weather}}{{if .Temperature}} ({{.Temperature}}°C){{end}}
PM2.5: {{.PM25}} ({{.PM25Status}})

Kad Kong Ta Smart Insight`))

type dailyReportView struct {
	Date        string
	Max         int
	Avg         int
	Min         int
	Samples     int
	Weather     string
	Temperature string
	PM25        string
	PM25Status  string
}

// FormatDailyReport renders the broadcast text for a report
func FormatDailyReport(report *database.DailyReport) string {
	view := dailyReportView{
		Date:       report.ReportDate.Format("Monday, 2 January 2006"),
		Max:        report.MaxPeople,
		Avg:        report.AvgPeople,
		Min:        report.MinPeople,
		Samples:    report.TotalSamples,
		Weather:    report.WeatherSummary,
		PM25:       "no data",
		PM25Status: report.PM25Status,
	}
	if view.Weather == "" {
		view.Weather = "no data"
	}
	if report.TemperatureAvg != nil {
		view.Temperature = fmt.Sprintf("%.1f", *report.TemperatureAvg)
	}
	if report.PM25Avg != nil {
		view.PM25 = fmt.Sprintf("%.1f µg/m³", *report.PM25Avg)
	}

	var buf bytes.Buffer
	if err := dailyReportTemplate.Execute(&buf, view); err != nil {
		// Template and view are fixed shapes; this cannot fail in practice
		return fmt.Sprintf("Daily crowd report %s: peak %d, avg %d, low %d",
			view.Date, view.Max, view.Avg, view.Min)
	}

	return buf.String()
}
