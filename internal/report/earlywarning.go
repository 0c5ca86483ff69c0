package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kadkongta/crowd-insight/internal/database"
	"github.com/kadkongta/crowd-insight/internal/notify"
)

// WeatherRisk is the assessed outlook used for the pre-opening warning
type WeatherRisk struct {
	Rain         bool
	PM25High     bool
	PM25Advisory bool
	PM25         *float64
	Temperature  *float64
	Humidity     *float64
}

// Any reports whether any risk warrants a broadcast
func (r WeatherRisk) Any() bool {
	return r.Rain || r.PM25High || r.PM25Advisory
}

// AssessRisk evaluates conditions against the venue's warning rules:
// rain observed or forecast in the description, PM2.5 above 50 µg/m³ as a
// hard risk, above 37 as an advisory.
func AssessRisk(c *notify.Conditions) WeatherRisk {
	risk := WeatherRisk{
		PM25:        c.PM25,
		Temperature: c.Temperature,
		Humidity:    c.Humidity,
	}

	desc := strings.ToLower(c.Description)
	risk.Rain = c.Rain1h > 0 ||
		strings.Contains(desc, "rain") ||
		strings.Contains(desc, "storm") ||
		strings.Contains(desc, "drizzle")

	if c.PM25 != nil {
		risk.PM25High = *c.PM25 > 50
		risk.PM25Advisory = !risk.PM25High && *c.PM25 > 37
	}

	return risk
}

// FormatEarlyWarning renders the warning broadcast, or "" when no risk
func FormatEarlyWarning(risk WeatherRisk) string {
	if !risk.Any() {
		return ""
	}

	var warnings, advice []string

	if risk.Rain {
		warnings = append(warnings, "- Rain expected over the venue")
		advice = append(advice, "- Prepare rain covers for stalls")
		advice = append(advice, "- Watch for slippery walkways")
	}

	if risk.PM25High {
		warnings = append(warnings, fmt.Sprintf("- PM2.5 above standard (%.1f µg/m³)", *risk.PM25))
		advice = append(advice, "- Wear a protective mask")
		advice = append(advice, "- Limit prolonged outdoor activity")
	} else if risk.PM25Advisory {
		warnings = append(warnings, fmt.Sprintf("- PM2.5 rising (%.1f µg/m³)", *risk.PM25))
		advice = append(advice, "- Consider wearing a mask")
	}

	var b strings.Builder
	b.WriteString("Weather warning for today\n\n")
	b.WriteString(strings.Join(warnings, "\n"))
	if risk.Temperature != nil {
		fmt.Fprintf(&b, "\n\nTemperature: %.1f°C", *risk.Temperature)
	}
	if risk.Humidity != nil {
		fmt.Fprintf(&b, "\nHumidity: %.0f%%", *risk.Humidity)
	}
	b.WriteString("\n\nRecommendations:\n")
	b.WriteString(strings.Join(advice, "\n"))
	b.WriteString("\n\nKad Kong Ta Smart Insight")

	return b.String()
}

// DispatchEarlyWarning checks conditions and broadcasts a warning when
// risks are present on an operating day. Every broadcast attempt is logged;
// a quiet day produces nothing.
func (d *Dispatcher) DispatchEarlyWarning(ctx context.Context) error {
	today := d.now()
	if !d.OperatingDay(today) {
		fmt.Printf("[EarlyWarning] %s is not an operating day, skipping\n", today.Format("2006-01-02"))
		return nil
	}

	conditions, err := d.weather.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to assess weather: %w", err)
	}

	risk := AssessRisk(conditions)
	if !risk.Any() {
		fmt.Println("[EarlyWarning] No risks detected")
		return nil
	}

	message := FormatEarlyWarning(risk)
	date := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	d.logDelivery(date, database.DeliveryTypeEarlyWarning, message,
		database.DeliveryStatusPending, nil)

	if err := d.broadcaster.Broadcast(ctx, message); err != nil {
		d.logDelivery(date, database.DeliveryTypeEarlyWarning, message,
			database.DeliveryStatusFailed, err)
		return fmt.Errorf("failed to deliver warning: %w", err)
	}

	d.logDelivery(date, database.DeliveryTypeEarlyWarning, message,
		database.DeliveryStatusSent, nil)

	fmt.Println("[EarlyWarning] Warning delivered")
	return nil
}
