// Package output provides styled terminal output helpers (success, error,
// warning, entity formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fieldops/fieldsync/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	stateStyles  = map[models.OrderState]lipgloss.Style{
		models.OrderNew:                   lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.OrderSentToStorekeeper:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.OrderVerifiedByStorekeeper: lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		models.OrderCompleted:             lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.OrderRejected:              lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.OrderCancelled:             lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		models.OrderSentToChecker:         lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.OrderCheckerIsChecking:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// FormatState formats an order state with color
func FormatState(s models.OrderState) string {
	style, ok := stateStyles[s]
	if !ok {
		return fmt.Sprintf("[%s]", s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// FormatOrderShort formats an order in short format
func FormatOrderShort(o *models.Order) string {
	var parts []string
	parts = append(parts, titleStyle.Render(o.ID))
	if o.Number != "" {
		parts = append(parts, o.Number)
	}
	parts = append(parts, fmt.Sprintf("customer %d", o.CustomerID))
	if o.Total > 0 {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("%.2f", o.Total)))
	}
	parts = append(parts, FormatState(o.State))
	if !o.Viewed {
		parts = append(parts, warningStyle.Render("new"))
	}
	return strings.Join(parts, "  ")
}

// FormatStockOutLine formats a joined out-of-stock row
func FormatStockOutLine(j *models.StockOutJoined) string {
	var parts []string
	parts = append(parts, titleStyle.Render(j.Line.ID))
	parts = append(parts, fmt.Sprintf("product %d", j.Line.ProductID))
	parts = append(parts, fmt.Sprintf("qty %.0f", j.Line.Quantity))
	parts = append(parts, subtleStyle.Render(fmt.Sprintf("[%s]", j.Line.State)))
	if j.Master != nil {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("warehouse %d", j.Master.WarehouseID)))
	} else {
		parts = append(parts, warningStyle.Render("(master pending)"))
	}
	return strings.Join(parts, "  ")
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
