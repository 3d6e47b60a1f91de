// Package report выводит ход мониторинга в консоль.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"energy-monitor/internal/models"
)

const separatorWidth = 60

// Console консольный отчет о работе монитора
type Console struct {
	mu  sync.Mutex
	out io.Writer

	title    lipgloss.Style
	phase    lipgloss.Style
	ok       lipgloss.Style
	subtle   lipgloss.Style
	warning  lipgloss.Style
	danger   lipgloss.Style
	label    lipgloss.Style
	severity map[models.Severity]lipgloss.Style
}

// NewConsole создает отчет. Цвета зависят от возможностей out.
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)

	warning := r.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	danger := r.NewStyle().Foreground(lipgloss.Color("#FF0055")).Bold(true)

	return &Console{
		out:     out,
		title:   r.NewStyle().Foreground(lipgloss.Color("#874BFD")).Bold(true),
		phase:   r.NewStyle().Foreground(lipgloss.Color("#874BFD")).Underline(true),
		ok:      r.NewStyle().Foreground(lipgloss.Color("#00FF99")),
		subtle:  r.NewStyle().Foreground(lipgloss.Color("#64748B")),
		warning: warning,
		danger:  danger,
		label:   r.NewStyle().Foreground(lipgloss.Color("#64748B")).Bold(true),
		severity: map[models.Severity]lipgloss.Style{
			models.SeverityLow:      r.NewStyle().Foreground(lipgloss.Color("#E2E8F0")),
			models.SeverityMedium:   r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
			models.SeverityHigh:     warning,
			models.SeverityCritical: danger,
		},
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) field(name string, value any) string {
	return fmt.Sprintf("  %s %v\n", c.label.Render(name+":"), value)
}

// Title заголовок запуска
func (c *Console) Title() {
	c.printf("%s\n\n", c.title.Render("=== Energy Monitoring System ==="))
}

// Connected база данных подключена
func (c *Console) Connected(driver string) {
	c.printf("%s\n\n", c.ok.Render(fmt.Sprintf("✓ Connected to %s", driver)))
}

// SensorAdded датчик добавлен в сеть
func (c *Console) SensorAdded(id, location string) {
	c.printf("%s\n", c.ok.Render(fmt.Sprintf("✓ Sensor %s added (%s)", id, location)))
}

// Phase заголовок фазы
func (c *Console) Phase(n int, title string) {
	c.printf("\n%s\n", c.phase.Render(fmt.Sprintf("Phase %d: %s", n, title)))
}

// Collected число собранных показаний для базовой линии
func (c *Console) Collected(count int) {
	c.printf("%s\n", c.ok.Render(fmt.Sprintf("✓ %d readings collected", count)))
}

// BaselineReady базовая линия рассчитана
func (c *Console) BaselineReady(b models.Baseline) {
	c.printf("%s\n", c.ok.Render(fmt.Sprintf("✓ %s: mean = %.2f kWh, threshold = [%.2f, %.2f]",
		b.SensorID, b.Mean, b.ThresholdLow, b.ThresholdHigh)))
}

// BaselineMissing недостаточно показаний для базовой линии
func (c *Console) BaselineMissing(sensorID string) {
	c.printf("%s\n", c.warning.Render(fmt.Sprintf("! %s: not enough readings for a baseline", sensorID)))
}

// Separator горизонтальная линия
func (c *Console) Separator() {
	c.printf("%s\n", c.subtle.Render(strings.Repeat("-", separatorWidth)))
}

// Anomaly подробности обнаруженной аномалии
func (c *Console) Anomaly(a models.Anomaly) {
	sev, ok := c.severity[a.Severity]
	if !ok {
		sev = c.warning
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(c.danger.Render("⚠ ANOMALY DETECTED!"))
	b.WriteString("\n")
	b.WriteString(c.field("Sensor", a.SensorID))
	b.WriteString(c.field("Type", a.Kind))
	b.WriteString(c.field("Severity", sev.Render(string(a.Severity))))
	b.WriteString(c.field("Consumption", fmt.Sprintf("%.2f kWh", a.Consumption)))
	b.WriteString(c.field("Expected range", a.ExpectedRange.String()+" kWh"))
	c.printf("%s", b.String())
}

// CycleNormal все показания цикла в норме
func (c *Console) CycleNormal(cycle int) {
	c.printf("Cycle %d: %s\n", cycle, c.ok.Render("all readings normal"))
}

// StatsHeader заголовок итоговой статистики
func (c *Console) StatsHeader() {
	c.printf("\n%s\n\n", c.title.Render("=== Final Statistics ==="))
}

// Stats агрегаты по датчику
func (c *Console) Stats(s models.Stats) {
	var b strings.Builder
	b.WriteString(s.SensorID + ":\n")
	b.WriteString(c.field("Readings", s.Count))
	b.WriteString(c.field("Average consumption", fmt.Sprintf("%.2f kWh", s.Avg)))
	b.WriteString(c.field("Min", fmt.Sprintf("%.2f kWh", s.Min)))
	b.WriteString(c.field("Max", fmt.Sprintf("%.2f kWh", s.Max)))
	b.WriteString("\n")
	c.printf("%s", b.String())
}

// Done работа завершена
func (c *Console) Done() {
	c.printf("%s\n", c.ok.Render("✓ Done"))
}
