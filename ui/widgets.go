package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// barGap is the extra spacing below bar widgets.
const barGap = 2

// Renderer handles all UI drawing with consistent styling.
type Renderer struct {
	Theme Theme
}

// NewRenderer creates a renderer with the default theme.
func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// DrawPanel draws a panel background with border.
func (r *Renderer) DrawPanel(x, y, width, height int32) {
	rl.DrawRectangle(x, y, width, height, r.Theme.PanelBg)
	rl.DrawRectangleLines(x, y, width, height, r.Theme.PanelBorder)
}

// DrawSectionHeader draws a section header and returns the new Y position.
func (r *Renderer) DrawSectionHeader(x, y int32, title string) int32 {
	rl.DrawText(title, x, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)
	return y + r.Theme.LineHeight
}

// DrawLabelValue draws a label and value on the same line.
func (r *Renderer) DrawLabelValue(x, y int32, label, value string) int32 {
	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawText(value, x+r.Theme.LabelWidth, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.Theme.LineHeight
}

// DrawBar draws value as a fraction of rng.
func (r *Renderer) DrawBar(x, y int32, label string, value float32, rng FieldRange, format string, width int32) int32 {
	barX := x + r.Theme.LabelWidth
	barWidth := width - r.Theme.LabelWidth - 60

	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawRectangle(barX, y+2, barWidth, r.Theme.BarHeight, r.Theme.BarBg)

	fillWidth := int32(float32(barWidth) * Fraction(value, rng))
	rl.DrawRectangle(barX, y+2, fillWidth, r.Theme.BarHeight, r.Theme.BarFill)

	rl.DrawText(fmt.Sprintf(format, value), barX+barWidth+5, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.Theme.LineHeight + barGap
}

// DrawCenteredBar draws a bar centred at 0 for values in [-max(|Min|,|Max|), +max].
func (r *Renderer) DrawCenteredBar(x, y int32, label string, value float32, rng FieldRange, format string, width int32) int32 {
	barX := x + r.Theme.LabelWidth
	barWidth := width - r.Theme.LabelWidth - 60

	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawRectangle(barX, y+2, barWidth, r.Theme.BarHeight, r.Theme.BarBg)

	centerX := barX + barWidth/2
	rl.DrawLine(centerX, y+2, centerX, y+2+r.Theme.BarHeight, rl.Color{R: 80, G: 80, B: 80, A: 255})

	half := max(abs32(rng.Min), abs32(rng.Max))
	fillWidth := int32(float32(barWidth/2) * Fraction(abs32(value), FieldRange{Max: half}))

	fillX := centerX
	barColor := r.Theme.BarFillPositive
	if value < 0 {
		fillX = centerX - fillWidth
		barColor = r.Theme.BarFillNegative
	}
	rl.DrawRectangle(fillX, y+2, fillWidth, r.Theme.BarHeight, barColor)

	rl.DrawText(fmt.Sprintf(format, value), barX+barWidth+5, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.Theme.LineHeight + barGap
}

// DrawField renders a field based on its descriptor.
func (r *Renderer) DrawField(x, y int32, fd FieldDescriptor, data any, width int32) int32 {
	format := fd.Format
	if format == "" {
		format = "%.2f"
	}
	var value float32
	if fd.Getter != nil {
		value = fd.Getter(data)
	}

	switch fd.Widget {
	case WidgetText:
		text := fmt.Sprintf(format, value)
		if fd.TextGetter != nil {
			text = fd.TextGetter(data)
		}
		return r.DrawLabelValue(x, y, fd.Label, text)
	case WidgetBar:
		return r.DrawBar(x, y, fd.Label, value, fd.Range, format, width)
	case WidgetCenteredBar:
		return r.DrawCenteredBar(x, y, fd.Label, value, fd.Range, format, width)
	case WidgetSection:
		return r.DrawSectionHeader(x, y, fd.Label)
	case WidgetSpacer:
		return y + 6
	}
	return y
}

// DrawSection renders a section with header and fields.
func (r *Renderer) DrawSection(x, y int32, sd SectionDescriptor, data any, width int32) int32 {
	if sd.Visible != nil && !sd.Visible(data) {
		return y
	}
	if sd.Title != "" {
		y = r.DrawSectionHeader(x, y, sd.Title)
	}
	for _, fd := range sd.Fields {
		if fd.Visible != nil && !fd.Visible(data) {
			continue
		}
		y = r.DrawField(x, y, fd, data, width)
	}
	return y + 4 // Small gap after section
}

// DrawSections draws a panel sized to fit sections and renders them inside it.
func (r *Renderer) DrawSections(x, y, width int32, sections []SectionDescriptor, data any) {
	pad := r.Theme.Padding
	r.DrawPanel(x, y, width, r.SectionsHeight(sections, data)+2*pad)
	cy := y + pad
	for _, sd := range sections {
		cy = r.DrawSection(x+pad, cy, sd, data, width-2*pad)
	}
}

// SectionsHeight returns the height DrawSection would use for each visible
// section, without drawing.
func (r *Renderer) SectionsHeight(sections []SectionDescriptor, data any) int32 {
	var h int32
	for _, sd := range sections {
		if sd.Visible != nil && !sd.Visible(data) {
			continue
		}
		if sd.Title != "" {
			h += r.Theme.LineHeight
		}
		for _, fd := range sd.Fields {
			if fd.Visible != nil && !fd.Visible(data) {
				continue
			}
			h += r.fieldHeight(fd.Widget)
		}
		h += 4
	}
	return h
}

func (r *Renderer) fieldHeight(w WidgetType) int32 {
	switch w {
	case WidgetText, WidgetSection:
		return r.Theme.LineHeight
	case WidgetBar, WidgetCenteredBar:
		return r.Theme.LineHeight + barGap
	case WidgetSpacer:
		return 6
	}
	return 0
}

// Fraction maps v into [0, 1] over rng, clamping outside values.
func Fraction(v float32, rng FieldRange) float32 {
	span := rng.Max - rng.Min
	if !(span > 0) {
		return 0
	}
	f := (v - rng.Min) / span
	if !(f >= 0) {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
