// Field viewer - interactive speed heatmap and energy curve with sliders.
//
// Usage: go run ./cmd/fieldview [--config path]
package main

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"slices"

	rl "github.com/gen2brain/raylib-go/raylib"
	gui "github.com/gen2brain/raylib-go/raygui"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/squall/config"
	"github.com/pthm-cable/squall/logging"
	"github.com/pthm-cable/squall/sim"
	"github.com/pthm-cable/squall/telemetry"
	"github.com/pthm-cable/squall/ui"
)

const (
	windowWidth  = 1100
	windowHeight = 760
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
	plotHeight   = 180
)

// ViewParams holds the values the sliders control.
type ViewParams struct {
	Mu             float32
	SwellAmplitude float32
	StrongWind     float32
	StepsPerFrame  float32
}

func paramsFromConfig(cfg *config.Config) ViewParams {
	p := ViewParams{
		Mu:             float32(cfg.Physics.Mu),
		SwellAmplitude: float32(cfg.Forcing.Swell.Amplitude),
		StepsPerFrame:  1,
	}
	if n := len(cfg.Forcing.WindSchedule); n > 0 {
		p.StrongWind = float32(cfg.Forcing.WindSchedule[n-1].Value)
	}
	return p
}

// apply writes slider values into a copy of base.
func (p ViewParams) apply(base *config.Config) *config.Config {
	cfg := *base
	cfg.Forcing.WindSchedule = slices.Clone(base.Forcing.WindSchedule)
	cfg.Physics.Mu = float64(p.Mu)
	cfg.Forcing.Swell.Amplitude = float64(p.SwellAmplitude)
	if n := len(cfg.Forcing.WindSchedule); n > 0 {
		cfg.Forcing.WindSchedule[n-1].Value = float64(p.StrongWind)
	}
	return &cfg
}

func main() {
	var configPath string
	var fps int

	cmd := &cobra.Command{
		Use:          "fieldview",
		Short:        "Watch the wind field evolve and tune mu and forcing live",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, int32(fps))
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	cmd.Flags().IntVar(&fps, "fps", 30, "Target frames per second")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string, fps int32) error {
	logger, err := logging.New(slog.LevelWarn, logging.FormatText)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	base, err := config.Load(configPath)
	if err != nil {
		return err
	}

	rl.InitWindow(windowWidth, windowHeight, "Squall Field Viewer")
	defer rl.CloseWindow()
	rl.SetTargetFPS(fps)

	v, err := newViewer(base)
	if err != nil {
		return err
	}
	defer v.close()

	for !rl.WindowShouldClose() {
		if err := v.update(); err != nil {
			return err
		}
		v.draw()
	}
	return nil
}

// viewer owns the running simulation and its GPU texture.
type viewer struct {
	base    *config.Config
	params  ViewParams
	sim     *sim.Simulation
	frames  telemetry.FrameTimer
	texture rl.Texture2D
	speeds  []float32
	pixels  []color.RGBA
	maxSeen float32
	playing bool
	dirty   bool // sliders moved since last reset

	hud    *ui.Renderer
	status []ui.SectionDescriptor
}

func newViewer(base *config.Config) (*viewer, error) {
	v := &viewer{
		base:    base,
		params:  paramsFromConfig(base),
		playing: true,
		hud:     ui.NewRenderer(),
	}
	v.status = statusSections(maxWind(base))
	if err := v.reset(); err != nil {
		return nil, err
	}
	return v, nil
}

// reset rebuilds the simulation from the current slider values.
func (v *viewer) reset() error {
	s, err := sim.New(v.params.apply(v.base), sim.Options{})
	if err != nil {
		return err
	}
	if v.sim != nil {
		v.sim.Close()
		rl.UnloadTexture(v.texture)
	}
	v.sim = s

	w, h := s.Domain().Width, s.Domain().Height
	img := rl.GenImageColor(w, h, rl.Black)
	v.texture = rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)

	v.speeds = make([]float32, w*h)
	v.pixels = make([]color.RGBA, w*h)
	v.maxSeen = 0
	v.dirty = false
	v.refreshTexture()
	return nil
}

func (v *viewer) close() {
	v.sim.Close()
	rl.UnloadTexture(v.texture)
}

func (v *viewer) update() error {
	v.frames.Tick()

	if rl.IsKeyPressed(rl.KeySpace) {
		v.playing = !v.playing
	}
	if rl.IsKeyPressed(rl.KeyR) {
		return v.reset()
	}

	if !v.playing || v.sim.Done() {
		return nil
	}
	for i := 0; i < int(v.params.StepsPerFrame) && !v.sim.Done(); i++ {
		if err := v.sim.Step(); err != nil {
			return err
		}
	}
	v.refreshTexture()
	return nil
}

// refreshTexture recomputes |(u, v)| and uploads it as a heatmap.
func (v *viewer) refreshTexture() {
	u, w := v.sim.Field()
	rows, cols := u.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			a, b := u.At(r, c), w.At(r, c)
			s := float32(math.Hypot(a, b))
			if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				s = v.maxSeen
			}
			v.speeds[r*cols+c] = s
			if s > v.maxSeen {
				v.maxSeen = s
			}
		}
	}
	for i, s := range v.speeds {
		var t float32
		if v.maxSeen > 0 {
			t = s / v.maxSeen
		}
		v.pixels[i] = heatColor(t)
	}
	rl.UpdateTexture(v.texture, v.pixels)
}

func (v *viewer) draw() {
	rl.BeginDrawing()
	defer rl.EndDrawing()
	rl.ClearBackground(rl.RayWhite)

	d := v.sim.Domain()
	rl.DrawTexturePro(
		v.texture,
		rl.Rectangle{X: 0, Y: 0, Width: float32(d.Width), Height: float32(d.Height)},
		rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
		rl.Vector2{X: 0, Y: 0},
		0,
		rl.White,
	)
	rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

	statsY := int32(previewSize + 20)
	rl.DrawText("Space: play/pause  R: reset  C: copy YAML", 15, statsY, 14, rl.Gray)
	if cfg := v.sim.Config(); !cfg.Stable() {
		rl.DrawText(fmt.Sprintf("mu*dt = %.3f exceeds %.2f: expect divergence",
			cfg.Derived.DiffusionNumber, config.StableDiffusionNumber), 15, statsY+20, 16, rl.Red)
	}

	v.drawEnergyPlot(rl.Rectangle{X: 10, Y: float32(windowHeight - plotHeight - 10), Width: previewSize, Height: plotHeight})
	v.drawPanel()
}

// drawEnergyPlot draws the energy series on a log scale.
func (v *viewer) drawEnergyPlot(area rl.Rectangle) {
	rl.DrawRectangleLinesEx(area, 1, rl.LightGray)
	rl.DrawText("Turbulent energy (log)", int32(area.X+5), int32(area.Y+4), 12, rl.Gray)

	series := v.sim.Energy()
	if len(series) < 2 {
		return
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, e := range series {
		if e > 0 && !math.IsInf(e, 0) {
			lo = math.Min(lo, math.Log10(e))
			hi = math.Max(hi, math.Log10(e))
		}
	}
	if math.IsInf(lo, 0) {
		return
	}
	if hi-lo < 1e-9 {
		hi = lo + 1
	}

	n := v.sim.Steps()
	point := func(i int, e float64) (rl.Vector2, bool) {
		if !(e > 0) || math.IsInf(e, 0) {
			return rl.Vector2{}, false
		}
		x := area.X + area.Width*float32(i)/float32(n-1)
		y := area.Y + area.Height - area.Height*float32((math.Log10(e)-lo)/(hi-lo))
		return rl.Vector2{X: x, Y: y}, true
	}
	prev, ok := point(0, series[0])
	for i := 1; i < len(series); i++ {
		cur, curOK := point(i, series[i])
		if ok && curOK {
			rl.DrawLineV(prev, cur, rl.DarkBlue)
		}
		prev, ok = cur, curOK
	}
	rl.DrawText(fmt.Sprintf("%.3g", math.Pow(10, hi)), int32(area.X+area.Width-70), int32(area.Y+4), 12, rl.Gray)
	rl.DrawText(fmt.Sprintf("%.3g", math.Pow(10, lo)), int32(area.X+area.Width-70), int32(area.Y+area.Height-16), 12, rl.Gray)
}

func (v *viewer) drawPanel() {
	panelX := float32(previewSize + 20)
	panelY := float32(10)

	rl.DrawText("Field Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
	panelY += 35

	slider := func(label, format string, value *float32, lo, hi float32, resets bool) {
		rl.DrawText(label, int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 18
		nv := gui.SliderBar(
			rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
			fmt.Sprintf(format, lo), fmt.Sprintf(format, hi),
			*value, lo, hi,
		)
		rl.DrawText(fmt.Sprintf(format, *value), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
		if nv != *value {
			*value = nv
			if resets {
				v.dirty = true
			}
		}
		panelY += 35
	}

	slider("Mu (diffusion coefficient)", "%.3f", &v.params.Mu, 0, 3, true)
	slider("Swell amplitude", "%.2f", &v.params.SwellAmplitude, 0, 2, true)
	slider("Strong wind strength", "%.2f", &v.params.StrongWind, 0, 5, true)
	slider("Steps per frame", "%.0f", &v.params.StepsPerFrame, 1, 20, false)

	rl.DrawLine(int32(panelX), int32(panelY), int32(panelX)+int32(panelWidth)-20, int32(panelY), rl.LightGray)
	panelY += 15

	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, toggleText(v.playing, "Pause", "Play")) {
		v.playing = !v.playing
	}
	if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, toggleText(v.dirty, "Apply + Reset", "Reset")) {
		if err := v.reset(); err != nil {
			slog.Error("reset failed", "error", err)
		}
	}
	panelY += 45

	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Step") && !v.sim.Done() {
		if err := v.sim.Step(); err != nil {
			slog.Error("step failed", "error", err)
		}
		v.refreshTexture()
	}
	if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Defaults") {
		v.params = paramsFromConfig(v.base)
		if err := v.reset(); err != nil {
			slog.Error("reset failed", "error", err)
		}
	}
	panelY += 55

	rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
	panelY += 25
	for _, line := range v.yamlLines() {
		rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 16
	}

	panelY += 10
	v.hud.DrawSections(int32(panelX), int32(panelY), panelWidth-20, v.status, v)

	if rl.IsKeyPressed(rl.KeyC) {
		var text string
		for _, line := range v.yamlLines() {
			text += line + "\n"
		}
		rl.SetClipboardText(text)
	}
}

func (v *viewer) yamlLines() []string {
	return []string{
		"physics:",
		fmt.Sprintf("  mu: %.3f", v.params.Mu),
		"forcing:",
		"  swell:",
		fmt.Sprintf("    amplitude: %.2f", v.params.SwellAmplitude),
		fmt.Sprintf("  # last wind_schedule value: %.2f", v.params.StrongWind),
	}
}

// statusSections describes the live run panel. Getters receive the *viewer.
func statusSections(windMax float64) []ui.SectionDescriptor {
	run := func(data any) *sim.Simulation { return data.(*viewer).sim }
	return []ui.SectionDescriptor{
		{
			Title: "Run",
			Fields: []ui.FieldDescriptor{
				{Label: "Step", Widget: ui.WidgetText, TextGetter: func(d any) string {
					return fmt.Sprintf("%d / %d", run(d).Tick(), run(d).Steps())
				}},
				{Label: "Time", Widget: ui.WidgetText, Format: "%.2f", Getter: func(d any) float32 {
					return float32(run(d).Time())
				}},
				{Label: "Energy", Widget: ui.WidgetText, TextGetter: func(d any) string {
					e := run(d).Energy()
					if len(e) == 0 {
						return "-"
					}
					return fmt.Sprintf("%.4g", e[len(e)-1])
				}},
				{Label: "Max speed", Widget: ui.WidgetText, Format: "%.3f", Getter: func(d any) float32 {
					return d.(*viewer).maxSeen
				}},
				{Label: "FPS", Widget: ui.WidgetText, Format: "%.0f", Getter: func(d any) float32 {
					return float32(d.(*viewer).frames.FPS())
				}},
				{Label: "Steps/s", Widget: ui.WidgetText, Format: "%.0f", Getter: func(d any) float32 {
					return float32(run(d).PerfStats().StepsPerSecond)
				}},
			},
		},
		{
			Title: "Regime",
			Fields: []ui.FieldDescriptor{
				{Label: "Wind", Widget: ui.WidgetBar, Range: ui.FieldRange{Max: float32(windMax)}, Getter: func(d any) float32 {
					return float32(run(d).Regime().WindStrength)
				}},
				{Label: "Impulse", Widget: ui.WidgetText, TextGetter: func(d any) string {
					return toggleText(run(d).Regime().ImpulseActive, "active", "off")
				}},
				{Label: "Finished", Widget: ui.WidgetText, TextGetter: func(any) string { return "yes" },
					Visible: func(d any) bool { return run(d).Done() }},
			},
		},
	}
}

// maxWind returns the largest wind schedule value, used to scale the wind bar.
func maxWind(cfg *config.Config) float64 {
	m := 1.0
	for _, w := range cfg.Forcing.WindSchedule {
		m = math.Max(m, w.Value)
	}
	return m
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

// heatColor maps v in [0,1] to a dark blue -> cyan -> yellow -> white gradient.
func heatColor(v float32) color.RGBA {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	var r, g, b uint8
	if v < 0.25 {
		// Dark blue to blue
		t := v / 0.25
		r = uint8(10 + t*30)
		g = uint8(20 + t*60)
		b = uint8(60 + t*100)
	} else if v < 0.5 {
		// Blue to cyan
		t := (v - 0.25) / 0.25
		r = uint8(40 + t*20)
		g = uint8(80 + t*120)
		b = uint8(160 + t*40)
	} else if v < 0.75 {
		// Cyan to yellow-green
		t := (v - 0.5) / 0.25
		r = uint8(60 + t*140)
		g = uint8(200 - t*40)
		b = uint8(200 - t*150)
	} else {
		// Yellow-green to white
		t := (v - 0.75) / 0.25
		r = uint8(200 + t*55)
		g = uint8(160 + t*95)
		b = uint8(50 + t*205)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
