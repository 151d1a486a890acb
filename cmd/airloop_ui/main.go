package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/cbegin/airloop-go"
	"github.com/cbegin/airloop-go/internal/config"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	windowW    = 1000
	windowH    = 760
	minWindowW = 860
	minWindowH = 640

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	glowFrames = 45 // trigger pulse fade, ~0.75s at 60fps
)

var (
	bgColor     = color.RGBA{192, 192, 192, 255}
	panelColor  = color.RGBA{192, 192, 192, 255}
	borderColor = color.RGBA{128, 128, 128, 255}
	buttonColor = color.RGBA{192, 192, 192, 255}

	// 3D bevel colors for old-school embossed look.
	bevelLight  = color.RGBA{255, 255, 255, 255}
	bevelDarker = color.RGBA{64, 64, 64, 255}

	// Sunken panel interiors.
	sunkenBgColor = color.RGBA{24, 24, 32, 255}
	orbitBgColor  = color.RGBA{10, 12, 18, 255}

	ringColor   = color.RGBA{54, 60, 78, 255}
	markerColor = color.RGBA{110, 118, 140, 255}

	sliderFillColor = color.RGBA{0, 0, 128, 255}

	voicePalette = [...]color.RGBA{
		{86, 180, 255, 255},
		{255, 170, 80, 255},
		{140, 235, 140, 255},
		{240, 120, 160, 255},
		{200, 160, 255, 255},
		{255, 230, 110, 255},
		{120, 220, 220, 255},
	}
)

type glow struct {
	tick int
	on   bool
}

type game struct {
	player *airloop.Player
	events <-chan airloop.Event
	voices []airloop.VoiceInfo

	volume         float64
	draggingVolume bool

	glows     []glow
	frameTick int

	status    string
	statusErr bool

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(cfg config.Config) (*game, error) {
	voices := make([]airloop.VoiceDef, len(cfg.Voices))
	for i, v := range cfg.Voices {
		voices[i] = airloop.VoiceDef{Name: v.Name, Pitch: v.Pitch, Period: v.Period}
	}
	opts := []airloop.PlayerOption{
		airloop.WithVoices(voices),
		airloop.WithOutput(airloop.OutputEbiten),
		airloop.WithLookahead(cfg.Lookahead),
		airloop.WithTickInterval(cfg.TickDuration()),
	}
	if cfg.Seed != 0 {
		opts = append(opts, airloop.WithSeed(cfg.Seed))
	}
	pl, err := airloop.NewPlayer(cfg.SampleRate, opts...)
	if err != nil {
		return nil, err
	}
	pl.SetMasterVolume(cfg.Volume)

	g := &game{
		player:    pl,
		events:    pl.Watch(),
		voices:    pl.Voices(),
		volume:    cfg.Volume,
		glows:     make([]glow, len(cfg.Voices)),
		status:    "Ready",
		textCache: make(map[string]*ebiten.Image, 512),
		viewW:     windowW,
		viewH:     windowH,
	}
	return g, nil
}

func (g *game) Update() error {
	g.frameTick++
	g.pollEvents()
	g.handleKeys()
	g.handleMouse()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)

	l := g.layoutRects()
	g.drawSunkenPanel(screen, l.voices)
	g.drawOrbitPanel(screen, l.orbit)
	g.drawButton(screen, l.play, g.playButtonLabel())
	g.drawButton(screen, l.reshuffle, "Reshuffle")
	g.drawVolumeSlider(screen, l.volume)
	g.drawSunkenPanel(screen, l.status)

	g.drawVoiceList(screen, l.voices)
	g.drawOrbits(screen, l.orbit)
	g.drawStatus(screen, l.status)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	if outsideW < minWindowW {
		outsideW = minWindowW
	}
	if outsideH < minWindowH {
		outsideH = minWindowH
	}
	g.viewW = outsideW
	g.viewH = outsideH
	return outsideW, outsideH
}

func (g *game) Close() { _ = g.player.Stop() }

func (g *game) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case airloop.EventNoteStart:
				if ev.VoiceID >= 0 && ev.VoiceID < len(g.glows) {
					g.glows[ev.VoiceID] = glow{tick: g.frameTick, on: true}
				}
			case airloop.EventPlayState:
				if ev.Playing {
					g.setStatus("Playing")
				} else {
					g.setStatus("Paused")
				}
			}
		default:
			return
		}
	}
}

func (g *game) handleKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.togglePlayPause()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.reshuffle()
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.play):
			g.togglePlayPause()
			return
		case pointInRect(mx, my, l.reshuffle):
			g.reshuffle()
			return
		case pointInRect(mx, my, l.volume):
			g.draggingVolume = true
			g.updateVolumeFromMouse(mx, l.volume)
			return
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.draggingVolume = false
	}
	if g.draggingVolume {
		g.updateVolumeFromMouse(mx, l.volume)
	}
}

type uiLayout struct {
	voices, orbit           image.Rectangle
	play, reshuffle, volume image.Rectangle
	status                  image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w := g.viewW
	h := g.viewH
	if w < minWindowW {
		w = minWindowW
	}
	if h < minWindowH {
		h = minWindowH
	}

	pad := 20
	rowH := 44
	statusH := 40

	statusTop := h - pad - statusH
	controlsTop := statusTop - 8 - rowH
	contentBottom := controlsTop - 12

	voicesW := 300
	voicesRect := image.Rect(pad, pad, pad+voicesW, contentBottom)
	orbitRect := image.Rect(voicesRect.Max.X+12, pad, w-pad, contentBottom)

	playRect := image.Rect(pad, controlsTop, pad+130, controlsTop+rowH)
	reshuffleRect := image.Rect(pad+142, controlsTop, pad+320, controlsTop+rowH)
	volRight := pad + 332 + 300
	if volRight > w-pad {
		volRight = w - pad
	}
	volumeRect := image.Rect(pad+332, controlsTop, volRight, controlsTop+rowH)
	statusRect := image.Rect(pad, statusTop, w-pad, statusTop+statusH)

	return uiLayout{
		voices: voicesRect, orbit: orbitRect,
		play: playRect, reshuffle: reshuffleRect, volume: volumeRect,
		status: statusRect,
	}
}

func (g *game) drawVoiceList(screen *ebiten.Image, rect image.Rectangle) {
	g.drawText(screen, "Voices", rect.Min.X+8, rect.Min.Y+8)
	now := g.player.Now()
	top := rect.Min.Y + 8 + lineH*2
	for i, v := range g.voices {
		y := top + i*(lineH*2)
		if y+lineH > rect.Max.Y-8 {
			break
		}
		col := voicePalette[i%len(voicePalette)]
		ebitenutil.DrawRect(screen, float64(rect.Min.X+8), float64(y+4), 10, 10, col)

		phase, err := g.player.PhaseOf(v.ID, now)
		if err != nil {
			continue
		}
		g.drawText(screen, fmt.Sprintf("%-4s %6.2f Hz", v.Name, v.Pitch), rect.Min.X+26, y)
		// Phase counts down to the next trigger.
		remain := phase * v.Period
		g.drawText(screen, fmt.Sprintf("%5.1fs loop, next %4.1fs", v.Period, remain), rect.Min.X+26, y+lineH)
	}
}

func (g *game) drawOrbitPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), orbitBgColor)
	drawSunkenBorder(screen, rect)
}

// drawOrbits renders one ring per voice, innermost shortest period, with a
// dot that completes a revolution per loop. Dots cross the 12 o'clock
// marker exactly when the scheduler fires the voice.
func (g *game) drawOrbits(screen *ebiten.Image, rect image.Rectangle) {
	cx := float64(rect.Min.X+rect.Max.X) / 2
	cy := float64(rect.Min.Y+rect.Max.Y) / 2
	maxR := math.Min(float64(rect.Dx()), float64(rect.Dy()))/2 - 24
	if maxR < 40 || len(g.voices) == 0 {
		return
	}
	minR := maxR * 0.25
	step := 0.0
	if len(g.voices) > 1 {
		step = (maxR - minR) / float64(len(g.voices)-1)
	}

	// 12 o'clock reference marker spanning all rings.
	ebitenutil.DrawRect(screen, cx-1, cy-maxR-12, 2, 14, markerColor)

	now := g.player.Now()
	for i, v := range g.voices {
		r := minR + step*float64(i)
		drawRing(screen, cx, cy, r, ringColor)

		phase, err := g.player.PhaseOf(v.ID, now)
		if err != nil {
			continue
		}
		// Phase 1->0 counts down to the crossing; the dot sweeps clockwise
		// and lands on the marker at phase 0.
		angle := -math.Pi/2 + 2*math.Pi*(1-phase)
		dx := cx + r*math.Cos(angle)
		dy := cy + r*math.Sin(angle)

		col := voicePalette[i%len(voicePalette)]
		size := 5.0
		if i < len(g.glows) && g.glows[i].on {
			age := g.frameTick - g.glows[i].tick
			if age >= 0 && age < glowFrames {
				f := 1 - float64(age)/glowFrames
				size += 6 * f
				ebitenutil.DrawCircle(screen, dx, dy, size+4*f, color.RGBA{col.R, col.G, col.B, uint8(90 * f)})
			} else {
				g.glows[i].on = false
			}
		}
		ebitenutil.DrawCircle(screen, dx, dy, size, col)
	}
}

// drawRing approximates a circle outline with line segments; ebitenutil
// has no stroked circle.
func drawRing(screen *ebiten.Image, cx, cy, r float64, col color.Color) {
	const segments = 72
	px := cx + r
	py := cy
	for i := 1; i <= segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		x := cx + r*math.Cos(a)
		y := cy + r*math.Sin(a)
		ebitenutil.DrawLine(screen, px, py, x, y, col)
		px = x
		py = y
	}
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	msg := "Status: " + g.status
	if g.statusErr {
		msg = "Status: ERROR - " + g.status
	}
	msg += fmt.Sprintf("   clock %7.1fs", g.player.Now())
	maxChars := max(8, (rect.Dx()-16)/charW)
	g.drawText(screen, shortenEnd(msg, maxChars), rect.Min.X+8, rect.Min.Y+6)
}

func (g *game) drawVolumeSlider(screen *ebiten.Image, rect image.Rectangle) {
	g.drawPanel(screen, rect)
	label := fmt.Sprintf("Vol %d%%", int(g.volume*100+0.5))
	g.drawText(screen, label, rect.Min.X+8, rect.Min.Y+8)

	trackX := rect.Min.X + 130
	trackW := rect.Dx() - 146
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	if trackW < 20 {
		return
	}
	// Sunken track groove.
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW), 8, bevelDarker)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW-1), 1, borderColor)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), 1, 7, borderColor)
	// Fill.
	fillW := int(float64(trackW) * clamp(g.volume, 0, 1))
	if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(trackX+1), float64(trackY+1), float64(fillW-1), 6, sliderFillColor)
	}
	// Raised knob.
	knobX := trackX + fillW - 5
	if knobX < trackX-5 {
		knobX = trackX - 5
	}
	if knobX > trackX+trackW-5 {
		knobX = trackX + trackW - 5
	}
	knobRect := image.Rect(knobX, trackY-4, knobX+10, trackY+12)
	ebitenutil.DrawRect(screen, float64(knobRect.Min.X), float64(knobRect.Min.Y), float64(knobRect.Dx()), float64(knobRect.Dy()), panelColor)
	drawBorder(screen, knobRect)
}

func (g *game) updateVolumeFromMouse(mx int, rect image.Rectangle) {
	trackX := rect.Min.X + 130
	trackW := rect.Dx() - 146
	if trackW <= 0 {
		return
	}
	v := clamp(float64(mx-trackX)/float64(trackW), 0, 1)
	g.volume = v
	g.player.SetMasterVolume(v)
	g.setStatus(fmt.Sprintf("Volume: %d%%", int(v*100+0.5)))
}

func (g *game) togglePlayPause() {
	if g.player.IsPlaying() {
		g.player.Pause()
		return
	}
	if err := g.player.Start(); err != nil {
		g.setError(err.Error())
	}
}

func (g *game) reshuffle() {
	g.player.Regenerate()
	g.setStatus("Reshuffled phase offsets")
}

func (g *game) playButtonLabel() string {
	if g.player.IsPlaying() {
		return "Pause"
	}
	return "Play"
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func (g *game) drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
}

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), buttonColor)
	drawBorder(screen, rect)
	labelW := len([]rune(label)) * charW
	x := rect.Min.X + (rect.Dx()-labelW)/2
	y := rect.Min.Y + (rect.Dy()-lineH)/2
	g.drawText(screen, label, x, y)
}

// drawBorder draws a raised 3D bevel (highlight top/left, shadow bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws a sunken 3D bevel (shadow top/left, highlight bottom/right).
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		w := max(1, len([]rune(msg))*7)
		img = ebiten.NewImage(w, 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 3000 {
			g.textCache = make(map[string]*ebiten.Image, 512)
		}
		g.textCache[msg] = img
	}
	// Embossed shadow (dark offset behind text).
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+2), float64(y+2))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(r[:max(0, maxChars)])
	}
	return string(r[:maxChars-3]) + "..."
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func main() {
	cfg := config.Default()
	if len(os.Args) > 1 {
		p, err := filepath.Abs(os.Args[1])
		if err != nil {
			log.Fatalf("resolve %q: %v", os.Args[1], err)
		}
		cfg, err = config.Load(p)
		if err != nil {
			log.Fatalf("load %q: %v", p, err)
		}
	}

	g, err := newGame(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("airloop")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
