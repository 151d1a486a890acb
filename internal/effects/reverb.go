package effects

// Reverb is a Schroeder reverb tuned for long ambient washes: a short
// predelay, six damped comb filters and two allpass diffusers.
type Reverb struct {
	predelay delayLine
	combs    [6]dampedComb
	allpass  [2]allpassFilter
	wet      float32
}

type delayLine struct {
	buf []float32
	pos int
}

type dampedComb struct {
	buf   []float32
	pos   int
	fb    float32
	damp  float32
	store float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

// NewReverb builds a reverb.
// roomSize: 0..1 scales the comb delay lengths
// feedback: 0..1 controls decay time
// wet: wet/dry mix 0..1
func NewReverb(sampleRate int, roomSize, feedback, wet float32) *Reverb {
	base := int(float32(sampleRate) * roomSize * 0.06)
	if base < 16 {
		base = 16
	}
	r := &Reverb{wet: clamp(wet, 0, 1)}
	r.predelay.buf = make([]float32, sampleRate/50+1) // ~20ms
	fb := clamp(feedback, 0, 0.97)
	// Mutually prime-ish length ratios keep the tail free of flutter.
	lens := [6]int{base, base * 1087 / 1000, base * 1171 / 1000, base * 1283 / 1000, base * 1399 / 1000, base * 1523 / 1000}
	for i := range r.combs {
		r.combs[i] = dampedComb{
			buf:  make([]float32, lens[i]),
			fb:   fb,
			damp: 0.3,
		}
	}
	apLens := [2]int{base * 331 / 1000, base * 199 / 1000}
	for i := range r.allpass {
		n := apLens[i]
		if n < 1 {
			n = 1
		}
		r.allpass[i] = allpassFilter{buf: make([]float32, n), fb: 0.5}
	}
	return r
}

func (r *Reverb) Process(l, r2 float32) (float32, float32) {
	mono := r.predelay.process((l + r2) * 0.5)
	var out float32
	for i := range r.combs {
		out += r.combs[i].process(mono)
	}
	out /= float32(len(r.combs))
	for i := range r.allpass {
		out = r.allpass[i].process(out)
	}
	return l*(1-r.wet) + out*r.wet, r2*(1-r.wet) + out*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.predelay.buf {
		r.predelay.buf[i] = 0
	}
	r.predelay.pos = 0
	for i := range r.combs {
		c := &r.combs[i]
		for j := range c.buf {
			c.buf[j] = 0
		}
		c.pos = 0
		c.store = 0
	}
	for i := range r.allpass {
		a := &r.allpass[i]
		for j := range a.buf {
			a.buf[j] = 0
		}
		a.pos = 0
	}
}

func (d *delayLine) process(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in
	d.pos++
	if d.pos >= len(d.buf) {
		d.pos = 0
	}
	return out
}

func (c *dampedComb) process(in float32) float32 {
	out := c.buf[c.pos]
	c.store = out*(1-c.damp) + c.store*c.damp
	c.buf[c.pos] = in + c.store*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}
