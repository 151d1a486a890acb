package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbegin/airloop-go"
	"github.com/cbegin/airloop-go/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML voice-set file (default: built-in seven voices)")
		duration   = flag.Float64("duration", 0, "stop after N seconds (0 = play until interrupted)")
		seed       = flag.Int64("seed", 0, "fix the phase-offset seed; 0 draws a fresh arrangement")
		volume     = flag.Float64("volume", 0, "master volume scalar (overrides the config file)")
		renderPath = flag.String("render", "", "render to a WAV file instead of playing (requires -duration)")
		logLevel   = flag.String("log", "error", "log level: debug|info|error|none")
		noReverb   = flag.Bool("no-reverb", false, "bypass the master-bus reverb")
		quiet      = flag.Bool("quiet", false, "suppress per-note output")
	)
	flag.Parse()

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	voices := make([]airloop.VoiceDef, len(cfg.Voices))
	for i, v := range cfg.Voices {
		voices[i] = airloop.VoiceDef{Name: v.Name, Pitch: v.Pitch, Period: v.Period}
	}

	opts := []airloop.PlayerOption{
		airloop.WithVoices(voices),
		airloop.WithOutput(airloop.OutputOto),
		airloop.WithLookahead(cfg.Lookahead),
		airloop.WithTickInterval(cfg.TickDuration()),
		airloop.WithReverb(!*noReverb),
		airloop.WithLogging(os.Stderr, *logLevel),
	}
	switch {
	case *seed != 0:
		opts = append(opts, airloop.WithSeed(*seed))
	case cfg.Seed != 0:
		opts = append(opts, airloop.WithSeed(cfg.Seed))
	}

	if *renderPath != "" {
		if *duration <= 0 {
			log.Fatal("-render requires a positive -duration")
		}
		if err := renderToFile(*renderPath, cfg.SampleRate, *duration, opts); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("rendered %.1fs to %s\n", *duration, *renderPath)
		return
	}

	pl, err := airloop.NewPlayer(cfg.SampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	vol := cfg.Volume
	if *volume > 0 {
		vol = *volume
	}
	pl.SetMasterVolume(vol)

	events := pl.Watch()
	if err := pl.Start(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("playing %d voices at %d Hz; ctrl-c to stop\n", len(voices), cfg.SampleRate)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(time.Duration(*duration * float64(time.Second)))
	}
	infos := pl.Voices()
	for {
		select {
		case ev := <-events:
			if ev.Kind == airloop.EventNoteStart && !*quiet {
				fmt.Printf("%8.2fs  %s\n", ev.At, infos[ev.VoiceID].Name)
			}
		case <-sig:
			fmt.Println("\nstopping")
			shutdown(pl)
			return
		case <-timeout:
			shutdown(pl)
			return
		}
	}
}

func shutdown(pl *airloop.Player) {
	if err := pl.Stop(); err != nil {
		log.Printf("stop: %v", err)
	}
}

func resolveConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func renderToFile(path string, sampleRate int, seconds float64, opts []airloop.PlayerOption) error {
	samples, err := airloop.RenderSamples(sampleRate, seconds, opts...)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := airloop.EncodeWAVFloat32LE(f, samples, sampleRate, 2); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
