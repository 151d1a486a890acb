package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

var (
	otoContextOnce sync.Once
	otoContext     *oto.Context
	otoContextErr  error
	otoSampleRate  int
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoContextOnce.Do(func() {
		otoSampleRate = sampleRate
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
		})
		if err != nil {
			otoContextErr = err
			return
		}
		<-ready
		otoContext = ctx
	})
	if otoContextErr != nil {
		return nil, otoContextErr
	}
	if otoSampleRate != sampleRate {
		return nil, fmt.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoSampleRate, sampleRate)
	}
	return otoContext, nil
}

// OtoBackend plays through a plain oto context for headless binaries that
// never start an ebiten game loop.
type OtoBackend struct {
	player     *oto.Player
	reader     *StreamReader
	sampleRate int
}

func NewOtoBackend(sampleRate int, source SampleSource) (*OtoBackend, error) {
	ctx, err := sharedOtoContext(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	reader := NewStreamReader(source)
	return &OtoBackend{
		player:     ctx.NewPlayer(reader),
		reader:     reader,
		sampleRate: sampleRate,
	}, nil
}

func (b *OtoBackend) Play()           { b.player.Play() }
func (b *OtoBackend) Pause()          { b.player.Pause() }
func (b *OtoBackend) IsPlaying() bool { return b.player.IsPlaying() }

// Position is derived from frames pulled off the stream; it runs ahead of
// the speaker by at most the device buffer.
func (b *OtoBackend) Position() time.Duration {
	return time.Duration(float64(b.reader.Frames()) / float64(b.sampleRate) * float64(time.Second))
}

func (b *OtoBackend) Stop() error {
	b.player.Pause()
	if err := b.player.Close(); err != nil {
		return fmt.Errorf("error closing oto player: %w", err)
	}
	return b.reader.Close()
}
