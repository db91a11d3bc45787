package player

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// The speaker runs at a fixed rate; tracks with another rate are resampled.
const speakerRate = beep.SampleRate(44100)

// output is where decoded audio goes.
type output interface {
	Init() error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

var (
	speakerOnce sync.Once
	speakerErr  error
)

// speakerOutput is the system speaker, initialized on first use.
type speakerOutput struct{}

func (speakerOutput) Init() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return speakerErr
}

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Clear()               { speaker.Clear() }
func (speakerOutput) Lock()                { speaker.Lock() }
func (speakerOutput) Unlock()              { speaker.Unlock() }
