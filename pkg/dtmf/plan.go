package dtmf

import (
	"fmt"
	"time"
)

const (
	MinFade = 15 * time.Millisecond
	MaxFade = 50 * time.Millisecond

	DefaultToneDuration = 100 * time.Millisecond
)

// ToneBurst describes one dual-tone burst for an external synthesizer.
type ToneBurst struct {
	SymbolPair
	Duration time.Duration
	Fade     time.Duration
}

// FadeFor returns the fade-in/fade-out length used for a burst of duration d:
// a tenth of the burst, clamped to [MinFade, MaxFade].
func FadeFor(d time.Duration) time.Duration {
	fade := d / 10
	if fade > MaxFade {
		return MaxFade
	} else if fade < MinFade {
		return MinFade
	}
	return fade
}

func Plan(pairs []SymbolPair, duration time.Duration) []ToneBurst {
	if duration <= 0 {
		duration = DefaultToneDuration
	}
	fade := FadeFor(duration)
	ret := make([]ToneBurst, len(pairs))
	for i, p := range pairs {
		ret[i] = ToneBurst{SymbolPair: p, Duration: duration, Fade: fade}
	}
	return ret
}

// SoxSynthArgs renders bursts as the effect chain understood by sox and play,
// e.g. `sox -n out.wav <args...>`. Bursts are separated by ":" so each one is
// synthesized as its own effects chain.
func SoxSynthArgs(bursts []ToneBurst) []string {
	args := make([]string, 0, 15*len(bursts))
	for i, b := range bursts {
		if i > 0 {
			args = append(args, ":")
		}
		fade := fmt.Sprintf("%.3f", b.Fade.Seconds())
		args = append(args,
			"synth", fmt.Sprintf("%.3f", b.Duration.Seconds()),
			"sin", fmt.Sprint(b.Low),
			"sin", fmt.Sprint(b.High),
			"remix", "-",
			"gain", "-6",
			"fade", fade, "-0", fade,
		)
	}
	return args
}
