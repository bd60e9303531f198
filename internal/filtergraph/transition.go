package filtergraph

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNoClips            = errors.New("filtergraph: no clips")
	ErrDegenerateDuration = errors.New("filtergraph: clip too short for transition")
)

// AudioOut is the label of the concatenated audio stream.
const AudioOut = "aout"

// VideoOut returns the label of the final crossfade output for n clips.
func VideoOut(n int) string {
	return "v" + strconv.Itoa(n-1)
}

// Transition chains n-1 crossfades of length fade seconds. The k-th fade
// takes the output of the previous one (input 0 for the first) and input k.
// Audio is concatenated across all inputs without blending. A single clip
// needs no graph and yields nil.
func Transition(clips []Clip, fade float64) (*Graph, error) {
	n := len(clips)
	switch {
	case n == 0:
		return nil, ErrNoClips
	case n == 1:
		return nil, nil
	case fade <= 0:
		return nil, fmt.Errorf("filtergraph: fade must be positive, got %v", fade)
	}
	for i, c := range clips {
		if c.Duration <= fade {
			return nil, fmt.Errorf("%w: clip %d lasts %ss, fade is %ss", ErrDegenerateDuration, i+1, Seconds(c.Duration), Seconds(fade))
		}
	}

	g := &Graph{}
	prev := "0:v"
	elapsed := clips[0].Duration
	for k := 1; k < n; k++ {
		out := "v" + strconv.Itoa(k)
		offset := elapsed - float64(k)*fade
		g.Chains = append(g.Chains, Chain{
			Inputs:  []string{prev, strconv.Itoa(k) + ":v"},
			Filters: []Filter{XFade("fade", fade, offset)},
			Outputs: []string{out},
		})
		prev = out
		elapsed += clips[k].Duration
	}

	audio := Chain{Filters: []Filter{Concat(n, 0, 1)}, Outputs: []string{AudioOut}}
	for i := 0; i < n; i++ {
		audio.Inputs = append(audio.Inputs, strconv.Itoa(i)+":a")
	}
	g.Chains = append(g.Chains, audio)
	return g, nil
}
