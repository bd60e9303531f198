// Package filtergraph models ffmpeg filter graphs as typed values and renders
// them to the textual form only when a command line is assembled.
package filtergraph

import (
	"math"
	"strconv"
	"strings"
)

// Arg is one filter option. An empty Key renders as a positional value.
type Arg struct {
	Key   string
	Value string
}

// Filter is a single filter instance such as scale or xfade.
type Filter struct {
	Name string
	Args []Arg
}

func (f Filter) String() string {
	if len(f.Args) == 0 {
		return f.Name
	}
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		if a.Key == "" {
			parts[i] = a.Value
		} else {
			parts[i] = a.Key + "=" + a.Value
		}
	}
	return f.Name + "=" + strings.Join(parts, ":")
}

// Chain is a linear sequence of filters between labelled input and output pads.
// Unlabelled chains bind to the default streams, as with -vf.
type Chain struct {
	Inputs  []string
	Filters []Filter
	Outputs []string
}

func (c Chain) String() string {
	var b strings.Builder
	for _, in := range c.Inputs {
		b.WriteString("[" + in + "]")
	}
	for i, f := range c.Filters {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.String())
	}
	for _, out := range c.Outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

// Graph is an ordered set of chains. A nil Graph means "no filtering".
type Graph struct {
	Chains []Chain
}

// String renders the graph in ffmpeg syntax.
func (g *Graph) String() string {
	if g == nil {
		return ""
	}
	parts := make([]string, len(g.Chains))
	for i, c := range g.Chains {
		parts[i] = c.String()
	}
	return strings.Join(parts, ";")
}

// Count returns how many filters named name the graph contains.
func (g *Graph) Count(name string) int {
	if g == nil {
		return 0
	}
	n := 0
	for _, c := range g.Chains {
		for _, f := range c.Filters {
			if f.Name == name {
				n++
			}
		}
	}
	return n
}

// Clip is the builder input: a clip duration in seconds and a display label.
type Clip struct {
	Duration float64
	Label    string
}

// Scale fits the input inside w x h keeping its aspect ratio.
func Scale(w, h int) Filter {
	return Filter{Name: "scale", Args: []Arg{
		{Value: strconv.Itoa(w)},
		{Value: strconv.Itoa(h)},
		{Key: "force_original_aspect_ratio", Value: "decrease"},
	}}
}

// Pad centres the input on a w x h canvas filled with color.
func Pad(w, h int, color string) Filter {
	return Filter{Name: "pad", Args: []Arg{
		{Value: strconv.Itoa(w)},
		{Value: strconv.Itoa(h)},
		{Value: "(ow-iw)/2"},
		{Value: "(oh-ih)/2"},
		{Value: color},
	}}
}

// SetSAR forces square pixels so clips from different sources stay compatible.
func SetSAR() Filter {
	return Filter{Name: "setsar", Args: []Arg{{Value: "1"}}}
}

// FPS resamples to a constant frame rate.
func FPS(rate int) Filter {
	return Filter{Name: "fps", Args: []Arg{{Value: strconv.Itoa(rate)}}}
}

// XFade blends the end of the first input into the start of the second.
func XFade(transition string, duration, offset float64) Filter {
	return Filter{Name: "xfade", Args: []Arg{
		{Key: "transition", Value: transition},
		{Key: "duration", Value: Seconds(duration)},
		{Key: "offset", Value: Seconds(offset)},
	}}
}

// Concat joins n segments, each with v video and a audio streams.
func Concat(n, v, a int) Filter {
	return Filter{Name: "concat", Args: []Arg{
		{Key: "n", Value: strconv.Itoa(n)},
		{Key: "v", Value: strconv.Itoa(v)},
		{Key: "a", Value: strconv.Itoa(a)},
	}}
}

// Canvas is the normalization chain: fit, letterbox, square pixels, fixed rate.
func Canvas(w, h, rate int) *Graph {
	return &Graph{Chains: []Chain{{
		Filters: []Filter{Scale(w, h), Pad(w, h, "black"), SetSAR(), FPS(rate)},
	}}}
}

// Seconds formats a time value rounded to the millisecond.
func Seconds(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
