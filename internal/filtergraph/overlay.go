package filtergraph

import (
	"fmt"
	"strconv"
	"strings"
)

// OverlayStyle holds the settings shared by every drawtext filter.
type OverlayStyle struct {
	FontFile string
}

// Window is the time span during which clip Index (1-based) is on screen in
// the concatenated track.
type Window struct {
	Index int
	Start float64
	End   float64
}

// Overlay builds the counter and title drawtext pair for every clip of an
// already concatenated track. Windows are back to back: each starts where
// the previous one ended. Overlays stop at the first clip with an unknown
// duration (<= 0): that clip still plays for its real length, so no later
// window could be placed correctly. It returns a nil graph when nothing can
// be drawn.
func Overlay(clips []Clip, style OverlayStyle) (*Graph, []Window) {
	total := len(clips)
	var (
		filters []Filter
		windows []Window
		offset  float64
	)
	for i, c := range clips {
		if c.Duration <= 0 {
			break
		}
		w := Window{Index: i + 1, Start: offset, End: offset + c.Duration}
		offset = w.End
		windows = append(windows, w)

		enable := "'" + fmt.Sprintf("between(t,%s,%s)", Seconds(w.Start), Seconds(w.End)) + "'"
		filters = append(filters,
			drawText(counterText(w.Index, total), style, counterPlacement, enable),
			drawText(EscapeText(c.Label), style, titlePlacement, enable),
		)
	}
	if len(filters) == 0 {
		return nil, nil
	}
	return &Graph{Chains: []Chain{{Filters: filters}}}, windows
}

type placement struct {
	fontSize  int
	x, y      string
	boxColor  string
	boxBorder int
}

var (
	counterPlacement = placement{fontSize: 60, x: "w-tw-40", y: "40", boxColor: "black@0.6", boxBorder: 10}
	titlePlacement   = placement{fontSize: 48, x: "(w-text_w)/2", y: "h-150", boxColor: "black@0.7", boxBorder: 15}
)

func drawText(text string, style OverlayStyle, p placement, enable string) Filter {
	args := []Arg{
		{Key: "text", Value: "'" + text + "'"},
		{Key: "expansion", Value: "none"},
	}
	if style.FontFile != "" {
		args = append(args, Arg{Key: "fontfile", Value: style.FontFile})
	}
	args = append(args,
		Arg{Key: "fontsize", Value: strconv.Itoa(p.fontSize)},
		Arg{Key: "fontcolor", Value: "white"},
		Arg{Key: "x", Value: p.x},
		Arg{Key: "y", Value: p.y},
		Arg{Key: "box", Value: "1"},
		Arg{Key: "boxcolor", Value: p.boxColor},
		Arg{Key: "boxborderw", Value: strconv.Itoa(p.boxBorder)},
		Arg{Key: "enable", Value: enable},
	)
	return Filter{Name: "drawtext", Args: args}
}

func counterText(i, n int) string {
	return strconv.Itoa(i) + "/" + strconv.Itoa(n)
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `'\\\''`,
	`:`, `\:`,
	"\n", " ",
	"\r", " ",
	"\t", " ",
)

// EscapeText makes s safe to embed in a quoted drawtext value. Quotes,
// colons and backslashes are graph metacharacters; line breaks would split
// the graph. Text expansion is disabled on the filter, so '%' stays literal.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}
