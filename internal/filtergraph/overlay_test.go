package filtergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlay_WindowsAreContiguous(t *testing.T) {
	for _, d := range [][2]float64{{5, 7.25}, {0.04, 31}, {12.5, 0.5}} {
		g, windows := Overlay([]Clip{{Duration: d[0], Label: "A"}, {Duration: d[1], Label: "B"}}, OverlayStyle{})
		require.NotNil(t, g)
		require.Len(t, windows, 2)

		assert.Equal(t, Window{Index: 1, Start: 0, End: d[0]}, windows[0])
		assert.Equal(t, Window{Index: 2, Start: d[0], End: d[0] + d[1]}, windows[1])
		assert.Equal(t, windows[0].End, windows[1].Start, "no gap or overlap")
	}
}

func TestOverlay_Rendering(t *testing.T) {
	g, _ := Overlay([]Clip{{Duration: 5, Label: "A"}, {Duration: 7.25, Label: "B"}}, OverlayStyle{FontFile: "/fonts/bold.ttf"})
	text := g.String()

	assert.Equal(t, 4, g.Count("drawtext"))
	assert.Len(t, g.Chains, 1)
	assert.Empty(t, g.Chains[0].Inputs, "overlay graph binds to the default stream")

	assert.Contains(t, text, "drawtext=text='1/2':expansion=none:fontfile=/fonts/bold.ttf:fontsize=60:fontcolor=white:x=w-tw-40:y=40:box=1:boxcolor=black@0.6:boxborderw=10:enable='between(t,0,5)'")
	assert.Contains(t, text, "drawtext=text='A':expansion=none:fontfile=/fonts/bold.ttf:fontsize=48:fontcolor=white:x=(w-text_w)/2:y=h-150:box=1:boxcolor=black@0.7:boxborderw=15:enable='between(t,0,5)'")
	assert.Contains(t, text, "text='2/2'")
	assert.Contains(t, text, "enable='between(t,5,12.25)'")
}

func TestOverlay_StopsAtFirstUnknownDuration(t *testing.T) {
	g, windows := Overlay([]Clip{{Duration: 4, Label: "A"}, {Duration: 0, Label: "B"}, {Duration: 6, Label: "C"}}, OverlayStyle{})
	require.NotNil(t, g)

	require.Len(t, windows, 1)
	assert.Equal(t, Window{Index: 1, Start: 0, End: 4}, windows[0])

	text := g.String()
	assert.Equal(t, 2, g.Count("drawtext"))
	assert.Contains(t, text, "text='1/3'")
	assert.NotContains(t, text, "text='2/3'")
	assert.NotContains(t, text, "text='3/3'")
	assert.NotContains(t, text, "text='C'")
}

func TestOverlay_LeadingUnknownDrawsNothing(t *testing.T) {
	g, windows := Overlay([]Clip{{Duration: 0, Label: "A"}, {Duration: 5, Label: "B"}}, OverlayStyle{})
	assert.Nil(t, g)
	assert.Empty(t, windows)
}

func TestOverlay_NothingToDraw(t *testing.T) {
	g, windows := Overlay([]Clip{{Duration: 0, Label: "A"}}, OverlayStyle{})
	assert.Nil(t, g)
	assert.Empty(t, windows)
}

func TestEscapeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain title", "plain title"},
		{"it's", `it'\\\''s`},
		{"time: 10:30", `time\: 10\:30`},
		{"two\nlines", "two lines"},
		{`back\slash`, `back\\slash`},
		{"50% off", "50% off"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeText(tt.in), tt.in)
	}

	g, _ := Overlay([]Clip{{Duration: 3, Label: "Don't: stop"}}, OverlayStyle{})
	assert.Contains(t, g.String(), `text='Don'\\\''t\: stop'`)

	g, _ = Overlay([]Clip{{Duration: 3, Label: "50% off %{pts}"}}, OverlayStyle{})
	assert.Contains(t, g.String(), "drawtext=text='50% off %{pts}':expansion=none:")
}
