package filtergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_SingleClipIsPassthrough(t *testing.T) {
	g, err := Transition([]Clip{{Duration: 10}}, 0.5)
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.Equal(t, "", g.String())
}

func TestTransition_NoClips(t *testing.T) {
	_, err := Transition(nil, 0.5)
	assert.ErrorIs(t, err, ErrNoClips)
}

func TestTransition_TwoClips(t *testing.T) {
	g, err := Transition([]Clip{{Duration: 5}, {Duration: 6}}, 0.5)
	require.NoError(t, err)
	assert.Equal(t,
		"[0:v][1:v]xfade=transition=fade:duration=0.5:offset=4.5[v1];[0:a][1:a]concat=n=2:v=0:a=1[aout]",
		g.String())
	assert.Equal(t, "v1", VideoOut(2))
}

func TestTransition_ThreeClipsChain(t *testing.T) {
	g, err := Transition([]Clip{{Duration: 5}, {Duration: 6}, {Duration: 4}}, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 2, g.Count("xfade"))
	assert.Equal(t, 1, g.Count("concat"))
	require.Len(t, g.Chains, 3)

	first, second := g.Chains[0], g.Chains[1]
	assert.Equal(t, []string{"0:v", "1:v"}, first.Inputs)
	assert.Equal(t, []string{first.Outputs[0], "2:v"}, second.Inputs, "second fade consumes the first fade's output")
	assert.Equal(t, []string{VideoOut(3)}, second.Outputs)

	// offset_k = sum of previous durations - k*fade
	assert.Equal(t, "10", second.Filters[0].Args[2].Value)

	assert.Equal(t, []string{"0:a", "1:a", "2:a"}, g.Chains[2].Inputs)
	assert.Equal(t, []string{AudioOut}, g.Chains[2].Outputs)
}

func TestTransition_RejectsShortClips(t *testing.T) {
	_, err := Transition([]Clip{{Duration: 5}, {Duration: 0}}, 0.5)
	assert.ErrorIs(t, err, ErrDegenerateDuration)

	_, err = Transition([]Clip{{Duration: 0.5}, {Duration: 5}}, 0.5)
	assert.ErrorIs(t, err, ErrDegenerateDuration)
}

func TestTransition_RejectsNonPositiveFade(t *testing.T) {
	_, err := Transition([]Clip{{Duration: 5}, {Duration: 5}}, 0)
	assert.Error(t, err)
}
