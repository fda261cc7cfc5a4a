package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerManager_AddThenRemove(t *testing.T) {
	tables := DefaultTables()
	m, err := NewLayerManager()
	require.NoError(t, err)
	assert.Equal(t, NoStatLayer, m.State().Mode)

	state, err := m.Add(string(LayerByCount))
	require.NoError(t, err)
	assert.Equal(t, SingleStatLayer, state.Mode)
	assert.Equal(t, LayerByCount, state.Active)

	legend, ok, err := LegendFor(state, tables)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, LayerByCount, legend.Layer)
	assert.Equal(t, "Total Reports", legend.Title)
	assert.Equal(t, BuildLegend(tables[LayerByCount]), legend.Entries)

	state, err = m.Add(string(LayerByDensity))
	require.NoError(t, err)
	assert.Equal(t, MultipleStatLayers, state.Mode)
	assert.Empty(t, state.Active)
	assert.Equal(t, []LayerKind{LayerByCount, LayerByDensity}, state.StatLayers)

	_, ok, err = LegendFor(state, tables)
	require.NoError(t, err)
	assert.False(t, ok, "legend must be hidden with two stat layers")

	state, err = m.Remove(string(LayerByDensity))
	require.NoError(t, err)
	assert.Equal(t, SingleStatLayer, state.Mode)
	assert.Equal(t, LayerByCount, state.Active)

	legend, ok, err = LegendFor(state, tables)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, BuildLegend(tables[LayerByCount]), legend.Entries)

	state, err = m.Remove(string(LayerByCount))
	require.NoError(t, err)
	assert.Equal(t, NoStatLayer, state.Mode)
	_, ok, err = LegendFor(state, tables)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayerManager_Markers(t *testing.T) {
	m, err := NewLayerManager(LayerMarkers)
	require.NoError(t, err)
	assert.Equal(t, NoStatLayer, m.State().Mode)
	assert.Equal(t, []string{LayerMarkers}, m.State().Visible)

	state, err := m.Add("Reports per Population")
	require.NoError(t, err)
	assert.Equal(t, SingleStatLayer, state.Mode)
	assert.Equal(t, LayerByDensity, state.Active)
	assert.Equal(t, []string{string(LayerByDensity), LayerMarkers}, state.Visible)
}

func TestLayerManager_RepeatedEvents(t *testing.T) {
	m, err := NewLayerManager()
	require.NoError(t, err)

	// Duplicate adds and removes of hidden layers do not drift the state.
	_, err = m.Add(string(LayerByCount))
	require.NoError(t, err)
	_, err = m.Add(string(LayerByCount))
	require.NoError(t, err)
	_, err = m.Remove(string(LayerByDensity))
	require.NoError(t, err)

	state := m.State()
	assert.Equal(t, SingleStatLayer, state.Mode)
	assert.Equal(t, []string{string(LayerByCount)}, state.Visible)

	state, err = m.Remove(string(LayerByCount))
	require.NoError(t, err)
	assert.Equal(t, NoStatLayer, state.Mode)
}

func TestLayerManager_SetVisible(t *testing.T) {
	m, err := NewLayerManager(string(LayerByCount))
	require.NoError(t, err)

	state, err := m.SetVisible([]string{"by_density", "by_count", "markers"})
	require.NoError(t, err)
	assert.Equal(t, MultipleStatLayers, state.Mode)

	state, err = m.SetVisible([]string{"by_density"})
	require.NoError(t, err)
	assert.Equal(t, SingleStatLayer, state.Mode)
	assert.Equal(t, LayerByDensity, state.Active)

	t.Run("unknown layer keeps previous state", func(t *testing.T) {
		_, err := m.SetVisible([]string{"by_count", "heatmap"})
		require.ErrorIs(t, err, ErrUnknownLayer)
		assert.Equal(t, LayerByDensity, m.State().Active)

		_, err = m.Add("heatmap")
		require.ErrorIs(t, err, ErrUnknownLayer)
		assert.Equal(t, LayerByDensity, m.State().Active)
	})
}

func TestNewLayerManager_UnknownLayer(t *testing.T) {
	_, err := NewLayerManager("satellite")
	assert.ErrorIs(t, err, ErrUnknownLayer)
}

func TestComputeLayerState(t *testing.T) {
	tests := []struct {
		name    string
		visible []string
		mode    LayerMode
		active  LayerKind
	}{
		{"nothing", nil, NoStatLayer, ""},
		{"markers only", []string{"markers"}, NoStatLayer, ""},
		{"count", []string{"by_count"}, SingleStatLayer, LayerByCount},
		{"count twice", []string{"by_count", "by_count"}, SingleStatLayer, LayerByCount},
		{"both", []string{"by_density", "by_count"}, MultipleStatLayers, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ComputeLayerState(tt.visible)
			assert.Equal(t, tt.mode, s.Mode)
			assert.Equal(t, tt.active, s.Active)
			assert.Equal(t, tt.mode == SingleStatLayer, s.LegendVisible())
		})
	}
}

func TestLegendFor_MissingTable(t *testing.T) {
	state := ComputeLayerState([]string{"by_density"})
	_, ok, err := LegendFor(state, Tables{LayerByCount: DefaultTables()[LayerByCount]})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnknownLayer)
}

func TestEmphasis(t *testing.T) {
	var e Emphasis
	assert.False(t, e.Active())
	assert.Equal(t, DefaultStyle, e.StyleFor(LayerByCount, "Ohio"))

	hovered := e.Emphasize(LayerByCount, "Ohio")
	assert.False(t, e.Active(), "Emphasize must not modify the receiver")
	assert.True(t, hovered.Active())

	assert.Equal(t, HighlightStyle, hovered.StyleFor(LayerByCount, "Ohio"))
	assert.Equal(t, DimmedStyle, hovered.StyleFor(LayerByCount, "Iowa"))
	assert.Equal(t, DefaultStyle, hovered.StyleFor(LayerByDensity, "Iowa"), "other layers are untouched")
	assert.Equal(t, DefaultStyle, hovered.StyleFor(LayerByDensity, "Ohio"))

	assert.Equal(t, 0.2, DimmedStyle.Opacity)
	assert.Equal(t, Emphasis{}, hovered.Reset())
}
