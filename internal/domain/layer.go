package domain

import (
	"fmt"
	"sort"
	"strings"
)

// LayerMode summarizes how many statistical layers are visible.
type LayerMode string

const (
	NoStatLayer        LayerMode = "none"
	SingleStatLayer    LayerMode = "single"
	MultipleStatLayers LayerMode = "multiple"
)

// LayerState is derived from the full visibility set. Active is set only in
// SingleStatLayer mode.
type LayerState struct {
	Mode       LayerMode   `json:"mode"`
	Active     LayerKind   `json:"active,omitempty"`
	StatLayers []LayerKind `json:"stat_layers"`
	Visible    []string    `json:"visible"`
}

// LegendVisible reports whether exactly one statistical layer is showing.
func (s LayerState) LegendVisible() bool {
	return s.Mode == SingleStatLayer
}

// ComputeLayerState derives the layer state from the names currently visible.
// Names that are not statistical layers (markers) are kept in Visible but do
// not affect the mode.
func ComputeLayerState(visible []string) LayerState {
	seen := make(map[string]bool, len(visible))
	names := make([]string, 0, len(visible))
	for _, v := range visible {
		if !seen[v] {
			seen[v] = true
			names = append(names, v)
		}
	}
	sort.Strings(names)

	stats := make([]LayerKind, 0, len(StatLayers))
	for _, k := range StatLayers {
		if seen[string(k)] {
			stats = append(stats, k)
		}
	}

	s := LayerState{StatLayers: stats, Visible: names}
	switch len(stats) {
	case 0:
		s.Mode = NoStatLayer
	case 1:
		s.Mode = SingleStatLayer
		s.Active = stats[0]
	default:
		s.Mode = MultipleStatLayers
	}
	return s
}

// CanonicalLayerName resolves a layer identifier or display title to the
// name tracked in the visibility set.
func CanonicalLayerName(name string) (string, error) {
	if k, ok := ParseLayerKind(name); ok {
		return string(k), nil
	}
	if strings.EqualFold(strings.TrimSpace(name), LayerMarkers) {
		return LayerMarkers, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLayer, name)
}

// LayerManager tracks layer visibility as reported by the map's layer
// control. Every change recomputes the state from the whole set rather than
// from the delta. It is not safe for concurrent use.
type LayerManager struct {
	visible map[string]bool
	state   LayerState
}

// NewLayerManager starts with the given layers visible.
func NewLayerManager(initial ...string) (*LayerManager, error) {
	m := &LayerManager{}
	if _, err := m.SetVisible(initial); err != nil {
		return nil, err
	}
	return m, nil
}

// Add marks a layer visible.
func (m *LayerManager) Add(name string) (LayerState, error) {
	n, err := CanonicalLayerName(name)
	if err != nil {
		return m.state, err
	}
	next := m.names()
	next = append(next, n)
	return m.SetVisible(next)
}

// Remove marks a layer hidden. Removing a hidden layer is a no-op.
func (m *LayerManager) Remove(name string) (LayerState, error) {
	n, err := CanonicalLayerName(name)
	if err != nil {
		return m.state, err
	}
	next := make([]string, 0, len(m.visible))
	for _, v := range m.names() {
		if v != n {
			next = append(next, v)
		}
	}
	return m.SetVisible(next)
}

// SetVisible replaces the visibility set. On error the previous state is
// kept unchanged.
func (m *LayerManager) SetVisible(names []string) (LayerState, error) {
	visible := make(map[string]bool, len(names))
	for _, name := range names {
		n, err := CanonicalLayerName(name)
		if err != nil {
			return m.state, err
		}
		visible[n] = true
	}
	m.visible = visible
	m.state = ComputeLayerState(m.names())
	return m.state, nil
}

// State returns the current layer state.
func (m *LayerManager) State() LayerState {
	return m.state
}

func (m *LayerManager) names() []string {
	out := make([]string, 0, len(m.visible))
	for n := range m.visible {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Legend is the legend the map shows for the single active statistical layer.
type Legend struct {
	Layer   LayerKind     `json:"layer"`
	Title   string        `json:"title"`
	Entries []LegendEntry `json:"entries"`
	NoData  LegendEntry   `json:"no_data"`
}

// LegendFor builds the legend for a layer state. The second result is false
// when the legend must be hidden: no statistical layer, or more than one.
func LegendFor(state LayerState, tables Tables) (Legend, bool, error) {
	if !state.LegendVisible() {
		return Legend{}, false, nil
	}
	t, err := tables.Get(state.Active)
	if err != nil {
		return Legend{}, false, err
	}
	return Legend{
		Layer:   state.Active,
		Title:   state.Active.Title(),
		Entries: BuildLegend(t),
		NoData:  NoDataEntry(t),
	}, true, nil
}
