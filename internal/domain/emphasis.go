package domain

// RegionStyle is the presentation weighting of a region outline. It carries
// no statistics.
type RegionStyle struct {
	Weight      int     `json:"weight"`
	Color       string  `json:"color"`
	DashArray   string  `json:"dash_array"`
	FillOpacity float64 `json:"fill_opacity"`
	Opacity     float64 `json:"opacity"`
}

var (
	DefaultStyle   = RegionStyle{Weight: 2, Color: "white", DashArray: "3", FillOpacity: 0.7, Opacity: 0.5}
	HighlightStyle = RegionStyle{Weight: 3, Color: "#666", DashArray: "", FillOpacity: 0.9, Opacity: 1}
	DimmedStyle    = RegionStyle{Weight: 2, Color: "white", DashArray: "3", FillOpacity: 0.7, Opacity: 0.2}
)

// Emphasis records the hovered region of one layer. The zero value means
// nothing is emphasized.
type Emphasis struct {
	Layer  LayerKind `json:"layer,omitempty"`
	Region string    `json:"region,omitempty"`
}

// Emphasize returns the emphasis for region on layer. The receiver is left
// unchanged.
func (Emphasis) Emphasize(layer LayerKind, region string) Emphasis {
	return Emphasis{Layer: layer, Region: region}
}

// Reset returns the empty emphasis.
func (Emphasis) Reset() Emphasis {
	return Emphasis{}
}

// Active reports whether any region is emphasized.
func (e Emphasis) Active() bool {
	return e.Region != ""
}

// StyleFor returns the style of a region on a layer. Only siblings on the
// emphasized layer are dimmed; other layers keep the default style.
func (e Emphasis) StyleFor(layer LayerKind, region string) RegionStyle {
	if !e.Active() || layer != e.Layer {
		return DefaultStyle
	}
	if region == e.Region {
		return HighlightStyle
	}
	return DimmedStyle
}
