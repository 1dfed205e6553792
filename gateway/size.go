package gateway

// DefaultSize is the edge length used when neither the request nor the
// hint names one.
const DefaultSize = 32

// Size is a width/height pair as sent by a front end. Non-positive
// dimensions are unset.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Square returns a Size with both dimensions set to n.
func Square(n int) Size { return Size{Width: n, Height: n} }

// edge returns the smaller positive dimension, the single positive one, or 0.
func (s Size) edge() int {
	switch {
	case s.Width > 0 && s.Height > 0:
		return min(s.Width, s.Height)
	case s.Width > 0:
		return s.Width
	case s.Height > 0:
		return s.Height
	default:
		return 0
	}
}

// ResolveSize picks the icon edge length: the requested size wins over the
// hinted one, which wins over DefaultSize.
func ResolveSize(requested, hinted Size) int {
	if n := requested.edge(); n > 0 {
		return n
	}
	if n := hinted.edge(); n > 0 {
		return n
	}
	return DefaultSize
}
