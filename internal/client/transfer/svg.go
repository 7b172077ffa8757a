package transfer

import "github.com/microcosm-cc/bluemonday"

// svgPolicy strips scripts, event handlers and foreign objects from SVG
// documents before they can reach a renderer.
var svgPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"svg", "g", "defs", "symbol", "use", "title", "desc",
		"path", "rect", "circle", "ellipse", "line", "polyline", "polygon",
		"text", "tspan", "linearGradient", "radialGradient", "stop",
		"clipPath", "mask", "pattern",
	)
	p.AllowAttrs(
		"id", "class", "viewBox", "xmlns", "width", "height",
		"x", "y", "x1", "y1", "x2", "y2", "cx", "cy", "r", "rx", "ry",
		"d", "points", "fill", "fill-rule", "fill-opacity",
		"stroke", "stroke-width", "stroke-linecap", "stroke-linejoin",
		"stroke-dasharray", "stroke-opacity", "transform", "opacity",
		"offset", "stop-color", "stop-opacity", "gradientUnits",
		"gradientTransform", "clip-path", "clip-rule",
	).Globally()
	return p
}()

func sanitizeSVG(data []byte) []byte {
	return svgPolicy.SanitizeBytes(data)
}
