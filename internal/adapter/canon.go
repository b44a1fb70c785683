package adapter

// CanonicalizeParams rewrites tool arguments into the wire shape executors
// expect. Unknown parameters always pass through verbatim; dropping them
// silently would hide caller bugs.
func CanonicalizeParams(tool string, args map[string]any) map[string]any {
	switch tool {
	case "set_fill_color", "set_stroke_color":
		return canonicalizeColor(args)
	default:
		return args
	}
}

// canonicalizeColor lifts flat {r,g,b,a?,weight?} arguments into a nested
// color object. Alpha and weight default to 1.
func canonicalizeColor(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	color := map[string]any{"r": 0.0, "g": 0.0, "b": 0.0, "a": 1.0}
	for key, value := range args {
		switch key {
		case "r", "g", "b", "a":
			color[key] = value
		default:
			out[key] = value
		}
	}
	out["color"] = color
	if _, ok := out["weight"]; !ok {
		out["weight"] = 1.0
	}
	return out
}
