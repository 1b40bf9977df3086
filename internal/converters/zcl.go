package converters

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ZCL cluster names.
const (
	ClusterOnOff     = "genOnOff"
	ClusterLevelCtrl = "genLevelCtrl"
	ClusterColorCtrl = "lightingColorCtrl"
)

// Level and colour temperature limits accepted by the clusters above.
const (
	maxLevel     = 254
	minColorTemp = 150
	maxColorTemp = 500
	maxColorXY   = 65535

	// maxTransitionTime is the largest transtime in tenths of a second.
	maxTransitionTime = 65535
)

// Built-in converters shared by the model definitions.
var (
	OnOff      Converter = onOffConverter{}
	Brightness Converter = brightnessConverter{}
	ColorTemp  Converter = colorTempConverter{}
	ColorXY    Converter = colorXYConverter{}
	Transition Converter = transitionConverter{}
)

// readAttributes builds a foundation read for attrs on cluster.
func readAttributes(cluster string, attrs ...string) Command {
	return Command{
		Cluster: cluster,
		Command: "read",
		Type:    Foundation,
		Payload: map[string]any{"attributes": attrs},
	}
}

// transitionTime reads the optional "transition" key (seconds) and returns it
// in tenths of a second.
func transitionTime(msg Values) int {
	if msg == nil {
		return 0
	}
	v, ok := msg.Get("transition")
	if !ok {
		return 0
	}
	f, ok := toFloat(v)
	if !ok || f < 0 {
		return 0
	}
	return clampRound(f*10, 0, maxTransitionTime)
}

type onOffConverter struct{}

func (onOffConverter) Key() string { return "state" }

func (onOffConverter) Convert(value any, _ Values, kind Kind) (Command, bool) {
	if kind == KindGet {
		return readAttributes(ClusterOnOff, "onOff"), true
	}

	s, ok := value.(string)
	if !ok {
		return Command{}, false
	}
	cmd := strings.ToLower(strings.TrimSpace(s))
	switch cmd {
	case "on", "off", "toggle":
	default:
		return Command{}, false
	}
	return Command{
		Cluster: ClusterOnOff,
		Command: cmd,
		Type:    Functional,
		Payload: map[string]any{},
		Config:  &CommandConfig{DisableDefaultResponse: true},
	}, true
}

type brightnessConverter struct{}

func (brightnessConverter) Key() string { return "brightness" }

func (brightnessConverter) Convert(value any, msg Values, kind Kind) (Command, bool) {
	if kind == KindGet {
		return readAttributes(ClusterLevelCtrl, "currentLevel"), true
	}

	f, ok := toFloat(value)
	if !ok {
		return Command{}, false
	}
	return Command{
		Cluster: ClusterLevelCtrl,
		Command: "moveToLevelWithOnOff",
		Type:    Functional,
		Payload: map[string]any{
			"level":     clampRound(f, 0, maxLevel),
			"transtime": transitionTime(msg),
		},
	}, true
}

type colorTempConverter struct{}

func (colorTempConverter) Key() string { return "color_temp" }

func (colorTempConverter) Convert(value any, msg Values, kind Kind) (Command, bool) {
	if kind == KindGet {
		return readAttributes(ClusterColorCtrl, "colorTemperature"), true
	}

	f, ok := toFloat(value)
	if !ok {
		return Command{}, false
	}
	return Command{
		Cluster: ClusterColorCtrl,
		Command: "moveToColorTemp",
		Type:    Functional,
		Payload: map[string]any{
			"colortemp": clampRound(f, minColorTemp, maxColorTemp),
			"transtime": transitionTime(msg),
		},
	}, true
}

type colorXYConverter struct{}

func (colorXYConverter) Key() string { return "color" }

// Convert accepts {"x": 0.3, "y": 0.4} with both coordinates in [0, 1].
func (colorXYConverter) Convert(value any, msg Values, kind Kind) (Command, bool) {
	if kind == KindGet {
		return readAttributes(ClusterColorCtrl, "currentX", "currentY"), true
	}

	m, ok := value.(map[string]any)
	if !ok {
		return Command{}, false
	}
	x, okX := toFloat(m["x"])
	y, okY := toFloat(m["y"])
	if !okX || !okY || x < 0 || x > 1 || y < 0 || y > 1 {
		return Command{}, false
	}
	return Command{
		Cluster: ClusterColorCtrl,
		Command: "moveToColor",
		Type:    Functional,
		Payload: map[string]any{
			"colorx":    int(math.Round(x * maxColorXY)),
			"colory":    int(math.Round(y * maxColorXY)),
			"transtime": transitionTime(msg),
		},
	}, true
}

// transitionConverter registers "transition" as a known key. It never
// produces a command of its own; other converters read it from the message.
type transitionConverter struct{}

func (transitionConverter) Key() string { return "transition" }

func (transitionConverter) Convert(any, Values, Kind) (Command, bool) {
	return Command{}, false
}

// toFloat accepts JSON numbers in their decoded forms and numeric strings.
// NaN and infinities are rejected.
func toFloat(v any) (float64, bool) {
	f, ok := parseFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// clampRound rounds f and limits it to [lo, hi]. The limit is applied
// before the int conversion so large values cannot overflow.
func clampRound(f float64, lo, hi int) int {
	return int(math.Round(max(float64(lo), min(f, float64(hi)))))
}
