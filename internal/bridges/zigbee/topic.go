package zigbee

import (
	"regexp"
	"strings"

	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
)

// qualifiers is the closed set of sub-endpoint names a topic may carry
// after the device selector.
var qualifiers = map[string]bool{
	"left":         true,
	"right":        true,
	"center":       true,
	"bottom_left":  true,
	"bottom_right": true,
	"top_left":     true,
	"top_right":    true,
}

// IsQualifier reports whether s names a sub-endpoint.
func IsQualifier(s string) bool {
	return qualifiers[s]
}

// Address is the parsed form of a command topic.
type Address struct {
	// DeviceSelector is a friendly name (may contain '/') or an IEEE address.
	DeviceSelector string

	Kind converters.Kind

	// SubEndpoint is a qualifier such as "left", or empty.
	SubEndpoint string
}

// Topic returns the selector with its qualifier, as it appeared on the wire.
func (a Address) Topic() string {
	if a.SubEndpoint == "" {
		return a.DeviceSelector
	}
	return a.DeviceSelector + "/" + a.SubEndpoint
}

// TopicParser recognises command topics of the form
// <base>/<selector>[/<qualifier>]/<set|get>.
type TopicParser struct {
	prefix  string
	pattern *regexp.Regexp
}

// NewTopicParser returns a parser for topics under base.
func NewTopicParser(base string) *TopicParser {
	base = strings.TrimRight(base, "/")
	return &TopicParser{
		prefix:  base + "/",
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `/.+/(set|get)$`),
	}
}

// Parse returns the address encoded in topic, or false if topic is not a
// command topic.
func (p *TopicParser) Parse(topic string) (Address, bool) {
	m := p.pattern.FindStringSubmatch(topic)
	if m == nil {
		return Address{}, false
	}
	kind, _ := converters.ParseKind(m[1])

	path := strings.TrimPrefix(topic, p.prefix)
	path = path[:len(path)-len(m[1])-1]

	addr := Address{DeviceSelector: path, Kind: kind}

	// A trailing qualifier is only split off when a selector remains.
	if i := strings.LastIndexByte(path, '/'); i > 0 && IsQualifier(path[i+1:]) {
		addr.DeviceSelector = path[:i]
		addr.SubEndpoint = path[i+1:]
	}
	return addr, true
}
