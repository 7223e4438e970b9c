package httpapi

import (
	"strconv"
	"strings"
)

func formatMessageID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// splitChannels parses the comma-separated channel list accepted by the
// subscribe endpoint's {channel} path segment.
func splitChannels(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLastSeenID(raw string) int64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
