package util

import (
	"fmt"
	"regexp"
	"strconv"
)

// portRangeRe matches AOS chassis/slot/port range notation, e.g. "1/2/1-4".
var portRangeRe = regexp.MustCompile(`^(\d+)/(\d+)/(\d+)-(\d+)$`)

// ExpandPortRange expands compressed chassis/slot/port range notation into
// individual port identifiers:
//
//	"1/2/1-4" -> ["1/2/1", "1/2/2", "1/2/3", "1/2/4"]
//
// Tokens that are not ranges are returned unchanged as a single element,
// so callers can apply it to every port token they encounter.
func ExpandPortRange(token string) []string {
	m := portRangeRe.FindStringSubmatch(token)
	if m == nil {
		return []string{token}
	}

	chassis, _ := strconv.Atoi(m[1])
	slot, _ := strconv.Atoi(m[2])
	start, _ := strconv.Atoi(m[3])
	end, _ := strconv.Atoi(m[4])
	if end < start {
		return []string{token}
	}

	ports := make([]string, 0, end-start+1)
	for p := start; p <= end; p++ {
		ports = append(ports, fmt.Sprintf("%d/%d/%d", chassis, slot, p))
	}
	return ports
}
