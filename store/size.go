package store

import (
	"regexp"
	"strconv"
	"strings"

	"objectarchive/blunder"
)

var sizeRE = regexp.MustCompile(`^\s*([0-9]*\.?[0-9]+)\s*([kKmMgG]?)`)

// ParseSize parses a human-readable buffer size such as "512", "1.5G", or
// "250m" into a byte count. A trailing k/K/m/M/g/G suffix is interpreted
// as decimal (×10³/10⁶/10⁹), not binary — this is the one point where
// go-humanize's own ParseBytes can't be used directly, since it defaults
// to binary/IEC suffix semantics (1k == 1024) rather than the decimal
// convention this archive's config format commits to. Only the first
// suffix character is significant; trailing garbage after it is ignored.
// A parse that would otherwise yield zero is forced up to 1 byte.
func ParseSize(s string) (uint64, error) {
	m := sizeRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, blunder.NewError(blunder.InvalidArgError, "store: could not parse size %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, blunder.AddError(err, blunder.InvalidArgError)
	}

	switch m[2] {
	case "k", "K":
		value *= 1e3
	case "m", "M":
		value *= 1e6
	case "g", "G":
		value *= 1e9
	}

	n := uint64(value)
	if n == 0 {
		n = 1
	}

	return n, nil
}
