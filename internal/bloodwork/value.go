package bloodwork

import (
	"fmt"
	"strconv"
	"strings"
)

// parsedValue is the outcome of decoding one raw lab value string.
type parsedValue struct {
	Value float64
	// Reduced marks values derived from a comparison qualifier rather
	// than a direct measurement.
	Reduced bool
}

// parseValue decodes a raw numeric lab value. Labs report censored
// results with comparison qualifiers: "<X" means below the assay's
// detection limit and is folded to X/2, ">X" means above the reporting
// ceiling and is folded to 1.1*X. Both foldings carry reduced
// confidence. Thousands separators are stripped before parsing.
func parseValue(raw string) (parsedValue, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return parsedValue{}, fmt.Errorf("empty value")
	}

	var qualifier byte
	if s[0] == '<' || s[0] == '>' {
		qualifier = s[0]
		s = strings.TrimSpace(s[1:])
	}
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return parsedValue{}, fmt.Errorf("not a number: %q", raw)
	}

	switch qualifier {
	case '<':
		return parsedValue{Value: v / 2, Reduced: true}, nil
	case '>':
		return parsedValue{Value: v * 1.1, Reduced: true}, nil
	default:
		return parsedValue{Value: v}, nil
	}
}
