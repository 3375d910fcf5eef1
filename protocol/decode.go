package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// SplitReply decodes a raw query reply line into its command name and its
// comma-delimited fields, e.g. "?OutletStatus=1,1,0" yields "OutletStatus"
// and ["1", "1", "0"]. A reply that carries no '=' yields the bare name and
// no fields.
//
// Parameters:
//   - raw: The full reply line as delivered by the correlation layer
//
// Returns:
//   - The command name without its sigil
//   - The payload fields, nil when the reply has no payload
//   - An error if raw is not a query reply line
func SplitReply(raw string) (string, []string, error) {
	if raw == "" || raw[0] != QuerySigil {
		return "", nil, fmt.Errorf("not a query reply: %q", raw)
	}

	name, values := splitPayload(raw[1:])
	if name == "" {
		return "", nil, fmt.Errorf("query reply %q has no name", raw)
	}

	return name, values, nil
}

// ReplyValue decodes a reply that carries a single field and returns it,
// e.g. "?Firmware=1.2.3.4" yields "1.2.3.4".
//
// Parameters:
//   - raw: The full reply line
//
// Returns:
//   - The single payload field, or an error if the reply has no payload
func ReplyValue(raw string) (string, error) {
	_, fields, err := SplitReply(raw)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("query reply %q has no value", raw)
	}

	return strings.Join(fields, ","), nil
}

// ParseBools converts the device's "1"/"0" flag fields into booleans,
// e.g. ["1", "1", "0"] yields [true, true, false].
//
// Parameters:
//   - fields: Payload fields as returned by SplitReply
//
// Returns:
//   - One boolean per field, or an error on the first field that is
//     neither "1" nor "0"
func ParseBools(fields []string) ([]bool, error) {
	out := make([]bool, len(fields))
	for i, f := range fields {
		switch f {
		case "1":
			out[i] = true
		case "0":
			out[i] = false
		default:
			return nil, fmt.Errorf("field %d: %q is not a boolean flag", i, f)
		}
	}

	return out, nil
}

// ParseInts converts integer payload fields, e.g. outlet indexes or counts.
//
// Parameters:
//   - fields: Payload fields as returned by SplitReply
//
// Returns:
//   - One int per field, or an error on the first non-integer field
func ParseInts(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("field %d: %q is not an integer", i, f)
		}
		out[i] = n
	}

	return out, nil
}

// ParseFloats converts numeric payload fields such as the power metrics
// reply ("?PowerStatus=0.52,61.1,117.5").
//
// Parameters:
//   - fields: Payload fields as returned by SplitReply
//
// Returns:
//   - One float64 per field, or an error on the first non-numeric field
func ParseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %q is not a number", i, f)
		}
		out[i] = n
	}

	return out, nil
}
