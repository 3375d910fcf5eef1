package protocol

import (
	"fmt"
	"strings"
)

// Query formats a parameterless query command, e.g. Query("Firmware")
// returns "?Firmware". The line terminator is appended by the transport
// writer, not here.
//
// Parameters:
//   - name: The bare command name, without sigil
//
// Returns:
//   - The formatted query line, or an error if the name is invalid
func Query(name string) (string, error) {
	if err := validateToken(name); err != nil {
		return "", fmt.Errorf("invalid query name: %w", err)
	}

	return string(QuerySigil) + name, nil
}

// QueryArg formats a query carrying a single argument, e.g.
// QueryArg("OutletName", "3") returns "?OutletName=3".
//
// Parameters:
//   - name: The bare command name, without sigil
//   - arg: The argument placed after '='
//
// Returns:
//   - The formatted query line, or an error if name or arg is invalid
func QueryArg(name, arg string) (string, error) {
	if err := validateToken(name); err != nil {
		return "", fmt.Errorf("invalid query name: %w", err)
	}
	if err := validateArg(arg); err != nil {
		return "", fmt.Errorf("invalid query argument: %w", err)
	}

	return fmt.Sprintf("%c%s=%s", QuerySigil, name, arg), nil
}

// Control formats a control command, e.g. Control("OutletSet", "3", "ON")
// returns "!OutletSet=3,ON". With no args the bare "!Name" form is produced.
//
// Parameters:
//   - name: The bare command name, without sigil
//   - args: Comma-joined arguments placed after '='
//
// Returns:
//   - The formatted control line, or an error if name or any arg is invalid
func Control(name string, args ...string) (string, error) {
	if err := validateToken(name); err != nil {
		return "", fmt.Errorf("invalid control name: %w", err)
	}

	if len(args) == 0 {
		return string(ControlSigil) + name, nil
	}

	for _, a := range args {
		if err := validateArg(a); err != nil {
			return "", fmt.Errorf("invalid control argument: %w", err)
		}
	}

	return fmt.Sprintf("%c%s=%s", ControlSigil, name, strings.Join(args, ",")), nil
}

// ValidateOutbound checks that a fully formatted line is safe to put on the
// wire: non-empty, carrying the query or control sigil, and free of embedded
// line terminators that would be framed as a second command by the device.
//
// Parameters:
//   - line: The formatted command line, without trailing newline
//
// Returns:
//   - nil if the line is well formed, a descriptive error otherwise
func ValidateOutbound(line string) error {
	if line == "" {
		return fmt.Errorf("empty command")
	}
	if line[0] != QuerySigil && line[0] != ControlSigil {
		return fmt.Errorf("command %q must start with %q or %q", line, QuerySigil, ControlSigil)
	}
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("command %q contains a line terminator", line)
	}

	return nil
}

// validateToken rejects names that would break framing or key correlation.
func validateToken(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}
	if strings.ContainsAny(name, "=,\r\n ") {
		return fmt.Errorf("name %q contains a reserved character", name)
	}

	return nil
}

// validateArg rejects argument values that would break framing or the
// comma-delimited field layout.
func validateArg(arg string) error {
	if strings.ContainsAny(arg, ",\r\n") {
		return fmt.Errorf("argument %q contains a reserved character", arg)
	}

	return nil
}
