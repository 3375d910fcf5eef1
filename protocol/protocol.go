// Package protocol implements the line-oriented text protocol spoken by
// networked power-distribution units: framing of the inbound byte stream
// into discrete lines, classification of each line into its message class
// (login prompt, login result, query reply, control acknowledgement,
// unsolicited notification), formatting of outbound query and control
// commands, and decoding of the comma-delimited reply payloads.
package protocol

// DefaultPort is the TCP port the device listens on. The device family
// speaks this protocol on the standard telnet port.
const DefaultPort = 23

// Login handshake strings sent by the device. Prompts are answered with a
// credential line; results terminate the handshake.
const (
	LoginBanner    = "Please Login to Continue"
	UsernamePrompt = "Username:"
	PasswordPrompt = "Password:"
	LoginSuccess   = "Successfully Logged In!"
	LoginFailure   = "Invalid Login"
)

// Control acknowledgement tokens. The device answers every control command
// with exactly one of these.
const (
	ControlOK    = "OK"
	ControlError = "#Error"
)

// Message sigils. The first byte of a line determines its direction of
// meaning: queries and their replies carry '?', control commands '!', and
// device-initiated notifications '~'.
const (
	QuerySigil        = '?'
	ControlSigil      = '!'
	NotificationSigil = '~'
)
