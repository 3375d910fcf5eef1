package protocol

import "strings"

// Class identifies which of the protocol's disjoint message classes a
// received line belongs to.
type Class int

const (
	ClassUnknown      Class = iota // Line matched no known protocol shape
	ClassLoginPrompt               // Device is asking for a credential
	ClassLoginResult               // Device accepted or rejected the login
	ClassQueryReply                // Reply to a '?' query, correlated by name
	ClassControlOK                 // Positive control acknowledgement
	ClassControlError              // Negative control acknowledgement
	ClassNotification              // Unsolicited '~' state-change report
)

// String returns a human-readable name for the message class.
func (c Class) String() string {
	switch c {
	case ClassLoginPrompt:
		return "LoginPrompt"
	case ClassLoginResult:
		return "LoginResult"
	case ClassQueryReply:
		return "QueryReply"
	case ClassControlOK:
		return "ControlOK"
	case ClassControlError:
		return "ControlError"
	case ClassNotification:
		return "Notification"
	default:
		return "Unknown"
	}
}

// Prompt identifies which credential the device is asking for during the
// login handshake.
type Prompt int

const (
	PromptBanner   Prompt = iota // Login banner; no credential expected
	PromptUsername               // Device expects the username line
	PromptPassword               // Device expects the password line
)

// Message is one classified inbound line. Only the fields relevant to its
// Class are populated; Raw always carries the full trimmed line.
type Message struct {
	Class Class

	// Raw is the complete trimmed line as received.
	Raw string

	// Key is the correlation key for ClassQueryReply: the text before the
	// first '=', e.g. "?Firmware" for the line "?Firmware=1.2.3.4".
	Key string

	// Prompt identifies the credential being requested (ClassLoginPrompt).
	Prompt Prompt

	// LoginOK reports whether the login was accepted (ClassLoginResult).
	LoginOK bool

	// Name and Values carry the decoded payload of a notification
	// (ClassNotification), e.g. "OutletStatus" and ["1","1","0"] for the
	// line "~OutletStatus=1,1,0".
	Name   string
	Values []string
}

// Classify determines the message class of one trimmed inbound line.
// Classification follows the protocol's priority order: exact login prompt
// match, exact login result match, '?' query reply, control acknowledgement
// token, '~' notification, and finally unknown.
//
// Parameters:
//   - line: One complete line, already trimmed by the LineFramer
//
// Returns:
//   - The classified Message; Class is ClassUnknown for any line that
//     matches no protocol shape
func Classify(line string) Message {
	switch line {
	case LoginBanner:
		return Message{Class: ClassLoginPrompt, Raw: line, Prompt: PromptBanner}
	case UsernamePrompt:
		return Message{Class: ClassLoginPrompt, Raw: line, Prompt: PromptUsername}
	case PasswordPrompt:
		return Message{Class: ClassLoginPrompt, Raw: line, Prompt: PromptPassword}
	case LoginSuccess:
		return Message{Class: ClassLoginResult, Raw: line, LoginOK: true}
	case LoginFailure:
		return Message{Class: ClassLoginResult, Raw: line, LoginOK: false}
	case ControlOK:
		return Message{Class: ClassControlOK, Raw: line}
	case ControlError:
		return Message{Class: ClassControlError, Raw: line}
	}

	if len(line) == 0 {
		return Message{Class: ClassUnknown, Raw: line}
	}

	switch line[0] {
	case QuerySigil:
		return Message{Class: ClassQueryReply, Raw: line, Key: ReplyKey(line)}
	case NotificationSigil:
		name, values := splitPayload(line[1:])
		return Message{Class: ClassNotification, Raw: line, Name: name, Values: values}
	}

	return Message{Class: ClassUnknown, Raw: line}
}

// ReplyKey extracts the correlation key from a query line or query reply:
// the text before the first '=', or the whole line when no '=' is present.
// The outbound query "?Firmware" and the inbound reply "?Firmware=1.2.3.4"
// share the key "?Firmware".
func ReplyKey(line string) string {
	if i := strings.IndexByte(line, '='); i >= 0 {
		return line[:i]
	}

	return line
}

// splitPayload decodes "Name=v1,v2,..." into its name and value fields.
// A payload without '=' yields the name alone and no values.
func splitPayload(payload string) (string, []string) {
	i := strings.IndexByte(payload, '=')
	if i < 0 {
		return payload, nil
	}

	return payload[:i], strings.Split(payload[i+1:], ",")
}
