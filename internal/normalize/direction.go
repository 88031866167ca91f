package normalize

import (
	"regexp"

	"github.com/sells-group/cdr-insight/internal/model"
)

// Direction and event-type words are matched on word boundaries so that a
// value like "internet" can never register as "in".
var (
	outgoingRE = regexp.MustCompile(`(?i)\b(out|outgoing|outbound|mo|dialed|dialled)\b`)
	incomingRE = regexp.MustCompile(`(?i)\b(in|incoming|inbound|mt|received)\b`)

	smsRE  = regexp.MustCompile(`(?i)\b(sms|smso|smsi|smsmo|smsmt|text)\b`)
	dataRE = regexp.MustCompile(`(?i)\b(data|gprs|internet)\b`)
	callRE = regexp.MustCompile(`(?i)\b(call|voice|volte)\b`)
)

// ParseDirection resolves direction from the explicit direction cell first;
// only when that yields nothing is the event-type cell consulted (carrier
// exports often encode direction inside the call type, e.g. "SMS-IN").
func ParseDirection(dirCell, typeCell string) model.Direction {
	if d := directionWords(dirCell); d != model.DirectionUnknown {
		return d
	}
	return directionWords(typeCell)
}

func directionWords(s string) model.Direction {
	if s == "" {
		return model.DirectionUnknown
	}
	switch {
	case outgoingRE.MatchString(s):
		return model.DirectionOutgoing
	case incomingRE.MatchString(s):
		return model.DirectionIncoming
	default:
		return model.DirectionUnknown
	}
}

// ParseEventType classifies the event-type cell. An empty cell defaults to
// call; a populated but unrecognized one is unknown.
func ParseEventType(s string) model.EventType {
	if s == "" {
		return model.EventCall
	}
	switch {
	case smsRE.MatchString(s):
		return model.EventSMS
	case dataRE.MatchString(s):
		return model.EventData
	case callRE.MatchString(s):
		return model.EventCall
	default:
		return model.EventUnknown
	}
}
