package protocol

// Refusal codes carried in CONNECTION_REFUSED errors.
const (
	RefusedInvalidSlot         = "InvalidSlot"
	RefusedInvalidPassword     = "InvalidPassword"
	RefusedInvalidGame         = "InvalidGame"
	RefusedIncompatibleVersion = "IncompatibleVersion"
	RefusedSlotAlreadyTaken    = "SlotAlreadyTaken"
)

var knownRefusals = map[string]struct{}{
	RefusedInvalidSlot:         {},
	RefusedInvalidPassword:     {},
	RefusedInvalidGame:         {},
	RefusedIncompatibleVersion: {},
	RefusedSlotAlreadyTaken:    {},
}

func IsKnownRefusal(code string) bool {
	_, ok := knownRefusals[code]
	return ok
}
