package ledger

import "github.com/oklog/ulid/v2"

var referencePrefixes = map[Direction]string{
	DirectionEVCToBank:  "EVC2BANK",
	DirectionBankToEVC:  "BANK2EVC",
	DirectionAdjustment: "ADJUST",
}

// NewReference returns a fresh reference such as EVC2BANK-01J9Z3....
// ULIDs are time ordered and carry 80 bits of randomness per millisecond.
func NewReference(direction Direction) string {
	prefix, ok := referencePrefixes[direction]
	if !ok {
		prefix = "TXN"
	}
	return prefix + "-" + ulid.Make().String()
}
