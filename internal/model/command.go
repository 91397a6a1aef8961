package model

type CommandKind int

const (
	Place CommandKind = iota + 1
	PlaceBracket
	Modify
	Cancel
	ExitBySymbol
	StopBySymbol
	TargetBySymbol
	ExitBracket
)

func (k CommandKind) String() string {
	switch k {
	case Place:
		return "place"
	case PlaceBracket:
		return "place_bracket"
	case Modify:
		return "modify"
	case Cancel:
		return "cancel"
	case ExitBySymbol:
		return "exit_by_symbol"
	case StopBySymbol:
		return "stop_by_symbol"
	case TargetBySymbol:
		return "target_by_symbol"
	case ExitBracket:
		return "exit_bracket"
	}
	return "unknown"
}

// Command is an immutable value produced once per external request.
// The dispatcher takes per-account copies before filling account-specific
// fields such as quantity, so a Command is never mutated after creation.
type Command struct {
	Kind CommandKind

	// Place / PlaceBracket: order template with the requested base quantity,
	// scaled per account before submission. LotSize applies to Place only.
	Order   OrderRequest
	LotSize int

	// Modify / Cancel
	Filters       OrderFilters
	Modifications Modifications
	N             int

	// ExitBySymbol / StopBySymbol / TargetBySymbol / ExitBracket
	Symbol       string
	Product      string
	Percent      float64
	TriggerPrice float64
	LimitPrice   float64
	First        bool
}
