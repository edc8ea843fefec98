package orders

type Status string

const (
	StatusReceived        Status = "RECEIVED"
	StatusConfirmed       Status = "CONFIRMED"
	StatusHandedToCourier Status = "HANDED_TO_COURIER"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
	StatusReturned        Status = "RETURNED"
)

// The CRM can move a lead several pipeline stages at once between two
// webhook deliveries, so every forward jump from a live state is legal.
// Terminal states accept nothing; that is what makes webhook redelivery
// safe against double restocks.
var validNext = map[Status]map[Status]bool{
	StatusReceived: {
		StatusConfirmed:       true,
		StatusHandedToCourier: true,
		StatusCompleted:       true,
		StatusCancelled:       true,
		StatusReturned:        true,
	},
	StatusConfirmed: {
		StatusHandedToCourier: true,
		StatusCompleted:       true,
		StatusCancelled:       true,
		StatusReturned:        true,
	},
	StatusHandedToCourier: {
		StatusCompleted: true,
		StatusCancelled: true,
		StatusReturned:  true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusReturned:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsTerminal reports whether no further transitions are allowed out of s.
func (s Status) IsTerminal() bool {
	return len(validNext[s]) == 0
}

// Restocks reports whether entering s returns the ordered quantity to stock.
func (s Status) Restocks() bool {
	return s == StatusCancelled || s == StatusReturned
}
