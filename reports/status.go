package reports

type Status int

const (
	StatusUnhandled Status = iota
	StatusReviewing
	StatusAccepted
	StatusDenied
)

// ClaimThreshold is how many distinct moderators have to claim a report
// before it's under review
const ClaimThreshold = 2

func (s Status) String() string {
	switch s {
	case StatusUnhandled:
		return "😴 Unhandled"
	case StatusReviewing:
		return "🔎 Reviewing"
	case StatusAccepted:
		return "✅ Accepted"
	case StatusDenied:
		return "❌ Denied"
	}

	return "Unknown"
}

func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDenied
}

func (s Status) Color() int {
	switch s {
	case StatusReviewing:
		return 0xADD8E6
	case StatusAccepted:
		return 0x00FF00
	case StatusDenied:
		return 0xFF0000
	}

	return 0
}

// ClaimStatus is the status of a non terminal report claimed by the given
// number of distinct human moderators
func ClaimStatus(claimers int) Status {
	if claimers >= ClaimThreshold {
		return StatusReviewing
	}

	return StatusUnhandled
}

// Transition is the result of a status change request. From == To means
// nothing was written.
type Transition struct {
	From Status
	To   Status
}

func (t Transition) Changed() bool {
	return t.From != t.To
}
