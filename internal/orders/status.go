package orders

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusApproved: true, StatusRejected: true, StatusCancelled: true},
	StatusApproved:  {},
	StatusRejected:  {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// Label adalah teks status untuk pesan ke user.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Menunggu konfirmasi admin"
	case StatusApproved:
		return "Disetujui"
	case StatusRejected:
		return "Ditolak"
	case StatusCancelled:
		return "Dibatalkan"
	}
	return string(s)
}
