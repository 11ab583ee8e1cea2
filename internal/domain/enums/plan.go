package enums

type Plan string

const (
	PlanFree Plan = "free"
	PlanPaid Plan = "paid"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPaid:
		return true
	}
	return false
}
