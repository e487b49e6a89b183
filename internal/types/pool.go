package types

// Pool identifies which candidate population a booking is offered to.
type Pool string

const (
	PoolDriver Pool = "driver"
	PoolLead   Pool = "lead"
)

func (p Pool) Valid() bool { return p == PoolDriver || p == PoolLead }

// PackageType classifies bookings and the subscription plans that qualify a
// candidate for them.
type PackageType string

const (
	PackageLocal      PackageType = "LOCAL"
	PackageOutstation PackageType = "OUTSTATION"
	PackageAllPremium PackageType = "ALL_PREMIUM"
)

func (t PackageType) Valid() bool {
	switch t {
	case PackageLocal, PackageOutstation, PackageAllPremium:
		return true
	}
	return false
}
