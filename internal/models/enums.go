package models

// PaymentPlan is the billing plan selected on an enrollment.
type PaymentPlan string

const (
	PlanMonthly    PaymentPlan = "MONTHLY"
	PlanPaidInFull PaymentPlan = "PAID_IN_FULL"
)

// Valid reports whether p is a known plan.
func (p PaymentPlan) Valid() bool {
	return p == PlanMonthly || p == PlanPaidInFull
}

// PaymentStatus is derived from an enrollment's payment history and never stored.
type PaymentStatus string

const (
	StatusCurrent    PaymentStatus = "CURRENT"
	StatusLate       PaymentStatus = "LATE"
	StatusDelinquent PaymentStatus = "DELINQUENT"
)

// CourseKind distinguishes how money flows between a course's professor and the institute.
type CourseKind string

const (
	CourseRental       CourseKind = "RENTAL"
	CourseRevenueShare CourseKind = "REVENUE_SHARE"
)

// PaymentKind is the discriminant of the Payment tagged union.
type PaymentKind string

const (
	PaymentTuition    PaymentKind = "TUITION"
	PaymentRental     PaymentKind = "RENTAL"
	PaymentCommission PaymentKind = "COMMISSION"
)

// MovementDirection classifies a payment from the institute's point of view.
type MovementDirection string

const (
	DirectionIncome  MovementDirection = "INCOME"
	DirectionExpense MovementDirection = "EXPENSE"
)

// MovementCategory groups report lines.
type MovementCategory string

const (
	CategoryTuition    MovementCategory = "TUITION"
	CategoryRental     MovementCategory = "RENTAL"
	CategoryCommission MovementCategory = "COMMISSION"
)

// RoleKind identifies the subtype of a role grant.
type RoleKind string

const (
	RoleStudent       RoleKind = "STUDENT"
	RoleProfessor     RoleKind = "PROFESSOR"
	RoleAdministrator RoleKind = "ADMINISTRATOR"
	RoleOffice        RoleKind = "OFFICE"
	RoleGate          RoleKind = "GATE"
)

// Valid reports whether r is a known role kind.
func (r RoleKind) Valid() bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleAdministrator, RoleOffice, RoleGate:
		return true
	default:
		return false
	}
}

// PersonStatus is the lifecycle state of a person.
type PersonStatus string

const (
	PersonPending   PersonStatus = "PENDING"
	PersonActive    PersonStatus = "ACTIVE"
	PersonInactive  PersonStatus = "INACTIVE"
	PersonWithdrawn PersonStatus = "WITHDRAWN"
)

// BenefitKind is the closed set of discounts an enrollment can carry.
type BenefitKind string

const (
	BenefitNone            BenefitKind = "NONE"
	BenefitSibling         BenefitKind = "SIBLING"
	BenefitStaffFamily     BenefitKind = "STAFF_FAMILY"
	BenefitScholarship     BenefitKind = "SCHOLARSHIP"
	BenefitFullScholarship BenefitKind = "FULL_SCHOLARSHIP"
	BenefitCustom          BenefitKind = "CUSTOM"
)

// Percent returns the discount percentage granted by a standard benefit kind.
// CUSTOM has no fixed percentage and reports ok=false.
func (k BenefitKind) Percent() (percent int, ok bool) {
	switch k {
	case BenefitNone:
		return 0, true
	case BenefitSibling:
		return 10, true
	case BenefitStaffFamily:
		return 25, true
	case BenefitScholarship:
		return 50, true
	case BenefitFullScholarship:
		return 100, true
	case BenefitCustom:
		return 0, false
	default:
		return 0, false
	}
}
