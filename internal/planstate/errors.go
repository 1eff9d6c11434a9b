package planstate

import "errors"

// Sentinel errors for plan state operations.
var (
	ErrNoPlan             = errors.New("no plan")
	ErrRebalanceInFlight  = errors.New("rebalance already in progress")
	ErrGenerationInFlight = errors.New("generation already in progress")
	ErrInvalidVariant     = errors.New("variant index out of range")
	ErrInvalidStatus      = errors.New("invalid task status")
	ErrPlanReplaced       = errors.New("plan was replaced while rebalancing")
)
