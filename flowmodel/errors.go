package flowmodel

import "fmt"

// FuseLimitViolation is returned when an allocation exceeds the grid fuse
// limits. ComputeFlows also returns it when a snapshot imports and exports
// at once, or when the EV power lies outside the EVSE's permitted band.
type FuseLimitViolation struct {
	Detail string
}

func (e *FuseLimitViolation) Error() string {
	return fmt.Sprintf("fuse limit violation: %s", e.Detail)
}

// BatterySoCOutOfRange is returned when the battery power lies outside the
// physical charge or discharge limit.
type BatterySoCOutOfRange struct {
	Detail string
}

func (e *BatterySoCOutOfRange) Error() string {
	return fmt.Sprintf("battery soc out of range: %s", e.Detail)
}

// InvalidInputs is returned when PowerFlowInputs fails basic sanity checks
// before the model runs.
type InvalidInputs struct {
	Detail string
}

func (e *InvalidInputs) Error() string {
	return fmt.Sprintf("invalid inputs: %s", e.Detail)
}

// PowerBalanceViolation indicates the model produced a snapshot that does
// not balance. This is always a programmer error and must never reach
// production; the controller treats it as a fatal invariant breach.
type PowerBalanceViolation struct {
	Snapshot PowerSnapshot
	Detail   string
}

func (e *PowerBalanceViolation) Error() string {
	return fmt.Sprintf("power balance violation (internal): %s", e.Detail)
}

// ConstraintConflict indicates that safety requires an action the physical
// layer forbids (or vice versa). The controller responds by falling back
// to house-only safe mode.
type ConstraintConflict struct {
	Detail string
}

func (e *ConstraintConflict) Error() string {
	return fmt.Sprintf("constraint conflict: %s", e.Detail)
}
