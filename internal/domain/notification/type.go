// internal/domain/notification/type.go
package notification

import "fmt"

// Type identifies which administrative message a planned message will become.
type Type string

const (
	Type4Week  Type = "4WEEK"  // short-horizon letter
	Type8Week  Type = "8WEEK"  // activity requirement
	Type39Week Type = "39WEEK" // long-horizon letter (max date approaching)
	TypeStop   Type = "STOP"   // benefit stop
)

// AllTypes lists the types created for every new case, in creation order.
var AllTypes = []Type{Type4Week, Type8Week, Type39Week, TypeStop}

// ParseType converts a stored type string back into a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Type4Week, Type8Week, Type39Week, TypeStop:
		return t, nil
	}
	return "", fmt.Errorf("unknown planned message type %q", s)
}

const (
	// StopGraceDays is added to the last paid (or sick) day to get the stop message due date.
	StopGraceDays = 17
	// LongHorizonRemainingDaysThreshold: below this many remaining benefit days the
	// 39 week threshold has already been crossed.
	LongHorizonRemainingDaysThreshold = 66
)

// WeeksAfterStart returns the week offset from the case start date for letter types.
// The stop type is anchored to the last paid day instead and returns false.
func (t Type) WeeksAfterStart() (int, bool) {
	switch t {
	case Type4Week:
		return 4, true
	case Type8Week:
		return 8, true
	case Type39Week:
		return 39, true
	}
	return 0, false
}
