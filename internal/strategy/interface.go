package strategy

import (
	"fmt"
	"strings"
)

// SlotType is the role a slot plays in the strategy
type SlotType int

const (
	SlotTypeOpen SlotType = iota
	SlotTypeOpenFilter
	SlotTypeClose
	SlotTypeCloseFilter
)

func (st SlotType) String() string {
	switch st {
	case SlotTypeOpen:
		return "OPEN"
	case SlotTypeOpenFilter:
		return "OPEN_FILTER"
	case SlotTypeClose:
		return "CLOSE"
	case SlotTypeCloseFilter:
		return "CLOSE_FILTER"
	default:
		return "UNKNOWN"
	}
}

// IsFilter reports whether the slot type is an open or close filter
func (st SlotType) IsFilter() bool {
	return st == SlotTypeOpenFilter || st == SlotTypeCloseFilter
}

func (st SlotType) MarshalText() ([]byte, error) {
	return []byte(st.String()), nil
}

func (st *SlotType) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "OPEN":
		*st = SlotTypeOpen
	case "OPEN_FILTER":
		*st = SlotTypeOpenFilter
	case "CLOSE":
		*st = SlotTypeClose
	case "CLOSE_FILTER":
		*st = SlotTypeCloseFilter
	default:
		return fmt.Errorf("unknown slot type %q", string(b))
	}
	return nil
}

// SlotStatus tells the optimizer what it may change in a slot.
//   - Open: the slot may be removed and its parameters changed
//   - Locked: nothing may change
//   - Linked: the indicator is kept, its parameters may change
type SlotStatus int

const (
	SlotStatusOpen SlotStatus = iota
	SlotStatusLocked
	SlotStatusLinked
)

func (ss SlotStatus) String() string {
	switch ss {
	case SlotStatusOpen:
		return "OPEN"
	case SlotStatusLocked:
		return "LOCKED"
	case SlotStatusLinked:
		return "LINKED"
	default:
		return "UNKNOWN"
	}
}

func (ss SlotStatus) MarshalText() ([]byte, error) {
	return []byte(ss.String()), nil
}

func (ss *SlotStatus) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "OPEN", "":
		*ss = SlotStatusOpen
	case "LOCKED":
		*ss = SlotStatusLocked
	case "LINKED":
		*ss = SlotStatusLinked
	default:
		return fmt.Errorf("unknown slot status %q", string(b))
	}
	return nil
}

// SameDirSignalAction is applied when a new entry signal agrees with the open position
type SameDirSignalAction int

const (
	SameActionNothing SameDirSignalAction = iota
	SameActionWinner
	SameActionAdd
)

func (a SameDirSignalAction) String() string {
	switch a {
	case SameActionNothing:
		return "NOTHING"
	case SameActionWinner:
		return "WINNER"
	case SameActionAdd:
		return "ADD"
	default:
		return "UNKNOWN"
	}
}

func (a SameDirSignalAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *SameDirSignalAction) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "NOTHING", "":
		*a = SameActionNothing
	case "WINNER":
		*a = SameActionWinner
	case "ADD":
		*a = SameActionAdd
	default:
		return fmt.Errorf("unknown same direction action %q", string(b))
	}
	return nil
}

// OppositeDirSignalAction is applied when a new entry signal contradicts the open position
type OppositeDirSignalAction int

const (
	OppositeActionNothing OppositeDirSignalAction = iota
	OppositeActionReduce
	OppositeActionClose
	OppositeActionReverse
)

func (a OppositeDirSignalAction) String() string {
	switch a {
	case OppositeActionNothing:
		return "NOTHING"
	case OppositeActionReduce:
		return "REDUCE"
	case OppositeActionClose:
		return "CLOSE"
	case OppositeActionReverse:
		return "REVERSE"
	default:
		return "UNKNOWN"
	}
}

func (a OppositeDirSignalAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *OppositeDirSignalAction) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "NOTHING", "":
		*a = OppositeActionNothing
	case "REDUCE":
		*a = OppositeActionReduce
	case "CLOSE":
		*a = OppositeActionClose
	case "REVERSE":
		*a = OppositeActionReverse
	default:
		return fmt.Errorf("unknown opposite direction action %q", string(b))
	}
	return nil
}
