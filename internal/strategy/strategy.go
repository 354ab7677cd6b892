package strategy

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Slot is one indicator-driven stage of a strategy
type Slot struct {
	ID     string          `json:"id"`
	Type   SlotType        `json:"type"`
	Status SlotStatus      `json:"status"`
	Params IndicatorParams `json:"params"`
}

// NewSlot creates a slot with a fresh identifier
func NewSlot(slotType SlotType, params IndicatorParams) *Slot {
	params.SlotType = slotType
	return &Slot{
		ID:     uuid.NewString(),
		Type:   slotType,
		Status: SlotStatusOpen,
		Params: params,
	}
}

// Clone returns a deep copy of the slot, keeping its identifier
func (s *Slot) Clone() *Slot {
	c := *s
	c.Params = s.Params.Clone()
	return &c
}

// Strategy is the configuration tuned by the optimizer.
// Slots are ordered: open slot, open filters, close slot, close filters.
type Strategy struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Slots       []*Slot `json:"slots"`

	// PropertiesStatus locks the signal policies and the protections
	PropertiesStatus SlotStatus              `json:"properties_status"`
	SameSignalAction SameDirSignalAction     `json:"same_signal_action"`
	OppSignalAction  OppositeDirSignalAction `json:"opposite_signal_action"`

	UsePermanentSL bool `json:"use_permanent_sl"`
	PermanentSL    int  `json:"permanent_sl"`
	UsePermanentTP bool `json:"use_permanent_tp"`
	PermanentTP    int  `json:"permanent_tp"`
	UseBreakEven   bool `json:"use_break_even"`
	BreakEven      int  `json:"break_even"`
}

// Clone returns a deep copy of the strategy
func (s *Strategy) Clone() *Strategy {
	c := *s
	c.Slots = make([]*Slot, len(s.Slots))
	for i, slot := range s.Slots {
		c.Slots[i] = slot.Clone()
	}
	return &c
}

// CopyFrom overwrites the strategy in place with a deep copy of other.
// Holders of the receiver pointer observe the new state.
func (s *Strategy) CopyFrom(other *Strategy) {
	*s = *other.Clone()
}

// SlotIndex returns the position of the slot with the given identifier or -1
func (s *Strategy) SlotIndex(id string) int {
	for i, slot := range s.Slots {
		if slot.ID == id {
			return i
		}
	}
	return -1
}

// OpenSlot returns the index of the open slot or -1
func (s *Strategy) OpenSlot() int {
	return s.firstOfType(SlotTypeOpen)
}

// CloseSlot returns the index of the close slot or -1
func (s *Strategy) CloseSlot() int {
	return s.firstOfType(SlotTypeClose)
}

func (s *Strategy) firstOfType(t SlotType) int {
	for i, slot := range s.Slots {
		if slot.Type == t {
			return i
		}
	}
	return -1
}

// OpenFilters returns the number of open filter slots
func (s *Strategy) OpenFilters() int {
	return s.countOfType(SlotTypeOpenFilter)
}

// CloseFilters returns the number of close filter slots
func (s *Strategy) CloseFilters() int {
	return s.countOfType(SlotTypeCloseFilter)
}

func (s *Strategy) countOfType(t SlotType) int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Type == t {
			n++
		}
	}
	return n
}

// RemoveSlot deletes the filter slot at index i
func (s *Strategy) RemoveSlot(i int) error {
	if i < 0 || i >= len(s.Slots) {
		return fmt.Errorf("slot index %d out of range", i)
	}
	if !s.Slots[i].Type.IsFilter() {
		return fmt.Errorf("slot %d is a %s slot and cannot be removed", i, s.Slots[i].Type)
	}
	s.Slots = append(s.Slots[:i], s.Slots[i+1:]...)
	return nil
}

// EnsureIDs assigns identifiers to slots loaded without one
func (s *Strategy) EnsureIDs() {
	for _, slot := range s.Slots {
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		slot.Params.SlotType = slot.Type
	}
}

// Validate checks the structural invariants of the slot sequence
func (s *Strategy) Validate() error {
	if len(s.Slots) < 2 {
		return errors.New("strategy needs at least an open and a close slot")
	}
	if s.Slots[0].Type != SlotTypeOpen {
		return errors.New("first slot must be the open slot")
	}
	closeIdx := s.CloseSlot()
	if closeIdx < 0 {
		return errors.New("strategy has no close slot")
	}
	seen := make(map[string]bool, len(s.Slots))
	for i, slot := range s.Slots {
		switch {
		case i == 0:
		case i < closeIdx && slot.Type != SlotTypeOpenFilter:
			return fmt.Errorf("slot %d: expected open filter before the close slot, got %s", i, slot.Type)
		case i > closeIdx && slot.Type != SlotTypeCloseFilter:
			return fmt.Errorf("slot %d: expected close filter after the close slot, got %s", i, slot.Type)
		}
		if slot.Params.IndicatorName == "" {
			return fmt.Errorf("slot %d has no indicator", i)
		}
		if len(slot.Params.NumParams) > MaxNumericParams {
			return fmt.Errorf("slot %d declares %d numeric params, max is %d", i, len(slot.Params.NumParams), MaxNumericParams)
		}
		if slot.ID != "" {
			if seen[slot.ID] {
				return fmt.Errorf("slot %d: duplicate id %s", i, slot.ID)
			}
			seen[slot.ID] = true
		}
	}
	if s.PermanentSL < 0 || s.PermanentTP < 0 || s.BreakEven < 0 {
		return errors.New("protection distances must not be negative")
	}
	return nil
}
