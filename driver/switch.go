package driver

import "council/model"

// Direction of a desktop switch
type Direction int

const (
	Stay  Direction = 0
	Left  Direction = -1
	Right Direction = 1
)

// Switch is the plan for reaching a target desktop
type Switch struct {
	Direction Direction
	Steps     int
	Target    int
}

// PlanSwitch computes how many left or right desktop moves lead from the
// focused desktop to target.
func PlanSwitch(state model.FocusState, target int) Switch {
	delta := target - state.Desktop
	switch {
	case delta > 0:
		return Switch{Direction: Right, Steps: delta, Target: target}
	case delta < 0:
		return Switch{Direction: Left, Steps: -delta, Target: target}
	default:
		return Switch{Direction: Stay, Target: target}
	}
}

// Apply returns the state after taking n steps of the plan
func (s Switch) Apply(state model.FocusState, n int) model.FocusState {
	if n > s.Steps {
		n = s.Steps
	}
	return model.FocusState{
		Desktop:     state.Desktop + int(s.Direction)*n,
		Participant: state.Participant,
	}
}
