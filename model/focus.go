package model

// FocusState tracks which virtual desktop and participant currently have
// focus. It is passed into and returned from every navigation call.
type FocusState struct {
	Desktop     int
	Participant string
}

// On returns the state after focusing participant on desktop
func (f FocusState) On(desktop int, participant string) FocusState {
	return FocusState{Desktop: desktop, Participant: participant}
}
