package ui

import "spacesweep/internal/cleanup"

type eventMsg struct {
	event cleanup.Event
}

type eventsClosedMsg struct{}

type previousResultMsg struct {
	found bool
}

// requestMsg reports the outcome of a start call. Progress arrives as events.
type requestMsg struct {
	action string
	err    error
}
