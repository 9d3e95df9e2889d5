package model

import (
	"strings"
)

// State is a runner's race status.
type State string

// Known states.
const (
	StateRacing     State = "Racing"
	StateFinisher   State = "Finisher"
	StateAbandoned  State = "Abandoned"
	StateNotStarted State = "Not-Started"
	StateUnknown    State = "Unknown"
)

var states = []State{StateRacing, StateFinisher, StateAbandoned, StateNotStarted, StateUnknown}

// legacyStates maps the labels written by older cache files.
var legacyStates = map[string]State{
	"en course":   StateRacing,
	"abandon":     StateAbandoned,
	"non partant": StateNotStarted,
	"inconnu":     StateUnknown,
}

// ParseState decodes a persisted state. Canonical names match case-insensitively,
// legacy labels are mapped, anything else is StateUnknown.
func ParseState(s string) State {
	s = strings.TrimSpace(s)
	for _, st := range states {
		if strings.EqualFold(s, string(st)) {
			return st
		}
	}
	if st, ok := legacyStates[strings.ToLower(s)]; ok {
		return st
	}
	return StateUnknown
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	for _, st := range states {
		if s == st {
			return true
		}
	}
	return false
}

// HasFinishTime reports whether a finish time is meaningful in this state.
func (s State) HasFinishTime() bool {
	return s == StateFinisher || s == StateAbandoned
}

func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return []byte(StateUnknown), nil
	}
	return []byte(s), nil
}

func (s *State) UnmarshalText(b []byte) error {
	*s = ParseState(string(b))
	return nil
}
