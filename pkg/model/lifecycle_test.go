package model

import "testing"

func TestLifecycleStateValidate(t *testing.T) {
	valid := []LifecycleState{
		StatePreManagement, StateRebinding, StateStarting,
		StateStarted, StateStopping, StateStopped,
	}
	for _, s := range valid {
		if err := s.Validate(); err != nil {
			t.Errorf("expected %s to be valid: %v", s, err)
		}
	}

	if err := LifecycleState("bogus").Validate(); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestLifecycleStatePredicates(t *testing.T) {
	tests := []struct {
		state      LifecycleState
		notYetLive bool
		live       bool
		terminal   bool
	}{
		{StatePreManagement, true, false, false},
		{StateRebinding, true, false, false},
		{StateStarting, false, false, false},
		{StateStarted, false, true, false},
		{StateStopping, false, false, false},
		{StateStopped, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsNotYetLive(); got != tt.notYetLive {
				t.Errorf("IsNotYetLive() = %v, want %v", got, tt.notYetLive)
			}
			if got := tt.state.IsLive(); got != tt.live {
				t.Errorf("IsLive() = %v, want %v", got, tt.live)
			}
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from LifecycleState
		to   LifecycleState
		want bool
	}{
		{"fresh object starts", StatePreManagement, StateStarting, true},
		{"fresh object rebinds", StatePreManagement, StateRebinding, true},
		{"rebinding object starts", StateRebinding, StateStarting, true},
		{"starting completes", StateStarting, StateStarted, true},
		{"started stops", StateStarted, StateStopping, true},
		{"stopping completes", StateStopping, StateStopped, true},
		{"skip ahead", StateRebinding, StateStarted, true},
		{"no self transition", StateStarted, StateStarted, false},
		{"no going back", StateStarted, StateRebinding, false},
		{"terminal is terminal", StateStopped, StateStarting, false},
		{"unknown source", LifecycleState("bogus"), StateStarted, false},
		{"unknown target", StateStarted, LifecycleState("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
