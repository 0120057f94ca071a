package modemctl

import (
	"errors"
	"fmt"
	"testing"
)

// fakeController records every capability call and fails the ones listed
// in fail.
type fakeController struct {
	calls        []string
	fail         map[string]bool
	connectAfter int // polls before LinkConnected reports true
	connectErr   error
	polls        int
	closed       int
}

func (f *fakeController) do(call string) error {
	f.calls = append(f.calls, call)
	if f.fail[call] {
		return fmt.Errorf("injected failure for %s", call)
	}
	return nil
}

func (f *fakeController) SetModemPower(on bool) error {
	return f.do(fmt.Sprintf("modem_power=%t", on))
}

func (f *fakeController) SetLinkActive(active bool) error {
	return f.do(fmt.Sprintf("link_active=%t", active))
}

func (f *fakeController) SetLinkPower(on bool) error {
	return f.do(fmt.Sprintf("link_power=%t", on))
}

func (f *fakeController) LinkConnected() (bool, error) {
	f.calls = append(f.calls, "link_connected?")
	if f.connectErr != nil {
		return false, f.connectErr
	}
	f.polls++
	return f.polls > f.connectAfter, nil
}

func (f *fakeController) Close() error {
	f.closed++
	return nil
}

func (f *fakeController) called(call string) bool {
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func fastSequencer(ctrl Controller) *Sequencer {
	s := NewSequencer(ctrl)
	s.PollInterval = 0
	s.SettleDelay = 0
	return s
}

func TestBringUpHappyPath(t *testing.T) {
	ctrl := &fakeController{connectAfter: 2}
	seq := fastSequencer(ctrl)

	var stages []Stage
	seq.OnStage = func(st Stage) { stages = append(stages, st) }

	if err := seq.BringUp(); err != nil {
		t.Fatalf("BringUp(): %v", err)
	}

	wantCalls := []string{
		"modem_power=false",
		"link_active=false",
		"link_power=false",
		"link_active=true",
		"link_power=true",
		"modem_power=true",
		"link_connected?",
		"link_connected?",
		"link_connected?",
	}
	if len(ctrl.calls) != len(wantCalls) {
		t.Fatalf("call trace: got %v, want %v", ctrl.calls, wantCalls)
	}
	for i := range wantCalls {
		if ctrl.calls[i] != wantCalls[i] {
			t.Fatalf("call %d: got %q, want %q", i, ctrl.calls[i], wantCalls[i])
		}
	}

	wantStages := []Stage{StagePoweredDown, StageLinkActive, StagePoweredUp, StageLinkReady}
	if len(stages) != len(wantStages) {
		t.Fatalf("stages: got %v, want %v", stages, wantStages)
	}
	for i := range wantStages {
		if stages[i] != wantStages[i] {
			t.Fatalf("stage %d: got %v, want %v", i, stages[i], wantStages[i])
		}
	}
}

func TestBringUpTolerantSteps(t *testing.T) {
	// Each of the reset/activation steps may fail without stopping the
	// sequence.
	tolerantSteps := []string{
		"modem_power=false",
		"link_active=false",
		"link_power=false",
		"link_active=true",
	}

	for _, step := range tolerantSteps {
		ctrl := &fakeController{fail: map[string]bool{step: true}}
		seq := fastSequencer(ctrl)

		if err := seq.BringUp(); err != nil {
			t.Errorf("Test %q: BringUp() = %v, want success despite tolerated failure", step, err)
		}
		if !ctrl.called("modem_power=true") {
			t.Errorf("Test %q: sequence did not continue to power-up", step)
		}
	}
}

func TestBringUpFatalSteps(t *testing.T) {
	testCases := []struct {
		descr string
		ctrl  *fakeController
	}{
		{"link power on fails", &fakeController{fail: map[string]bool{"link_power=true": true}}},
		{"modem power on fails", &fakeController{fail: map[string]bool{"modem_power=true": true}}},
		{"link connected query fails", &fakeController{connectErr: errors.New("ioctl says no")}},
		{"link never connects", &fakeController{connectAfter: 1 << 30}},
	}

	for _, tc := range testCases {
		seq := fastSequencer(tc.ctrl)
		seq.PollAttempts = 3

		err := seq.BringUp()
		var seqErr *SequenceError
		if !errors.As(err, &seqErr) {
			t.Fatalf("Test %q: BringUp() = %v, want *SequenceError", tc.descr, err)
		}
		if seqErr.Step == "" {
			t.Errorf("Test %q: SequenceError has no step name", tc.descr)
		}
	}
}

func TestBringUpFatalStopsSequence(t *testing.T) {
	ctrl := &fakeController{fail: map[string]bool{"link_power=true": true}}
	seq := fastSequencer(ctrl)

	if err := seq.BringUp(); err == nil {
		t.Fatalf("BringUp(): expected error")
	}
	if ctrl.called("modem_power=true") {
		t.Fatalf("modem was powered up after a fatal link power failure")
	}
	if ctrl.called("link_connected?") {
		t.Fatalf("link was polled after a fatal link power failure")
	}
}

func TestBringUpPollBound(t *testing.T) {
	ctrl := &fakeController{connectAfter: 1 << 30}
	seq := fastSequencer(ctrl)
	seq.PollAttempts = 5

	err := seq.BringUp()
	var seqErr *SequenceError
	if !errors.As(err, &seqErr) {
		t.Fatalf("BringUp(): got %v, want *SequenceError", err)
	}
	if seqErr.Step != "link ready wait" {
		t.Fatalf("SequenceError step: got %q, want %q", seqErr.Step, "link ready wait")
	}
	if ctrl.polls != 5 {
		t.Fatalf("polls: got %d, want 5", ctrl.polls)
	}
}
