package domain_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// tableValidator is a straightforward reading of a transition table.
type tableValidator struct {
	calls int
}

func (v *tableValidator) Evaluate(_ context.Context, table domain.TransitionTable, from, to domain.State) error {
	v.calls++
	if !table.Constrained() {
		return nil
	}
	if !table.Has(to) {
		return &domain.InvalidStateValueError{Value: to}
	}
	if !slices.Contains(table[from], to) {
		return &domain.InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// ticket owns one constrained and one free-form state field.
type ticket struct {
	status domain.StateValue
	label  domain.StateValue
}

func (t *ticket) StateMachine() domain.StateMachineConfig {
	return domain.StateMachineConfig{
		"status": domain.HospitalityRequestTransitions,
		"label":  nil,
	}
}

func (t *ticket) StateField(name string) (domain.StateValue, bool) {
	switch name {
	case "status":
		return t.status, true
	case "label":
		return t.label, true
	}
	return domain.StateValue{}, false
}

func (t *ticket) SetStateField(name string, v domain.StateValue) {
	switch name {
	case "status":
		t.status = v
	case "label":
		t.label = v
	}
}

func TestMakeTransition_HospitalityScenario(t *testing.T) {
	ctx := context.Background()
	v := &tableValidator{}
	e := &ticket{status: domain.NewStateValue(domain.RequestUnread)}

	tr, err := domain.MakeTransition(ctx, v, e, "status", domain.RequestAccepted, "")
	if err != nil {
		t.Fatalf("MakeTransition() error = %v", err)
	}
	if !tr.Applied || tr.From != domain.RequestUnread || tr.Seq != 2 {
		t.Errorf("Transition = %+v", tr)
	}
	if e.status.Current != domain.RequestAccepted {
		t.Errorf("Current = %q, want %q", e.status.Current, domain.RequestAccepted)
	}
	first, _ := e.status.Entry(1)
	second, _ := e.status.Entry(2)
	if first.State != domain.RequestUnread || second.State != domain.RequestAccepted {
		t.Errorf("history = %+v", e.status.History)
	}

	_, err = domain.MakeTransition(ctx, v, e, "status", domain.RequestUnread, "")
	var trErr *domain.InvalidTransitionError
	if !errors.As(err, &trErr) {
		t.Fatalf("error = %v, want *InvalidTransitionError", err)
	}
	if trErr.Field != "status" || trErr.From != domain.RequestAccepted || trErr.To != domain.RequestUnread {
		t.Errorf("InvalidTransitionError = %+v", trErr)
	}

	_, err = domain.MakeTransition(ctx, v, e, "status", domain.NotificationArchived, "")
	var valErr *domain.InvalidStateValueError
	if !errors.As(err, &valErr) {
		t.Fatalf("error = %v, want *InvalidStateValueError", err)
	}
	if valErr.Field != "status" || valErr.Value != domain.NotificationArchived {
		t.Errorf("InvalidStateValueError = %+v", valErr)
	}

	if e.status.LastSeq() != 2 {
		t.Errorf("failed transitions changed history: %+v", e.status.History)
	}
}

func TestMakeTransition_SameStateIsNoop(t *testing.T) {
	v := &tableValidator{}
	e := &ticket{status: domain.NewStateValue(domain.RequestMaybe)}

	tr, err := domain.MakeTransition(context.Background(), v, e, "status", domain.RequestMaybe, "u1")
	if err != nil {
		t.Fatalf("MakeTransition() error = %v", err)
	}
	if tr.Applied {
		t.Error("Applied = true, want false")
	}
	if v.calls != 0 {
		t.Errorf("validator called %d times, want 0", v.calls)
	}
	if e.status.LastSeq() != 1 {
		t.Errorf("history grew: %+v", e.status.History)
	}
}

func TestMakeTransition_FirstAssignment(t *testing.T) {
	v := &tableValidator{}
	e := &ticket{}

	if _, err := domain.MakeTransition(context.Background(), v, e, "status", domain.RequestMaybe, "u1"); err != nil {
		t.Fatalf("MakeTransition() error = %v", err)
	}
	if e.status.Current != domain.RequestMaybe || e.status.LastSeq() != 1 {
		t.Errorf("status = %+v", e.status)
	}
	if entry, _ := e.status.Entry(1); entry.Author != "u1" {
		t.Errorf("Author = %q, want %q", entry.Author, "u1")
	}

	other := &ticket{}
	_, err := domain.MakeTransition(context.Background(), v, other, "status", "bogus", "u1")
	var valErr *domain.InvalidStateValueError
	if !errors.As(err, &valErr) {
		t.Errorf("error = %v, want *InvalidStateValueError", err)
	}
}

func TestMakeTransition_AttributesAuthor(t *testing.T) {
	e := &ticket{status: domain.NewStateValue(domain.RequestUnread)}

	tr, err := domain.MakeTransition(context.Background(), &tableValidator{}, e, "status", domain.RequestCanceled, "u7")
	if err != nil {
		t.Fatalf("MakeTransition() error = %v", err)
	}
	entry, _ := e.status.Entry(tr.Seq)
	if entry.Author != "u7" {
		t.Errorf("Author = %q, want %q", entry.Author, "u7")
	}
}

func TestMakeTransition_UnconstrainedField(t *testing.T) {
	e := &ticket{label: domain.NewStateValue("red")}

	for _, next := range []domain.State{"blue", "red", "anything"} {
		if _, err := domain.MakeTransition(context.Background(), &tableValidator{}, e, "label", next, ""); err != nil {
			t.Errorf("MakeTransition(%q) error = %v", next, err)
		}
	}
	if e.label.LastSeq() != 4 {
		t.Errorf("LastSeq() = %d, want 4", e.label.LastSeq())
	}
}

func TestMakeTransition_TerminalState(t *testing.T) {
	e := &domain.Connection{Kind: domain.KindFriendship, Status: domain.NewStateValue(domain.FriendshipRefused)}

	_, err := domain.MakeTransition(context.Background(), &tableValidator{}, e, domain.ConnectionStatusField, domain.FriendshipAccepted, "")
	var trErr *domain.InvalidTransitionError
	if !errors.As(err, &trErr) {
		t.Errorf("error = %v, want *InvalidTransitionError", err)
	}
}

func TestMakeTransition_UnknownField(t *testing.T) {
	_, err := domain.MakeTransition(context.Background(), &tableValidator{}, &ticket{}, "colour", "red", "")
	if !errors.Is(err, domain.ErrUnknownStateField) {
		t.Errorf("error = %v, want ErrUnknownStateField", err)
	}
}

func TestTransitionTable(t *testing.T) {
	table := domain.FriendshipTransitions

	want := []domain.State{"accepted", "pending", "refused", "removed"}
	if got := table.States(); !slices.Equal(got, want) {
		t.Errorf("States() = %v, want %v", got, want)
	}
	if !table.Has(domain.FriendshipRemoved) || table.Has("bogus") {
		t.Error("Has() mismatch")
	}
	if !table.IsTerminal(domain.FriendshipRefused) || table.IsTerminal(domain.FriendshipPending) {
		t.Error("IsTerminal() mismatch")
	}
	if domain.TransitionTable(nil).Constrained() {
		t.Error("nil table should be unconstrained")
	}
}
