package server

import (
	"time"

	"github.com/amp-labs/tickfsm/herd"
	"github.com/amp-labs/tickfsm/statemachine"
)

type machineView struct {
	ID      string                        `json:"id"`
	State   string                        `json:"state"`
	Ticks   uint64                        `json:"ticks"`
	Created time.Time                     `json:"created"`
	History []historyView                 `json:"history,omitempty"`
	Facts   map[string]statemachine.Value `json:"facts,omitempty"`
}

type historyView struct {
	Tick      uint64    `json:"tick"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Label     string    `json:"label,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type stepView struct {
	Tick        uint64   `json:"tick"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Changed     bool     `json:"changed"`
	Label       string   `json:"label,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

type tickView struct {
	Tick        uint64              `json:"tick"`
	Members     int                 `json:"members"`
	Transitions int                 `json:"transitions"`
	Diagnosed   int                 `json:"diagnosed"`
	DurationMS  float64             `json:"duration_ms"`
	Results     map[string]stepView `json:"results"`
}

func newMachineView(m *herd.Member, withHistory bool) machineView {
	machine := m.Machine()

	view := machineView{
		ID:      m.ID(),
		State:   machine.ActiveState().Name(),
		Ticks:   machine.Ticks(),
		Created: m.Created(),
	}

	if withHistory {
		for _, rec := range machine.History() {
			view.History = append(view.History, historyView{
				Tick:      rec.Tick,
				From:      rec.From,
				To:        rec.To,
				Label:     rec.Label,
				Timestamp: rec.Timestamp,
			})
		}
	}

	return view
}

func newStepView(res statemachine.StepResult) stepView {
	view := stepView{
		Tick:        res.Tick,
		Changed:     res.Changed,
		Diagnostics: flattenErrors(res.Diagnostics),
	}

	if res.From != nil {
		view.From = res.From.Name()
	}

	if res.To != nil {
		view.To = res.To.Name()
	}

	if t, ok := res.Transition.Get(); ok {
		view.Label = t.Label()
	}

	return view
}

func flattenErrors(err error) []string {
	if err == nil {
		return nil
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok { //nolint:errorlint
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, flattenErrors(e)...)
		}

		return out
	}

	return []string{err.Error()}
}
