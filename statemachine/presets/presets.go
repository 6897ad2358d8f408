// Package presets ships ready-made graphs. The animal graph is the
// canonical idle/eat/reproduce example; forager exercises numeric and
// scripted guards.
package presets

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/tickfsm/statemachine"
)

//go:embed graphs/*.yaml
var graphFiles embed.FS

// ErrUnknownPreset indicates that no preset has the requested name.
var ErrUnknownPreset = errors.New("unknown preset")

// State and fact names of the animal graph.
const (
	Idle      = "idle"
	Eat       = "eat"
	Reproduce = "reproduce"

	FactHungry = "isHungry"
	FactHeat   = "isHeat"
)

// Animal builds the idle/eat/reproduce graph programmatically:
//
//	idle -> eat        when isHungry == true
//	idle -> reproduce  when isHeat == true   (declared second, wins ties)
//	eat -> idle        when isHungry == false
//	reproduce -> idle  when isHeat == false
func Animal() (*statemachine.Graph, statemachine.StateID, error) {
	hungry, err := statemachine.NewBoolCondition(FactHungry, true)
	if err != nil {
		return nil, statemachine.NoState, err
	}

	sated, err := statemachine.NewBoolCondition(FactHungry, false)
	if err != nil {
		return nil, statemachine.NoState, err
	}

	inHeat, err := statemachine.NewBoolCondition(FactHeat, true)
	if err != nil {
		return nil, statemachine.NoState, err
	}

	cooled, err := statemachine.NewBoolCondition(FactHeat, false)
	if err != nil {
		return nil, statemachine.NoState, err
	}

	return statemachine.NewBuilder("animal").
		State(Idle, Eat, Reproduce).
		Initial(Idle).
		WhenLabeled("hungry", Idle, Eat, hungry).
		WhenLabeled("in_heat", Idle, Reproduce, inHeat).
		WhenLabeled("sated", Eat, Idle, sated).
		WhenLabeled("cooled_down", Reproduce, Idle, cooled).
		Build()
}

// Names lists the embedded presets in natural order.
func Names() []string {
	entries, err := fs.ReadDir(graphFiles, "graphs")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
	}

	natsort.Sort(names)

	return names
}

// Config returns the embedded configuration of a preset.
func Config(name string) (*statemachine.Config, error) {
	file := path.Join("graphs", name+".yaml")

	if _, err := fs.Stat(graphFiles, file); err != nil {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownPreset, name, Names())
	}

	return statemachine.LoadConfigFromFS(graphFiles, file)
}

// Load builds a preset graph with the given factory (nil for the built-ins).
func Load(name string, factory *statemachine.ConditionFactory) (*statemachine.Graph, statemachine.StateID, error) {
	config, err := Config(name)
	if err != nil {
		return nil, statemachine.NoState, err
	}

	return config.Build(factory)
}
