package status

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when a unit, machine or field is absent from
// the status snapshot.
var ErrNotFound = errors.New("not found in status")

// Machine is one entry of the status "machines" map
type Machine struct {
	Series     string             `yaml:"series,omitempty"`
	Base       *Base              `yaml:"base,omitempty"`
	DNSName    string             `yaml:"dns-name,omitempty"`
	InstanceID string             `yaml:"instance-id,omitempty"`
	Containers map[string]Machine `yaml:"containers,omitempty"`
}

// Base is the newer replacement for series reported by juju 3.x
type Base struct {
	Name    string `yaml:"name"`
	Channel string `yaml:"channel"`
}

// Unit is one entry of an application's "units" map
type Unit struct {
	Machine       string          `yaml:"machine,omitempty"`
	PublicAddress string          `yaml:"public-address,omitempty"`
	Subordinates  map[string]Unit `yaml:"subordinates,omitempty"`
}

// Application holds the units of a deployed application
type Application struct {
	Charm string          `yaml:"charm,omitempty"`
	Units map[string]Unit `yaml:"units,omitempty"`
}

// Status is a parsed `juju status --format yaml` snapshot
type Status struct {
	Model        map[string]any         `yaml:"model,omitempty"`
	Machines     map[string]Machine     `yaml:"machines"`
	Applications map[string]Application `yaml:"applications"`
}

// Parse decodes status YAML
func Parse(data []byte) (*Status, error) {
	var s Status
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}
	return &s, nil
}

// GetUnit finds a unit by name, including subordinate units
func (s *Status) GetUnit(name string) (Unit, error) {
	for _, app := range s.Applications {
		if unit, ok := findUnit(app.Units, name); ok {
			return unit, nil
		}
	}
	if known := s.UnitNames(); len(known) > 0 {
		return Unit{}, fmt.Errorf("unit %q (known units: %s): %w", name, strings.Join(known, ", "), ErrNotFound)
	}
	return Unit{}, fmt.Errorf("unit %q: %w", name, ErrNotFound)
}

func findUnit(units map[string]Unit, name string) (Unit, bool) {
	if unit, ok := units[name]; ok {
		return unit, true
	}
	for _, unit := range units {
		if sub, ok := findUnit(unit.Subordinates, name); ok {
			return sub, true
		}
	}
	return Unit{}, false
}

// Machine finds a machine by id, including containers such as "0/lxd/1"
func (s *Status) Machine(id string) (Machine, bool) {
	if m, ok := s.Machines[id]; ok {
		return m, true
	}
	for _, m := range s.Machines {
		if c, ok := findContainer(m.Containers, id); ok {
			return c, true
		}
	}
	return Machine{}, false
}

func findContainer(containers map[string]Machine, id string) (Machine, bool) {
	if m, ok := containers[id]; ok {
		return m, true
	}
	for _, m := range containers {
		if c, ok := findContainer(m.Containers, id); ok {
			return c, true
		}
	}
	return Machine{}, false
}

// UnitAddress returns the public address of a unit
func (s *Status) UnitAddress(name string) (string, error) {
	unit, err := s.GetUnit(name)
	if err != nil {
		return "", err
	}
	if unit.PublicAddress == "" {
		return "", fmt.Errorf("public-address of unit %q: %w", name, ErrNotFound)
	}
	return unit.PublicAddress, nil
}

// UnitSeries returns the series of the machine hosting a unit. An empty
// string means the series is unknown.
func (s *Status) UnitSeries(name string) (string, error) {
	unit, err := s.GetUnit(name)
	if err != nil {
		return "", err
	}
	if unit.Machine == "" {
		return "", nil
	}
	machine, ok := s.Machine(unit.Machine)
	if !ok {
		return "", nil
	}
	return machine.SeriesName(), nil
}

// SeriesName returns the series, deriving one from base when only the
// base is reported
func (m Machine) SeriesName() string {
	if m.Series != "" {
		return m.Series
	}
	if m.Base != nil && m.Base.Name == "windows" {
		return "win" + m.Base.Channel
	}
	return ""
}

// UnitNames lists all units, sorted
func (s *Status) UnitNames() []string {
	var names []string
	for _, app := range s.Applications {
		collectUnits(app.Units, &names)
	}
	sort.Strings(names)
	return names
}

func collectUnits(units map[string]Unit, names *[]string) {
	for name, unit := range units {
		*names = append(*names, name)
		collectUnits(unit.Subordinates, names)
	}
}
