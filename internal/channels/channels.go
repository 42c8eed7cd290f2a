// Package channels holds the static per-station configuration: surface area,
// filtering, pump flow rates, alert thresholds and notification groups.
package channels

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// MaxPumps is the number of state fields left after the level field: the
// pump at index i (0-based) reads field i+2, up to field8.
const MaxPumps = 7

//go:embed channels.toml
var defaultRegistry []byte

// Pump is a pump with a fixed delivery rate in m³/h.
type Pump struct {
	ID       int     `toml:"id" json:"id"`
	FlowRate float64 `toml:"flow_rate" json:"flow_rate"`
}

// Channel is the configuration of one monitored station. Optional values are
// pointers so that "absent" stays distinct from zero.
type Channel struct {
	ID                    int      `toml:"id" json:"id"`
	Name                  string   `toml:"name" json:"name"`
	Surface               *float64 `toml:"surface" json:"surface,omitempty"`
	EnableFlowCalculation bool     `toml:"enable_flow_calculation" json:"enable_flow_calculation"`
	EnableFiltering       bool     `toml:"enable_filtering" json:"enable_filtering"`
	FilterWindowSize      int      `toml:"filter_window_size" json:"filter_window_size,omitempty"`
	UsePumpFlow           bool     `toml:"use_pump_flow" json:"use_pump_flow"`
	Pumps                 []Pump   `toml:"pumps" json:"pumps,omitempty"`
	NTHThreshold          *float64 `toml:"nth_threshold" json:"nth_threshold,omitempty"`
	NTBThreshold          *float64 `toml:"ntb_threshold" json:"ntb_threshold,omitempty"`
	OverflowThreshold     *float64 `toml:"overflow_threshold" json:"overflow_threshold,omitempty"`
	EmailGroup            *int     `toml:"email_group" json:"email_group,omitempty"`
}

// FlowEnabled reports whether inflow/outflow derivation can run.
func (c Channel) FlowEnabled() bool {
	return c.EnableFlowCalculation && c.Surface != nil
}

// FilterActive reports whether the moving average is applied to the level.
func (c Channel) FilterActive() bool {
	return c.EnableFiltering && c.FilterWindowSize >= 1
}

// AlertsEnabled reports whether all three thresholds are configured.
func (c Channel) AlertsEnabled() bool {
	return c.NTHThreshold != nil && c.NTBThreshold != nil && c.OverflowThreshold != nil
}

// EmailGroup is a named list of alert recipients.
type EmailGroup struct {
	ID     int      `toml:"id" json:"id"`
	Emails []string `toml:"emails" json:"emails"`
}

// Registry is the immutable set of configured channels and email groups.
type Registry struct {
	channels []Channel
	byID     map[int]int
	groups   map[int][]string
}

type registryFile struct {
	Channels    []Channel    `toml:"channel"`
	EmailGroups []EmailGroup `toml:"email_group"`
}

// Default returns the registry embedded in the binary.
func Default() (*Registry, error) {
	return Parse(defaultRegistry)
}

// Load reads a TOML registry from path, or the embedded one when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channels file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML registry document.
func Parse(data []byte) (*Registry, error) {
	var f registryFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}

	reg := &Registry{
		channels: make([]Channel, 0, len(f.Channels)),
		byID:     make(map[int]int, len(f.Channels)),
		groups:   make(map[int][]string, len(f.EmailGroups)),
	}

	for _, g := range f.EmailGroups {
		if _, dup := reg.groups[g.ID]; dup {
			return nil, fmt.Errorf("duplicate email group %d", g.ID)
		}
		reg.groups[g.ID] = append([]string(nil), g.Emails...)
	}

	for _, ch := range f.Channels {
		if err := validate(ch); err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch.ID, err)
		}
		if _, dup := reg.byID[ch.ID]; dup {
			return nil, fmt.Errorf("duplicate channel %d", ch.ID)
		}
		reg.byID[ch.ID] = len(reg.channels)
		reg.channels = append(reg.channels, ch)
	}

	return reg, nil
}

func validate(ch Channel) error {
	if ch.ID <= 0 {
		return errors.New("id must be positive")
	}
	if ch.EnableFlowCalculation && ch.Surface != nil && *ch.Surface <= 0 {
		return errors.New("surface must be positive")
	}
	if ch.EnableFiltering && ch.FilterWindowSize < 1 {
		return errors.New("filter_window_size must be at least 1")
	}
	if len(ch.Pumps) > MaxPumps {
		return fmt.Errorf("at most %d pumps are supported", MaxPumps)
	}
	for _, p := range ch.Pumps {
		if p.FlowRate < 0 {
			return fmt.Errorf("pump %d: negative flow rate", p.ID)
		}
	}
	return nil
}

// Channels returns the channels in registry order.
func (r *Registry) Channels() []Channel {
	out := make([]Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// Channel looks up a channel by id.
func (r *Registry) Channel(id int) (Channel, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Channel{}, false
	}
	return r.channels[idx], true
}

// Emails resolves a channel's email group. An unknown or missing group yields
// an empty, non-nil list.
func (r *Registry) Emails(groupID *int) []string {
	if groupID == nil {
		return []string{}
	}
	emails, ok := r.groups[*groupID]
	if !ok {
		return []string{}
	}
	return append([]string{}, emails...)
}

// GroupIDs returns the configured email group ids, ascending.
func (r *Registry) GroupIDs() []int {
	ids := make([]int, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
