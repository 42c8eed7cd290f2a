// Package telemetry models per-channel field series and assembles them from
// bounded fetch windows.
package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
)

var (
	// ErrNoData means every window of a request failed.
	ErrNoData = errors.New("could not retrieve data")
	// ErrInvalidEnvelope means a response lacked channel identity or feeds.
	ErrInvalidEnvelope = errors.New("invalid telemetry envelope")
	// ErrParseValue means a field value was not a number.
	ErrParseValue = errors.New("unparsable field value")
)

// FieldKey identifies one of the eight upstream fields (field1..field8).
type FieldKey int

const (
	FirstField FieldKey = 1
	LastField  FieldKey = 8
)

// Valid reports whether k is within field1..field8.
func (k FieldKey) Valid() bool {
	return k >= FirstField && k <= LastField
}

func (k FieldKey) String() string {
	return "field" + strconv.Itoa(int(k))
}

// MarshalText lets FieldKey serve as a JSON object key ("field1").
func (k FieldKey) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid field key %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses "fieldN".
func (k *FieldKey) UnmarshalText(text []byte) error {
	parsed, err := ParseFieldKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseFieldKey parses "field1".."field8".
func ParseFieldKey(s string) (FieldKey, error) {
	rest, ok := strings.CutPrefix(s, "field")
	if !ok {
		return 0, fmt.Errorf("invalid field key %q", s)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || !FieldKey(n).Valid() {
		return 0, fmt.Errorf("invalid field key %q", s)
	}
	return FieldKey(n), nil
}

// Sample is one timestamped value of one field.
type Sample struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ChannelData is the telemetry of one channel over a time range. After Merge
// every series is strictly increasing in Date.
type ChannelData struct {
	Name   string                `json:"name"`
	Fields map[FieldKey]string   `json:"fields"`
	Data   map[FieldKey][]Sample `json:"data"`
}

// Series returns the samples of one field, nil when absent.
func (d *ChannelData) Series(key FieldKey) []Sample {
	if d == nil {
		return nil
	}
	return d.Data[key]
}

// Latest returns the most recent sample of a field.
func (d *ChannelData) Latest(key FieldKey) (Sample, bool) {
	series := d.Series(key)
	if len(series) == 0 {
		return Sample{}, false
	}
	return series[len(series)-1], true
}

// Role is the meaning of a field for a given channel.
type Role int

const (
	RoleUnknown Role = iota
	RoleLevel
	RolePumpState
)

// LevelField carries the water level in centimeters on every channel.
const LevelField FieldKey = 1

// Schema maps field keys to roles, resolved once per channel.
type Schema struct {
	Level FieldKey
	Pumps []FieldKey
}

// SchemaFor resolves the field roles of a channel: level on field1, the pump
// at index i on field i+2.
func SchemaFor(ch channels.Channel) Schema {
	s := Schema{Level: LevelField}
	for i := range ch.Pumps {
		key := FieldKey(i + 2)
		if !key.Valid() {
			break
		}
		s.Pumps = append(s.Pumps, key)
	}
	return s
}

// Role returns the role of key and, for pump fields, the pump index.
func (s Schema) Role(key FieldKey) (Role, int) {
	if key == s.Level {
		return RoleLevel, 0
	}
	for i, k := range s.Pumps {
		if k == key {
			return RolePumpState, i
		}
	}
	return RoleUnknown, 0
}
