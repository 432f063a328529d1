package models

import (
	"fmt"
	"time"
)

// FieldType is the declared type of a generated field.
type FieldType string

const (
	TypeInt     FieldType = "int"
	TypeLong    FieldType = "long"
	TypeDouble  FieldType = "double"
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
)

// Numeric reports whether the type is one of the integer or floating types.
func (t FieldType) Numeric() bool {
	return t == TypeInt || t == TypeLong || t == TypeDouble
}

// RuleType selects the generation strategy for a field.
type RuleType string

const (
	RuleRandomRange          RuleType = "random_range"
	RuleRandomFromList       RuleType = "random_from_list"
	RuleRandomFromDictionary RuleType = "random_from_dictionary"
	RuleNow                  RuleType = "now"
	RuleConstant             RuleType = "constant"
)

// FieldSpec describes one field of a produced record. The rule-specific
// parameters are flat, matching the configuration file layout; which of them
// are required depends on Rule and is checked by the schema compiler.
type FieldSpec struct {
	Name string    `yaml:"name" json:"name"`
	Type FieldType `yaml:"type" json:"type"`
	Rule RuleType  `yaml:"rule" json:"rule"`

	// random_range
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	// random_from_list
	List []any `yaml:"list,omitempty" json:"list,omitempty"`
	// random_from_dictionary
	Dictionary string `yaml:"dictionary,omitempty" json:"dictionary,omitempty"`
	Column     string `yaml:"dictionary_column,omitempty" json:"dictionary_column,omitempty"`
	// constant
	Value any `yaml:"value,omitempty" json:"value,omitempty"`
}

// CadenceConfig is the pacing target: either Rate records per second or a
// fixed Interval between ticks. Exactly one must be set.
type CadenceConfig struct {
	Rate     int           `yaml:"rate,omitempty" json:"rate,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
}

// Period converts the cadence into the tick period.
func (c CadenceConfig) Period() (time.Duration, error) {
	switch {
	case c.Rate > 0 && c.Interval > 0:
		return 0, &ConfigError{Field: "cadence", Reason: "rate and interval are mutually exclusive"}
	case c.Rate > 0:
		return time.Second / time.Duration(c.Rate), nil
	case c.Interval > 0:
		return c.Interval, nil
	default:
		return 0, &ConfigError{Field: "cadence", Reason: "either rate or interval must be set"}
	}
}

// EffectiveRate is the cadence expressed as records per second.
func (c CadenceConfig) EffectiveRate() float64 {
	p, err := c.Period()
	if err != nil || p <= 0 {
		return 0
	}
	return float64(time.Second) / float64(p)
}

func (c CadenceConfig) String() string {
	if c.Rate > 0 {
		return fmt.Sprintf("%d/s", c.Rate)
	}
	return c.Interval.String()
}

// SinkType identifies the output destination.
type SinkType string

const (
	SinkConsole SinkType = "console"
	SinkFile    SinkType = "file"
	SinkKafka   SinkType = "kafka"
	SinkMemory  SinkType = "memory"
)

// SinkConfig selects and parameterises the output sink.
type SinkConfig struct {
	Type  SinkType `yaml:"type" json:"type"`
	Topic string   `yaml:"topic,omitempty" json:"topic,omitempty"`
	Path  string   `yaml:"path,omitempty" json:"path,omitempty"`
}

// KeyStrategy selects how the dispatch key is derived from a record.
type KeyStrategy string

const (
	KeyNone      KeyStrategy = "none"
	KeyField     KeyStrategy = "field"
	KeyRandom    KeyStrategy = "random"
	KeyTimestamp KeyStrategy = "timestamp"
	KeyComposite KeyStrategy = "composite"
)

// KeyConfig describes the dispatch key derivation. Fields is consulted by the
// field and composite strategies and must reference declared field names.
type KeyConfig struct {
	Strategy KeyStrategy `yaml:"strategy" json:"strategy"`
	Fields   []string    `yaml:"fields,omitempty" json:"fields,omitempty"`
}

// ProducerConfig is the full definition of one producer. It is immutable for
// the life of a controller except for the cadence, which may be hot-swapped.
type ProducerConfig struct {
	Name    string        `yaml:"name" json:"name"`
	Cadence CadenceConfig `yaml:"cadence" json:"cadence"`
	Sink    SinkConfig    `yaml:"sink" json:"sink"`
	Key     KeyConfig     `yaml:"key" json:"key"`
	Fields  []FieldSpec   `yaml:"fields" json:"fields"`
}
