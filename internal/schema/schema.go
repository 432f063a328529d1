// Package schema compiles field declarations into executable generators.
// Compilation is pure and happens once at producer construction; control
// operations never recompile. All randomness goes through an injected
// *rand.Rand and all time through an injected clock so that generation is
// deterministic under test.
package schema

import (
	"fmt"
	"math/rand"
	"time"

	"streamgen/internal/dictionary"
	"streamgen/internal/models"
)

// fieldGen produces one value for one field.
type fieldGen func() (any, error)

type compiledField struct {
	name string
	gen  fieldGen
}

// Generator builds records from a compiled schema. It is driven by a single
// scheduler goroutine, so the shared random source needs no locking.
type Generator struct {
	fields []compiledField
}

// Compile validates the field specs against the dictionary store and binds
// each one to a generator closure. Any invalid spec yields a ConfigError
// naming the offending field.
func Compile(fields []models.FieldSpec, dicts *dictionary.Store, rng *rand.Rand, clock func() time.Time) (*Generator, error) {
	if len(fields) == 0 {
		return nil, &models.ConfigError{Reason: "at least one field is required"}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = time.Now
	}

	g := &Generator{fields: make([]compiledField, 0, len(fields))}
	seen := make(map[string]bool, len(fields))
	for _, spec := range fields {
		if spec.Name == "" {
			return nil, &models.ConfigError{Reason: "field name must not be empty"}
		}
		if seen[spec.Name] {
			return nil, &models.ConfigError{Field: spec.Name, Reason: "duplicate field name"}
		}
		seen[spec.Name] = true

		gen, err := compileField(spec, dicts, rng, clock)
		if err != nil {
			return nil, err
		}
		g.fields = append(g.fields, compiledField{name: spec.Name, gen: gen})
	}
	return g, nil
}

// Generate builds one record, preserving field declaration order. Exactly one
// record is built per call; a failing rule aborts the record with a
// GenerationError.
func (g *Generator) Generate() (*models.Record, error) {
	record := models.NewRecord(len(g.fields))
	for _, f := range g.fields {
		v, err := f.gen()
		if err != nil {
			return nil, err
		}
		record.Set(f.name, v)
	}
	return record, nil
}

func compileField(spec models.FieldSpec, dicts *dictionary.Store, rng *rand.Rand, clock func() time.Time) (fieldGen, error) {
	switch spec.Type {
	case models.TypeInt, models.TypeLong, models.TypeDouble, models.TypeString, models.TypeBoolean:
	default:
		return nil, &models.ConfigError{Field: spec.Name, Reason: fmt.Sprintf("unknown field type %q", spec.Type)}
	}

	switch spec.Rule {
	case models.RuleRandomRange:
		return compileRandomRange(spec, rng)
	case models.RuleRandomFromList:
		return compileRandomFromList(spec, rng)
	case models.RuleRandomFromDictionary:
		return compileRandomFromDictionary(spec, dicts, rng)
	case models.RuleNow:
		return compileNow(spec, clock)
	case models.RuleConstant:
		return compileConstant(spec)
	default:
		return nil, &models.ConfigError{Field: spec.Name, Reason: fmt.Sprintf("unknown rule %q", spec.Rule)}
	}
}
