package schema

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"time"

	"streamgen/internal/dictionary"
	"streamgen/internal/models"
)

// The rule library. Each compile function validates its parameters once and
// returns a closure over the validated values, the shared random source and
// the clock.

func compileRandomRange(spec models.FieldSpec, rng *rand.Rand) (fieldGen, error) {
	if spec.Min == nil || spec.Max == nil {
		return nil, &models.ConfigError{Field: spec.Name, Reason: "random_range requires min and max"}
	}
	if !spec.Type.Numeric() {
		return nil, &models.ConfigError{Field: spec.Name, Reason: fmt.Sprintf("random_range not supported for type %q", spec.Type)}
	}
	min, max := *spec.Min, *spec.Max
	if min > max {
		return nil, &models.ConfigError{Field: spec.Name, Reason: fmt.Sprintf("min %v greater than max %v", min, max)}
	}

	if spec.Type == models.TypeDouble {
		return func() (any, error) {
			v := min + rng.Float64()*(max-min)
			// two decimal places, matching the produced wire format
			return math.Round(v*100) / 100, nil
		}, nil
	}

	lo, hi := int64(min), int64(max)
	return func() (any, error) {
		return lo + rng.Int63n(hi-lo+1), nil
	}, nil
}

func compileRandomFromList(spec models.FieldSpec, rng *rand.Rand) (fieldGen, error) {
	if len(spec.List) == 0 {
		return nil, &models.ConfigError{Field: spec.Name, Reason: "random_from_list requires a non-empty list"}
	}
	values := make([]any, len(spec.List))
	for i, raw := range spec.List {
		v, err := coerce(raw, spec.Type)
		if err != nil {
			return nil, &models.ConfigError{Field: spec.Name, Reason: fmt.Sprintf("list entry %d: %v", i, err)}
		}
		values[i] = v
	}
	return func() (any, error) {
		return values[rng.Intn(len(values))], nil
	}, nil
}

func compileRandomFromDictionary(spec models.FieldSpec, dicts *dictionary.Store, rng *rand.Rand) (fieldGen, error) {
	if spec.Dictionary == "" {
		return nil, &models.ConfigError{Field: spec.Name, Reason: "random_from_dictionary requires a dictionary name"}
	}
	if spec.Column == "" {
		return nil, &models.ConfigError{Field: spec.Name, Reason: "random_from_dictionary requires a dictionary column"}
	}
	if dicts == nil {
		return nil, &models.ConfigError{Field: spec.Name, Reason: fmt.Sprintf("dictionary %q not loaded", spec.Dictionary)}
	}
	dict, ok := dicts.Get(spec.Dictionary)
	if !ok {
		return nil, &models.ConfigError{Field: spec.Name, Reason: fmt.Sprintf("dictionary %q not loaded", spec.Dictionary)}
	}
	if !dict.HasColumn(spec.Column) {
		return nil, &models.ConfigError{Field: spec.Name, Reason: fmt.Sprintf("column %q not found in dictionary %q", spec.Column, spec.Dictionary)}
	}

	name, column := spec.Name, spec.Column
	return func() (any, error) {
		n := dict.Len()
		if n == 0 {
			return nil, &models.GenerationError{Field: name, Reason: fmt.Sprintf("dictionary %q is empty", dict.Name())}
		}
		v, err := dict.Value(rng.Intn(n), column)
		if err != nil {
			return nil, &models.GenerationError{Field: name, Reason: err.Error()}
		}
		return v, nil
	}, nil
}

func compileNow(spec models.FieldSpec, clock func() time.Time) (fieldGen, error) {
	switch spec.Type {
	case models.TypeInt, models.TypeLong:
		return func() (any, error) {
			return clock().UnixMilli(), nil
		}, nil
	case models.TypeString:
		return func() (any, error) {
			return clock().Format(time.RFC3339Nano), nil
		}, nil
	default:
		return nil, &models.ConfigError{Field: spec.Name, Reason: fmt.Sprintf("now not supported for type %q", spec.Type)}
	}
}

func compileConstant(spec models.FieldSpec) (fieldGen, error) {
	if spec.Value == nil {
		return nil, &models.ConfigError{Field: spec.Name, Reason: "constant requires a value"}
	}
	v, err := coerce(spec.Value, spec.Type)
	if err != nil {
		return nil, &models.ConfigError{Field: spec.Name, Reason: err.Error()}
	}
	return func() (any, error) {
		return v, nil
	}, nil
}

// coerce converts a raw configuration value to the field's declared type.
func coerce(raw any, t models.FieldType) (any, error) {
	switch t {
	case models.TypeInt, models.TypeLong:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("value %q is not an integer", v)
			}
			return n, nil
		}
	case models.TypeDouble:
		switch v := raw.(type) {
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case float64:
			return v, nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("value %q is not a number", v)
			}
			return f, nil
		}
	case models.TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("value %q is not a boolean", v)
			}
			return b, nil
		}
	case models.TypeString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) does not match declared type %q", raw, raw, t)
}
