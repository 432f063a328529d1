// Package keys derives the optional dispatch key from a generated record.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamgen/internal/models"
)

// KeyFunc computes the dispatch key for a record. The second return value is
// false when the strategy produces no key.
type KeyFunc func(record *models.Record) (string, bool)

// Compile validates the key configuration against the declared fields and
// returns the key derivation function. Field references are checked here, at
// compile time, never at dispatch time.
func Compile(cfg models.KeyConfig, fields []models.FieldSpec, clock func() time.Time) (KeyFunc, error) {
	if clock == nil {
		clock = time.Now
	}
	declared := make(map[string]bool, len(fields))
	for _, f := range fields {
		declared[f.Name] = true
	}

	switch cfg.Strategy {
	case models.KeyNone, "":
		return func(*models.Record) (string, bool) {
			return "", false
		}, nil

	case models.KeyField:
		if len(cfg.Fields) != 1 {
			return nil, &models.ConfigError{Field: "key", Reason: "field strategy requires exactly one field name"}
		}
		name := cfg.Fields[0]
		if !declared[name] {
			return nil, &models.ConfigError{Field: "key", Reason: fmt.Sprintf("key field %q is not a declared field", name)}
		}
		return func(record *models.Record) (string, bool) {
			v, ok := record.Get(name)
			if !ok {
				return "", false
			}
			return stringify(v), true
		}, nil

	case models.KeyRandom:
		return func(*models.Record) (string, bool) {
			return uuid.New().String(), true
		}, nil

	case models.KeyTimestamp:
		return func(*models.Record) (string, bool) {
			return strconv.FormatInt(clock().UnixMilli(), 10), true
		}, nil

	case models.KeyComposite:
		if len(cfg.Fields) == 0 {
			return nil, &models.ConfigError{Field: "key", Reason: "composite strategy requires at least one field name"}
		}
		for _, name := range cfg.Fields {
			if !declared[name] {
				return nil, &models.ConfigError{Field: "key", Reason: fmt.Sprintf("key field %q is not a declared field", name)}
			}
		}
		names := append([]string(nil), cfg.Fields...)
		return func(record *models.Record) (string, bool) {
			parts := make([]string, 0, len(names))
			for _, name := range names {
				v, ok := record.Get(name)
				if !ok {
					return "", false
				}
				parts = append(parts, stringify(v))
			}
			return strings.Join(parts, "_"), true
		}, nil

	default:
		return nil, &models.ConfigError{Field: "key", Reason: fmt.Sprintf("unknown key strategy %q", cfg.Strategy)}
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}
