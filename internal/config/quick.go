package config

import (
	"strings"

	"streamgen/internal/models"
)

// ParseQuickSchema parses an inline schema like "id:int,name:string" into
// field specs with default rules: numeric fields draw from [1,100], strings
// pick from a fixed sample list, booleans flip a coin.
func ParseQuickSchema(schema string) ([]models.FieldSpec, error) {
	defs := strings.Split(schema, ",")
	fields := make([]models.FieldSpec, 0, len(defs))
	for _, def := range defs {
		name, typeStr, ok := strings.Cut(strings.TrimSpace(def), ":")
		if !ok {
			return nil, &models.ConfigError{Reason: "invalid field definition " + def}
		}
		name = strings.TrimSpace(name)
		fieldType := models.FieldType(strings.ToLower(strings.TrimSpace(typeStr)))

		switch fieldType {
		case models.TypeInt, models.TypeLong, models.TypeDouble:
			lo, hi := 1.0, 100.0
			fields = append(fields, models.FieldSpec{
				Name: name,
				Type: fieldType,
				Rule: models.RuleRandomRange,
				Min:  &lo,
				Max:  &hi,
			})
		case models.TypeString:
			fields = append(fields, models.FieldSpec{
				Name: name,
				Type: fieldType,
				Rule: models.RuleRandomFromList,
				List: []any{"value1", "value2", "value3"},
			})
		case models.TypeBoolean:
			fields = append(fields, models.FieldSpec{
				Name: name,
				Type: fieldType,
				Rule: models.RuleRandomFromList,
				List: []any{true, false},
			})
		default:
			return nil, &models.ConfigError{Field: name, Reason: "unsupported field type " + string(fieldType)}
		}
	}
	return fields, nil
}
