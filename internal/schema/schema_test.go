package schema

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamgen/internal/dictionary"
	"streamgen/internal/models"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestRandomRangeIntWithinBounds(t *testing.T) {
	gen, err := Compile([]models.FieldSpec{
		{Name: "id", Type: models.TypeInt, Rule: models.RuleRandomRange, Min: floatPtr(1), Max: floatPtr(5)},
	}, nil, testRand(), nil)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		record, err := gen.Generate()
		require.NoError(t, err)
		v, ok := record.Get("id")
		require.True(t, ok)
		n := v.(int64)
		assert.GreaterOrEqual(t, n, int64(1))
		assert.LessOrEqual(t, n, int64(5))
	}
}

func TestRandomRangeDoubleWithinBounds(t *testing.T) {
	gen, err := Compile([]models.FieldSpec{
		{Name: "score", Type: models.TypeDouble, Rule: models.RuleRandomRange, Min: floatPtr(0.5), Max: floatPtr(9.5)},
	}, nil, testRand(), nil)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		record, err := gen.Generate()
		require.NoError(t, err)
		v, _ := record.Get("score")
		f := v.(float64)
		assert.GreaterOrEqual(t, f, 0.5)
		assert.LessOrEqual(t, f, 9.5)
	}
}

func TestRandomRangeValidation(t *testing.T) {
	var configErr *models.ConfigError

	_, err := Compile([]models.FieldSpec{
		{Name: "id", Type: models.TypeInt, Rule: models.RuleRandomRange, Min: floatPtr(10), Max: floatPtr(1)},
	}, nil, testRand(), nil)
	require.ErrorAs(t, err, &configErr, "min > max must fail at compile time")

	_, err = Compile([]models.FieldSpec{
		{Name: "id", Type: models.TypeInt, Rule: models.RuleRandomRange},
	}, nil, testRand(), nil)
	require.ErrorAs(t, err, &configErr, "missing bounds must fail at compile time")

	_, err = Compile([]models.FieldSpec{
		{Name: "id", Type: models.TypeString, Rule: models.RuleRandomRange, Min: floatPtr(1), Max: floatPtr(5)},
	}, nil, testRand(), nil)
	require.ErrorAs(t, err, &configErr, "random_range on string must fail at compile time")
}

func TestRandomFromListMembership(t *testing.T) {
	gen, err := Compile([]models.FieldSpec{
		{Name: "name", Type: models.TypeString, Rule: models.RuleRandomFromList, List: []any{"a", "b"}},
	}, nil, testRand(), nil)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		record, err := gen.Generate()
		require.NoError(t, err)
		v, _ := record.Get("name")
		assert.Contains(t, []any{"a", "b"}, v)
	}
}

func TestRandomFromListEmpty(t *testing.T) {
	var configErr *models.ConfigError
	_, err := Compile([]models.FieldSpec{
		{Name: "name", Type: models.TypeString, Rule: models.RuleRandomFromList},
	}, nil, testRand(), nil)
	require.ErrorAs(t, err, &configErr)
}

func TestRandomFromListCoercion(t *testing.T) {
	gen, err := Compile([]models.FieldSpec{
		{Name: "n", Type: models.TypeInt, Rule: models.RuleRandomFromList, List: []any{1, 2, 3}},
	}, nil, testRand(), nil)
	require.NoError(t, err)

	record, err := gen.Generate()
	require.NoError(t, err)
	v, _ := record.Get("n")
	assert.IsType(t, int64(0), v)
}

func TestRandomFromDictionary(t *testing.T) {
	dicts := dictionary.NewStore()
	dicts.Add(dictionary.New("ships", []map[string]string{
		{"id": "SHIP001"},
		{"id": "SHIP002"},
	}))

	gen, err := Compile([]models.FieldSpec{
		{Name: "ship", Type: models.TypeString, Rule: models.RuleRandomFromDictionary, Dictionary: "ships", Column: "id"},
	}, dicts, testRand(), nil)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		record, err := gen.Generate()
		require.NoError(t, err)
		v, _ := record.Get("ship")
		assert.Contains(t, []any{"SHIP001", "SHIP002"}, v)
	}
}

func TestRandomFromDictionaryDanglingReference(t *testing.T) {
	var configErr *models.ConfigError

	_, err := Compile([]models.FieldSpec{
		{Name: "ship", Type: models.TypeString, Rule: models.RuleRandomFromDictionary, Dictionary: "ships", Column: "id"},
	}, dictionary.NewStore(), testRand(), nil)
	require.ErrorAs(t, err, &configErr, "unknown dictionary must fail at compile time")

	dicts := dictionary.NewStore()
	dicts.Add(dictionary.New("ships", []map[string]string{{"id": "SHIP001"}}))
	_, err = Compile([]models.FieldSpec{
		{Name: "ship", Type: models.TypeString, Rule: models.RuleRandomFromDictionary, Dictionary: "ships", Column: "owner"},
	}, dicts, testRand(), nil)
	require.ErrorAs(t, err, &configErr, "unknown column must fail at compile time")
}

func TestRandomFromDictionaryEmptyAtCallTime(t *testing.T) {
	// An empty CSV file still declares its columns through the column map,
	// so compilation succeeds and the empty table surfaces at generation.
	path := filepath.Join(t.TempDir(), "codes.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	dict, err := dictionary.LoadCSV("codes", path, map[string]int{"code": 0})
	require.NoError(t, err)
	dicts := dictionary.NewStore()
	dicts.Add(dict)

	gen, err := Compile([]models.FieldSpec{
		{Name: "code", Type: models.TypeString, Rule: models.RuleRandomFromDictionary, Dictionary: "codes", Column: "code"},
	}, dicts, testRand(), nil)
	require.NoError(t, err)

	_, err = gen.Generate()
	var genErr *models.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "code", genErr.Field)
}

func TestNowFormats(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	gen, err := Compile([]models.FieldSpec{
		{Name: "ts_long", Type: models.TypeLong, Rule: models.RuleNow},
		{Name: "ts_str", Type: models.TypeString, Rule: models.RuleNow},
	}, nil, testRand(), fixedClock(at))
	require.NoError(t, err)

	record, err := gen.Generate()
	require.NoError(t, err)

	v, _ := record.Get("ts_long")
	assert.Equal(t, at.UnixMilli(), v, "long now must be epoch milliseconds")

	v, _ = record.Get("ts_str")
	assert.Equal(t, at.Format(time.RFC3339Nano), v, "string now must be ISO-8601")
}

func TestNowRejectsDouble(t *testing.T) {
	var configErr *models.ConfigError
	_, err := Compile([]models.FieldSpec{
		{Name: "ts", Type: models.TypeDouble, Rule: models.RuleNow},
	}, nil, testRand(), nil)
	require.ErrorAs(t, err, &configErr)
}

func TestConstant(t *testing.T) {
	gen, err := Compile([]models.FieldSpec{
		{Name: "source", Type: models.TypeString, Rule: models.RuleConstant, Value: "sensor-1"},
		{Name: "version", Type: models.TypeInt, Rule: models.RuleConstant, Value: 3},
		{Name: "enabled", Type: models.TypeBoolean, Rule: models.RuleConstant, Value: true},
	}, nil, testRand(), nil)
	require.NoError(t, err)

	record, err := gen.Generate()
	require.NoError(t, err)

	v, _ := record.Get("source")
	assert.Equal(t, "sensor-1", v)
	v, _ = record.Get("version")
	assert.Equal(t, int64(3), v)
	v, _ = record.Get("enabled")
	assert.Equal(t, true, v)
}

func TestConstantTypeMismatch(t *testing.T) {
	var configErr *models.ConfigError
	_, err := Compile([]models.FieldSpec{
		{Name: "n", Type: models.TypeInt, Rule: models.RuleConstant, Value: "not-a-number"},
	}, nil, testRand(), nil)
	require.ErrorAs(t, err, &configErr, "constant value must be type-checked at compile time")
}

func TestDuplicateFieldNames(t *testing.T) {
	var configErr *models.ConfigError
	_, err := Compile([]models.FieldSpec{
		{Name: "id", Type: models.TypeInt, Rule: models.RuleConstant, Value: 1},
		{Name: "id", Type: models.TypeInt, Rule: models.RuleConstant, Value: 2},
	}, nil, testRand(), nil)
	require.ErrorAs(t, err, &configErr)
}

func TestUnknownRule(t *testing.T) {
	var configErr *models.ConfigError
	_, err := Compile([]models.FieldSpec{
		{Name: "id", Type: models.TypeInt, Rule: "surprise_me"},
	}, nil, testRand(), nil)
	require.ErrorAs(t, err, &configErr)
}

func TestEmptySchema(t *testing.T) {
	var configErr *models.ConfigError
	_, err := Compile(nil, nil, testRand(), nil)
	require.ErrorAs(t, err, &configErr)
}

func TestGenerateSerializesInDeclarationOrder(t *testing.T) {
	gen, err := Compile([]models.FieldSpec{
		{Name: "zed", Type: models.TypeInt, Rule: models.RuleConstant, Value: 1},
		{Name: "apple", Type: models.TypeString, Rule: models.RuleConstant, Value: "x"},
	}, nil, testRand(), nil)
	require.NoError(t, err)

	record, err := gen.Generate()
	require.NoError(t, err)
	out, err := json.Marshal(record)
	require.NoError(t, err)
	assert.Equal(t, `{"zed":1,"apple":"x"}`, string(out))
}
