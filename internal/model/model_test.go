package model

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

type color int

const (
	red color = iota + 1
	green
	blue
)

type perm int

const (
	permRead perm = 1 << iota
	permWrite
	permAll = permRead | permWrite
)

var (
	innerSchema = NewSchema("Inner",
		Text("Content", "c", IsRequired(), NotEmpty()),
		Int("Kind", "t", Default(1)),
	)

	recordSchema = NewSchema("Record",
		Nested("Inner", "in", innerSchema, IsRequired()),
		Text("Title", "ti", MaxLength(8)),
		Text("Code", "cd", Regex(regexp.MustCompile(`^[a-z]*$`))),
		Int("Count", "n", NonNegative()),
		Float("Ratio", "r"),
		Bool("Active", "a", Default(true)),
		Bool("Flagged", "f"),
		DateTime("At", "at", AllowNone(), Default(nil)),
		ObjectID("Owner", "o"),
		Enum("Color", "col", []color{red, green, blue}),
		Flag("Perm", "p", permAll),
		Array("Tags", "tg", Text("Tag", "tag", NotEmpty()), MaxLength(3)),
		Dict("Meta", "m", nil),
		Text("Frozen", "fz", ReadOnly()),
		Int("Strict", "st", NoAutoCast()),
		URL("Link", "l"),
	)
)

func minimal() Values {
	return Values{"Inner": Values{"Content": "hello"}}
}

func TestFromApp_Defaults(t *testing.T) {
	m, err := recordSchema.FromApp(minimal())
	require.NoError(t, err)

	assert.Equal(t, "hello", m.Nested("Inner").String("Content"))
	assert.Equal(t, 1, m.Nested("Inner").Int("Kind"))
	assert.Equal(t, "", m.String("Title"))
	assert.Equal(t, 0, m.Int("Count"))
	assert.True(t, m.Bool("Active"))
	assert.False(t, m.Bool("Flagged"))
	assert.Nil(t, m.Get("At"))
	assert.Equal(t, red, Value[color](m, "Color"))
	assert.Equal(t, perm(0), Value[perm](m, "Perm"))
	assert.Empty(t, m.List("Tags"))
	assert.False(t, m.HasID())
}

func TestFromApp_RequiredMissing(t *testing.T) {
	_, err := recordSchema.FromApp(Values{"Title": "x"})
	var rk *RequiredKeyNotFilledError
	require.ErrorAs(t, err, &rk)
	assert.Equal(t, []string{"Inner"}, rk.Keys)
	assert.ErrorIs(t, err, ErrRequiredKeyNotFilled)
}

func TestFromApp_UnknownKey(t *testing.T) {
	v := minimal()
	v["Nope"] = 1
	_, err := recordSchema.FromApp(v)
	var fk *FieldKeyNotExistError
	require.ErrorAs(t, err, &fk)
	assert.False(t, fk.Storage)
	assert.ErrorIs(t, err, ErrFieldKeyNotExist)
	assert.NotErrorIs(t, err, ErrJSONKeyNotExist)
}

func TestFromStorage_UnknownKey(t *testing.T) {
	_, err := recordSchema.FromStorage(Document{"in": map[string]any{"c": "x"}, "zz": 1})
	assert.ErrorIs(t, err, ErrJSONKeyNotExist)
	assert.ErrorIs(t, err, ErrFieldKeyNotExist)
}

func TestFromApp_IDRequiresOptIn(t *testing.T) {
	v := minimal()
	v[FieldID] = oid.New()
	_, err := recordSchema.FromApp(v)
	assert.ErrorIs(t, err, ErrIDUnavailable)

	withID := NewSchema("WithID", Text("Name", "n"))
	withID.WithOID = true
	id := oid.New()
	m, err := withID.FromApp(Values{FieldID: id, "Name": "a"})
	require.NoError(t, err)
	assert.Equal(t, id, m.ID())
}

func TestFieldErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		set  Values
		kind error
	}{
		{"type mismatch", Values{"Count": []int{1}}, ErrTypeMismatch},
		{"cast failed", Values{"Count": "abc"}, ErrCastingFailed},
		{"non integral float", Values{"Count": 1.5}, ErrCastingFailed},
		{"negative", Values{"Count": -1}, ErrValueInvalid},
		{"too long", Values{"Title": "123456789"}, ErrValueInvalid},
		{"regex", Values{"Code": "ABC"}, ErrValueInvalid},
		{"none not allowed", Values{"Title": nil}, ErrNoneNotAllowed},
		{"enum member", Values{"Color": 9}, ErrValueInvalid},
		{"flag bits", Values{"Perm": 8}, ErrValueInvalid},
		{"array length", Values{"Tags": []string{"a", "b", "c", "d"}}, ErrValueInvalid},
		{"array element", Values{"Tags": []string{"a", ""}}, ErrValueInvalid},
		{"no auto cast", Values{"Strict": "1"}, ErrTypeMismatch},
		{"bad url", Values{"Link": "ftp://x"}, ErrValueInvalid},
		{"bad nested", Values{"Inner": Values{"Content": ""}}, ErrValueInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := minimal()
			for k, x := range tc.set {
				v[k] = x
			}
			_, err := recordSchema.FromApp(v)
			var mf *InvalidModelFieldError
			require.ErrorAs(t, err, &mf)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestAutoCast(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("X", 3600))
	owner := oid.New()
	v := minimal()
	v["Count"] = "42"
	v["Ratio"] = 2
	v["Flagged"] = int64(1)
	v["At"] = ts
	v["Owner"] = owner.Hex()
	v["Color"] = float64(3)
	v["Perm"] = "3"
	v["Tags"] = []string{"a", "b"}
	v["Meta"] = map[string]int{"k": 1}
	v["Strict"] = 5

	m, err := recordSchema.FromApp(v)
	require.NoError(t, err)
	assert.Equal(t, 42, m.Int("Count"))
	assert.Equal(t, 2.0, m.Float("Ratio"))
	assert.True(t, m.Bool("Flagged"))
	assert.Equal(t, time.UTC, m.Time("At").Location())
	assert.True(t, ts.Equal(m.Time("At")))
	assert.Equal(t, owner, m.OID("Owner"))
	assert.Equal(t, blue, Value[color](m, "Color"))
	assert.Equal(t, permAll, Value[perm](m, "Perm"))
	assert.Equal(t, []string{"a", "b"}, ListOf[string](m, "Tags"))
	assert.Equal(t, map[string]any{"k": 1}, m.Map("Meta"))
}

func TestTimeFromStorageString(t *testing.T) {
	m, err := recordSchema.FromStorage(Document{
		"in": map[string]any{"c": "x"},
		"at": "2024-01-02 03:04:05.123+00:00",
	})
	require.NoError(t, err)
	want := time.Date(2024, 1, 2, 3, 4, 5, 123000000, time.UTC)
	assert.True(t, want.Equal(m.Time("At")), "got %v", m.Time("At"))
}

func TestReadOnly(t *testing.T) {
	v := minimal()
	v["Frozen"] = "ice"
	m, err := recordSchema.FromApp(v)
	require.NoError(t, err)
	assert.Equal(t, "ice", m.String("Frozen"))

	err = m.Set("Frozen", "water")
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Equal(t, "ice", m.String("Frozen"))

	require.NoError(t, m.Set("Title", "ok"))
	assert.Equal(t, "ok", m.String("Title"))
}

func TestDeleteRejected(t *testing.T) {
	m, err := recordSchema.FromApp(minimal())
	require.NoError(t, err)
	assert.ErrorIs(t, m.Delete("Title"), ErrKeyDeletion)
}

func TestToJSONRoundTrip(t *testing.T) {
	doc := Document{
		"in":  map[string]any{"c": "hello", "t": 2},
		"ti":  "title",
		"n":   3,
		"a":   false,
		"col": 1,
		"tg":  []any{"x"},
	}
	m, err := recordSchema.FromStorage(doc)
	require.NoError(t, err)
	assert.Equal(t, doc, m.ToJSON())

	again, err := recordSchema.FromStorage(m.ToJSON())
	require.NoError(t, err)
	assert.True(t, m.Equal(again))
	assert.Equal(t, m.Hash(), again.Hash())
}

func TestToJSONKeepsNonEmptyDefaults(t *testing.T) {
	m, err := recordSchema.FromApp(minimal())
	require.NoError(t, err)
	j := m.ToJSON()
	assert.Equal(t, true, j["a"])
	assert.Equal(t, 1, j["col"])
	assert.NotContains(t, j, "ti")
	assert.NotContains(t, j, "f")
	assert.Contains(t, j, "in")
}

func TestToDocumentIsComplete(t *testing.T) {
	m, err := recordSchema.FromApp(minimal())
	require.NoError(t, err)
	m.SetID(oid.New())
	doc := m.ToDocument()
	assert.Len(t, doc, len(recordSchema.Fields())+1)
	assert.Equal(t, m.ID().Hex(), doc[KeyID])
}

func TestCast(t *testing.T) {
	m, err := recordSchema.FromApp(minimal())
	require.NoError(t, err)

	same, err := recordSchema.Cast(m)
	require.NoError(t, err)
	assert.Same(t, m, same)

	fromMap, err := recordSchema.Cast(map[string]any{"in": map[string]any{"c": "hello"}})
	require.NoError(t, err)
	twice, err := recordSchema.Cast(fromMap)
	require.NoError(t, err)
	assert.True(t, fromMap.Equal(twice))

	_, err = recordSchema.Cast(42)
	assert.ErrorIs(t, err, ErrUncastable)

	other, err := innerSchema.FromApp(Values{"Content": "x"})
	require.NoError(t, err)
	_, err = recordSchema.Cast(other)
	assert.ErrorIs(t, err, ErrUncastable)
}

func TestGenerateDefault(t *testing.T) {
	_, err := innerSchema.GenerateDefault(nil)
	assert.ErrorIs(t, err, ErrRequiredKeyNotFilled)

	m, err := innerSchema.GenerateDefault(Values{"Content": "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Int("Kind"))
}

func TestValidityHook(t *testing.T) {
	s := NewSchema("Pair",
		ObjectID("A", "a", AllowNone(), Default(nil)),
		ObjectID("B", "b", AllowNone(), Default(nil)),
	)
	s.Validity = func(m *Model) ValidityResult {
		if m.Get("A") == nil && m.Get("B") == nil {
			return ValidityNoIdentity
		}
		return ValidityOK
	}

	_, err := s.FromApp(Values{})
	var im *InvalidModelError
	require.ErrorAs(t, err, &im)
	assert.Equal(t, ValidityNoIdentity, im.Result)

	m, err := s.FromApp(Values{"A": oid.New()})
	require.NoError(t, err)
	err = m.Set("A", nil)
	assert.ErrorIs(t, err, ErrInvalidModel)
	assert.NotNil(t, m.Get("A"), "failed Set must keep the previous value")

	custom := errors.New("custom")
	s.OnInvalid = func(*Model, ValidityResult) error { return custom }
	_, err = s.FromApp(Values{})
	assert.ErrorIs(t, err, custom)
	s.OnInvalid = nil
}

func TestFieldByPath(t *testing.T) {
	f, ok := recordSchema.FieldByPath("in.c")
	require.True(t, ok)
	assert.Equal(t, "Content", f.Name())

	_, ok = recordSchema.FieldByPath("in.zz")
	assert.False(t, ok)
	_, ok = recordSchema.FieldByPath("ti.x")
	assert.False(t, ok)
}

func TestClone(t *testing.T) {
	v := minimal()
	v["Tags"] = []string{"a"}
	m, err := recordSchema.FromApp(v)
	require.NoError(t, err)

	c := m.Clone()
	require.NoError(t, c.Set("Tags", []string{"b", "c"}))
	require.NoError(t, c.Nested("Inner").Set("Content", "changed"))
	assert.Equal(t, []string{"a"}, ListOf[string](m, "Tags"))
	assert.Equal(t, "hello", m.Nested("Inner").String("Content"))
}

func TestExtendedDefaultsAreIdentities(t *testing.T) {
	assert.True(t, isRequired(Required))
	assert.False(t, isRequired(Optional))
	assert.False(t, isRequired("Required"))
	assert.False(t, isOptional(&extendedDefault{name: "Optional"}))
}

func TestIsEmpty(t *testing.T) {
	f := Text("T", "t")
	assert.True(t, f.IsEmpty(nil))
	assert.True(t, f.IsEmpty(""))
	assert.False(t, f.IsEmpty("x"))
	assert.Equal(t, "", f.NoneObj())
	assert.Equal(t, time.Time{}, DateTime("D", "d").NoneObj())
}
