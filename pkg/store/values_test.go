package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

func TestValueRoundTrip(t *testing.T) {
	when := time.Date(2024, 5, 17, 10, 30, 45, 0, time.UTC)

	cases := []struct {
		name string
		typ  repository.PropertyType
		val  repository.Value
	}{
		{"string", repository.TypeString, repository.NewStringValue("hello, world")},
		{"html", repository.TypeHTML, repository.NewHTMLValue("<p>x</p>")},
		{"image ref", repository.TypeImageRef, repository.NewImageRefValue("/img/logo.png")},
		{"int", repository.TypeInt, repository.NewIntValue(-42)},
		{"long", repository.TypeLong, repository.NewLongValue(1 << 40)},
		{"boolean", repository.TypeBoolean, repository.NewBooleanValue(true)},
		{"date", repository.TypeDate, repository.NewDateValue(when)},
		{"timestamp", repository.TypeTimestamp, repository.NewTimestampValue(when)},
		{"principal", repository.TypePrincipal, repository.NewPrincipalValue(repository.NewUserPrincipal("alice"))},
		{"binary", repository.TypeBinary, repository.NewBinaryValue([]byte{0, 1, 2, 0xff})},
		{"json", repository.TypeJSON, repository.NewJSONValue(json.RawMessage(`{"a":1}`))},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, err := encodeValue(c.val)
			if err != nil {
				t.Fatalf("encodeValue: %v", err)
			}
			got, err := parseValue(c.typ, s)
			if err != nil {
				t.Fatalf("parseValue(%q): %v", s, err)
			}
			switch c.typ {
			case repository.TypeDate, repository.TypeTimestamp:
				if !got.Time.Equal(c.val.Time) {
					t.Errorf("time round trip = %v, want %v", got.Time, c.val.Time)
				}
			case repository.TypeBinary:
				if string(got.Binary) != string(c.val.Binary) {
					t.Errorf("binary round trip = %v", got.Binary)
				}
			case repository.TypeJSON:
				if string(got.JSON) != string(c.val.JSON) {
					t.Errorf("json round trip = %s", got.JSON)
				}
			case repository.TypePrincipal:
				if got.Principal != c.val.Principal {
					t.Errorf("principal round trip = %v", got.Principal)
				}
			default:
				if got.Str != c.val.Str || got.Int != c.val.Int || got.Bool != c.val.Bool {
					t.Errorf("round trip = %+v, want %+v", got, c.val)
				}
			}
		})
	}
}

func TestParseValueErrors(t *testing.T) {
	cases := []struct {
		typ repository.PropertyType
		s   string
	}{
		{repository.TypeInt, "not-a-number"},
		{repository.TypeInt, "99999999999"}, // overflows int32
		{repository.TypeLong, "x"},
		{repository.TypeBoolean, "maybe"},
		{repository.TypeDate, "someday"},
		{repository.TypeBinary, "!!not-base64!!"},
		{repository.TypeJSON, "{broken"},
	}
	for _, c := range cases {
		if _, err := parseValue(c.typ, c.s); err == nil {
			t.Errorf("parseValue(%v, %q) expected error", c.typ, c.s)
		}
	}
}

func TestParseValueTolerantDates(t *testing.T) {
	got, err := parseValue(repository.TypeDate, "2024-05-17")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	if !got.Time.Equal(want) {
		t.Errorf("parsed %v, want %v", got.Time, want)
	}
}

func TestEncodeParseValuesMultiValued(t *testing.T) {
	def := repository.PropertyDefinition{Name: "keywords", Type: repository.TypeString, Multiple: true}
	prop := repository.Property{Name: "keywords", Type: repository.TypeString, Multi: true,
		Values: []repository.Value{
			repository.NewStringValue("plain"),
			repository.NewStringValue("with, comma"),
			repository.NewStringValue(`with \ backslash`),
			repository.NewStringValue(""),
		}}

	joined, err := encodeValues(prop)
	if err != nil {
		t.Fatal(err)
	}
	values, err := parseValues(def, joined)
	if err != nil {
		t.Fatalf("parseValues(%q): %v", joined, err)
	}
	if len(values) != 4 {
		t.Fatalf("got %d values", len(values))
	}
	for i, v := range values {
		if v.Str != prop.Values[i].Str {
			t.Errorf("value %d = %q, want %q", i, v.Str, prop.Values[i].Str)
		}
	}
}

func TestParseValuesMalformed(t *testing.T) {
	def := repository.PropertyDefinition{Name: "pages", Type: repository.TypeInt}
	if _, err := parseValues(def, "12,oops"); err == nil {
		t.Error("undecodable element should fail")
	}
	if _, err := parseValues(def, `1\x`); err == nil {
		t.Error("stray escape should fail")
	}
}
