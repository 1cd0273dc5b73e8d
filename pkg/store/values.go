package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/TheEntropyCollective/propindex/pkg/index/mapping"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// dbTimeLayout is the canonical timestamp form in the value column.
const dbTimeLayout = "2006-01-02 15:04:05 -0700"

// encodeValue renders a property value as its value-column string.
func encodeValue(v repository.Value) (string, error) {
	switch v.Type {
	case repository.TypeString, repository.TypeHTML, repository.TypeImageRef:
		return v.Str, nil
	case repository.TypeInt, repository.TypeLong:
		return strconv.FormatInt(v.Int, 10), nil
	case repository.TypeBoolean:
		return strconv.FormatBool(v.Bool), nil
	case repository.TypeDate, repository.TypeTimestamp:
		return v.Time.Format(dbTimeLayout), nil
	case repository.TypePrincipal:
		return v.Principal.Name, nil
	case repository.TypeBinary:
		return base64.StdEncoding.EncodeToString(v.Binary), nil
	case repository.TypeJSON:
		return string(v.JSON), nil
	default:
		return "", fmt.Errorf("unsupported value type %v", v.Type)
	}
}

// parseValue reconstructs a property value from its value-column string.
func parseValue(typ repository.PropertyType, s string) (repository.Value, error) {
	switch typ {
	case repository.TypeString:
		return repository.NewStringValue(s), nil
	case repository.TypeHTML:
		return repository.NewHTMLValue(s), nil
	case repository.TypeImageRef:
		return repository.NewImageRefValue(s), nil
	case repository.TypeInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return repository.Value{}, fmt.Errorf("invalid int value %q: %w", s, err)
		}
		return repository.NewIntValue(int32(n)), nil
	case repository.TypeLong:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return repository.Value{}, fmt.Errorf("invalid long value %q: %w", s, err)
		}
		return repository.NewLongValue(n), nil
	case repository.TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return repository.Value{}, fmt.Errorf("invalid boolean value %q: %w", s, err)
		}
		return repository.NewBooleanValue(b), nil
	case repository.TypeDate:
		t, err := parseStoredTime(s)
		if err != nil {
			return repository.Value{}, err
		}
		return repository.NewDateValue(t), nil
	case repository.TypeTimestamp:
		t, err := parseStoredTime(s)
		if err != nil {
			return repository.Value{}, err
		}
		return repository.NewTimestampValue(t), nil
	case repository.TypePrincipal:
		return repository.NewPrincipalValue(repository.PrincipalFromStored(s, false)), nil
	case repository.TypeBinary:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return repository.Value{}, fmt.Errorf("invalid binary value: %w", err)
		}
		return repository.NewBinaryValue(b), nil
	case repository.TypeJSON:
		if !json.Valid([]byte(s)) {
			return repository.Value{}, fmt.Errorf("invalid json value")
		}
		return repository.NewJSONValue(json.RawMessage(s)), nil
	default:
		return repository.Value{}, fmt.Errorf("unsupported value type %v", typ)
	}
}

func parseStoredTime(s string) (time.Time, error) {
	if t, err := time.Parse(dbTimeLayout, s); err == nil {
		return t, nil
	}
	// Tolerate the looser human-entered forms as well.
	return mapping.ParseDateString(s)
}

// encodeValues joins all values of a property into the single escaped
// value-column string.
func encodeValues(p repository.Property) (string, error) {
	parts := make([]string, 0, len(p.Values))
	for _, v := range p.Values {
		s, err := encodeValue(v)
		if err != nil {
			return "", fmt.Errorf("property %s: %w", p.ID(), err)
		}
		parts = append(parts, s)
	}
	return mapping.EscapeJoin(parts), nil
}

// parseValues splits and reconstructs all values of a property from its
// value-column string.
func parseValues(def repository.PropertyDefinition, joined string) ([]repository.Value, error) {
	parts, err := mapping.SplitUnescape(joined)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", def.ID(), err)
	}
	values := make([]repository.Value, 0, len(parts))
	for _, s := range parts {
		v, err := parseValue(def.Type, s)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", def.ID(), err)
		}
		values = append(values, v)
	}
	return values, nil
}
