package mapping

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2/document"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/TheEntropyCollective/propindex/pkg/infrastructure/logging"
	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

// Field option presets. Sortable fields carry doc values so the engine
// can order results without loading stored fields.
const (
	optIndexedStored = index.IndexField | index.StoreField | index.DocValues
	optIndexedOnly   = index.IndexField | index.DocValues
	optStoredOnly    = index.StoreField
)

func textField(name, value string, options index.FieldIndexingOptions) *document.TextField {
	return document.NewTextFieldWithIndexingOptions(name, nil, []byte(value), options)
}

// PropertyFields maps one typed, possibly multi-valued property to its
// index fields and back. It is a pure translation: no side effects
// beyond producing or consuming field values.
type PropertyFields struct {
	collation *Collation
	logger    *logging.Logger
}

// NewPropertyFields creates a property field mapper.
func NewPropertyFields(collation *Collation, logger *logging.Logger) *PropertyFields {
	if collation == nil {
		collation = DefaultCollation()
	}
	return &PropertyFields{collation: collation, logger: logger.WithComponent("property-fields")}
}

// AddFields appends the index fields for one property to doc. Multi-
// valued properties produce one field entry per value under the same
// field name, never one concatenated blob, so term-level queries see
// each value individually.
func (pf *PropertyFields) AddFields(doc *document.Document, def repository.PropertyDefinition, prop repository.Property) error {
	id := prop.ID()
	base := PropertyFieldName(id, KindProperty, "")

	for _, v := range prop.Values {
		switch def.Type {
		case repository.TypeString, repository.TypeHTML:
			doc.AddField(textField(base, v.Str, optIndexedStored))
			doc.AddField(textField(PropertyFieldName(id, KindPropertyLowercase, ""), pf.collation.Lowercase(v.Str), optIndexedOnly))
		case repository.TypeImageRef:
			doc.AddField(textField(base, v.Str, optIndexedStored))
		case repository.TypePrincipal:
			doc.AddField(textField(base, v.Principal.Name, optIndexedStored))
		case repository.TypeBoolean:
			doc.AddField(textField(base, strconv.FormatBool(v.Bool), optIndexedStored))
		case repository.TypeInt:
			doc.AddField(textField(base, EncodeIntTerm(int32(v.Int)), optIndexedStored))
		case repository.TypeLong:
			doc.AddField(textField(base, EncodeLongTerm(v.Int), optIndexedStored))
		case repository.TypeDate, repository.TypeTimestamp:
			doc.AddField(textField(base, EncodeDateTerm(v.Time), optIndexedStored))
		case repository.TypeBinary:
			// Binary payloads are retrievable but never searchable.
			doc.AddField(document.NewTextFieldWithIndexingOptions(base, nil, v.Binary, optStoredOnly))
		case repository.TypeJSON:
			doc.AddField(document.NewTextFieldWithIndexingOptions(base, nil, []byte(v.JSON), optStoredOnly))
			pf.addJSONAttrFields(doc, def, id, v.JSON)
		default:
			return fmt.Errorf("property %s: unhandled type %s", id, def.Type)
		}
	}

	// A dedicated collation sort field exists only for single-valued
	// strings; it is a different encoding from the lowercase filter
	// field and the two are not interchangeable.
	if !def.Multiple && (def.Type == repository.TypeString || def.Type == repository.TypeHTML) && len(prop.Values) == 1 {
		doc.AddField(textField(PropertyFieldName(id, KindPropertySort, ""), pf.collation.SortKey(prop.Values[0].Str), optIndexedOnly))
	}
	return nil
}

// addJSONAttrFields drills one level into a JSON value and indexes the
// configured attributes under "<propertyField>@<attribute>". List
// values fan out one field entry per scalar element. Nested objects and
// deeper lists are not drilled. A malformed value never aborts the rest
// of the document: it is logged and its extra fields skipped.
func (pf *PropertyFields) addJSONAttrFields(doc *document.Document, def repository.PropertyDefinition, id repository.PropertyID, raw json.RawMessage) {
	if len(def.JSONHints) == 0 {
		return
	}
	var top map[string]interface{}
	if err := json.Unmarshal(raw, &top); err != nil {
		pf.logger.Warnf("property %s: unparseable JSON value, indexable attributes skipped: %v", id, err)
		return
	}
	for attr, hint := range def.JSONHints {
		val, ok := top[attr]
		if !ok {
			continue
		}
		fieldName := PropertyFieldName(id, KindProperty, attr)
		elements, ok := val.([]interface{})
		if !ok {
			elements = []interface{}{val}
		}
		for _, el := range elements {
			term, err := pf.jsonScalarTerm(el, hint)
			if err != nil {
				pf.logger.Debugf("property %s@%s: skipping non-indexable element: %v", id, attr, err)
				continue
			}
			doc.AddField(textField(fieldName, term, optIndexedStored))
			if hint == repository.TypeString {
				doc.AddField(textField(PropertyFieldName(id, KindPropertyLowercase, attr), pf.collation.Lowercase(term), optIndexedOnly))
			}
		}
	}
}

// jsonScalarTerm encodes one decoded JSON scalar under a type hint.
func (pf *PropertyFields) jsonScalarTerm(v interface{}, hint repository.PropertyType) (string, error) {
	switch hint {
	case repository.TypeString, repository.TypeHTML:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case repository.TypeInt:
		f, ok := v.(float64)
		if !ok {
			return "", fmt.Errorf("expected number, got %T", v)
		}
		return EncodeIntTerm(int32(f)), nil
	case repository.TypeLong:
		f, ok := v.(float64)
		if !ok {
			return "", fmt.Errorf("expected number, got %T", v)
		}
		return EncodeLongTerm(int64(f)), nil
	case repository.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("expected boolean, got %T", v)
		}
		return strconv.FormatBool(b), nil
	case repository.TypeDate, repository.TypeTimestamp:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("expected date string, got %T", v)
		}
		t, err := ParseDateString(s)
		if err != nil {
			return "", err
		}
		return EncodeDateTerm(t), nil
	default:
		return "", fmt.Errorf("type %s not drillable", hint)
	}
}

// DecodeStoredValue reconstructs a property value from one stored field
// value, using the property's declared type.
func DecodeStoredValue(def repository.PropertyDefinition, stored []byte) (repository.Value, error) {
	s := string(stored)
	switch def.Type {
	case repository.TypeString:
		return repository.NewStringValue(s), nil
	case repository.TypeHTML:
		return repository.NewHTMLValue(s), nil
	case repository.TypeImageRef:
		return repository.NewImageRefValue(s), nil
	case repository.TypePrincipal:
		return repository.NewPrincipalValue(repository.PrincipalFromStored(s, false)), nil
	case repository.TypeBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return repository.Value{}, &ValueError{Value: s, Reason: "not a boolean"}
		}
		return repository.NewBooleanValue(b), nil
	case repository.TypeInt:
		v, err := DecodeIntTerm(s)
		if err != nil {
			return repository.Value{}, err
		}
		return repository.NewIntValue(v), nil
	case repository.TypeLong:
		v, err := DecodeLongTerm(s)
		if err != nil {
			return repository.Value{}, err
		}
		return repository.NewLongValue(v), nil
	case repository.TypeDate:
		t, err := DecodeDateTerm(s)
		if err != nil {
			return repository.Value{}, err
		}
		return repository.NewDateValue(t), nil
	case repository.TypeTimestamp:
		t, err := DecodeDateTerm(s)
		if err != nil {
			return repository.Value{}, err
		}
		return repository.NewTimestampValue(t), nil
	case repository.TypeBinary:
		cp := make([]byte, len(stored))
		copy(cp, stored)
		return repository.NewBinaryValue(cp), nil
	case repository.TypeJSON:
		cp := make(json.RawMessage, len(stored))
		copy(cp, stored)
		return repository.NewJSONValue(cp), nil
	default:
		return repository.Value{}, &ValueError{Value: s, Reason: "unhandled property type"}
	}
}

// EncodeQueryTerm encodes an external query term for a property field.
// Date-typed properties accept the tolerant date string formats; numeric
// properties require parseable numbers. The lowercase flag selects the
// case-insensitive shadow encoding for string-typed properties.
func (pf *PropertyFields) EncodeQueryTerm(def repository.PropertyDefinition, jsonAttr, term string, lowercase bool) (string, error) {
	typ := def.Type
	if jsonAttr != "" {
		hint, ok := def.JSONHints[jsonAttr]
		if !ok {
			hint = repository.TypeString
		}
		typ = hint
	}
	switch typ {
	case repository.TypeString, repository.TypeHTML, repository.TypeImageRef, repository.TypePrincipal:
		if lowercase {
			return pf.collation.Lowercase(term), nil
		}
		return term, nil
	case repository.TypeBoolean:
		b, err := strconv.ParseBool(term)
		if err != nil {
			return "", &ValueError{Value: term, Reason: "not a boolean"}
		}
		return strconv.FormatBool(b), nil
	case repository.TypeInt:
		v, err := strconv.ParseInt(term, 10, 32)
		if err != nil {
			return "", &ValueError{Value: term, Reason: "not an int"}
		}
		return EncodeIntTerm(int32(v)), nil
	case repository.TypeLong:
		v, err := strconv.ParseInt(term, 10, 64)
		if err != nil {
			return "", &ValueError{Value: term, Reason: "not a long"}
		}
		return EncodeLongTerm(v), nil
	case repository.TypeDate, repository.TypeTimestamp:
		t, err := ParseDateString(term)
		if err != nil {
			return "", err
		}
		return EncodeDateTerm(t), nil
	case repository.TypeBinary:
		return "", &ValueError{Value: term, Reason: "binary properties are not searchable"}
	default:
		return "", &ValueError{Value: term, Reason: "unhandled property type"}
	}
}
