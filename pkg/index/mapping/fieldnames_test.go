package mapping

import (
	"testing"

	"github.com/TheEntropyCollective/propindex/pkg/repository"
)

func TestPropertyFieldName(t *testing.T) {
	title := repository.PropertyID{Namespace: "", Name: "title"}
	custom := repository.PropertyID{Namespace: "custom", Name: "tags"}

	cases := []struct {
		id       repository.PropertyID
		kind     FieldKind
		jsonAttr string
		want     string
	}{
		{title, KindProperty, "", "p_:title"},
		{title, KindPropertyLowercase, "", "p_l_:title"},
		{title, KindPropertySort, "", "p_s_:title"},
		{custom, KindProperty, "", "p_custom:tags"},
		{custom, KindProperty, "color", "p_custom:tags@color"},
		{custom, KindPropertyLowercase, "color", "p_l_custom:tags@color"},
	}
	for _, c := range cases {
		if got := PropertyFieldName(c.id, c.kind, c.jsonAttr); got != c.want {
			t.Errorf("PropertyFieldName(%v, %d, %q) = %q, want %q", c.id, c.kind, c.jsonAttr, got, c.want)
		}
	}
}

func TestACLPrincipalFieldName(t *testing.T) {
	user := repository.NewUserPrincipal("alice")
	group := repository.NewGroupPrincipal("editors")

	if got := ACLPrincipalFieldName(repository.PrivilegeRead, user); got != "acl_u_read" {
		t.Errorf("user field = %q", got)
	}
	if got := ACLPrincipalFieldName(repository.PrivilegeReadWrite, group); got != "acl_g_read-write" {
		t.Errorf("group field = %q", got)
	}
	// Pseudo-principals are filed under the user prefix.
	if got := ACLPrincipalFieldName(repository.PrivilegeRead, repository.PrincipalAll); got != "acl_u_read" {
		t.Errorf("pseudo field = %q", got)
	}
}

func TestParseFieldNameReserved(t *testing.T) {
	cases := map[string]FieldSpec{
		"uri":          {Kind: KindResource, Resource: FieldURI},
		"l_uri":        {Kind: KindResourceLowercase, Resource: FieldURI},
		"s_uri":        {Kind: KindResourceSort, Resource: FieldURI},
		"name":         {Kind: KindResource, Resource: FieldName},
		"resourceType": {Kind: KindResource, Resource: FieldResourceType},
		"ID":           {Kind: KindResource, Resource: FieldID},
		"uriDepth":     {Kind: KindResource, Resource: FieldURIDepth},
		"uriAncestors": {Kind: KindResource, Resource: FieldURIAncestors},
	}
	for name, want := range cases {
		got, ok := ParseFieldName(name)
		if !ok {
			t.Errorf("ParseFieldName(%q) not recognized", name)
			continue
		}
		if got != want {
			t.Errorf("ParseFieldName(%q) = %+v, want %+v", name, got, want)
		}
	}
}

func TestParseFieldNameACL(t *testing.T) {
	got, ok := ParseFieldName("acl_u_read")
	if !ok || got.Kind != KindACLPrincipal || got.Privilege != repository.PrivilegeRead || got.Group {
		t.Errorf("acl_u_read = %+v, ok=%v", got, ok)
	}

	got, ok = ParseFieldName("acl_g_read-write")
	if !ok || got.Kind != KindACLPrincipal || got.Privilege != repository.PrivilegeReadWrite || !got.Group {
		t.Errorf("acl_g_read-write = %+v, ok=%v", got, ok)
	}

	if got, ok := ParseFieldName("acl_read_aggregate"); !ok || got.Kind != KindACLReadAggregate || got.Group {
		t.Errorf("acl_read_aggregate = %+v, ok=%v", got, ok)
	}
	if got, ok := ParseFieldName("acl_read_aggregate_g"); !ok || got.Kind != KindACLReadAggregate || !got.Group {
		t.Errorf("acl_read_aggregate_g = %+v, ok=%v", got, ok)
	}
	if got, ok := ParseFieldName("acl_inherited_from"); !ok || got.Kind != KindACLInheritedFrom {
		t.Errorf("acl_inherited_from = %+v, ok=%v", got, ok)
	}
}

func TestParseFieldNameRoundTrip(t *testing.T) {
	ids := []repository.PropertyID{
		{Namespace: "", Name: "title"},
		{Namespace: "content", Name: "keywords"},
	}
	kinds := []FieldKind{KindProperty, KindPropertyLowercase, KindPropertySort}
	for _, id := range ids {
		for _, kind := range kinds {
			name := PropertyFieldName(id, kind, "")
			spec, ok := ParseFieldName(name)
			if !ok {
				t.Errorf("ParseFieldName(%q) not recognized", name)
				continue
			}
			if spec.Kind != kind || spec.Property != id || spec.JSONAttr != "" {
				t.Errorf("ParseFieldName(%q) = %+v", name, spec)
			}
		}
	}

	name := PropertyFieldName(repository.PropertyID{Namespace: "content", Name: "meta"}, KindProperty, "author")
	spec, ok := ParseFieldName(name)
	if !ok || spec.JSONAttr != "author" || spec.Property.Name != "meta" {
		t.Errorf("ParseFieldName(%q) = %+v, ok=%v", name, spec, ok)
	}
}

func TestParseFieldNameSubPrefixAmbiguity(t *testing.T) {
	// A default-namespace property named "l_x" yields "p_l_x": without a
	// following separator the sub-prefix must not be stripped, and the
	// name does not parse as a property field at all.
	if _, ok := ParseFieldName("p_l_x"); ok {
		t.Error("p_l_x should not parse: no namespace separator")
	}

	// "p_l_:x" is unambiguous: lowercase form of default-namespace "x".
	spec, ok := ParseFieldName("p_l_:x")
	if !ok || spec.Kind != KindPropertyLowercase || spec.Property.Name != "x" || spec.Property.Namespace != "" {
		t.Errorf("p_l_:x = %+v, ok=%v", spec, ok)
	}

	// A property literally named "l_a" in namespace "b": the sub-prefix
	// check sees a separator and strips it, reading namespace "a". The
	// contract therefore reserves l_/s_ leading names; composing the
	// field for {Namespace: "", Name: "x"} with KindProperty stays plain.
	spec, ok = ParseFieldName("p_:x")
	if !ok || spec.Kind != KindProperty || spec.Property.Name != "x" {
		t.Errorf("p_:x = %+v, ok=%v", spec, ok)
	}
}

func TestParseFieldNameForeign(t *testing.T) {
	for _, name := range []string{"_all", "random", "p_", "p_nosep", "p_ns:"} {
		if spec, ok := ParseFieldName(name); ok {
			t.Errorf("ParseFieldName(%q) = %+v, want not recognized", name, spec)
		}
	}
}
