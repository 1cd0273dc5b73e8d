package mapping

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ValueError reports a malformed input at an encoding or decoding call
// site. Values are never silently coerced to a default.
type ValueError struct {
	Value  string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid value %q: %s", e.Value, e.Reason)
}

// Term widths of the fixed-width encodings, in hex digits.
const (
	intTermWidth  = 8
	longTermWidth = 16
)

// EncodeIntTerm encodes a 32-bit integer as a fixed-width hex term whose
// byte order matches numeric order (sign bit flipped). Range queries on
// int fields are plain term-range queries over these terms.
func EncodeIntTerm(v int32) string {
	u := uint32(v) ^ (1 << 31)
	return fmt.Sprintf("%0*x", intTermWidth, u)
}

// DecodeIntTerm is the inverse of EncodeIntTerm.
func DecodeIntTerm(s string) (int32, error) {
	if len(s) != intTermWidth {
		return 0, &ValueError{Value: s, Reason: "wrong int term width"}
	}
	u, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, &ValueError{Value: s, Reason: "not a hex int term"}
	}
	return int32(uint32(u) ^ (1 << 31)), nil
}

// EncodeLongTerm encodes a 64-bit integer as a fixed-width,
// lexicographically ordered hex term.
func EncodeLongTerm(v int64) string {
	u := uint64(v) ^ (1 << 63)
	return fmt.Sprintf("%0*x", longTermWidth, u)
}

// DecodeLongTerm is the inverse of EncodeLongTerm.
func DecodeLongTerm(s string) (int64, error) {
	if len(s) != longTermWidth {
		return 0, &ValueError{Value: s, Reason: "wrong long term width"}
	}
	u, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, &ValueError{Value: s, Reason: "not a hex long term"}
	}
	return int64(u ^ (1 << 63)), nil
}

// EncodeDateTerm encodes a point in time, rounded down to the second, as
// an ordered term over its Unix milliseconds.
func EncodeDateTerm(t time.Time) string {
	return EncodeLongTerm(t.Truncate(time.Second).UnixMilli())
}

// DecodeDateTerm is the inverse of EncodeDateTerm. The result is in UTC.
func DecodeDateTerm(s string) (time.Time, error) {
	ms, err := DecodeLongTerm(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// dateLayouts are the accepted date string formats, most specific first.
// The first successful parse wins.
var dateLayouts = []string{
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15",
	"2006-01-02",
}

// ParseDateString parses a date given in any of the supported formats.
// Formats without an explicit zone are interpreted in UTC.
func ParseDateString(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ValueError{Value: s, Reason: "unrecognized date format"}
}

// Escaping for multi-value concatenation. Both the separator and the
// escape character are escaped so that SplitUnescape inverts EscapeJoin
// exactly for any input strings.
const (
	escapeChar    = '\\'
	separatorChar = ','
)

// Escape escapes the separator and escape characters in s.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == escapeChar || r == separatorChar {
			b.WriteByte(escapeChar)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Unescape is the exact inverse of Escape.
func Unescape(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if escaped {
			if r != escapeChar && r != separatorChar {
				return "", &ValueError{Value: s, Reason: "stray escape character"}
			}
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == escapeChar {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	if escaped {
		return "", &ValueError{Value: s, Reason: "trailing escape character"}
	}
	return b.String(), nil
}

// EscapeJoin joins values into one separator-delimited string.
func EscapeJoin(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = Escape(v)
	}
	return strings.Join(escaped, string(separatorChar))
}

// SplitUnescape is the inverse of EscapeJoin.
func SplitUnescape(s string) ([]string, error) {
	if s == "" {
		return []string{""}, nil
	}
	var out []string
	var cur strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			if r != escapeChar && r != separatorChar {
				return nil, &ValueError{Value: s, Reason: "stray escape character"}
			}
			cur.WriteRune(r)
			escaped = false
		case r == escapeChar:
			escaped = true
		case r == separatorChar:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if escaped {
		return nil, &ValueError{Value: s, Reason: "trailing escape character"}
	}
	out = append(out, cur.String())
	return out, nil
}

// Collation produces locale-aware lowercase forms and collation sort
// keys. Lowercase fields serve case-insensitive filtering; sort keys
// serve ordering — the two are deliberately distinct encodings.
//
// The x/text caser and collator are not safe for concurrent use, so a
// Collation guards them with a mutex instead of pooling instances.
type Collation struct {
	mu       sync.Mutex
	caser    cases.Caser
	collator *collate.Collator
}

// NewCollation creates a Collation for the given locale.
func NewCollation(tag language.Tag) *Collation {
	return &Collation{
		caser:    cases.Lower(tag),
		collator: collate.New(tag),
	}
}

// DefaultCollation uses English collation rules.
func DefaultCollation() *Collation {
	return NewCollation(language.English)
}

// Lowercase returns the locale-aware lowercase form of s.
func (c *Collation) Lowercase(s string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.caser.String(s)
}

// SortKey returns a hex-encoded collation key for s. Byte comparison of
// sort keys matches the locale's collation order.
func (c *Collation) SortKey(s string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf collate.Buffer
	key := c.collator.KeyFromString(&buf, s)
	return hex.EncodeToString(key)
}
