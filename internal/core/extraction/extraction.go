// Package extraction maps raw dimension values to the values that are grouped
// on. Several raw values may map to the same output.
package extraction

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/grafana/regexp"
)

// Extraction function types.
const (
	TypeIdentity   = "identity"
	TypeLower      = "lower"
	TypeUpper      = "upper"
	TypeSubstring  = "substring"
	TypeRegex      = "regex"
	TypeLookup     = "lookup"
	TypeTimeBucket = "time_bucket"
)

// Fn transforms one raw value. The second result is false when the output
// is null.
type Fn interface {
	Apply(v any) (string, bool)

	// Injective reports whether distinct inputs always map to distinct outputs.
	Injective() bool
}

// Spec is the declarative form of an extraction function.
type Spec struct {
	Type string `json:"type" yaml:"type"`

	// substring
	Index  int `json:"index,omitempty" yaml:"index,omitempty"`
	Length int `json:"length,omitempty" yaml:"length,omitempty"`

	// regex
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Group   *int   `json:"group,omitempty" yaml:"group,omitempty"`

	// lookup
	Lookup    map[string]string `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	Injective bool              `json:"injective,omitempty" yaml:"injective,omitempty"`

	// regex, lookup
	RetainMissing      bool   `json:"retain_missing,omitempty" yaml:"retain_missing,omitempty"`
	ReplaceMissingWith string `json:"replace_missing_with,omitempty" yaml:"replace_missing_with,omitempty"`

	// time_bucket
	Granularity string `json:"granularity,omitempty" yaml:"granularity,omitempty"`
}

// New builds the function described by spec.
func New(spec Spec) (Fn, error) {
	switch spec.Type {
	case TypeIdentity, "":
		return identityFn{}, nil
	case TypeLower:
		return caseFn{fold: strings.ToLower}, nil
	case TypeUpper:
		return caseFn{fold: strings.ToUpper}, nil
	case TypeSubstring:
		if spec.Index < 0 || spec.Length < 0 {
			return nil, fmt.Errorf("substring: index and length must not be negative")
		}
		return substringFn{index: spec.Index, length: spec.Length}, nil
	case TypeRegex:
		return newRegexFn(spec)
	case TypeLookup:
		if len(spec.Lookup) == 0 {
			return nil, fmt.Errorf("lookup: map must not be empty")
		}
		if spec.Injective {
			if err := checkInjective(spec); err != nil {
				return nil, fmt.Errorf("lookup: %w", err)
			}
		}
		return &lookupFn{
			table:       spec.Lookup,
			injective:   spec.Injective,
			retain:      spec.RetainMissing,
			replacement: spec.ReplaceMissingWith,
		}, nil
	case TypeTimeBucket:
		g, err := ParseGranularity(spec.Granularity)
		if err != nil {
			return nil, fmt.Errorf("time_bucket: %w", err)
		}
		return timeBucketFn{granularity: g}, nil
	}
	return nil, fmt.Errorf("unknown extraction type %q", spec.Type)
}

// Stringify renders a raw column value as a string. nil is null.
func Stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int:
		return strconv.Itoa(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

type identityFn struct{}

func (identityFn) Apply(v any) (string, bool) { return Stringify(v) }
func (identityFn) Injective() bool            { return true }

type caseFn struct {
	fold func(string) string
}

func (f caseFn) Apply(v any) (string, bool) {
	s, ok := Stringify(v)
	if !ok {
		return "", false
	}
	return f.fold(s), true
}

func (caseFn) Injective() bool { return false }

// substringFn counts runes. Length 0 takes the rest of the value; an index
// past the end yields null.
type substringFn struct {
	index  int
	length int
}

func (f substringFn) Apply(v any) (string, bool) {
	s, ok := Stringify(v)
	if !ok {
		return "", false
	}
	if f.index >= utf8.RuneCountInString(s) {
		return "", false
	}
	runes := []rune(s)[f.index:]
	if f.length > 0 && f.length < len(runes) {
		runes = runes[:f.length]
	}
	return string(runes), true
}

func (substringFn) Injective() bool { return false }

type regexFn struct {
	re          *regexp.Regexp
	group       int
	retain      bool
	replacement string
}

func newRegexFn(spec Spec) (Fn, error) {
	if spec.Pattern == "" {
		return nil, fmt.Errorf("regex: pattern must not be empty")
	}
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return nil, fmt.Errorf("regex: %w", err)
	}
	group := 0
	if re.NumSubexp() > 0 {
		group = 1
	}
	if spec.Group != nil {
		group = *spec.Group
	}
	if group < 0 || group > re.NumSubexp() {
		return nil, fmt.Errorf("regex: group %d out of range, pattern has %d", group, re.NumSubexp())
	}
	return &regexFn{re: re, group: group, retain: spec.RetainMissing, replacement: spec.ReplaceMissingWith}, nil
}

func (f *regexFn) Apply(v any) (string, bool) {
	s, ok := Stringify(v)
	if !ok {
		return f.missing("", false)
	}
	m := f.re.FindStringSubmatchIndex(s)
	if m == nil || m[2*f.group] < 0 {
		return f.missing(s, true)
	}
	return s[m[2*f.group]:m[2*f.group+1]], true
}

func (f *regexFn) missing(original string, present bool) (string, bool) {
	if f.retain {
		return original, present
	}
	if f.replacement != "" {
		return f.replacement, true
	}
	return "", false
}

func (*regexFn) Injective() bool { return false }

type lookupFn struct {
	table       map[string]string
	injective   bool
	retain      bool
	replacement string
}

func (f *lookupFn) Apply(v any) (string, bool) {
	s, ok := Stringify(v)
	if ok {
		if out, hit := f.table[s]; hit {
			return out, true
		}
	}
	if f.retain {
		return s, ok
	}
	if f.replacement != "" {
		return f.replacement, true
	}
	return "", false
}

func (f *lookupFn) Injective() bool { return f.injective }

// checkInjective rejects lookups declared injective that can map two raw
// values to one output. Missing values must be retained, and the table must
// be a permutation of its keys: otherwise a missing value becomes null, or a
// retained raw value equals some mapped output.
func checkInjective(spec Spec) error {
	if spec.ReplaceMissingWith != "" {
		return fmt.Errorf("an injective lookup cannot replace missing values")
	}
	if !spec.RetainMissing {
		return fmt.Errorf("an injective lookup must retain missing values")
	}
	keys := make([]string, 0, len(spec.Lookup))
	for k := range spec.Lookup {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	from := make(map[string]string, len(spec.Lookup))
	for _, k := range keys {
		out := spec.Lookup[k]
		if prev, dup := from[out]; dup {
			return fmt.Errorf("injective lookup maps %q and %q to %q", prev, k, out)
		}
		from[out] = k
		if _, isKey := spec.Lookup[out]; !isKey {
			return fmt.Errorf("injective lookup output %q is not itself a key and could equal a retained value", out)
		}
	}
	return nil
}

// timeBucketFn accepts epoch milliseconds, time.Time or RFC3339 strings.
// Anything else is null.
type timeBucketFn struct {
	granularity time.Duration
}

func (f timeBucketFn) Apply(v any) (string, bool) {
	var t time.Time
	switch val := v.(type) {
	case time.Time:
		t = val
	case int64:
		t = time.UnixMilli(val)
	case int:
		t = time.UnixMilli(int64(val))
	case float64:
		t = time.UnixMilli(int64(val))
	case json.Number:
		ms, err := val.Int64()
		if err != nil {
			return "", false
		}
		t = time.UnixMilli(ms)
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			ms, perr := strconv.ParseInt(val, 10, 64)
			if perr != nil {
				return "", false
			}
			parsed = time.UnixMilli(ms)
		}
		t = parsed
	default:
		return "", false
	}
	return BucketFor(t, f.granularity).Format(time.RFC3339), true
}

func (timeBucketFn) Injective() bool { return false }
