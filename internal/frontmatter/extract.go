// Package frontmatter reads the metadata block of content files and pulls
// announcement fields out of it with ordered, first-match-wins rules.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
)

// Record is the loosely typed metadata block of a content file.
type Record map[string]any

// Fields holds the values an announcement needs from a content file.
type Fields struct {
	Title   string
	Excerpt string
	Image   string
}

// Rule extracts an optional string from a record.
type Rule func(Record) (string, bool)

var (
	titleRules = []Rule{
		StringKey("title"),
		StringKey("name"),
		StringKey("heading"),
		StringKey("headline"),
	}

	excerptRules = []Rule{
		StringKey("description"),
		StringKey("excerpt"),
		StringKey("summary"),
		StringKey("subtitle"),
	}

	imageRules = imageKeys(
		"image",
		"cover",
		"coverImage",
		"heroImage",
		"featuredImage",
		"thumbnail",
		"banner",
		"ogImage",
		"imageUrl",
		"socialImage",
		// snake_case and short variants some themes use
		"cover_image",
		"featured_image",
		"hero",
	)

	// nested image objects, e.g. {cover: {src: "/a.png", alt: "..."}}
	imageSubKeys = []string{"src", "url", "image", "path"}
)

// Parse splits raw content into its metadata record and body. Content without
// a metadata block, or with one that cannot be decoded, yields an empty record
// and the full input as body.
func Parse(raw []byte) (Record, []byte) {
	rec := Record{}
	body, err := frontmatter.Parse(bytes.NewReader(raw), &rec)
	if err != nil {
		return Record{}, raw
	}
	return rec, body
}

// Extract returns the title, excerpt and image of a content file. Missing
// values are returned as empty strings; Extract never fails.
func Extract(raw []byte) Fields {
	rec, _ := Parse(raw)
	return ExtractRecord(rec)
}

// ExtractRecord applies the field rules to an already parsed record.
func ExtractRecord(rec Record) Fields {
	return Fields{
		Title:   FirstMatch(rec, titleRules...),
		Excerpt: FirstMatch(rec, excerptRules...),
		Image:   FirstMatch(rec, imageRules...),
	}
}

// FirstMatch evaluates rules in order and returns the first match.
func FirstMatch(rec Record, rules ...Rule) string {
	for _, rule := range rules {
		if v, ok := rule(rec); ok {
			return v
		}
	}
	return ""
}

// StringKey matches a non-empty string under key.
func StringKey(key string) Rule {
	return func(rec Record) (string, bool) {
		return nonEmptyString(rec[key])
	}
}

// NestedStringKey matches a non-empty string under key.sub, where key holds an object.
func NestedStringKey(key, sub string) Rule {
	return func(rec Record) (string, bool) {
		obj, ok := asRecord(rec[key])
		if !ok {
			return "", false
		}
		return nonEmptyString(obj[sub])
	}
}

func imageKeys(keys ...string) []Rule {
	rules := make([]Rule, 0, len(keys)*(1+len(imageSubKeys)))
	for _, key := range keys {
		rules = append(rules, StringKey(key))
		for _, sub := range imageSubKeys {
			rules = append(rules, NestedStringKey(key, sub))
		}
	}
	return rules
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// asRecord normalises the map shapes YAML decoders produce for nested objects.
func asRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return Record(m), true
	case map[any]any:
		out := make(Record, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
