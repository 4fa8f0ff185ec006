package translation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/travelcms/internal/domain"

	"github.com/google/uuid"
)

// postFields are the BlogPost fields sent for translation, in order.
var postFields = []string{
	"title",
	"excerpt",
	"meta_title",
	"meta_description",
	"og_title",
	"og_description",
	"twitter_title",
	"twitter_description",
	"content",
}

var sectionKeys = map[string]bool{
	"title":       true,
	"subtitle":    true,
	"description": true,
	"question":    true,
	"answer":      true,
	"content":     true,
	"text":        true,
	"name":        true,
	"label":       true,
	"cta_text":    true,
	"bio":         true,
	"quote":       true,
	"heading":     true,
	"summary":     true,
}

// Unit is one translatable string. SectionID is uuid.Nil for post fields;
// Path locates the leaf inside the section data (string keys and int
// indexes).
type Unit struct {
	Key       string    `json:"key"`
	SectionID uuid.UUID `json:"section_id,omitempty"`
	Path      []any     `json:"path,omitempty"`
	Text      string    `json:"text"`
}

func postFieldValue(post domain.BlogPost, field string) string {
	switch field {
	case "title":
		return post.Title
	case "excerpt":
		return post.Excerpt
	case "meta_title":
		return post.MetaTitle
	case "meta_description":
		return post.MetaDescription
	case "og_title":
		return post.OGTitle
	case "og_description":
		return post.OGDescription
	case "twitter_title":
		return post.TwitterTitle
	case "twitter_description":
		return post.TwitterDescription
	case "content":
		return post.Content
	}
	return ""
}

// Collect lists the non-blank translatable strings of a post and its
// sections. The order is stable: post fields first, then sections in the
// order given with map keys sorted.
func Collect(post domain.BlogPost, sections []domain.PostSection) []Unit {
	units := []Unit{}
	for _, field := range postFields {
		text := postFieldValue(post, field)
		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, Unit{Key: field, Text: text})
	}

	for _, section := range sections {
		walk(section.Data, "", nil, func(path []any, text string) {
			units = append(units, Unit{
				Key:       sectionKey(section.ID, path),
				SectionID: section.ID,
				Path:      path,
				Text:      text,
			})
		})
	}
	return units
}

// walk visits string leaves whose nearest map key is translatable. List
// elements inherit the key of the list.
func walk(value any, key string, path []any, visit func([]any, string)) {
	switch typed := value.(type) {
	case string:
		if sectionKeys[key] && strings.TrimSpace(typed) != "" {
			visit(path, typed)
		}
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(typed[k], k, extend(path, k), visit)
		}
	case []any:
		for i, item := range typed {
			walk(item, key, extend(path, i), visit)
		}
	case []string:
		for i, item := range typed {
			walk(item, key, extend(path, i), visit)
		}
	}
}

func extend(path []any, step any) []any {
	out := make([]any, len(path), len(path)+1)
	copy(out, path)
	return append(out, step)
}

func sectionKey(id uuid.UUID, path []any) string {
	parts := make([]string, len(path))
	for i, step := range path {
		parts[i] = fmt.Sprint(step)
	}
	return "sections." + id.String() + "." + strings.Join(parts, ".")
}

// setPath replaces the leaf at path inside data, which must already exist.
func setPath(data any, path []any, text string) any {
	if len(path) == 0 {
		return text
	}
	switch typed := data.(type) {
	case map[string]any:
		if k, ok := path[0].(string); ok {
			if child, exists := typed[k]; exists {
				typed[k] = setPath(child, path[1:], text)
			}
		}
	case []any:
		if i, ok := path[0].(int); ok && i >= 0 && i < len(typed) {
			typed[i] = setPath(typed[i], path[1:], text)
		}
	case []string:
		if i, ok := path[0].(int); ok && i >= 0 && i < len(typed) && len(path) == 1 {
			typed[i] = text
		}
	}
	return data
}

// apply writes translated texts into the record. units and texts line up.
func apply(record *domain.PostTranslation, sections []domain.PostSection, units []Unit, texts []string) {
	byID := make(map[uuid.UUID]domain.PostSection, len(sections))
	for _, section := range sections {
		byID[section.ID] = section
	}

	for i, unit := range units {
		if unit.SectionID == uuid.Nil {
			record.Fields[unit.Key] = texts[i]
			continue
		}
		key := unit.SectionID.String()
		data, ok := record.Sections[key]
		if !ok {
			data = domain.CopyData(byID[unit.SectionID].Data)
			record.Sections[key] = data
		}
		setPath(data, unit.Path, texts[i])
	}
}
