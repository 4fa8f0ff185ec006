package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BlogPost is the primary content record produced from a row.
type BlogPost struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Excerpt       string    `json:"excerpt"`
	Content       string    `json:"content"`
	Status        string    `json:"status"`
	TemplateID    string    `json:"template_id"`
	FeaturedImage string    `json:"featured_image"`
	AuthorName    string    `json:"author_name"`
	Tags          []string  `json:"tags"`
	ReadingTime   int       `json:"reading_time"`
	Language      string    `json:"language"`

	MetaTitle             string   `json:"meta_title"`
	MetaDescription       string   `json:"meta_description"`
	FocusKeyword          string   `json:"focus_keyword"`
	SEOKeywords           []string `json:"seo_keywords"`
	CanonicalURL          string   `json:"canonical_url"`
	OGTitle               string   `json:"og_title"`
	OGDescription         string   `json:"og_description"`
	OGImage               string   `json:"og_image"`
	TwitterTitle          string   `json:"twitter_title"`
	TwitterDescription    string   `json:"twitter_description"`
	TwitterImage          string   `json:"twitter_image"`
	RobotsIndex           bool     `json:"robots_index"`
	RobotsFollow          bool     `json:"robots_follow"`
	RobotsNoarchive       bool     `json:"robots_noarchive"`
	RobotsNosnippet       bool     `json:"robots_nosnippet"`
	StructuredDataEnabled bool     `json:"structured_data_enabled"`
	CustomJSONLD          any      `json:"custom_json_ld,omitempty"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CustomJSONLDBytes serializes the structured data override, nil when unset.
func (p BlogPost) CustomJSONLDBytes() ([]byte, error) {
	if p.CustomJSONLD == nil {
		return nil, nil
	}
	return json.Marshal(p.CustomJSONLD)
}

// SectionType names one of the fixed blocks rendered on a post page.
type SectionType string

const (
	SectionHero          SectionType = "hero"
	SectionContent       SectionType = "content"
	SectionRichText      SectionType = "rich_text"
	SectionStarterPack   SectionType = "starter_pack"
	SectionWhereToStay   SectionType = "where_to_stay"
	SectionItineraryCTA  SectionType = "ai_itinerary_cta"
	SectionFAQ           SectionType = "faq"
	SectionInternalLinks SectionType = "internal_links"
	SectionAuthor        SectionType = "author"
)

// SectionOrder is the fixed order sections are created in for every post.
var SectionOrder = []SectionType{
	SectionHero,
	SectionContent,
	SectionRichText,
	SectionStarterPack,
	SectionWhereToStay,
	SectionItineraryCTA,
	SectionFAQ,
	SectionInternalLinks,
	SectionAuthor,
}

// PostSection is one dependent block of a blog post.
type PostSection struct {
	ID          uuid.UUID      `json:"id"`
	PostID      uuid.UUID      `json:"post_id"`
	SectionType SectionType    `json:"section_type"`
	Position    int            `json:"position"`
	Data        map[string]any `json:"data"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewPostSection creates an active section at position.
func NewPostSection(postID uuid.UUID, sectionType SectionType, position int, data map[string]any) PostSection {
	return PostSection{
		ID:          uuid.New(),
		PostID:      postID,
		SectionType: sectionType,
		Position:    position,
		Data:        CopyData(data),
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
}

// CopyData deep copies a JSON-like map.
func CopyData(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return CopyData(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}
