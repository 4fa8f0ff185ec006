package ingestion

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/logger"
	"github.com/rpattn/travelcms/internal/provider"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultMaxSlugAttempts = 1000
	featuredImageAspect    = "16:9"
	wordsPerMinute         = 200
)

var (
	slugPattern = regexp.MustCompile(`[^a-z0-9]+`)
	htmlTag     = regexp.MustCompile(`<[^>]*>`)
)

// RowResult is the outcome of processing a single row.
type RowResult struct {
	Success       bool            `json:"success"`
	PostID        uuid.UUID       `json:"post_id,omitempty"`
	Post          domain.BlogPost `json:"-"`
	ProcessedData map[string]any  `json:"processed_data,omitempty"`
	Errors        []string        `json:"errors"`
}

// Processor turns one validated row into a blog post and its sections.
type Processor struct {
	posts           repository.BlogPostRepository
	sections        repository.SectionRepository
	images          provider.ImageGenerator
	logger          *logger.Logger
	maxSlugAttempts int
	now             func() time.Time
}

type ProcessorOption func(*Processor)

// WithImageGenerator fills missing featured images through gen.
func WithImageGenerator(gen provider.ImageGenerator) ProcessorOption {
	return func(p *Processor) {
		p.images = gen
	}
}

func WithProcessorLogger(log *logger.Logger) ProcessorOption {
	return func(p *Processor) {
		if log != nil {
			p.logger = log
		}
	}
}

func WithMaxSlugAttempts(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxSlugAttempts = n
		}
	}
}

func NewProcessor(posts repository.BlogPostRepository, sections repository.SectionRepository, opts ...ProcessorOption) *Processor {
	p := &Processor{
		posts:           posts,
		sections:        sections,
		logger:          logger.NewNop(),
		maxSlugAttempts: defaultMaxSlugAttempts,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessRow creates the primary record then the nine sections for row. The
// two writes are not transactional: a section failure leaves the post behind.
func (p *Processor) ProcessRow(ctx context.Context, row domain.CSVRow, tpl domain.PostTemplate) RowResult {
	data := row.RawData

	base := stringField(data, "slug")
	if base == "" {
		base = slugify(stringField(data, "title"))
	}
	if base == "" {
		base = fmt.Sprintf("post-%d", row.RowNumber)
	}

	slug, err := p.uniqueSlug(ctx, base)
	if err != nil {
		return failure(err)
	}

	post := p.buildPost(ctx, data, tpl, slug)
	created, err := p.posts.Create(ctx, post)
	if err != nil {
		return failure(fmt.Errorf("failed to create post: %w", err))
	}

	sections := buildSections(created, data, tpl)
	if err := p.sections.CreateBatch(ctx, sections); err != nil {
		p.logger.Warn("post created without sections", "post_id", created.ID, "slug", created.Slug, "error", err)
		return failure(fmt.Errorf("failed to create sections for post %s: %w", created.Slug, err))
	}

	return RowResult{
		Success: true,
		PostID:  created.ID,
		Post:    created,
		ProcessedData: map[string]any{
			"post_id":  created.ID.String(),
			"slug":     created.Slug,
			"status":   created.Status,
			"sections": len(sections),
		},
		Errors: []string{},
	}
}

func failure(err error) RowResult {
	return RowResult{Success: false, Errors: []string{err.Error()}}
}

// uniqueSlug appends -1, -2, ... to base until no stored post uses it. The
// check and the later insert are separate calls.
func (p *Processor) uniqueSlug(ctx context.Context, base string) (string, error) {
	candidate := base
	for attempt := 1; attempt <= p.maxSlugAttempts; attempt++ {
		exists, err := p.posts.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return "", fmt.Errorf("no free slug for %s after %d attempts", base, p.maxSlugAttempts)
}

func (p *Processor) buildPost(ctx context.Context, data map[string]any, tpl domain.PostTemplate, slug string) domain.BlogPost {
	now := p.now()
	title := stringField(data, "title")
	excerpt := stringField(data, "excerpt")
	content := stringField(data, "content")
	tags := listField(data, "tags")

	status := firstNonEmpty(stringField(data, "status"), tpl.DefaultString("status"), "draft")
	language := firstNonEmpty(stringField(data, "language"), tpl.DefaultString("language"), "en")

	featured := firstNonEmpty(stringField(data, "featured_image"), stringField(data, "hero_image"))
	if featured == "" && p.images != nil {
		featured = p.generateFeaturedImage(ctx, title)
	}

	metaTitle := firstNonEmpty(stringField(data, "meta_title"), title)
	metaDescription := firstNonEmpty(stringField(data, "meta_description"), excerpt)
	ogTitle := firstNonEmpty(stringField(data, "og_title"), metaTitle)
	ogDescription := firstNonEmpty(stringField(data, "og_description"), metaDescription)
	ogImage := firstNonEmpty(stringField(data, "og_image"), featured)

	seoKeywords := listField(data, "seo_keywords")
	if len(seoKeywords) == 0 {
		seoKeywords = tags
	}
	focusKeyword := stringField(data, "focus_keyword")
	if focusKeyword == "" && len(seoKeywords) > 0 {
		focusKeyword = seoKeywords[0]
	}

	post := domain.BlogPost{
		ID:                    uuid.New(),
		Title:                 title,
		Slug:                  slug,
		Excerpt:               excerpt,
		Content:               content,
		Status:                status,
		TemplateID:            tpl.ID,
		FeaturedImage:         featured,
		AuthorName:            firstNonEmpty(stringField(data, "author_name"), tpl.DefaultString("author_name")),
		Tags:                  tags,
		ReadingTime:           readingTime(data, tpl, content),
		Language:              language,
		MetaTitle:             metaTitle,
		MetaDescription:       metaDescription,
		FocusKeyword:          focusKeyword,
		SEOKeywords:           seoKeywords,
		CanonicalURL:          stringField(data, "canonical_url"),
		OGTitle:               ogTitle,
		OGDescription:         ogDescription,
		OGImage:               ogImage,
		TwitterTitle:          firstNonEmpty(stringField(data, "twitter_title"), ogTitle),
		TwitterDescription:    firstNonEmpty(stringField(data, "twitter_description"), ogDescription),
		TwitterImage:          firstNonEmpty(stringField(data, "twitter_image"), ogImage),
		RobotsIndex:           boolField(data, "robots_index", tpl.DefaultBool("robots_index", true)),
		RobotsFollow:          boolField(data, "robots_follow", tpl.DefaultBool("robots_follow", true)),
		RobotsNoarchive:       boolField(data, "robots_noarchive", tpl.DefaultBool("robots_noarchive", false)),
		RobotsNosnippet:       boolField(data, "robots_nosnippet", tpl.DefaultBool("robots_nosnippet", false)),
		StructuredDataEnabled: boolField(data, "structured_data_enabled", tpl.DefaultBool("structured_data_enabled", true)),
		CustomJSONLD:          data["custom_json_ld"],
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if status == "published" {
		published := now
		post.PublishedAt = &published
	}
	return post
}

func (p *Processor) generateFeaturedImage(ctx context.Context, title string) string {
	prompt := fmt.Sprintf("Editorial travel photograph for a blog post titled %q, natural light, no text", title)
	encoded, err := p.images.GenerateImage(ctx, prompt, featuredImageAspect)
	if err != nil || encoded == "" {
		p.logger.Warn("featured image generation failed", "title", title, "error", err)
		return ""
	}
	if strings.HasPrefix(encoded, "data:") {
		return encoded
	}
	return "data:image/png;base64," + encoded
}

// buildSections synthesizes the fixed section set in domain.SectionOrder.
// Row values win; anything missing comes from the template defaults.
func buildSections(post domain.BlogPost, data map[string]any, tpl domain.PostTemplate) []domain.PostSection {
	sections := make([]domain.PostSection, 0, len(domain.SectionOrder))
	for position, sectionType := range domain.SectionOrder {
		content := tpl.SectionDefault(sectionType)
		overlaySection(sectionType, content, post, data)
		sections = append(sections, domain.NewPostSection(post.ID, sectionType, position, content))
	}
	return sections
}

func overlaySection(sectionType domain.SectionType, content map[string]any, post domain.BlogPost, data map[string]any) {
	switch sectionType {
	case domain.SectionHero:
		setString(content, "title", firstNonEmpty(stringField(data, "hero_title"), post.Title))
		setString(content, "subtitle", firstNonEmpty(stringField(data, "hero_subtitle"), post.Excerpt))
		setString(content, "image", firstNonEmpty(stringField(data, "hero_image"), post.FeaturedImage))
	case domain.SectionContent:
		setString(content, "html", post.Content)
	case domain.SectionRichText:
		setString(content, "content", stringField(data, "rich_text_content"))
	case domain.SectionStarterPack:
		setString(content, "title", stringField(data, "starter_pack_title"))
		if highlights := listField(data, "highlights"); len(highlights) > 0 {
			content["highlights"] = highlights
		}
	case domain.SectionWhereToStay:
		switch stays := data["where_to_stay_json"].(type) {
		case map[string]any:
			for k, v := range stays {
				content[k] = v
			}
		case []any:
			if len(stays) > 0 {
				content["neighborhoods"] = stays
			}
		}
	case domain.SectionItineraryCTA:
		setString(content, "cta_text", stringField(data, "itinerary_cta_text"))
		setString(content, "destination", firstNonEmpty(stringField(data, "itinerary_destination"), post.Title))
	case domain.SectionFAQ:
		if items, ok := data["faq_items"].([]any); ok && len(items) > 0 {
			content["items"] = items
		}
	case domain.SectionInternalLinks:
		if links, ok := data["internal_links_manual"].([]any); ok && len(links) > 0 {
			content["links"] = links
		}
	case domain.SectionAuthor:
		setString(content, "name", stringField(data, "author_name"))
		setString(content, "bio", stringField(data, "author_bio"))
		setString(content, "avatar", stringField(data, "author_avatar"))
	}
}

func setString(content map[string]any, key, value string) {
	if value != "" {
		content[key] = value
	}
}

func slugify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = slugPattern.ReplaceAllString(value, "-")
	return strings.Trim(value, "-")
}

func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprint(v))
	default:
		return ""
	}
}

func listField(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return append([]string{}, v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	default:
		return []string{}
	}
}

// boolField returns the parsed value when the cell was filled in, fallback
// when the column is missing or blank.
func boolField(data map[string]any, key string, fallback bool) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return fallback
}

func readingTime(data map[string]any, tpl domain.PostTemplate, content string) int {
	if minutes, ok := data["reading_time"].(float64); ok && minutes > 0 {
		return int(math.Round(minutes))
	}
	words := len(strings.Fields(htmlTag.ReplaceAllString(content, " ")))
	if words > 0 {
		return int(math.Max(1, math.Ceil(float64(words)/wordsPerMinute)))
	}
	switch v := tpl.DefaultValues["reading_time"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
