package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/provider"
	"github.com/rpattn/travelcms/internal/repository"
	"github.com/rpattn/travelcms/internal/repository/memory"

	"github.com/google/uuid"
)

type failingSectionRepo struct{}

func (failingSectionRepo) CreateBatch(context.Context, []domain.PostSection) error {
	return errors.New("connection reset")
}

func (failingSectionRepo) ListByPost(context.Context, uuid.UUID) ([]domain.PostSection, error) {
	return nil, nil
}

var _ repository.SectionRepository = failingSectionRepo{}

type stubImages struct {
	prompts []string
	image   string
	err     error
}

func (s *stubImages) GenerateImage(_ context.Context, prompt, _ string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.image, s.err
}

var _ provider.ImageGenerator = (*stubImages)(nil)

func newRow(number int, data map[string]any) domain.CSVRow {
	return domain.NewCSVRow(uuid.New(), number, data)
}

func TestProcessRowCreatesPostAndSections(t *testing.T) {
	posts := memory.NewBlogPostRepository()
	sections := memory.NewSectionRepository()
	processor := NewProcessor(posts, sections)
	tpl := travelGuide(t)

	result := processor.ProcessRow(context.Background(), newRow(1, map[string]any{
		"title":   "Paris Guide",
		"excerpt": "Everything about Paris",
		"content": "<p>" + strings.Repeat("word ", 450) + "</p>",
		"tags":    []string{"france", "city"},
	}), tpl)
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Errors)
	}

	post, err := posts.GetByID(context.Background(), result.PostID)
	if err != nil {
		t.Fatalf("post not stored: %v", err)
	}
	if post.Slug != "paris-guide" {
		t.Fatalf("unexpected slug %q", post.Slug)
	}
	if post.Status != "draft" || post.Language != "en" || post.AuthorName != "Travel Team" {
		t.Fatalf("template defaults not applied: %+v", post)
	}
	if post.MetaTitle != "Paris Guide" || post.OGDescription != "Everything about Paris" || post.TwitterTitle != "Paris Guide" {
		t.Fatalf("seo fallbacks not applied: %+v", post)
	}
	if post.FocusKeyword != "france" || len(post.SEOKeywords) != 2 {
		t.Fatalf("keywords should fall back to tags: %q %v", post.FocusKeyword, post.SEOKeywords)
	}
	if !post.RobotsIndex || !post.RobotsFollow || post.RobotsNoarchive || !post.StructuredDataEnabled {
		t.Fatalf("unexpected robots defaults: %+v", post)
	}
	if post.ReadingTime != 3 {
		t.Fatalf("expected reading time 3, got %d", post.ReadingTime)
	}
	if post.PublishedAt != nil {
		t.Fatalf("draft post must not be published")
	}

	stored, err := sections.ListByPost(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("list sections: %v", err)
	}
	if len(stored) != len(domain.SectionOrder) {
		t.Fatalf("expected %d sections, got %d", len(domain.SectionOrder), len(stored))
	}
	for i, section := range stored {
		if section.SectionType != domain.SectionOrder[i] || section.Position != i {
			t.Fatalf("section %d out of order: %s at %d", i, section.SectionType, section.Position)
		}
	}
	if stored[0].Data["title"] != "Paris Guide" {
		t.Fatalf("hero should use the post title, got %v", stored[0].Data["title"])
	}
	if stored[8].Data["name"] == nil {
		t.Fatalf("author section should fall back to template defaults: %v", stored[8].Data)
	}
}

func TestProcessRowSuffixesTakenSlug(t *testing.T) {
	posts := memory.NewBlogPostRepository()
	processor := NewProcessor(posts, memory.NewSectionRepository())
	tpl := travelGuide(t)
	ctx := context.Background()

	first := processor.ProcessRow(ctx, newRow(1, map[string]any{"title": "Paris Guide", "excerpt": "a"}), tpl)
	second := processor.ProcessRow(ctx, newRow(2, map[string]any{"title": "Paris  Guide!", "excerpt": "b"}), tpl)
	third := processor.ProcessRow(ctx, newRow(3, map[string]any{"slug": "paris-guide", "title": "Other", "excerpt": "c"}), tpl)

	for _, r := range []RowResult{first, second, third} {
		if !r.Success {
			t.Fatalf("expected success, got %v", r.Errors)
		}
	}
	if first.Post.Slug != "paris-guide" || second.Post.Slug != "paris-guide-1" || third.Post.Slug != "paris-guide-2" {
		t.Fatalf("unexpected slugs %q %q %q", first.Post.Slug, second.Post.Slug, third.Post.Slug)
	}
}

func TestProcessRowFallsBackToRowNumberSlug(t *testing.T) {
	processor := NewProcessor(memory.NewBlogPostRepository(), memory.NewSectionRepository())
	result := processor.ProcessRow(context.Background(), newRow(7, map[string]any{"title": "!!!", "excerpt": "x"}), travelGuide(t))
	if !result.Success || result.Post.Slug != "post-7" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestProcessRowGivesUpAfterMaxSlugAttempts(t *testing.T) {
	posts := memory.NewBlogPostRepository()
	processor := NewProcessor(posts, memory.NewSectionRepository(), WithMaxSlugAttempts(2))
	tpl := travelGuide(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if r := processor.ProcessRow(ctx, newRow(i, map[string]any{"title": "Oslo", "excerpt": "x"}), tpl); !r.Success {
			t.Fatalf("row %d failed: %v", i, r.Errors)
		}
	}
	result := processor.ProcessRow(ctx, newRow(3, map[string]any{"title": "Oslo", "excerpt": "x"}), tpl)
	if result.Success || !strings.Contains(result.Errors[0], "no free slug") {
		t.Fatalf("expected slug exhaustion, got %+v", result)
	}
}

func TestProcessRowRespectsExplicitValues(t *testing.T) {
	posts := memory.NewBlogPostRepository()
	processor := NewProcessor(posts, memory.NewSectionRepository())
	processor.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	result := processor.ProcessRow(context.Background(), newRow(1, map[string]any{
		"title":          "Lisbon",
		"excerpt":        "Hills",
		"status":         "published",
		"robots_index":   false,
		"reading_time":   float64(9),
		"featured_image": "https://cdn.example.com/lisbon.jpg",
		"faq_items":      []any{map[string]any{"question": "Best time?", "answer": "May"}},
	}), travelGuide(t))
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Errors)
	}

	post := result.Post
	if post.RobotsIndex {
		t.Fatalf("explicit robots_index=false must be kept")
	}
	if post.ReadingTime != 9 {
		t.Fatalf("expected reading time 9, got %d", post.ReadingTime)
	}
	if post.PublishedAt == nil || !post.PublishedAt.Equal(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("published post must carry published_at, got %v", post.PublishedAt)
	}
	if post.OGImage != "https://cdn.example.com/lisbon.jpg" {
		t.Fatalf("og image should fall back to featured image, got %q", post.OGImage)
	}
}

func TestProcessRowGeneratesMissingFeaturedImage(t *testing.T) {
	images := &stubImages{image: "aGVsbG8="}
	processor := NewProcessor(memory.NewBlogPostRepository(), memory.NewSectionRepository(), WithImageGenerator(images))

	result := processor.ProcessRow(context.Background(), newRow(1, map[string]any{"title": "Cusco", "excerpt": "Andes"}), travelGuide(t))
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Errors)
	}
	if len(images.prompts) != 1 || !strings.Contains(images.prompts[0], "Cusco") {
		t.Fatalf("unexpected prompts %v", images.prompts)
	}
	if result.Post.FeaturedImage != "data:image/png;base64,aGVsbG8=" {
		t.Fatalf("unexpected featured image %q", result.Post.FeaturedImage)
	}
}

func TestProcessRowImageFailureIsNotFatal(t *testing.T) {
	images := &stubImages{err: errors.New("quota exceeded")}
	processor := NewProcessor(memory.NewBlogPostRepository(), memory.NewSectionRepository(), WithImageGenerator(images))

	result := processor.ProcessRow(context.Background(), newRow(1, map[string]any{"title": "Cusco", "excerpt": "Andes"}), travelGuide(t))
	if !result.Success || result.Post.FeaturedImage != "" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestProcessRowSectionFailureLeavesPostBehind(t *testing.T) {
	posts := memory.NewBlogPostRepository()
	processor := NewProcessor(posts, failingSectionRepo{})

	result := processor.ProcessRow(context.Background(), newRow(1, map[string]any{"title": "Hanoi", "excerpt": "Pho"}), travelGuide(t))
	if result.Success {
		t.Fatal("expected failure when sections cannot be stored")
	}
	if !strings.Contains(result.Errors[0], "connection reset") {
		t.Fatalf("unexpected error %v", result.Errors)
	}
	if len(posts.All()) != 1 {
		t.Fatalf("post write is not rolled back, expected 1 stored post, got %d", len(posts.All()))
	}
}

func TestProcessRowBlankBooleanCellsKeepDefaults(t *testing.T) {
	parsed, err := Parse("posts.csv", []byte(
		"title,excerpt,robots_index,robots_follow,robots_noarchive,structured_data_enabled\n"+
			"Paris Guide,About Paris,,,,\n"+
			"Rome Guide,About Rome,no,,yes,\n"))
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	if parsed.Rows[0]["robots_index"] != nil {
		t.Fatalf("blank boolean cell should parse to nil, got %#v", parsed.Rows[0]["robots_index"])
	}

	processor := NewProcessor(memory.NewBlogPostRepository(), memory.NewSectionRepository())
	tpl := travelGuide(t)

	blank := processor.ProcessRow(context.Background(), newRow(1, parsed.Rows[0]), tpl)
	if !blank.Success {
		t.Fatalf("expected success, got %v", blank.Errors)
	}
	if !blank.Post.RobotsIndex || !blank.Post.RobotsFollow || !blank.Post.StructuredDataEnabled || blank.Post.RobotsNoarchive {
		t.Fatalf("blank cells should keep defaults, got index=%v follow=%v noarchive=%v structured=%v",
			blank.Post.RobotsIndex, blank.Post.RobotsFollow, blank.Post.RobotsNoarchive, blank.Post.StructuredDataEnabled)
	}

	explicit := processor.ProcessRow(context.Background(), newRow(2, parsed.Rows[1]), tpl)
	if !explicit.Success {
		t.Fatalf("expected success, got %v", explicit.Errors)
	}
	if explicit.Post.RobotsIndex || !explicit.Post.RobotsFollow || !explicit.Post.RobotsNoarchive {
		t.Fatalf("filled cells should win, got index=%v follow=%v noarchive=%v",
			explicit.Post.RobotsIndex, explicit.Post.RobotsFollow, explicit.Post.RobotsNoarchive)
	}
}

func TestProcessRowBooleanTemplateDefault(t *testing.T) {
	processor := NewProcessor(memory.NewBlogPostRepository(), memory.NewSectionRepository())
	tpl := travelGuide(t)
	tpl.DefaultValues = map[string]any{"robots_index": false}

	result := processor.ProcessRow(context.Background(), newRow(1, map[string]any{
		"title":        "Draft Guide",
		"excerpt":      "Not ready",
		"robots_index": nil,
	}), tpl)
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Errors)
	}
	if result.Post.RobotsIndex {
		t.Fatalf("template default robots_index=false should apply to a blank cell")
	}
}
