// Package translation translates posts and their sections through the
// provider contract and stores one record per post and language.
package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rpattn/travelcms/internal/apierr"
	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/logger"
	"github.com/rpattn/travelcms/internal/provider"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	defaultBatchSize      = 25
	defaultSourceLanguage = "en"
)

type Service struct {
	posts        repository.BlogPostRepository
	sections     repository.SectionRepository
	translations repository.TranslationRepository
	translator   provider.Translator
	logger       *logger.Logger
	requests     *validator.Validate
	batchSize    int
	chunkDelay   time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	runs    map[uuid.UUID]*domain.BulkTranslationRun
}

type Option func(*Service)

// WithBatchSize sets how many texts go into one provider call.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithChunkDelay sets the pause between provider calls of one post.
func WithChunkDelay(delay time.Duration) Option {
	return func(s *Service) {
		if delay >= 0 {
			s.chunkDelay = delay
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

func NewService(posts repository.BlogPostRepository, sections repository.SectionRepository, translations repository.TranslationRepository, translator provider.Translator, opts ...Option) *Service {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Service{
		posts:        posts,
		sections:     sections,
		translations: translations,
		translator:   translator,
		logger:       logger.NewNop(),
		requests:     validator.New(),
		batchSize:    defaultBatchSize,
		sleep:        sleepContext,
		now:          time.Now,
		baseCtx:      baseCtx,
		cancel:       cancel,
		runs:         make(map[uuid.UUID]*domain.BulkTranslationRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TranslatePost translates a post and its sections into targetLang and
// stores the result, replacing any earlier translation for that language.
// A failed provider call keeps the source text of its chunk and marks the
// translation partial; failed when every chunk fell back.
func (s *Service) TranslatePost(ctx context.Context, postID uuid.UUID, targetLang string) (domain.PostTranslation, error) {
	if s.translator == nil {
		return domain.PostTranslation{}, apierr.Unavailable(errors.New("translation provider not configured"))
	}
	targetLang = strings.TrimSpace(targetLang)
	if err := s.requests.Var(targetLang, "required,bcp47_language_tag"); err != nil {
		return domain.PostTranslation{}, apierr.Invalidf("invalid target language %q", targetLang)
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return domain.PostTranslation{}, fmt.Errorf("failed to load post %s: %w", postID, err)
	}
	sourceLang := strings.TrimSpace(post.Language)
	if sourceLang == "" {
		sourceLang = defaultSourceLanguage
	}
	if strings.EqualFold(sourceLang, targetLang) {
		return domain.PostTranslation{}, apierr.Invalidf("post is already in %s", sourceLang)
	}

	sections, err := s.sections.ListByPost(ctx, postID)
	if err != nil {
		return domain.PostTranslation{}, fmt.Errorf("failed to load sections for post %s: %w", postID, err)
	}

	units := Collect(post, sections)
	texts, warnings, fellBack, chunks, err := s.translateUnits(ctx, units, targetLang, sourceLang)
	if err != nil {
		return domain.PostTranslation{}, err
	}

	record := domain.NewPostTranslation(post.ID, targetLang, sourceLang)
	now := s.now().UTC()
	record.CreatedAt, record.UpdatedAt = now, now
	record.Warnings = warnings
	switch {
	case chunks > 0 && fellBack == chunks:
		record.Status = domain.TranslationStatusFailed
	case fellBack > 0:
		record.Status = domain.TranslationStatusPartial
	}
	apply(&record, sections, units, texts)

	stored, err := s.translations.Upsert(ctx, record)
	if err != nil {
		return domain.PostTranslation{}, fmt.Errorf("failed to store translation: %w", err)
	}
	s.logger.Info("post translated",
		"post_id", post.ID,
		"language", targetLang,
		"units", len(units),
		"status", stored.Status,
	)
	return stored, nil
}

func (s *Service) translateUnits(ctx context.Context, units []Unit, targetLang, sourceLang string) ([]string, []string, int, int, error) {
	source := make([]string, len(units))
	for i, unit := range units {
		source[i] = unit.Text
	}

	out := make([]string, 0, len(source))
	warnings := []string{}
	chunks := (len(source) + s.batchSize - 1) / s.batchSize
	fellBack := 0

	for index := 0; index < chunks; index++ {
		if index > 0 {
			if err := s.sleep(ctx, s.chunkDelay); err != nil {
				return nil, nil, 0, 0, err
			}
		}
		start := index * s.batchSize
		end := min(start+s.batchSize, len(source))
		chunk := source[start:end]

		translated, err := s.translator.Translate(ctx, chunk, targetLang, sourceLang)
		if err == nil && len(translated) != len(chunk) {
			err = fmt.Errorf("expected %d translations, got %d", len(chunk), len(translated))
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, 0, 0, ctxErr
			}
			fellBack++
			warnings = append(warnings, fmt.Sprintf("Chunk %d/%d kept source text: %v", index+1, chunks, err))
			for _, unit := range units[start:end] {
				warnings = append(warnings, fmt.Sprintf("Field '%s' not translated", unit.Key))
			}
			s.logger.Warn("translation chunk failed", "language", targetLang, "chunk", index+1, "error", err)
			out = append(out, chunk...)
			continue
		}
		out = append(out, translated...)
	}
	return out, warnings, fellBack, chunks, nil
}

// ListTranslations returns the stored translations of a post.
func (s *Service) ListTranslations(ctx context.Context, postID uuid.UUID) ([]domain.PostTranslation, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, fmt.Errorf("failed to load post %s: %w", postID, err)
	}
	return s.translations.ListByPost(ctx, postID)
}

type bulkRequest struct {
	PostIDs   []uuid.UUID `validate:"required,min=1"`
	Languages []string    `validate:"required,min=1,dive,bcp47_language_tag"`
}

// StartBulk translates every post into every language on a background
// goroutine, one (post, language) pair at a time. The returned run is a
// snapshot; poll GetBulk for progress.
func (s *Service) StartBulk(_ context.Context, postIDs []uuid.UUID, languages []string) (domain.BulkTranslationRun, error) {
	trimmed := make([]string, 0, len(languages))
	for _, lang := range languages {
		trimmed = append(trimmed, strings.TrimSpace(lang))
	}
	if err := s.requests.Struct(bulkRequest{PostIDs: postIDs, Languages: trimmed}); err != nil {
		return domain.BulkTranslationRun{}, apierr.Invalid(err)
	}

	run := &domain.BulkTranslationRun{
		ID:        uuid.New(),
		PostIDs:   append([]uuid.UUID(nil), postIDs...),
		Languages: trimmed,
		Total:     len(postIDs) * len(trimmed),
		Status:    domain.BulkRunStatusRunning,
		Errors:    []string{},
		StartedAt: s.now().UTC(),
	}

	s.mu.Lock()
	if s.baseCtx.Err() != nil {
		s.mu.Unlock()
		return domain.BulkTranslationRun{}, apierr.Unavailable(errors.New("translation service is shutting down"))
	}
	s.runs[run.ID] = run
	snapshot := cloneRun(run)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runBulk(run)
	return snapshot, nil
}

func (s *Service) runBulk(run *domain.BulkTranslationRun) {
	defer s.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic during bulk translation", "run_id", run.ID, "panic", rec)
			s.record(run, fmt.Errorf("panic: %v", rec), "", "")
		}
		s.mu.Lock()
		finished := s.now().UTC()
		run.Status = domain.BulkRunStatusCompleted
		if done := run.Completed + run.Failed; done < run.Total {
			run.Status = domain.BulkRunStatusCancelled
			run.Errors = append(run.Errors, fmt.Sprintf("Cancelled after %d/%d translations", done, run.Total))
		}
		run.FinishedAt = &finished
		status, completed, failed := run.Status, run.Completed, run.Failed
		s.mu.Unlock()
		s.logger.Info("bulk translation finished", "run_id", run.ID, "status", status, "completed", completed, "failed", failed)
	}()

	for _, postID := range run.PostIDs {
		for _, lang := range run.Languages {
			if s.baseCtx.Err() != nil {
				return
			}
			translation, err := s.TranslatePost(s.baseCtx, postID, lang)
			if err != nil && s.baseCtx.Err() != nil {
				// interrupted mid-pair; not counted
				return
			}
			if err == nil && translation.Status == domain.TranslationStatusFailed {
				err = errors.New("every chunk failed")
			}
			s.record(run, err, postID.String(), lang)
		}
	}
}

func (s *Service) record(run *domain.BulkTranslationRun, err error, postID, lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		run.Completed++
		return
	}
	run.Failed++
	if postID == "" {
		run.Errors = append(run.Errors, err.Error())
		return
	}
	run.Errors = append(run.Errors, fmt.Sprintf("Post %s (%s): %v", postID, lang, err))
}

// GetBulk returns the current progress of a bulk run.
func (s *Service) GetBulk(id uuid.UUID) (domain.BulkTranslationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.BulkTranslationRun{}, fmt.Errorf("bulk run %s: %w", id, repository.ErrNotFound)
	}
	return cloneRun(run), nil
}

// Wait blocks until every bulk run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown stops bulk runs between pairs and waits for them or ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func cloneRun(run *domain.BulkTranslationRun) domain.BulkTranslationRun {
	out := *run
	out.PostIDs = append([]uuid.UUID(nil), run.PostIDs...)
	out.Languages = append([]string(nil), run.Languages...)
	out.Errors = append([]string{}, run.Errors...)
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}
