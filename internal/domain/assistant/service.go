package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediledger/mediledger/internal/domain/identity"
	"github.com/mediledger/mediledger/internal/domain/records"
	"github.com/mediledger/mediledger/internal/platform/auth"
	"github.com/mediledger/mediledger/internal/platform/cache"
	"github.com/mediledger/mediledger/internal/platform/metrics"
)

const (
	// maxPromptRecords bounds how many of the newest records are sent to
	// the model.
	maxPromptRecords = 50

	analyzeMaxTokens = 1000
	askMaxTokens     = 500
	temperature      = 0.3
)

type Authorizer interface {
	CanReadPatient(ctx context.Context, p *auth.Principal, patientID uuid.UUID) error
}

type RecordLister interface {
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*records.Record, int, error)
}

type PatientLookup interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

type Service struct {
	guard    Authorizer
	records  RecordLister
	patients PatientLookup
	llm      Completer
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Collector
	now      func() time.Time
}

// NewService wires the assistant. A nil cache disables summary caching.
func NewService(guard Authorizer, recs RecordLister, patients PatientLookup, llm Completer, c cache.Cache, ttl time.Duration, m *metrics.Collector) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		guard:    guard,
		records:  recs,
		patients: patients,
		llm:      llm,
		cache:    c,
		cacheTTL: ttl,
		metrics:  m,
		now:      time.Now,
	}
}

// Analyze summarizes patientID's records. Authorization runs before the
// cache is consulted so a cached summary is never served to a caller who
// lost access.
func (s *Service) Analyze(ctx context.Context, p *auth.Principal, patientID uuid.UUID) (*Analysis, error) {
	if err := s.guard.CanReadPatient(ctx, p, patientID); err != nil {
		return nil, err
	}
	patient, err := s.patients.GetPatient(ctx, patientID)
	if errors.Is(err, identity.ErrPatientNotFound) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	recs, total, err := s.records.ListByPatient(ctx, patientID, maxPromptRecords, 0)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	if len(recs) == 0 {
		return emptyAnalysis(), nil
	}

	log := zerolog.Ctx(ctx)
	key := cacheKey(patient, recs, total)
	var cached Analysis
	switch err := s.cache.Get(ctx, key, &cached); {
	case err == nil:
		s.metrics.CacheLookup(true)
		return &cached, nil
	case errors.Is(err, cache.ErrMiss):
		s.metrics.CacheLookup(false)
	default:
		log.Warn().Err(err).Msg("summary cache read failed")
	}

	text, err := s.complete(ctx, "analyze", CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildAnalysisPrompt(patient, recs, s.now()),
		MaxTokens:   analyzeMaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}

	a := parseAnalysis(text)
	a.RecordsCount = total
	a.LastRecordDate = recs[0].CreatedAt.Format(dateLayout)

	if err := s.cache.Set(ctx, key, a, s.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("summary cache write failed")
	}
	return a, nil
}

// Ask answers a free-text question using the patient's analysis as
// context.
func (s *Service) Ask(ctx context.Context, p *auth.Principal, patientID uuid.UUID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionRequired
	}
	a, err := s.Analyze(ctx, p, patientID)
	if err != nil {
		return nil, err
	}
	text, err := s.complete(ctx, "ask", CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildQuestionPrompt(question, a.Summary),
		MaxTokens:   askMaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, err
	}
	return &Answer{Answer: strings.TrimSpace(text), Timestamp: s.now().UTC()}, nil
}

func (s *Service) complete(ctx context.Context, kind string, req CompletionRequest) (string, error) {
	text, err := s.llm.Complete(ctx, req)
	s.metrics.AssistantCall(kind, err)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("kind", kind).Msg("assistant completion failed")
		return "", fmt.Errorf("%w: %s", ErrAssistantUnavailable, kind)
	}
	return text, nil
}

// cacheKey changes whenever any record or the patient profile changes.
func cacheKey(p *identity.Patient, recs []*records.Record, total int) string {
	h := sha256.New()
	h.Write([]byte(p.UpdatedAt.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(strconv.Itoa(total)))
	for _, r := range recs {
		h.Write(r.ID[:])
		h.Write([]byte(r.UpdatedAt.UTC().Format(time.RFC3339Nano)))
	}
	return "summary:" + p.ID.String() + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}
