package insight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bjmnh/chatinsights/internal/archive"
	"github.com/bjmnh/chatinsights/internal/observability/metrics"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

const (
	defaultBatchSize        = 10
	defaultMaxConversations = 100
	defaultPromptCharBudget = 16000
	defaultExtractionWait   = 45 * time.Second
	extractionTemperature   = 0.2
	extractionMaxTokens     = 2048
)

// ExtractorConfig bounds Stage-1 cost and concurrency. The batch size, the
// inter-batch pause, and the conversation cap are rate-limit and cost
// controls, not correctness requirements.
type ExtractorConfig struct {
	BatchSize        int
	BatchDelay       time.Duration
	MaxConversations int
	PromptCharBudget int
	CallTimeout      time.Duration
}

func (c *ExtractorConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.MaxConversations <= 0 {
		c.MaxConversations = defaultMaxConversations
	}
	if c.PromptCharBudget <= 0 {
		c.PromptCharBudget = defaultPromptCharBudget
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultExtractionWait
	}
}

// Extractor runs Stage 1: one fast-tier model call per conversation,
// batched. A failed conversation is dropped and logged; it never aborts
// its batch.
type Extractor struct {
	llm     LLMClient
	cfg     ExtractorConfig
	logger  *logging.Logger
	metrics *metrics.PipelineMetrics
}

// NewExtractor builds a Stage-1 extractor.
func NewExtractor(llm LLMClient, cfg ExtractorConfig, logger *logging.Logger, m *metrics.PipelineMetrics) *Extractor {
	if llm == nil {
		panic("insight: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Extractor{
		llm:     llm,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// ExtractAll processes up to the configured cap of conversations in
// fixed-size concurrent batches with a pause between batches. The returned
// insights preserve record order; failed conversations are simply absent.
// onBatch, when non-nil, is invoked after each batch with progress counts.
func (e *Extractor) ExtractAll(ctx context.Context, records []archive.ConversationRecord, onBatch func(done, total int)) ([]ConversationInsight, TokenUsage) {
	if len(records) > e.cfg.MaxConversations {
		e.logger.Info("capping conversations for extraction",
			"total", len(records),
			"cap", e.cfg.MaxConversations,
		)
		records = records[:e.cfg.MaxConversations]
	}

	results := make([]*ConversationInsight, len(records))
	usages := make([]TokenUsage, len(records))

	for start := 0; start < len(records); start += e.cfg.BatchSize {
		if ctx.Err() != nil {
			break
		}
		end := start + e.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				insight, usage, err := e.extractOne(ctx, records[idx])
				usages[idx] = usage
				if err != nil {
					e.metrics.ObserveExtraction("failed")
					e.logger.Warn("conversation extraction failed",
						"conversation_id", records[idx].ID,
						"error", err.Error(),
					)
					return
				}
				e.metrics.ObserveExtraction("ok")
				results[idx] = &insight
			}(i)
		}
		wg.Wait()

		if onBatch != nil {
			onBatch(end, len(records))
		}
		if end < len(records) && e.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.BatchDelay):
			}
		}
	}

	insights := make([]ConversationInsight, 0, len(records))
	var total TokenUsage
	for i, r := range results {
		total.Add(usages[i])
		if r != nil {
			insights = append(insights, *r)
		}
	}
	return insights, total
}

// extractOne runs a single bounded extraction call and coerces the response.
func (e *Extractor) extractOne(ctx context.Context, rec archive.ConversationRecord) (ConversationInsight, TokenUsage, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	resp, err := e.llm.Complete(callCtx, LLMRequest{
		Tier:        TierFast,
		System:      extractionSystemPrompt,
		Prompt:      buildExtractionPrompt(rec, e.cfg.PromptCharBudget),
		MaxTokens:   extractionMaxTokens,
		Temperature: extractionTemperature,
	})
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return ConversationInsight{}, resp.Usage, fmt.Errorf("insight: extraction timed out after %s: %w", e.cfg.CallTimeout, err)
		}
		return ConversationInsight{}, resp.Usage, err
	}

	obj, err := decodeObject(resp.Text)
	if err != nil {
		return ConversationInsight{}, resp.Usage, err
	}
	return coerceInsight(rec, obj), resp.Usage, nil
}

// coerceInsight validates and coerces a raw extraction object into the
// insight shape. Identity comes from the record, never from the model.
func coerceInsight(rec archive.ConversationRecord, obj map[string]any) ConversationInsight {
	return ConversationInsight{
		ConversationID:        rec.ID,
		Title:                 rec.Title,
		PrimaryTopics:         asStringSlice(obj["primaryTopics"]),
		CommunicationPatterns: coercePatterns(obj["communicationPatterns"]),
		ExtractedPii:          coercePiiFindings(obj["extractedPii"]),
		StandoutVocabulary:    asStringSlice(obj["standoutVocabulary"]),
		UniquenessScore:       clampScore(obj["uniquenessScore"], 5),
		ComplexityLevel:       clampScore(obj["complexityLevel"], 5),
		EngagementLevel:       clampScore(obj["engagementLevel"], 5),
		EmotionalTone:         asString(obj["emotionalTone"]),
		IntriguingObservation: asString(obj["intriguingObservation"]),
		TopicEvolution:        asStringSlice(obj["topicEvolution"]),
		TextStats:             computeTextStats(rec.UserMessages),
	}
}
