package insight

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bjmnh/chatinsights/internal/archive"
	"github.com/bjmnh/chatinsights/internal/observability/metrics"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

// Stage names a pipeline phase for progress reporting and metrics.
type Stage string

const (
	StageParsing      Stage = "parsing"
	StageExtracting   Stage = "extracting"
	StageAggregating  Stage = "aggregating"
	StageSynthesizing Stage = "synthesizing"
	StageDone         Stage = "done"
)

// Progress checkpoints as percentages. Extraction interpolates between
// its start and end as batches complete.
const (
	progressParsed          = 5
	progressExtractionStart = 10
	progressExtractionEnd   = 60
	progressAggregated      = 70
	progressSynthesized     = 95
	progressDone            = 100
)

// ProgressFunc receives stage transitions and percentage updates. It is
// called from the pipeline goroutine; implementations should be quick.
type ProgressFunc func(stage Stage, percent int)

// Pipeline wires the full analysis: parse the archive, extract per
// conversation signals, aggregate them, and synthesize the report
// bundle. Parse and aggregate failures are fatal; individual extraction
// and synthesis failures are absorbed.
type Pipeline struct {
	extractor   *Extractor
	synthesizer *Synthesizer
	logger      *logging.Logger
	metrics     *metrics.PipelineMetrics
	tracer      trace.Tracer
}

func NewPipeline(extractor *Extractor, synthesizer *Synthesizer, logger *logging.Logger, m *metrics.PipelineMetrics) *Pipeline {
	if extractor == nil {
		panic("insight: NewPipeline requires an extractor")
	}
	if synthesizer == nil {
		panic("insight: NewPipeline requires a synthesizer")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		extractor:   extractor,
		synthesizer: synthesizer,
		logger:      logger.Component("pipeline"),
		metrics:     m,
		tracer:      otel.Tracer("chatinsights/pipeline"),
	}
}

// Run executes the pipeline over a raw archive payload. The returned
// error is non-nil only for fatal conditions: a malformed archive or an
// archive that yields no usable insights.
func (p *Pipeline) Run(ctx context.Context, raw []byte, progress ProgressFunc) (*ReportBundle, error) {
	if progress == nil {
		progress = func(Stage, int) {}
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	records, err := p.parse(ctx, raw)
	if err != nil {
		return nil, err
	}
	progress(StageParsing, progressParsed)

	progress(StageExtracting, progressExtractionStart)
	insights, usage := p.extract(ctx, records, progress)

	signals, err := p.aggregate(ctx, insights)
	if err != nil {
		return nil, err
	}
	progress(StageAggregating, progressAggregated)

	bundle, err := p.synthesize(ctx, signals)
	if err != nil {
		return nil, err
	}
	progress(StageSynthesizing, progressSynthesized)

	bundle.Usage.Add(usage)
	span.SetAttributes(
		attribute.Int("pipeline.conversations", signals.ConversationCount),
		attribute.Int("pipeline.reports", len(bundle.Reports)),
		attribute.Int("pipeline.report_errors", len(bundle.ProcessingErrors)),
	)
	p.logger.Info("pipeline complete",
		"conversations", signals.ConversationCount,
		"reports", len(bundle.Reports),
		"report_errors", len(bundle.ProcessingErrors),
		"total_tokens", bundle.Usage.TotalTokens,
	)
	progress(StageDone, progressDone)
	return bundle, nil
}

func (p *Pipeline) parse(ctx context.Context, raw []byte) ([]archive.ConversationRecord, error) {
	_, span := p.tracer.Start(ctx, "pipeline.parse")
	defer span.End()
	defer p.timeStage(StageParsing)()

	records, err := archive.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("insight: parse archive: %w", err)
	}
	p.logger.Info("archive parsed", "conversations", len(records))
	return records, nil
}

func (p *Pipeline) extract(ctx context.Context, records []archive.ConversationRecord, progress ProgressFunc) ([]ConversationInsight, TokenUsage) {
	ctx, span := p.tracer.Start(ctx, "pipeline.extract")
	defer span.End()
	defer p.timeStage(StageExtracting)()

	onBatch := func(done, total int) {
		if total == 0 {
			return
		}
		width := progressExtractionEnd - progressExtractionStart
		progress(StageExtracting, progressExtractionStart+width*done/total)
	}
	insights, usage := p.extractor.ExtractAll(ctx, records, onBatch)
	p.metrics.ObserveConversations(len(insights))
	return insights, usage
}

func (p *Pipeline) aggregate(ctx context.Context, insights []ConversationInsight) (*AggregatedSignals, error) {
	_, span := p.tracer.Start(ctx, "pipeline.aggregate")
	defer span.End()
	defer p.timeStage(StageAggregating)()

	signals, err := Aggregate(insights)
	if err != nil {
		return nil, fmt.Errorf("insight: aggregate: %w", err)
	}
	return signals, nil
}

func (p *Pipeline) synthesize(ctx context.Context, signals *AggregatedSignals) (*ReportBundle, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.synthesize")
	defer span.End()
	defer p.timeStage(StageSynthesizing)()

	return p.synthesizer.SynthesizeAll(ctx, signals)
}

func (p *Pipeline) timeStage(stage Stage) func() {
	start := time.Now()
	return func() {
		p.metrics.ObserveStageDuration(string(stage), time.Since(start).Seconds())
	}
}
