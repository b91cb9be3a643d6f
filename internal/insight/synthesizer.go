package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bjmnh/chatinsights/internal/observability/metrics"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

const (
	defaultSynthesisWait = 90 * time.Second
	synthesisTemperature = 0.8
	codenameMaxTokens    = 128
)

// synthesisJob describes one report kind. The table of jobs is closed:
// adding a report means adding a row here, nothing else.
type synthesisJob struct {
	kind      ReportKind
	maxTokens int32
	build     func(*AggregatedSignals) string
	required  []string
	finalize  func(ctx context.Context, s *Synthesizer, sig *AggregatedSignals, report map[string]json.RawMessage, usage *TokenUsage)
}

func synthesisJobs() []synthesisJob {
	return []synthesisJob{
		{
			kind:      KindBehavioralDossier,
			maxTokens: 4096,
			build:     buildBehavioralDossierPrompt,
			required:  []string{"psychologicalProfile", "dominantInterests", "behavioralPatterns", "riskAssessment"},
			finalize:  finalizeDossier,
		},
		{
			kind:      KindLinguisticFingerprint,
			maxTokens: 2048,
			build:     buildLinguisticFingerprintPrompt,
			required:  []string{"styleDescription", "sophisticationTier", "rhetoricalDevices"},
		},
		{
			kind:      KindTopConversations,
			maxTokens: 2048,
			build:     buildTopConversationsPrompt,
			required:  []string{"justifications"},
			finalize:  finalizeTopConversations,
		},
		{
			kind:      KindPersonaArchetype,
			maxTokens: 2048,
			build:     buildPersonaArchetypePrompt,
			required:  []string{"archetype", "traits", "narrativeArcs"},
		},
		{
			kind:      KindUnfilteredMirror,
			maxTokens: 1024,
			build:     buildUnfilteredMirrorPrompt,
			required:  []string{"amplifiedObservation", "deeperInsight"},
		},
		{
			kind:      KindPiiSafety,
			maxTokens: 2048,
			build:     buildPiiSafetyPrompt,
			required:  []string{"riskTier", "categoryAdvice", "recommendedActions"},
		},
		{
			kind:      KindSyntheticSocial,
			maxTokens: 2048,
			build:     buildSyntheticSocialPrompt,
			required:  []string{"handle", "bio", "hashtags", "followerTypes"},
		},
		{
			kind:      KindCognitiveStyle,
			maxTokens: 2048,
			build:     buildCognitiveStylePrompt,
			required:  []string{"thinkingStyle", "problemSolvingStyle", "decisionStyle"},
		},
		{
			kind:      KindPersonalityArchetype,
			maxTokens: 2048,
			build:     buildPersonalityArchetypePrompt,
			required:  []string{"archetype", "motivationalDrivers", "stressResponses"},
		},
	}
}

// SynthesizerConfig tunes the report fan-out.
type SynthesizerConfig struct {
	// CallTimeout bounds each individual model call. Zero means the
	// default.
	CallTimeout time.Duration
}

func (c *SynthesizerConfig) applyDefaults() {
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultSynthesisWait
	}
}

// Synthesizer runs every report kind against the powerful model tier and
// collects whatever succeeds. One report failing never blocks another.
type Synthesizer struct {
	llm     LLMClient
	cfg     SynthesizerConfig
	logger  *logging.Logger
	metrics *metrics.PipelineMetrics
}

func NewSynthesizer(llm LLMClient, cfg SynthesizerConfig, logger *logging.Logger, m *metrics.PipelineMetrics) *Synthesizer {
	if llm == nil {
		panic("insight: NewSynthesizer requires an LLM client")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Synthesizer{llm: llm, cfg: cfg, logger: logger.Component("synthesizer"), metrics: m}
}

type synthesisResult struct {
	kind   ReportKind
	report json.RawMessage
	usage  TokenUsage
	err    error
}

// SynthesizeAll fans out one model call per report kind and assembles the
// bundle. Failed reports are recorded in ProcessingErrors; the returned
// bundle only errors as a whole when signals are nil.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, sig *AggregatedSignals) (*ReportBundle, error) {
	if sig == nil {
		return nil, fmt.Errorf("insight: synthesize: %w", ErrNoInsights)
	}

	jobs := synthesisJobs()
	results := make(chan synthesisResult, len(jobs))
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job synthesisJob) {
			defer wg.Done()
			results <- s.runJob(ctx, job, sig)
		}(job)
	}
	wg.Wait()
	close(results)

	bundle := &ReportBundle{
		Reports:               make(map[ReportKind]json.RawMessage, len(jobs)),
		ConversationsAnalyzed: sig.ConversationCount,
		GeneratedAt:           time.Now().UTC(),
	}
	for res := range results {
		bundle.Usage.Add(res.usage)
		if res.err != nil {
			s.logger.Warn("report synthesis failed", "kind", res.kind, "error", res.err)
			s.metrics.ObserveSynthesis(string(res.kind), "failure")
			bundle.ProcessingErrors = append(bundle.ProcessingErrors, fmt.Sprintf("%s: %v", res.kind, res.err))
			continue
		}
		s.metrics.ObserveSynthesis(string(res.kind), "success")
		bundle.Reports[res.kind] = res.report
	}
	sort.Strings(bundle.ProcessingErrors)
	return bundle, nil
}

func (s *Synthesizer) runJob(ctx context.Context, job synthesisJob, sig *AggregatedSignals) synthesisResult {
	res := synthesisResult{kind: job.kind}

	report, usage, err := s.complete(ctx, job.build(sig), job.maxTokens)
	res.usage = usage
	if err != nil {
		res.err = err
		return res
	}
	if err := requireKeys(report, job.required); err != nil {
		res.err = err
		return res
	}
	if job.finalize != nil {
		job.finalize(ctx, s, sig, report, &res.usage)
	}

	raw, err := json.Marshal(report)
	if err != nil {
		res.err = fmt.Errorf("insight: encode %s report: %w", job.kind, err)
		return res
	}
	res.report = raw
	return res
}

// complete issues one powerful-tier call and decodes the JSON object it
// returns. Keys are kept raw so each report's shape passes through intact.
func (s *Synthesizer) complete(ctx context.Context, prompt string, maxTokens int32) (map[string]json.RawMessage, TokenUsage, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	resp, err := s.llm.Complete(callCtx, LLMRequest{
		Tier:        TierPowerful,
		System:      synthesisSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: synthesisTemperature,
	})
	if err != nil {
		return nil, TokenUsage{}, fmt.Errorf("insight: model call: %w", err)
	}

	var report map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Text)), &report); err != nil {
		return nil, resp.Usage, fmt.Errorf("insight: decode report response: %w", err)
	}
	return report, resp.Usage, nil
}

// requireKeys enforces the report's contract strictly: a missing or null
// required key fails the whole report rather than shipping a partial one.
func requireKeys(report map[string]json.RawMessage, required []string) error {
	for _, key := range required {
		raw, ok := report[key]
		if !ok || len(raw) == 0 || string(raw) == "null" {
			return fmt.Errorf("insight: report missing required field %q", key)
		}
	}
	return nil
}

// finalizeDossier attaches an agent codename via a short follow-up call.
// The codename is garnish; any failure falls back to a fixed name instead
// of failing the dossier.
func finalizeDossier(ctx context.Context, s *Synthesizer, sig *AggregatedSignals, report map[string]json.RawMessage, usage *TokenUsage) {
	codename := defaultCodename

	var interests []string
	if raw, ok := report["dominantInterests"]; ok {
		_ = json.Unmarshal(raw, &interests)
	}
	prompt := fmt.Sprintf(codenamePrompt, jsonSnippet(interests), patternList(sig))

	resp, callUsage, err := s.complete(ctx, prompt, codenameMaxTokens)
	usage.Add(callUsage)
	if err != nil {
		s.logger.Warn("codename call failed, using fallback", "error", err)
	} else {
		var name string
		if raw, ok := resp["codename"]; ok {
			_ = json.Unmarshal(raw, &name)
		}
		if name != "" {
			codename = name
		}
	}

	raw, merr := json.Marshal(codename)
	if merr == nil {
		report["agentCodename"] = raw
	}
}

// finalizeTopConversations pads the justification list so it always
// position-aligns with the spotlighted conversations.
func finalizeTopConversations(_ context.Context, _ *Synthesizer, sig *AggregatedSignals, report map[string]json.RawMessage, _ *TokenUsage) {
	var justifications []string
	if raw, ok := report["justifications"]; ok {
		_ = json.Unmarshal(raw, &justifications)
	}
	for len(justifications) < len(sig.TopConversations) {
		justifications = append(justifications, spotlightFallback)
	}
	justifications = justifications[:len(sig.TopConversations)]

	if raw, err := json.Marshal(justifications); err == nil {
		report["justifications"] = raw
	}
	if raw, err := json.Marshal(spotlightEntries(sig)); err == nil {
		report["conversations"] = raw
	}
}
