package insight

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/bjmnh/chatinsights/internal/archive"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

// testArchive holds three conversations: one with no user text (skipped at
// parse time), a cooking chat, and a distributed-systems chat where the
// user discloses an email address.
const testArchive = `[
	{
		"id": "conv-assistant-only",
		"title": "System announcement",
		"mapping": {
			"n1": {"message": {"author": {"role": "assistant"}, "content": {"parts": ["Welcome to the product!"]}, "create_time": 1700000000}}
		}
	},
	{
		"id": "conv-cooking",
		"title": "Weeknight pasta",
		"mapping": {
			"n1": {"message": {"author": {"role": "user"}, "content": {"parts": ["How do I make carbonara without cream?"]}, "create_time": 1700000100}},
			"n2": {"message": {"author": {"role": "assistant"}, "content": {"parts": ["Use eggs and pecorino."]}, "create_time": 1700000101}},
			"n3": {"message": {"author": {"role": "user"}, "content": {"parts": ["Perfect, thanks! What wine pairs with it?"]}, "create_time": 1700000102}}
		}
	},
	{
		"id": "conv-distsys",
		"title": "Raft questions",
		"mapping": {
			"n1": {"message": {"author": {"role": "user"}, "content": {"parts": ["Why does Raft need an odd cluster size? Email me notes at jane@example.com"]}, "create_time": 1700000200}},
			"n2": {"message": {"author": {"role": "user"}, "content": {"parts": ["And how does leader election avoid split votes?"]}, "create_time": 1700000201}}
		}
	}
]`

const distsysExtractionJSON = `{
	"primaryTopics": ["distributed systems"],
	"communicationPatterns": ["SeekingInformation", "ProblemSolving"],
	"extractedPii": [{"value": "jane@example.com", "category": "ContactEmail", "riskLevel": "high", "context": "shared email while asking for study notes"}],
	"standoutVocabulary": ["quorum"],
	"uniquenessScore": 9,
	"complexityLevel": 8,
	"engagementLevel": 7,
	"emotionalTone": "curious",
	"intriguingObservation": "studies consensus protocols recreationally",
	"topicEvolution": ["raft", "leader election"]
}`

const cookingExtractionJSON = `{
	"primaryTopics": ["cooking"],
	"communicationPatterns": ["SeekingInformation"],
	"extractedPii": [],
	"standoutVocabulary": ["pecorino"],
	"uniquenessScore": 4,
	"complexityLevel": 3,
	"engagementLevel": 6,
	"emotionalTone": "cheerful",
	"intriguingObservation": "treats recipes as engineering problems",
	"topicEvolution": ["pasta", "wine"]
}`

func newTestPipeline(llm LLMClient) *Pipeline {
	logger := logging.NewText("error")
	extractor := NewExtractor(llm, ExtractorConfig{BatchSize: 10}, logger, nil)
	synthesizer := NewSynthesizer(llm, SynthesizerConfig{}, logger, nil)
	return NewPipeline(extractor, synthesizer, logger, nil)
}

func fullStubLLM() *stubLLM {
	return &stubLLM{complete: func(req LLMRequest) (LLMResponse, error) {
		if req.System == extractionSystemPrompt {
			if strings.Contains(req.Prompt, "Raft") {
				return LLMResponse{Text: distsysExtractionJSON, Usage: TokenUsage{TotalTokens: 50}}, nil
			}
			return LLMResponse{Text: cookingExtractionJSON, Usage: TokenUsage{TotalTokens: 40}}, nil
		}
		if isCodenameCall(req) {
			return LLMResponse{Text: `{"codename": "Quorum Chaser"}`}, nil
		}
		return LLMResponse{Text: supersetReportJSON, Usage: TokenUsage{TotalTokens: 100}}, nil
	}}
}

func TestPipelineEndToEnd(t *testing.T) {
	p := newTestPipeline(fullStubLLM())

	var stages []Stage
	var percents []int
	bundle, err := p.Run(context.Background(), []byte(testArchive), func(stage Stage, percent int) {
		stages = append(stages, stage)
		percents = append(percents, percent)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bundle.ConversationsAnalyzed != 2 {
		t.Fatalf("ConversationsAnalyzed = %d, want 2 (assistant-only conversation must be skipped)", bundle.ConversationsAnalyzed)
	}
	if len(bundle.Reports) != 9 {
		t.Fatalf("expected 9 reports, got %d (errors: %v)", len(bundle.Reports), bundle.ProcessingErrors)
	}
	if bundle.Usage.TotalTokens == 0 {
		t.Fatal("expected token usage to accumulate across stages")
	}

	// The dossier must exist and carry its required shape.
	var dossier map[string]json.RawMessage
	if err := json.Unmarshal(bundle.Reports[KindBehavioralDossier], &dossier); err != nil {
		t.Fatalf("dossier invalid: %v", err)
	}
	for _, key := range []string{"psychologicalProfile", "dominantInterests", "behavioralPatterns", "riskAssessment", "agentCodename"} {
		if _, ok := dossier[key]; !ok {
			t.Fatalf("dossier missing %q", key)
		}
	}

	// Progress must start at parsing, end at done/100, and never regress.
	if len(percents) == 0 || stages[0] != StageParsing {
		t.Fatalf("progress should begin with parsing, got %v", stages)
	}
	last := stages[len(stages)-1]
	if last != StageDone || percents[len(percents)-1] != 100 {
		t.Fatalf("progress should end done/100, got %v/%d", last, percents[len(percents)-1])
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress regressed: %v", percents)
		}
	}
}

func TestPipelineMalformedArchiveIsFatal(t *testing.T) {
	p := newTestPipeline(fullStubLLM())
	_, err := p.Run(context.Background(), []byte(`{"conversations": "nope"}`), nil)
	if !errors.Is(err, archive.ErrMalformedArchive) {
		t.Fatalf("expected ErrMalformedArchive, got %v", err)
	}
}

func TestPipelineNoUsableInsightsIsFatal(t *testing.T) {
	llm := &stubLLM{complete: func(req LLMRequest) (LLMResponse, error) {
		return LLMResponse{}, errors.New("provider down")
	}}
	p := newTestPipeline(llm)
	_, err := p.Run(context.Background(), []byte(testArchive), nil)
	if !errors.Is(err, ErrNoInsights) {
		t.Fatalf("expected ErrNoInsights, got %v", err)
	}
}
