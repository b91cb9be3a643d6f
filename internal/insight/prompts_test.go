package insight

import (
	"strings"
	"testing"
	"time"

	"github.com/bjmnh/chatinsights/internal/archive"
)

func TestBuildExtractionPromptRespectsBudget(t *testing.T) {
	long := strings.Repeat("the quick brown fox jumps over the lazy dog ", 2000)
	rec := archive.ConversationRecord{
		ID:           "conv-1",
		Title:        "Fox research",
		UserMessages: []string{long},
	}

	prompt := buildExtractionPrompt(rec, 500)
	if !strings.Contains(prompt, truncationMarker) {
		t.Fatal("expected truncation marker in prompt for oversized conversation")
	}
	if !strings.Contains(prompt, "Fox research") {
		t.Fatal("expected title in prompt")
	}

	short := buildExtractionPrompt(archive.ConversationRecord{
		ID:           "conv-2",
		UserMessages: []string{"hello there"},
	}, 500)
	if strings.Contains(short, truncationMarker) {
		t.Fatal("short conversation should not be truncated")
	}
}

func TestTruncateTextIsRuneSafe(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 100)
	got := truncateText(text, 50)
	if !strings.HasSuffix(got, truncationMarker) {
		t.Fatal("expected truncation marker")
	}
	for _, r := range got {
		if r == '\uFFFD' {
			t.Fatal("truncation split a multi-byte rune")
		}
	}
}

func TestComputeTextStats(t *testing.T) {
	stats := computeTextStats([]string{
		"How does TCP slow start work? I read about it yesterday.",
		"Thanks! That helps.",
	})
	if stats.WordCount != 14 {
		t.Fatalf("WordCount = %d, want 14", stats.WordCount)
	}
	if stats.SentenceCount != 4 {
		t.Fatalf("SentenceCount = %d, want 4", stats.SentenceCount)
	}
	if stats.CharCount == 0 {
		t.Fatal("CharCount should be non-zero")
	}

	empty := computeTextStats(nil)
	if empty.WordCount != 0 || empty.SentenceCount != 0 {
		t.Fatalf("empty input should yield zero stats, got %+v", empty)
	}
}

func TestReportPromptsEmbedSignals(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = created
	sig := &AggregatedSignals{
		ConversationCount: 4,
		TopTopics:         []TopicCount{{Topic: "distributed systems", Count: 3}},
		TopPatterns:       []PatternCount{{Pattern: PatternProblemSolving, Count: 2}},
		Vocabulary:        []string{"idempotent", "quorum"},
		MeanComplexity:    7.5,
		MeanEngagement:    6.0,
		ToneDistribution:  []ToneCount{{Tone: "curious", Count: 4}},
		TopConversations: []ConversationInsight{
			{ConversationID: "c1", Title: "Raft deep dive", UniquenessScore: 9, ComplexityLevel: 8},
		},
		LongestObservation: "They treat every outage as a design critique.",
		MeanSentenceLength: 14.2,
		VocabularyEstimate: 800,
	}

	checks := []struct {
		name   string
		build  func(*AggregatedSignals) string
		expect string
	}{
		{"dossier", buildBehavioralDossierPrompt, "distributed systems"},
		{"fingerprint", buildLinguisticFingerprintPrompt, "idempotent"},
		{"top conversations", buildTopConversationsPrompt, "Raft deep dive"},
		{"persona", buildPersonaArchetypePrompt, "curious"},
		{"mirror", buildUnfilteredMirrorPrompt, "design critique"},
		{"pii safety", buildPiiSafetyPrompt, "risk tier"},
		{"synthetic social", buildSyntheticSocialPrompt, "hashtags"},
		{"cognitive", buildCognitiveStylePrompt, "ProblemSolving"},
		{"personality", buildPersonalityArchetypePrompt, "motivationalDrivers"},
	}
	for _, tt := range checks {
		t.Run(tt.name, func(t *testing.T) {
			prompt := tt.build(sig)
			if !strings.Contains(prompt, tt.expect) {
				t.Fatalf("prompt missing %q:\n%s", tt.expect, prompt)
			}
		})
	}
}

func TestPiiPromptNeverContainsRawValues(t *testing.T) {
	sig := &AggregatedSignals{
		ConversationCount: 1,
		Pii: PiiSummary{
			CategoryCounts: map[PiiCategory]int{PiiContactEmail: 1},
			HighRiskSamples: map[PiiCategory][]string{
				PiiContactEmail: {"shared email while discussing job search"},
			},
			TotalFindings: 1,
		},
	}
	prompt := buildPiiSafetyPrompt(sig)
	if strings.Contains(prompt, "@") {
		t.Fatalf("prompt appears to contain a raw email value:\n%s", prompt)
	}
	if !strings.Contains(prompt, "job search") {
		t.Fatal("prompt should carry the sanitized context sample")
	}
}
