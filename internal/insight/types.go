package insight

import (
	"encoding/json"
	"time"
)

// CommunicationPattern is the fixed vocabulary of conversational modes the
// extraction model may assign. Spellings are part of the interchange contract.
type CommunicationPattern string

const (
	PatternSeekingInformation CommunicationPattern = "SeekingInformation"
	PatternProblemSolving     CommunicationPattern = "ProblemSolving"
	PatternBrainstorming      CommunicationPattern = "Brainstorming"
	PatternEmotionalVenting   CommunicationPattern = "EmotionalVenting"
	PatternTeaching           CommunicationPattern = "Teaching"
	PatternDebating           CommunicationPattern = "Debating"
	PatternReflecting         CommunicationPattern = "Reflecting"
	PatternPlanning           CommunicationPattern = "Planning"
	PatternStorytelling       CommunicationPattern = "Storytelling"
	PatternExpressingOpinion  CommunicationPattern = "ExpressingOpinion"
)

var knownPatterns = map[CommunicationPattern]bool{
	PatternSeekingInformation: true,
	PatternProblemSolving:     true,
	PatternBrainstorming:      true,
	PatternEmotionalVenting:   true,
	PatternTeaching:           true,
	PatternDebating:           true,
	PatternReflecting:         true,
	PatternPlanning:           true,
	PatternStorytelling:       true,
	PatternExpressingOpinion:  true,
}

// PiiCategory classifies extracted sensitive text.
type PiiCategory string

const (
	PiiPersonalName     PiiCategory = "PersonalName"
	PiiLocation         PiiCategory = "Location"
	PiiDate             PiiCategory = "Date"
	PiiContactEmail     PiiCategory = "ContactEmail"
	PiiContactPhone     PiiCategory = "ContactPhone"
	PiiFinancialAccount PiiCategory = "FinancialAccount"
	PiiHealthCondition  PiiCategory = "HealthCondition"
	PiiCredential       PiiCategory = "Credential"
	PiiIDNumber         PiiCategory = "IdNumber"
	PiiOther            PiiCategory = "Other"
)

var knownPiiCategories = map[PiiCategory]bool{
	PiiPersonalName:     true,
	PiiLocation:         true,
	PiiDate:             true,
	PiiContactEmail:     true,
	PiiContactPhone:     true,
	PiiFinancialAccount: true,
	PiiHealthCondition:  true,
	PiiCredential:       true,
	PiiIDNumber:         true,
	PiiOther:            true,
}

// RiskLevel grades a PII finding.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PiiFinding is one piece of sensitive text surfaced by extraction. Value
// holds the raw sensitive text and must not outlive aggregation; only the
// context strings travel into Stage 2 prompts.
type PiiFinding struct {
	Value               string      `json:"value"`
	Category            PiiCategory `json:"category"`
	RiskLevel           RiskLevel   `json:"riskLevel"`
	Context             string      `json:"context"`
	ConversationContext string      `json:"conversationContext"`
}

// TextStats are deterministic measurements taken from the raw user text
// before it is discarded. They feed the linguistic fingerprint without
// another model call.
type TextStats struct {
	WordCount     int `json:"wordCount"`
	SentenceCount int `json:"sentenceCount"`
	CharCount     int `json:"charCount"`
}

// ConversationInsight is the Stage-1 output for one conversation. Bounded
// scores are always clamped into 1..10; array fields default to empty,
// never null. Insights are consumed by aggregation and then discarded.
type ConversationInsight struct {
	ConversationID        string                 `json:"conversationId"`
	Title                 string                 `json:"title,omitempty"`
	PrimaryTopics         []string               `json:"primaryTopics"`
	CommunicationPatterns []CommunicationPattern `json:"communicationPatterns"`
	ExtractedPii          []PiiFinding           `json:"extractedPii"`
	StandoutVocabulary    []string               `json:"standoutVocabulary"`
	UniquenessScore       int                    `json:"uniquenessScore"`
	ComplexityLevel       int                    `json:"complexityLevel"`
	EngagementLevel       int                    `json:"engagementLevel"`
	EmotionalTone         string                 `json:"emotionalTone"`
	IntriguingObservation string                 `json:"intriguingObservation"`
	TopicEvolution        []string               `json:"topicEvolution"`
	TextStats             TextStats              `json:"textStats"`
}

// CompositeScore ranks conversations for spotlighting.
func (ci ConversationInsight) CompositeScore() int {
	return ci.UniquenessScore * ci.ComplexityLevel
}

// TopicCount is one entry of the frequency-ranked topic list.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// PatternCount is one entry of the frequency-ranked pattern list.
type PatternCount struct {
	Pattern CommunicationPattern `json:"pattern"`
	Count   int                  `json:"count"`
}

// ToneCount is one entry of the emotional tone distribution.
type ToneCount struct {
	Tone  string `json:"tone"`
	Count int    `json:"count"`
}

// PiiSummary is the aggregated PII view handed to Stage 2. It carries
// category counts and context samples, never raw sensitive values.
type PiiSummary struct {
	CategoryCounts    map[PiiCategory]int      `json:"categoryCounts"`
	HighRiskSamples   map[PiiCategory][]string `json:"highRiskSamples"`
	MediumRiskSamples map[PiiCategory][]string `json:"mediumRiskSamples"`
	TotalFindings     int                      `json:"totalFindings"`
}

// AggregatedSignals is the single immutable handoff from aggregation to all
// Stage-2 synthesizers. Given identical insights it is deterministic.
type AggregatedSignals struct {
	ConversationCount  int                   `json:"conversationCount"`
	TopTopics          []TopicCount          `json:"topTopics"`
	TopPatterns        []PatternCount        `json:"topPatterns"`
	Pii                PiiSummary            `json:"pii"`
	Vocabulary         []string              `json:"vocabulary"`
	MeanComplexity     float64               `json:"meanComplexity"`
	MeanEngagement     float64               `json:"meanEngagement"`
	ToneDistribution   []ToneCount           `json:"toneDistribution"`
	TopConversations   []ConversationInsight `json:"topConversations"`
	LongestObservation string                `json:"longestObservation"`
	MeanSentenceLength float64               `json:"meanSentenceLength"`
	VocabularyEstimate int                   `json:"vocabularyEstimate"`
}

// ReportKind identifies one of the nine premium report types.
type ReportKind string

const (
	KindBehavioralDossier     ReportKind = "behavioral_dossier"
	KindLinguisticFingerprint ReportKind = "linguistic_fingerprint"
	KindTopConversations      ReportKind = "top_conversations"
	KindPersonaArchetype      ReportKind = "persona_archetype"
	KindUnfilteredMirror      ReportKind = "unfiltered_mirror"
	KindPiiSafety             ReportKind = "pii_safety"
	KindSyntheticSocial       ReportKind = "synthetic_social"
	KindCognitiveStyle        ReportKind = "cognitive_style"
	KindPersonalityArchetype  ReportKind = "personality_archetype"
)

// ReportBundle is the final artifact for one job: whichever report kinds
// succeeded, plus one processing error per kind that failed. Partial success
// is a valid terminal state. Bundles are written once and never mutated.
type ReportBundle struct {
	Reports               map[ReportKind]json.RawMessage `json:"reports"`
	ProcessingErrors      []string                       `json:"processingErrors"`
	ConversationsAnalyzed int                            `json:"conversationsAnalyzed"`
	GeneratedAt           time.Time                      `json:"generatedAt"`
	Usage                 TokenUsage                     `json:"tokenUsage"`
}
