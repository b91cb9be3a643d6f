package insight

import (
	"fmt"
	"strings"

	"github.com/bjmnh/chatinsights/internal/archive"
)

const truncationMarker = "\n\n[conversation truncated]"

const extractionSystemPrompt = `You are a precise conversation analyst. You extract structured signals from a single chat conversation. You respond with a single JSON object and nothing else: no prose, no markdown, no code fences. You never invent content that is not supported by the conversation text.`

const extractionSchema = `Return a JSON object with exactly these fields:
{
  "primaryTopics": [3-5 short topic strings capturing what the conversation is about],
  "communicationPatterns": [one or more of: "SeekingInformation", "ProblemSolving", "Brainstorming", "EmotionalVenting", "Teaching", "Debating", "Reflecting", "Planning", "Storytelling", "ExpressingOpinion"],
  "extractedPii": [{"value": "the sensitive text verbatim", "category": one of "PersonalName", "Location", "Date", "ContactEmail", "ContactPhone", "FinancialAccount", "HealthCondition", "Credential", "IdNumber", "Other", "riskLevel": "low"|"medium"|"high", "context": "one sentence describing how it appeared, without repeating the value", "conversationContext": "what the conversation was about at that point"}],
  "standoutVocabulary": [unusual or distinctive words the user actually wrote],
  "uniquenessScore": integer 1-10 (how unusual this conversation is compared to typical chat usage),
  "complexityLevel": integer 1-10 (conceptual and linguistic complexity of the user's writing),
  "engagementLevel": integer 1-10 (depth of back-and-forth investment from the user),
  "emotionalTone": "a short free-text description of the dominant emotional tone",
  "intriguingObservation": "one narrative sentence about the most interesting thing in this conversation",
  "topicEvolution": [short strings describing how the subject shifted over the conversation, in order]
}
Use empty arrays when nothing qualifies. Scores must be integers between 1 and 10.`

// buildExtractionPrompt assembles the Stage-1 prompt for one conversation,
// truncating the embedded user text to the character budget.
func buildExtractionPrompt(rec archive.ConversationRecord, charBudget int) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following conversation. Only the user's own messages are included, in order.\n\n")
	if title := strings.TrimSpace(rec.Title); title != "" {
		fmt.Fprintf(&sb, "Conversation title: %s\n\n", title)
	}
	sb.WriteString("User messages:\n")
	sb.WriteString(truncateText(joinMessages(rec.UserMessages), charBudget))
	sb.WriteString("\n\n")
	sb.WriteString(extractionSchema)
	return sb.String()
}

func joinMessages(messages []string) string {
	var sb strings.Builder
	for i, msg := range messages {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, msg)
	}
	return sb.String()
}

func truncateText(text string, charBudget int) string {
	if charBudget <= 0 || len(text) <= charBudget {
		return text
	}
	cut := charBudget
	// Avoid splitting a multi-byte rune.
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut] + truncationMarker
}

// computeTextStats measures the raw user text deterministically before it is
// discarded. These numbers feed the linguistic fingerprint.
func computeTextStats(messages []string) TextStats {
	stats := TextStats{}
	for _, msg := range messages {
		stats.CharCount += len(msg)
		stats.WordCount += len(strings.Fields(msg))
		stats.SentenceCount += countSentences(msg)
	}
	if stats.SentenceCount == 0 && stats.WordCount > 0 {
		stats.SentenceCount = 1
	}
	return stats
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			count++
		}
	}
	return count
}
