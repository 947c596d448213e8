package style

import (
	"strings"
	"unicode"
)

// Register is the coarse writing register detected in a user's messages.
type Register string

const (
	RegisterCasual  Register = "casual"
	RegisterFormal  Register = "formal"
	RegisterNeutral Register = "neutral"
)

// casualMarkers are greeting slang and abbreviations that mark casual chat.
var casualMarkers = []string{
	"lol", "lmao", "omg", "wsg", "yo", "bro", "dude", "haha", "hey",
	"sup", "nah", "yeah", "gonna", "wanna", "idk", "btw", "tbh", "ngl",
}

// formalMarkers are polite phrasings that mark formal chat.
var formalMarkers = []string{
	"please", "would", "could", "thank you", "hello", "regards",
	"appreciate", "certainly", "kindly", "sincerely", "elaborate",
}

// thresholds for the punctuation/capitalization signals
const (
	maxNeutralExclamations = 2
	maxNeutralUppercase    = 10
)

// Classify inspects the Self-authored message texts of one conversation and
// returns the detected register. The decision is deterministic: the same
// input always yields the same register, and empty input is neutral.
func Classify(selfTexts []string) Register {
	if len(selfTexts) == 0 {
		return RegisterNeutral
	}

	original := strings.Join(selfTexts, " ")
	lowered := strings.ToLower(original)
	words := splitWords(lowered)

	casualCount := countMarkers(lowered, words, casualMarkers)
	formalCount := countMarkers(lowered, words, formalMarkers)

	exclamations := strings.Count(original, "!")
	uppercase := 0
	for _, r := range original {
		if unicode.IsUpper(r) {
			uppercase++
		}
	}

	// Evaluated in order; ties fall through to neutral
	if casualCount > formalCount || exclamations > maxNeutralExclamations || uppercase > maxNeutralUppercase {
		return RegisterCasual
	}
	if formalCount > casualCount {
		return RegisterFormal
	}
	return RegisterNeutral
}

// countMarkers counts whole-word occurrences so short markers like "yo" do
// not match inside words like "you". Multi-word markers are counted as
// phrases.
func countMarkers(text string, words []string, markers []string) int {
	count := 0
	for _, marker := range markers {
		if strings.ContainsRune(marker, ' ') {
			count += strings.Count(text, marker)
			continue
		}
		for _, w := range words {
			if w == marker {
				count++
			}
		}
	}
	return count
}

func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
