package conversation

import "strings"

// positiveMarkers and negativeMarkers drive the affirmative classifier.
// Matching is case-insensitive substring, not tokenized. A message that
// contains both a positive and a negative marker is classified negative.
// This policy has known edge cases that existing conversations depend on;
// changing it changes conversation outcomes.
var positiveMarkers = []string{
	"sim", "pode", "vamos", "ok", "certo", "perfeito", "beleza", "ótimo", "claro", "com certeza",
}

var negativeMarkers = []string{
	"não", "nao", "nunca", "jamais", "negativo",
}

// IsAffirmativeResponse classifies free text as an affirmative answer: at
// least one positive marker present and no negative marker present.
func IsAffirmativeResponse(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range negativeMarkers {
		if strings.Contains(lowered, marker) {
			return false
		}
	}
	for _, marker := range positiveMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
