package ollama

import "fmt"

func buildClassificationPrompt(question string) string {
	return `You classify questions about Vietnamese administrative procedures into
exactly one of these intents: documents, requirements, process, legal,
timeline, fees, location, overview.

Return strict JSON: {"intent": "<one of the above>", "confidence": <0..1>}.
No markdown, no extra keys, no explanation.

Question:
` + question
}

func buildParaphrasePrompt(question string, n int) string {
	return fmt.Sprintf(`Generate up to %d distinct Vietnamese paraphrases of the question below,
keeping the same meaning and any procedure codes or names intact.

Return strict JSON: {"paraphrases": ["...", "..."]}.
No markdown, no extra keys.

Question:
%s`, n, question)
}
