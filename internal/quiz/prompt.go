// Package quiz sources multiple choice questions, either from a remote text
// generator or from the local question bank.
package quiz

import (
	"fmt"
	"strings"

	"quizgate/internal/core"
)

// responseTemplate is the exact layout the generator must answer in
const responseTemplate = `QUESTION: <text>
A) <opt>
B) <opt>
C) <opt>
D) <opt>
ANSWER: <A|B|C|D>`

// BuildPrompt builds the generation prompt for a topic and difficulty
func BuildPrompt(topic string, difficulty core.Difficulty) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = core.TopicGeneral
	}
	if difficulty.Rank() < 0 {
		difficulty = core.DifficultyMedium
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write one %s multiple choice quiz question about %s with exactly four answer options, "+
		"only one of which is correct, suitable for a short challenge answered in under thirty seconds. "+
		"Reply with nothing except the following template, keeping the markers exactly as shown:\n",
		difficulty, topic)
	b.WriteString(responseTemplate)
	return b.String()
}
