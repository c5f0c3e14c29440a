package quiz

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"quizgate/internal/core"
)

// ErrMalformedResponse is returned when generated text does not follow the template
var ErrMalformedResponse = errors.New("malformed question response")

var (
	questionMarker = regexp.MustCompile(`(?i)QUESTION:`)
	optionMarker   = regexp.MustCompile(`(?m)(?:^|[ \t])([A-D])\)`)
	answerMarker   = regexp.MustCompile(`(?i)ANSWER:\s*\(?([A-Za-z])`)
)

// ParseResponse parses generated text into a question. CorrectAnswer holds
// the option text of the answer letter. Either every field is present and
// non-empty or an ErrMalformedResponse is returned.
func ParseResponse(text string) (*core.Question, error) {
	loc := questionMarker.FindStringIndex(text)
	if loc == nil {
		return nil, malformed("missing QUESTION marker")
	}
	body := text[loc[1]:]

	// Everything after ANSWER belongs to the answer, never to an option
	end := len(body)
	var letter string
	if m := answerMarker.FindStringSubmatchIndex(body); m != nil {
		end = m[0]
		letter = strings.ToUpper(body[m[2]:m[3]])
	}

	markers := optionMarker.FindAllStringSubmatchIndex(body[:end], -1)
	if len(markers) == 0 {
		return nil, malformed("no options")
	}

	q := &core.Question{Text: strings.TrimSpace(body[:markers[0][2]])}
	if q.Text == "" {
		return nil, malformed("empty question text")
	}

	seen := [4]bool{}
	for i, m := range markers {
		idx := core.LetterIndex(body[m[2]:m[3]])
		if seen[idx] {
			continue
		}
		seen[idx] = true

		optEnd := end
		if i+1 < len(markers) {
			optEnd = markers[i+1][2]
		}
		q.Options[idx] = strings.TrimSpace(body[m[1]:optEnd])
	}
	for _, opt := range q.Options {
		if opt == "" {
			return nil, malformed("empty option")
		}
	}

	if letter == "" {
		return nil, malformed("missing ANSWER letter")
	}
	idx := core.LetterIndex(letter)
	if idx < 0 {
		return nil, malformed("answer letter " + letter + " is not A-D")
	}
	q.CorrectAnswer = q.Options[idx]

	return q, nil
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, reason)
}
