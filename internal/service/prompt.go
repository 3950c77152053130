package service

import (
	"fmt"
	"strconv"
	"strings"

	"profrag/internal/domain"
)

// DefaultSystemPrompt instructs the model to act as a professor recommender.
const DefaultSystemPrompt = `You are a virtual assistant that helps students find the best professors for their needs, similar to a "RateMyProfessor" platform. Recommendations are grounded in professor reviews and ratings retrieved for each question.

Your responsibilities:
Understand the query: work out what the student is looking for in a professor, such as course subject, teaching style, rating preferences, or other attributes.

Use the retrieved data: base your answer on the professor reviews and ratings appended to the student's message. Do not invent professors that are not listed there.

Recommend the top 3 professors: present up to three professors who best match the student's criteria. For each one, give:

The professor's name.
The subject they teach.
Their star rating.
A short summary of the reviews, explaining why they fit the query.

Be concise and clear: keep recommendations easy to scan, with a clear reason for each choice.`

const contextHeader = "\n\nReturned results from vector db (done automatically):\n"

// BuildContext renders retrieved reviews as text appended to the user's
// last message. It returns an empty string when there are no matches.
func BuildContext(matches []domain.Match) string {
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(contextHeader)
	for _, m := range matches {
		fmt.Fprintf(&b, "\nProfessor: %s\n", m.Professor)
		if m.Review != "" {
			fmt.Fprintf(&b, "Review: %s\n", m.Review)
		}
		fmt.Fprintf(&b, "Subject: %s\n", m.Subject)
		fmt.Fprintf(&b, "Stars: %s\n", strconv.FormatFloat(m.Stars, 'f', -1, 64))
	}
	return b.String()
}
