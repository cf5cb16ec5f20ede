// Package assist runs AI writing actions against the open draft, one at a time.
package assist

import (
	"errors"
	"fmt"
)

type Action string

const (
	ActionTitle     Action = "title"
	ActionOutline   Action = "outline"
	ActionSummarize Action = "summarize"
	ActionExpand    Action = "expand"
	ActionImprove   Action = "improve"
	ActionGrammar   Action = "grammar"
	ActionTone      Action = "tone"
	ActionSEO       Action = "seo"
	ActionFull      Action = "full"
)

var ErrUnknownAction = errors.New("unknown assist action")

// instructions are the per-action prompts used by model-backed clients.
var instructions = map[Action]string{
	ActionTitle:     "Write one compelling headline for this article. Reply with the headline only, no quotes or markdown.",
	ActionOutline:   "Write a structured outline for this article as a markdown heading followed by a numbered list with nested bullet points.",
	ActionSummarize: "Summarize the article in one or two sentences, prefixed with \"Key Takeaway:\".",
	ActionExpand:    "Write one additional paragraph that continues and deepens the article.",
	ActionImprove:   "Rewrite the article's weakest passage to be clearer and more engaging. Reply with the rewritten passage only.",
	ActionGrammar:   "Return the article text with grammar, spelling and spacing corrected and nothing else changed.",
	ActionTone:      "Write a short paragraph in a professional yet engaging tone that fits the article.",
	ActionSEO:       "Write a short paragraph that works the article's main keywords in naturally for search engines.",
	ActionFull:      "Write a complete article in markdown with a title heading, several sections and a conclusion.",
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := instructions[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

func (a Action) Valid() bool {
	_, ok := instructions[a]
	return ok
}

// Instruction returns the prompt for a, or "" for unknown actions.
func (a Action) Instruction() string {
	return instructions[a]
}

// Actions lists every recognized action in menu order.
func Actions() []Action {
	return []Action{
		ActionTitle, ActionExpand, ActionSummarize, ActionGrammar, ActionTone,
		ActionSEO, ActionOutline, ActionImprove, ActionFull,
	}
}
