// Package agent implements the LLM-backed intent classifier.
package agent

import "context"

// Intent is the classifier's categorical guess at what the user wants.
type Intent string

const (
	IntentCreateRequirement Intent = "create_requirement"
	IntentReportBug         Intent = "report_bug"
	IntentRaiseQuery        Intent = "raise_query"
	IntentGetItems          Intent = "get_items"
	IntentLanguageSwitch    Intent = "language_switch"
	IntentSmalltalk         Intent = "smalltalk"
	IntentFallback          Intent = "fallback"
)

// Intents lists every intent the classifier may return.
var Intents = []Intent{
	IntentCreateRequirement,
	IntentReportBug,
	IntentRaiseQuery,
	IntentGetItems,
	IntentLanguageSwitch,
	IntentSmalltalk,
	IntentFallback,
}

// Action is the classifier's suggested fulfilment. It is carried through
// for clients but not used for dispatch.
type Action struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// IntentResult is the structured classification of one message.
type IntentResult struct {
	Intent   Intent         `json:"intent"`
	Entities map[string]any `json:"entities"`
	Reply    string         `json:"reply"`
	Action   Action         `json:"action"`
}

// EntityString returns entities[key] when it is a non-empty string.
func (r IntentResult) EntityString(key string) (string, bool) {
	v, ok := r.Entities[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Classifier infers intent from a message.
//
// Implementations never fail: transport errors and unparseable model
// output are reported as a Fallback result whose Reply explains the
// problem to the user.
type Classifier interface {
	Classify(ctx context.Context, text, language string) IntentResult
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, text, language string) IntentResult

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, text, language string) IntentResult {
	return f(ctx, text, language)
}

// Fallback builds the result returned when classification fails.
func Fallback(reply string) IntentResult {
	return IntentResult{
		Intent:   IntentFallback,
		Entities: map[string]any{},
		Reply:    reply,
		Action:   noAction(),
	}
}

func noAction() Action {
	return Action{Type: "none", Params: map[string]any{}}
}
