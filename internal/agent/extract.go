package agent

import (
	"encoding/json"
	"regexp"
)

// jsonObjectPattern matches from the first '{' to the last '}'. Models
// sometimes wrap the object in prose or a code fence.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseModelOutput extracts the intent object from raw model text.
// ok is false when no non-empty JSON object could be decoded. Keys that are
// missing or hold the wrong type take their default values.
func parseModelOutput(text string) (IntentResult, bool) {
	keys, ok := decodeObject(text)
	if !ok {
		return IntentResult{}, false
	}

	res := IntentResult{
		Intent:   IntentFallback,
		Entities: map[string]any{},
		Action:   noAction(),
	}
	var intent string
	if decodeKey(keys, "intent", &intent) {
		res.Intent = Intent(intent)
	}
	var entities map[string]any
	if decodeKey(keys, "entities", &entities) && entities != nil {
		res.Entities = entities
	}
	decodeKey(keys, "reply", &res.Reply)
	var action Action
	if decodeKey(keys, "action", &action) {
		res.Action = action
		if res.Action.Params == nil {
			res.Action.Params = map[string]any{}
		}
	}
	return res, true
}

// decodeKey unmarshals keys[key] into dst. It reports false when the key
// is missing, null, or not of dst's type.
func decodeKey(keys map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := keys[key]
	if !ok || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

func decodeObject(text string) (map[string]json.RawMessage, bool) {
	candidates := make([]string, 0, 2)
	if m := jsonObjectPattern.FindString(text); m != "" {
		candidates = append(candidates, m)
	}
	candidates = append(candidates, text)

	for _, c := range candidates {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal([]byte(c), &keys); err != nil || len(keys) == 0 {
			continue
		}
		return keys, true
	}
	return nil, false
}
