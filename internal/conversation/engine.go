package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/projecthub/internal/agent"
	"github.com/ashureev/projecthub/internal/domain"
	"github.com/ashureev/projecthub/internal/prompts"
	"github.com/ashureev/projecthub/internal/store"
)

const (
	// DefaultSessionID is used when a message carries no session ID.
	DefaultSessionID = "user1"
	// DefaultLanguage is used when a message carries no language tag.
	DefaultLanguage = "en"
	// CancelCommand discards the active draft.
	CancelCommand = "/cancel"
)

// ErrEmptyMessage is returned for messages with no text after trimming.
var ErrEmptyMessage = errors.New("message text is empty")

// Message is one incoming chat message.
type Message struct {
	SessionID string
	Text      string
	Language  string
	// Channel labels the transport in conversation logs.
	Channel string
}

// Reply is the engine's answer. Items is set only for listing requests.
type Reply struct {
	Reply string `json:"reply"`
	Items any    `json:"items,omitempty"`
}

// Engine runs the slot-filling conversation for every session.
type Engine struct {
	classifier agent.Classifier
	repo       store.Repository
	sessions   SessionStore
	catalog    *prompts.Catalog
	log        ConversationLogger
	locks      *sessionLocks
	now        func() time.Time
}

// NewEngine wires an engine. A nil catalog uses the embedded defaults and a
// nil log discards conversation events.
func NewEngine(classifier agent.Classifier, repo store.Repository, sessions SessionStore, catalog *prompts.Catalog, log ConversationLogger) *Engine {
	if catalog == nil {
		catalog = prompts.Default()
	}
	if log == nil {
		log = NopConversationLogger()
	}
	return &Engine{
		classifier: classifier,
		repo:       repo,
		sessions:   sessions,
		catalog:    catalog,
		log:        log,
		locks:      newSessionLocks(),
		now:        time.Now,
	}
}

// Handle processes one message. Messages for the same session are handled
// one at a time; different sessions proceed concurrently.
//
// Classifier failures never surface as errors. Store and session-store
// failures do, and leave the session's draft as it was before the call.
func (e *Engine) Handle(ctx context.Context, msg Message) (*Reply, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	language := msg.Language
	if language == "" {
		language = DefaultLanguage
	}

	unlock := e.locks.Lock(sessionID)
	defer unlock()

	e.logTurn(sessionID, msg.Channel, "inbound", "user_message", text, map[string]any{"language": language})

	state, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var reply *Reply
	if state != nil && state.Valid() {
		reply, err = e.continueFlow(ctx, sessionID, state, text)
	} else {
		reply, err = e.dispatch(ctx, sessionID, text, language)
	}
	if err != nil {
		return nil, err
	}

	e.logTurn(sessionID, msg.Channel, "outbound", "assistant_message", reply.Reply, map[string]any{
		"has_items": reply.Items != nil,
	})
	return reply, nil
}

// continueFlow records text as the answer to the pending field.
func (e *Engine) continueFlow(ctx context.Context, sessionID string, state *State, text string) (*Reply, error) {
	if text == CancelCommand {
		if err := e.sessions.Delete(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("clear session: %w", err)
		}
		slog.InfoContext(ctx, "Flow cancelled", "session_id", sessionID, "flow", state.Kind)
		return &Reply{Reply: e.catalog.Cancelled}, nil
	}

	prev := state.Clone()
	field, _ := state.Fill(text)
	state.UpdatedAt = e.now()

	if next, pending := state.NextField(); pending {
		if err := e.sessions.Put(ctx, sessionID, state); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		slog.DebugContext(ctx, "Flow field captured", "session_id", sessionID, "flow", state.Kind, "field", field, "next_field", next)
		return &Reply{Reply: e.askPrompt(state.Kind, next)}, nil
	}

	// The draft leaves the session store before the record is written, so a
	// completed draft can never be committed twice.
	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("clear session: %w", err)
	}
	if err := e.commit(ctx, state); err != nil {
		if putErr := e.sessions.Put(ctx, sessionID, prev); putErr != nil {
			slog.ErrorContext(ctx, "Failed to restore draft after store failure", "session_id", sessionID, "flow", state.Kind, "error", putErr)
		}
		return nil, err
	}
	slog.InfoContext(ctx, "Flow completed", "session_id", sessionID, "flow", state.Kind)
	return &Reply{Reply: e.catalog.Flow(string(state.Kind)).Done}, nil
}

// commit writes a completed draft to the store.
func (e *Engine) commit(ctx context.Context, state *State) error {
	switch state.Kind {
	case KindBug:
		return e.repo.InsertBug(ctx, state.Bug.BugRecord())
	case KindRequirement:
		return e.repo.InsertRequirement(ctx, state.Requirement.RequirementRecord())
	case KindQuery:
		return e.repo.InsertQuery(ctx, state.Query.QueryRecord())
	default:
		return fmt.Errorf("commit: unknown flow kind %q", state.Kind)
	}
}

// dispatch classifies a message from an idle session.
func (e *Engine) dispatch(ctx context.Context, sessionID, text, language string) (*Reply, error) {
	res := e.classifier.Classify(ctx, text, language)
	slog.InfoContext(ctx, "Message classified", "session_id", sessionID, "intent", res.Intent, "language", language)

	switch res.Intent {
	case agent.IntentReportBug:
		return e.startFlow(ctx, sessionID, KindBug)
	case agent.IntentCreateRequirement:
		return e.startFlow(ctx, sessionID, KindRequirement)
	case agent.IntentRaiseQuery:
		return e.startFlow(ctx, sessionID, KindQuery)
	case agent.IntentGetItems:
		if raw, ok := res.EntityString("type"); ok {
			if itemType, known := domain.ParseItemType(raw); known {
				items, err := store.ListItems(ctx, e.repo, itemType)
				if err != nil {
					return nil, fmt.Errorf("list %s: %w", itemType, err)
				}
				return &Reply{Reply: res.Reply, Items: items}, nil
			}
		}
	}

	if res.Reply == "" {
		return &Reply{Reply: e.catalog.DefaultReply}, nil
	}
	return &Reply{Reply: res.Reply}, nil
}

func (e *Engine) startFlow(ctx context.Context, sessionID string, kind Kind) (*Reply, error) {
	state, err := NewState(kind, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.sessions.Put(ctx, sessionID, state); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.InfoContext(ctx, "Flow started", "session_id", sessionID, "flow", kind)
	return &Reply{Reply: e.catalog.Flow(string(kind)).Start}, nil
}

func (e *Engine) askPrompt(kind Kind, field Field) string {
	if p := e.catalog.Flow(string(kind)).Ask[string(field)]; p != "" {
		return p
	}
	return fmt.Sprintf("Please provide the %s.", strings.ReplaceAll(string(field), "_", " "))
}

func (e *Engine) logTurn(sessionID, channel, direction, eventType, content string, meta map[string]any) {
	if channel == "" {
		channel = "chat"
	}
	e.log.Log(ConversationLogEvent{
		Timestamp:  e.now().UTC().Format(time.RFC3339Nano),
		SessionID:  sessionID,
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}
