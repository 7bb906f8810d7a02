package workspace

import (
	"context"
	"strings"
	"sync"

	"github.com/bryanwahyu/analytics-workspace/internal/domain/chat"
	"github.com/bryanwahyu/analytics-workspace/internal/domain/projects"
)

// ChatState snapshot
type ChatState struct {
	UploadID       string         `json:"upload_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Messages       []chat.Message `json:"messages"`
	Sending        bool           `json:"sending"`
	Error          *ErrorView     `json:"error,omitempty"`
}

// ChatSession owns one conversation scoped to a file's upload id.
// Conversations are never shared across files.
type ChatSession struct {
	mu        sync.Mutex
	api       chat.Service
	hooks     Hooks
	projectID projects.ProjectID

	uploadID       string
	conversationID string
	messages       []chat.Message
	sending        bool
	gen            uint64
	err            error

	events changes
}

func NewChatSession(projectID projects.ProjectID, api chat.Service, hooks Hooks) *ChatSession {
	return &ChatSession{api: api, hooks: hooks.withDefaults(), projectID: projectID}
}

func (c *ChatSession) State() ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *ChatSession) stateLocked() ChatState {
	return ChatState{
		UploadID:       c.uploadID,
		ConversationID: c.conversationID,
		Messages:       append([]chat.Message(nil), c.messages...),
		Sending:        c.sending,
		Error:          viewOf(c.err),
	}
}

func (c *ChatSession) changed() {
	c.mu.Lock()
	seq, st := c.events.stamp(), c.stateLocked()
	c.mu.Unlock()
	c.events.publish(c.hooks, ControllerChat, c.projectID, seq, st)
}

// Bind attaches the session to uploadID ("" unbinds). A different id clears
// the conversation id and history; the same id is a no-op.
func (c *ChatSession) Bind(uploadID string) {
	c.mu.Lock()
	if c.uploadID == uploadID {
		c.mu.Unlock()
		return
	}
	c.uploadID = uploadID
	c.conversationID = ""
	c.messages = nil
	c.sending = false
	c.err = nil
	c.gen++
	c.mu.Unlock()
	c.changed()
}

// SendMessage appends the user message right away and issues the query.
// On failure the provisional message is removed and the error kept.
func (c *ChatSession) SendMessage(ctx context.Context, text string) (*chat.Answer, error) {
	text = strings.TrimSpace(text)

	var (
		gen     uint64
		pending chat.Message
		query   chat.Query
	)

	cmd := optimistic[*chat.Answer]{
		apply: func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			switch {
			case text == "":
				return ErrEmptyMessage
			case c.uploadID == "":
				return ErrNoFileBound
			case c.sending:
				return ErrBusy
			}
			gen = c.gen
			pending = chat.Message{Role: chat.RoleUser, Content: text, Timestamp: c.hooks.Clock.Now()}
			c.messages = append(c.messages, pending)
			c.sending = true
			c.err = nil
			query = chat.Query{UploadID: c.uploadID, Question: text, ConversationID: c.conversationID}
			return nil
		},
		call: func(ctx context.Context) (*chat.Answer, error) {
			c.changed()
			return c.api.Query(ctx, query)
		},
		commit: func(ans *chat.Answer) {
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				c.hooks.dropped(ControllerChat, "query")
				return
			}
			c.sending = false
			ts := ans.Timestamp
			if ts.IsZero() {
				ts = c.hooks.Clock.Now()
			}
			c.messages = append(c.messages, chat.Message{Role: chat.RoleAssistant, Content: ans.Answer, Timestamp: ts})
			if ans.ConversationID != "" {
				c.conversationID = ans.ConversationID
			}
			c.mu.Unlock()
			c.changed()
		},
		rollback: func(err error) {
			c.mu.Lock()
			if c.gen != gen {
				c.mu.Unlock()
				c.hooks.dropped(ControllerChat, "query")
				return
			}
			c.sending = false
			c.messages = removeMessage(c.messages, pending)
			c.err = err
			c.mu.Unlock()
			c.changed()
		},
	}

	ans, err := cmd.run(ctx)
	if err != nil && IsLocal(err) {
		return nil, err
	}
	c.hooks.record(ctx, Operation{Controller: ControllerChat, Name: "query", ProjectID: c.projectID}, err)
	return ans, err
}

func (c *ChatSession) DismissError() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
	c.changed()
}

// removeMessage drops the last occurrence of m
func removeMessage(list []chat.Message, m chat.Message) []chat.Message {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i] == m {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
