// Package generator turns a conversational process description into BPMN.
package generator

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vicodes/process-flow-canvas-dream/internal/logging"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Greeting opens every conversation.
const Greeting = "Hi! Describe the process you want to model and I will draft a BPMN diagram. " +
	"For example: \"First receive the order, then check stock. If in stock then ship the order otherwise notify the customer.\""

// PromptMessage answers input that contains no process steps.
const PromptMessage = "Please describe the steps of your process, for example \"first ..., then ..., if ... then ... otherwise ...\"."

// Message is one chat entry.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	XML     string    `json:"bpmnXml,omitempty"`
	Time    time.Time `json:"time"`
}

// Reply is the assistant's answer to Send. XML is empty when nothing was generated.
type Reply struct {
	Message Message `json:"message"`
	XML     string  `json:"bpmnXml,omitempty"`
}

// Conversation is the ordered chat history of one session.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
	xml      string
	now      func() time.Time
	logger   *logging.Logger
}

func newConversation(now func() time.Time, logger *logging.Logger) *Conversation {
	c := &Conversation{now: now, logger: logger}
	c.messages = []Message{{Role: RoleAssistant, Content: Greeting, Time: now()}}
	return c
}

// Send records msg, generates a diagram from it and records the reply.
func (c *Conversation) Send(msg string) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg = strings.TrimSpace(msg)
	if msg == "" {
		return c.reply(PromptMessage, ""), nil
	}
	c.messages = append(c.messages, Message{Role: RoleUser, Content: msg, Time: c.now()})

	steps := parseDescription(msg)
	if len(steps) == 0 {
		return c.reply(PromptMessage, ""), nil
	}
	xml, err := buildBPMN(steps)
	if err != nil {
		c.logger.Error("failed to generate BPMN", "error", err)
		return nil, fmt.Errorf("failed to generate BPMN: %w", err)
	}
	c.xml = xml
	return c.reply(summarize(steps), xml), nil
}

func (c *Conversation) reply(content, xml string) *Reply {
	m := Message{Role: RoleAssistant, Content: content, XML: xml, Time: c.now()}
	c.messages = append(c.messages, m)
	return &Reply{Message: m, XML: xml}
}

// History returns a copy of the messages in order.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// LastXML returns the most recently generated diagram.
func (c *Conversation) LastXML() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.xml
}

func summarize(steps []step) string {
	var names []string
	var tasks, decisions, choices int
	var walk func([]step)
	walk = func(ss []step) {
		for _, s := range ss {
			switch s.Kind {
			case stepChoice:
				choices++
				names = append(names, s.Condition+"?")
				walk(s.Yes)
				walk(s.No)
			case stepDecision:
				decisions++
				names = append(names, s.Name)
			default:
				tasks++
				names = append(names, s.Name)
			}
		}
	}
	walk(steps)
	return fmt.Sprintf("I generated a process with %d task(s), %d business rule task(s) and %d decision point(s): %s.",
		tasks, decisions, choices, strings.Join(names, " → "))
}

// Store keeps one Conversation per session.
type Store struct {
	mu     sync.Mutex
	convs  map[string]*Conversation
	now    func() time.Time
	logger *logging.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{convs: map[string]*Conversation{}, now: time.Now, logger: logger}
}

// Get returns the session's conversation, starting one if needed.
func (s *Store) Get(session string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[session]
	if !ok {
		c = newConversation(s.now, s.logger.With("session", session))
		s.convs[session] = c
	}
	return c
}

// Reset discards the session's conversation.
func (s *Store) Reset(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, session)
}

// ErrNoSteps is returned by Generate when the description names no steps.
var ErrNoSteps = errors.New("no process steps found in description")

// Generate builds BPMN from a one-shot description without keeping history.
func Generate(description string) (string, error) {
	steps := parseDescription(description)
	if len(steps) == 0 {
		return "", ErrNoSteps
	}
	return buildBPMN(steps)
}
