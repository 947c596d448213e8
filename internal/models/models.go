package models

import "time"

// Author identifies which party wrote a message
type Author string

const (
	AuthorSelf        Author = "self"
	AuthorCounterpart Author = "counterpart"
)

// Mode identifies how the counterpart side of a conversation is produced
type Mode string

const (
	// ModeAssisted means the counterpart is a generated persona
	ModeAssisted Mode = "assisted"
	// ModePeer means the counterpart is a relayed human peer
	ModePeer Mode = "peer"
)

// Phase is the lifecycle phase of a conversation. Transitions only move
// forward: Active -> ComplimentPending -> Completed.
type Phase string

const (
	PhaseActive            Phase = "active"
	PhaseComplimentPending Phase = "compliment_pending"
	PhaseCompleted         Phase = "completed"
	// PhaseAbandoned marks a session the user walked away from. It is an
	// in-memory terminal state; the stored record keeps its last
	// persisted phase.
	PhaseAbandoned Phase = "abandoned"
)

// Message is a single message in a conversation. Immutable once created;
// messages are appended in arrival order and never reordered.
type Message struct {
	ID        string    `json:"id"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Persona is the fixed fictitious identity attached to a generated
// counterpart. Assigned once at conversation creation and never changed.
type Persona struct {
	Name      string   `json:"name"`
	Location  string   `json:"location"`
	Age       int      `json:"age"`
	Interests []string `json:"interests"`
}

// Compliments holds the compliment pair exchanged at the end of a
// conversation. Both halves must be non-empty for the conversation to be
// eligible for voting. In peer mode a half that never arrived is persisted
// as an empty placeholder, leaving the record ineligible.
type Compliments struct {
	Self        string `json:"self"`
	Counterpart string `json:"counterpart"`
}

// Votes is the running head-to-head tally for a completed conversation.
// Counts only ever increase.
type Votes struct {
	Self        int `json:"self"`
	Counterpart int `json:"counterpart"`
}

// Total returns the combined vote count.
func (v Votes) Total() int {
	return v.Self + v.Counterpart
}

// Conversation is one timed exchange between a user and a counterpart,
// including its transcript, compliment pair and vote tally. Conversations
// are never deleted by the application.
type Conversation struct {
	ID          string       `json:"id"`
	Mode        Mode         `json:"mode"`
	Phase       Phase        `json:"phase"`
	CreatedAt   time.Time    `json:"created_at"`
	Messages    []Message    `json:"messages"`
	Compliments *Compliments `json:"compliments,omitempty"`
	Votes       Votes        `json:"votes"`
	Persona     *Persona     `json:"persona,omitempty"`
}

// Clone returns a deep copy, safe to read and marshal while the original
// keeps being mutated under its owner's lock.
func (c *Conversation) Clone() *Conversation {
	out := *c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	if c.Compliments != nil {
		compliments := *c.Compliments
		out.Compliments = &compliments
	}
	if c.Persona != nil {
		persona := *c.Persona
		persona.Interests = make([]string, len(c.Persona.Interests))
		copy(persona.Interests, c.Persona.Interests)
		out.Persona = &persona
	}
	return &out
}

// Eligible reports whether the conversation can appear in a voting pair:
// both compliment halves must be present and non-empty.
func (c *Conversation) Eligible() bool {
	return c.Compliments != nil && c.Compliments.Self != "" && c.Compliments.Counterpart != ""
}

// SelfTexts returns the texts of all Self-authored messages in order.
func (c *Conversation) SelfTexts() []string {
	var texts []string
	for _, m := range c.Messages {
		if m.Author == AuthorSelf {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

// VoteChoice identifies which side of a conversation a vote was cast for.
type VoteChoice string

const (
	VoteChoiceSelf        VoteChoice = "self"
	VoteChoiceCounterpart VoteChoice = "counterpart"
)

// VoteRecord is a single cast vote, applied as an atomic increment to the
// matching conversation's tally.
type VoteRecord struct {
	ConversationID string     `json:"conversation_id"`
	Choice         VoteChoice `json:"choice"`
}
