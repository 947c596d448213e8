package voting

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"kudos-chat/internal/models"
	"kudos-chat/internal/store"
)

// ErrInsufficientData is returned when fewer than two conversations are
// eligible for a head-to-head pair. Callers surface this as an empty state,
// not an error.
var ErrInsufficientData = errors.New("voting: fewer than two eligible conversations")

// Percentages is the vote split for one conversation, integer-rounded.
type Percentages struct {
	SelfPct        int `json:"self_pct"`
	CounterpartPct int `json:"counterpart_pct"`
}

// HistoryFilter narrows the completed-conversation history. Empty fields
// pass everything through; set fields are AND-combined.
type HistoryFilter struct {
	// Keyword matches case-insensitively against either compliment half.
	Keyword string
	// Date matches the calendar day of the conversation's creation.
	Date *time.Time
}

// Aggregator selects comparison pairs, records votes and computes
// statistics over the persisted conversations. The random source is
// injected so pair selection is deterministic under test; rand sources are
// not safe for concurrent use, so shuffles are serialized.
//
// CastVote is deliberately not idempotent: every call increments, and
// gating repeat votes on the same displayed pair is left to the caller's
// session state.
type Aggregator struct {
	store *store.Store
	mu    sync.Mutex
	rng   *rand.Rand
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(st *store.Store, rng *rand.Rand) *Aggregator {
	return &Aggregator{store: st, rng: rng}
}

// Eligible filters to conversations whose compliment pair is fully
// populated.
func Eligible(convs []*models.Conversation) []*models.Conversation {
	var out []*models.Conversation
	for _, c := range convs {
		if c.Eligible() {
			out = append(out, c)
		}
	}
	return out
}

// PickPair selects two distinct eligible conversations uniformly at random
// (shuffle, take the first two) for a head-to-head comparison.
func (a *Aggregator) PickPair() (*models.Conversation, *models.Conversation, error) {
	eligible := Eligible(a.store.All())
	if len(eligible) < 2 {
		return nil, nil, ErrInsufficientData
	}

	a.mu.Lock()
	a.rng.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	a.mu.Unlock()

	return eligible[0], eligible[1], nil
}

// CastVote applies one vote record to its conversation's tally. Each call
// increments; there is no idempotency key.
func (a *Aggregator) CastVote(conversationID string, choice models.VoteChoice) error {
	return a.store.IncrementVote(models.VoteRecord{
		ConversationID: conversationID,
		Choice:         choice,
	})
}

// ComputePercentages returns the integer-rounded vote split. Both sides are
// 0 when no votes have been cast; otherwise the two percentages sum to 100.
func ComputePercentages(votes models.Votes) Percentages {
	total := votes.Total()
	if total == 0 {
		return Percentages{}
	}

	selfPct := int(math.Round(float64(votes.Self) / float64(total) * 100))
	return Percentages{
		SelfPct:        selfPct,
		CounterpartPct: 100 - selfPct,
	}
}

// Percentages returns the vote split for one conversation.
func (a *Aggregator) Percentages(conversationID string) (Percentages, error) {
	conv, err := a.store.Get(conversationID)
	if err != nil {
		return Percentages{}, err
	}
	return ComputePercentages(conv.Votes), nil
}

// FilterHistory returns the conversations matching the filter, preserving
// their order.
func FilterHistory(convs []*models.Conversation, filter HistoryFilter) []*models.Conversation {
	keyword := strings.ToLower(strings.TrimSpace(filter.Keyword))

	var out []*models.Conversation
	for _, c := range convs {
		if keyword != "" && !matchesKeyword(c, keyword) {
			continue
		}
		if filter.Date != nil && !sameDay(c.CreatedAt, *filter.Date) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// History returns the store's completed conversations narrowed by the
// filter. In-progress conversations never appear in history.
func (a *Aggregator) History(filter HistoryFilter) []*models.Conversation {
	var completed []*models.Conversation
	for _, c := range a.store.All() {
		if c.Phase == models.PhaseCompleted {
			completed = append(completed, c)
		}
	}
	return FilterHistory(completed, filter)
}

func matchesKeyword(c *models.Conversation, keyword string) bool {
	if c.Compliments == nil {
		return false
	}
	return strings.Contains(strings.ToLower(c.Compliments.Self), keyword) ||
		strings.Contains(strings.ToLower(c.Compliments.Counterpart), keyword)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
