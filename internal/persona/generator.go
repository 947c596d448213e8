package persona

import (
	"math/rand"
	"sync"

	"kudos-chat/internal/models"
)

// entry is one row of the fixed persona table. Name, location and interests
// are paired; age is drawn independently.
type entry struct {
	name      string
	location  string
	interests []string
}

var table = []entry{
	{"Maya", "Portland", []string{"photography", "hiking", "indie music"}},
	{"Jordan", "Austin", []string{"basketball", "cooking", "podcasts"}},
	{"Sam", "Chicago", []string{"video games", "skateboarding", "anime"}},
	{"Riley", "Denver", []string{"climbing", "coffee", "travel"}},
	{"Alex", "Seattle", []string{"reading", "board games", "baking"}},
	{"Casey", "Nashville", []string{"guitar", "songwriting", "movies"}},
	{"Quinn", "Boston", []string{"running", "history", "museums"}},
	{"Taylor", "San Diego", []string{"surfing", "volleyball", "drawing"}},
}

const (
	minAge = 18
	maxAge = 25
)

// Generator produces fictitious identities for generated counterparts. The
// random source is injected so selection is deterministic under test; rand
// sources are not safe for concurrent use, so draws are serialized.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a Generator drawing from rng.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Generate returns a persona: one uniformly chosen table entry plus an age
// drawn uniformly from 18-25 inclusive. Call once per conversation; the
// result is held fixed for the conversation's lifetime.
func (g *Generator) Generate() models.Persona {
	g.mu.Lock()
	e := table[g.rng.Intn(len(table))]
	age := minAge + g.rng.Intn(maxAge-minAge+1)
	g.mu.Unlock()

	interests := make([]string, len(e.interests))
	copy(interests, e.interests)

	return models.Persona{
		Name:      e.name,
		Location:  e.location,
		Age:       age,
		Interests: interests,
	}
}
