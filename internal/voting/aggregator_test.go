package voting

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"kudos-chat/internal/models"
	"kudos-chat/internal/store"
)

func newTestAggregator(t *testing.T, seed int64) (*Aggregator, *store.Store) {
	t.Helper()

	kv, err := store.OpenBadger("")
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	st := store.NewStore(kv)
	return NewAggregator(st, rand.New(rand.NewSource(seed))), st
}

func completedConversation(id string, self, counterpart string) *models.Conversation {
	return &models.Conversation{
		ID:        id,
		Mode:      models.ModeAssisted,
		Phase:     models.PhaseCompleted,
		CreatedAt: time.Now(),
		Compliments: &models.Compliments{
			Self:        self,
			Counterpart: counterpart,
		},
	}
}

func TestEligible_RequiresBothComplimentHalves(t *testing.T) {
	convs := []*models.Conversation{
		completedConversation("full", "kind", "funny"),
		{ID: "none", Phase: models.PhaseActive},
		{ID: "half", Compliments: &models.Compliments{Self: "kind"}},
	}

	eligible := Eligible(convs)

	if len(eligible) != 1 {
		t.Fatalf("expected 1 eligible, got %d", len(eligible))
	}
	if eligible[0].ID != "full" {
		t.Errorf("expected 'full' to be eligible, got '%s'", eligible[0].ID)
	}
}

func TestPickPair_DistinctConversations(t *testing.T) {
	agg, st := newTestAggregator(t, 7)
	for _, id := range []string{"a", "b", "c", "d"} {
		st.Add(completedConversation(id, "self "+id, "counterpart "+id))
	}

	for i := 0; i < 50; i++ {
		first, second, err := agg.PickPair()
		if err != nil {
			t.Fatalf("pick failed: %v", err)
		}
		if first.ID == second.ID {
			t.Fatalf("pair has the same conversation twice: %s", first.ID)
		}
	}
}

func TestPickPair_InsufficientData(t *testing.T) {
	agg, st := newTestAggregator(t, 7)

	_, _, err := agg.PickPair()
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData with 0 eligible, got %v", err)
	}

	st.Add(completedConversation("only", "a", "b"))
	_, _, err = agg.PickPair()
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData with 1 eligible, got %v", err)
	}
}

func TestPickPair_IgnoresIneligible(t *testing.T) {
	agg, st := newTestAggregator(t, 7)
	st.Add(completedConversation("a", "x", "y"))
	st.Add(completedConversation("b", "x", "y"))
	st.Add(&models.Conversation{ID: "incomplete", Phase: models.PhaseActive})

	for i := 0; i < 20; i++ {
		first, second, err := agg.PickPair()
		if err != nil {
			t.Fatalf("pick failed: %v", err)
		}
		if first.ID == "incomplete" || second.ID == "incomplete" {
			t.Fatal("picked an ineligible conversation")
		}
	}
}

func TestPickPair_DeterministicWithSeed(t *testing.T) {
	agg1, st1 := newTestAggregator(t, 99)
	agg2, st2 := newTestAggregator(t, 99)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		st1.Add(completedConversation(id, "s", "c"))
		st2.Add(completedConversation(id, "s", "c"))
	}

	f1, s1, _ := agg1.PickPair()
	f2, s2, _ := agg2.PickPair()

	if f1.ID != f2.ID || s1.ID != s2.ID {
		t.Errorf("same seed picked different pairs: (%s,%s) vs (%s,%s)",
			f1.ID, s1.ID, f2.ID, s2.ID)
	}
}

func TestPickPair_ConcurrentUse(t *testing.T) {
	agg, st := newTestAggregator(t, 11)
	for _, id := range []string{"a", "b", "c", "d"} {
		st.Add(completedConversation(id, "s", "c"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				first, second, err := agg.PickPair()
				if err != nil {
					t.Errorf("pick failed: %v", err)
					return
				}
				if first.ID == second.ID {
					t.Errorf("pair has the same conversation twice: %s", first.ID)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestCastVote_EachCallIncrements(t *testing.T) {
	agg, st := newTestAggregator(t, 1)
	st.Add(completedConversation("c", "s", "cp"))

	// Not idempotent: repeat votes stack
	for i := 0; i < 3; i++ {
		if err := agg.CastVote("c", models.VoteChoiceSelf); err != nil {
			t.Fatalf("vote %d failed: %v", i, err)
		}
	}

	conv, _ := st.Get("c")
	if conv.Votes.Self != 3 {
		t.Errorf("expected 3 self votes, got %d", conv.Votes.Self)
	}
}

func TestCastVote_UnknownConversation(t *testing.T) {
	agg, _ := newTestAggregator(t, 1)

	if err := agg.CastVote("missing", models.VoteChoiceSelf); err == nil {
		t.Error("expected error voting on unknown conversation")
	}
}

func TestComputePercentages(t *testing.T) {
	tests := []struct {
		name  string
		votes models.Votes
		want  Percentages
	}{
		{"no votes", models.Votes{}, Percentages{0, 0}},
		{"all self", models.Votes{Self: 5}, Percentages{100, 0}},
		{"all counterpart", models.Votes{Counterpart: 4}, Percentages{0, 100}},
		{"even split", models.Votes{Self: 2, Counterpart: 2}, Percentages{50, 50}},
		{"three to one", models.Votes{Self: 3, Counterpart: 1}, Percentages{75, 25}},
		{"rounding", models.Votes{Self: 1, Counterpart: 2}, Percentages{33, 67}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePercentages(tt.votes)
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestComputePercentages_SumTo100WhenVotesExist(t *testing.T) {
	for self := 0; self <= 7; self++ {
		for counterpart := 0; counterpart <= 7; counterpart++ {
			votes := models.Votes{Self: self, Counterpart: counterpart}
			got := ComputePercentages(votes)
			if votes.Total() == 0 {
				if got.SelfPct != 0 || got.CounterpartPct != 0 {
					t.Errorf("expected {0,0} for no votes, got %+v", got)
				}
				continue
			}
			if got.SelfPct+got.CounterpartPct != 100 {
				t.Errorf("votes %+v: percentages sum to %d, not 100",
					votes, got.SelfPct+got.CounterpartPct)
			}
		}
	}
}

func TestFilterHistory_Keyword(t *testing.T) {
	first := completedConversation("first", "You were SO insightful", "thanks")
	first.Votes = models.Votes{Self: 3, Counterpart: 1}
	second := completedConversation("second", "good talk", "nice chat")

	got := FilterHistory([]*models.Conversation{first, second}, HistoryFilter{Keyword: "insightful"})

	if len(got) != 1 {
		t.Fatalf("expected exactly 1 match, got %d", len(got))
	}
	if got[0].ID != "first" {
		t.Errorf("expected 'first', got '%s'", got[0].ID)
	}
}

func TestFilterHistory_KeywordMatchesEitherHalf(t *testing.T) {
	conv := completedConversation("c", "plain", "wonderfully curious")

	got := FilterHistory([]*models.Conversation{conv}, HistoryFilter{Keyword: "CURIOUS"})

	if len(got) != 1 {
		t.Error("expected case-insensitive match on counterpart half")
	}
}

func TestFilterHistory_Date(t *testing.T) {
	old := completedConversation("old", "s", "c")
	old.CreatedAt = time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	recent := completedConversation("recent", "s", "c")
	recent.CreatedAt = time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)

	day := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	got := FilterHistory([]*models.Conversation{old, recent}, HistoryFilter{Date: &day})

	if len(got) != 1 || got[0].ID != "recent" {
		t.Errorf("expected only 'recent' on calendar-day match, got %d results", len(got))
	}
}

func TestFilterHistory_FiltersANDCombined(t *testing.T) {
	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	match := completedConversation("match", "brilliant mind", "c")
	match.CreatedAt = day
	wrongDay := completedConversation("wrong-day", "brilliant mind", "c")
	wrongDay.CreatedAt = day.AddDate(0, 0, 1)
	wrongWord := completedConversation("wrong-word", "nice", "c")
	wrongWord.CreatedAt = day

	got := FilterHistory(
		[]*models.Conversation{match, wrongDay, wrongWord},
		HistoryFilter{Keyword: "brilliant", Date: &day},
	)

	if len(got) != 1 || got[0].ID != "match" {
		t.Errorf("expected only 'match', got %d results", len(got))
	}
}

func TestHistory_OnlyCompletedConversations(t *testing.T) {
	agg, st := newTestAggregator(t, 1)
	st.Add(completedConversation("done", "s", "c"))
	st.Add(&models.Conversation{ID: "live", Phase: models.PhaseActive, CreatedAt: time.Now()})
	st.Add(&models.Conversation{ID: "pending", Phase: models.PhaseComplimentPending, CreatedAt: time.Now()})

	got := agg.History(HistoryFilter{})

	if len(got) != 1 || got[0].ID != "done" {
		t.Errorf("expected only the completed conversation, got %d results", len(got))
	}
}

func TestFilterHistory_EmptyFilterPassesEverything(t *testing.T) {
	convs := []*models.Conversation{
		completedConversation("a", "s", "c"),
		{ID: "b", Phase: models.PhaseActive},
	}

	got := FilterHistory(convs, HistoryFilter{})

	if len(got) != 2 {
		t.Errorf("expected all conversations through empty filter, got %d", len(got))
	}
}
