package style

import "testing"

func TestClassify_CasualSlang(t *testing.T) {
	register := Classify([]string{"yo wsg lol!!!"})

	if register != RegisterCasual {
		t.Errorf("expected casual, got %s", register)
	}
}

func TestClassify_FormalPhrasing(t *testing.T) {
	register := Classify([]string{"Good morning, would you please elaborate?"})

	if register != RegisterFormal {
		t.Errorf("expected formal, got %s", register)
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	register := Classify([]string{})

	if register != RegisterNeutral {
		t.Errorf("expected neutral for empty input, got %s", register)
	}
}

func TestClassify_PlainTextIsNeutral(t *testing.T) {
	register := Classify([]string{"what did you do today"})

	if register != RegisterNeutral {
		t.Errorf("expected neutral, got %s", register)
	}
}

func TestClassify_ExcessiveExclamationsAreCasual(t *testing.T) {
	// No slang, but more than two exclamation marks
	register := Classify([]string{"that is so cool!", "no way!", "amazing!"})

	if register != RegisterCasual {
		t.Errorf("expected casual for 3 exclamations, got %s", register)
	}
}

func TestClassify_HeavyUppercaseIsCasual(t *testing.T) {
	register := Classify([]string{"THIS IS THE BEST"})

	if register != RegisterCasual {
		t.Errorf("expected casual for shouting, got %s", register)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	input := []string{"hey lol", "would you please"}

	first := Classify(input)
	for i := 0; i < 10; i++ {
		if got := Classify(input); got != first {
			t.Fatalf("classification changed between calls: %s then %s", first, got)
		}
	}
}

func TestClassify_TieDefaultsToNeutral(t *testing.T) {
	// One casual marker and one formal marker, no punctuation signal
	register := Classify([]string{"yo, please"})

	if register != RegisterNeutral {
		t.Errorf("expected neutral on tie, got %s", register)
	}
}
