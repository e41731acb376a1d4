package dedup

import (
	"reflect"
	"testing"
)

func TestParseVerdictNegative(t *testing.T) {
	v := ParseVerdict("no", []string{"12", "15"})
	if v.Similar || len(v.IDs) != 0 {
		t.Fatalf("expected not similar, got %+v", v)
	}
}

func TestParseVerdictAffirmativeWithValidIDs(t *testing.T) {
	v := ParseVerdict("yes: 12, 15", []string{"12", "15", "20"})
	if !v.Similar {
		t.Fatalf("expected similar, got %+v", v)
	}
	if !reflect.DeepEqual(v.IDs, []string{"12", "15"}) {
		t.Fatalf("unexpected ids: %v", v.IDs)
	}
}

func TestParseVerdictHallucinatedIDsDropped(t *testing.T) {
	v := ParseVerdict("yes: 99", []string{"12", "15"})
	if v.Similar {
		t.Fatalf("expected downgrade to not similar, got %+v", v)
	}
}

func TestParseVerdictMixedValidAndHallucinated(t *testing.T) {
	v := ParseVerdict("yes: 99, 15", []string{"12", "15"})
	if !v.Similar || !reflect.DeepEqual(v.IDs, []string{"15"}) {
		t.Fatalf("expected only offered id kept, got %+v", v)
	}
}

func TestParseVerdictMalformed(t *testing.T) {
	cases := []string{
		"banana",
		"",
		"   ",
		"maybe? hard to say",
		"yes",
		"yes:",
		"yes: , ,",
		"{\"similar\": true}",
	}
	for _, raw := range cases {
		if v := ParseVerdict(raw, []string{"12", "15"}); v.Similar {
			t.Fatalf("expected not similar for %q, got %+v", raw, v)
		}
	}
}

func TestParseVerdictNormalization(t *testing.T) {
	cases := []string{
		"  YES: 12  ",
		"Yes - 12",
		"yes. 12",
		"YES:12",
	}
	for _, raw := range cases {
		v := ParseVerdict(raw, []string{"12"})
		if !v.Similar || !reflect.DeepEqual(v.IDs, []string{"12"}) {
			t.Fatalf("expected similar to 12 for %q, got %+v", raw, v)
		}
	}
}

func TestParseVerdictNegativeVariants(t *testing.T) {
	cases := []string{"No", "NO.", "no, none of these match"}
	for _, raw := range cases {
		if v := ParseVerdict(raw, []string{"12"}); v.Similar {
			t.Fatalf("expected not similar for %q", raw)
		}
	}
}

func TestParseVerdictOutputSubsetOfOffered(t *testing.T) {
	offered := []string{"a1", "b2", "c3"}
	responses := []string{
		"yes: a1, zz, b2, 42",
		"yes: c3,c3,c3",
		"yes: A1",
		"yes: everything matches!",
	}
	allowed := map[string]bool{"a1": true, "b2": true, "c3": true}
	for _, raw := range responses {
		v := ParseVerdict(raw, offered)
		for _, id := range v.IDs {
			if !allowed[id] {
				t.Fatalf("id %q from %q not in offered set", id, raw)
			}
		}
	}
}

func TestParseVerdictIdempotent(t *testing.T) {
	offered := []string{"12", "15"}
	raw := "yes: 12, 99, 15"
	first := ParseVerdict(raw, offered)
	second := ParseVerdict(raw, offered)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical verdicts, got %+v and %+v", first, second)
	}
}

func TestParseVerdictDedupesRepeatedIDs(t *testing.T) {
	v := ParseVerdict("yes: 12, 12, 12", []string{"12"})
	if !reflect.DeepEqual(v.IDs, []string{"12"}) {
		t.Fatalf("expected single id, got %v", v.IDs)
	}
}
