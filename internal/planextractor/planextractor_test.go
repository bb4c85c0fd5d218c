package planextractor

import (
	"strings"
	"testing"
)

const samplePlanBody = `

# Add retry logic to the ingestion client

This plan covers the retry behavior we discussed.

- Wrap the dial call in a bounded retry loop
- Add jittered backoff between attempts
- Log each retry at warn level
`

func TestDetectAcceptsWellFormedPlan(t *testing.T) {
	msg := "Go ahead, here's the plan:" + samplePlanBody
	candidates := Detect(msg)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Title != "Add retry logic to the ingestion client" {
		t.Fatalf("unexpected title: %q", candidates[0].Title)
	}
}

func TestDetectRejectsWithoutTrigger(t *testing.T) {
	msg := "No trigger phrase here." + samplePlanBody
	if got := Detect(msg); got != nil {
		t.Fatalf("expected no candidates without a trigger phrase, got %d", len(got))
	}
}

func TestDetectRejectsShortBody(t *testing.T) {
	msg := "here's the plan: # Title\n- one item"
	if got := Detect(msg); got != nil {
		t.Fatalf("expected no candidates for a too-short body, got %d", len(got))
	}
}

func TestDetectRejectsMissingStructure(t *testing.T) {
	body := strings.Repeat("word ", 30)
	msg := "here's the plan: " + body
	if got := Detect(msg); got != nil {
		t.Fatalf("expected no candidates without heading/list structure, got %d", len(got))
	}
}

func TestDetectSplitsMultipleTopHeadings(t *testing.T) {
	msg := "execute this plan:\n" + samplePlanBody + "\n" + samplePlanBody
	// second copy needs a distinct heading to count as a second top-level section
	msg = strings.Replace(msg, "# Add retry logic to the ingestion client\n\nThis plan covers the retry behavior we discussed.\n\n- Wrap the dial call in a bounded retry loop\n- Add jittered backoff between attempts\n- Log each retry at warn level\n\n\n# Add retry logic to the ingestion client",
		"# Add retry logic to the ingestion client\n\nThis plan covers the retry behavior we discussed.\n\n- Wrap the dial call in a bounded retry loop\n- Add jittered backoff between attempts\n- Log each retry at warn level\n\n\n# Add a circuit breaker to the fanout client", 1)

	candidates := Detect(msg)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 split candidates, got %d", len(candidates))
	}
}

func TestContentHashStableUnderWhitespaceAndCase(t *testing.T) {
	a := "# Plan\n\n- Step one\n- Step two"
	b := "#   PLAN\n\n\n-   step ONE\n-   step two  "
	if ContentHash(a) != ContentHash(b) {
		t.Fatal("expected identical normalized hashes for case/whitespace variants")
	}
}

func TestDedupDetectsExactHashDuplicate(t *testing.T) {
	candidate := Candidate{Body: samplePlanBody}
	known := []KnownPlan{{ID: "p1", NormalizedContent: Normalize(samplePlanBody), ContentHash: ContentHash(samplePlanBody)}}

	result := Dedup(candidate, known)
	if !result.Duplicate || result.OfPlanID != "p1" {
		t.Fatalf("expected exact duplicate of p1, got %+v", result)
	}
}

func TestDedupDetectsNearDuplicateBySimilarity(t *testing.T) {
	original := "# Add retry support\n\n- Wrap dial calls in retry loop\n- Add jittered backoff between retries\n- Log every retry attempt at warn level"
	nearCopy := "# Add retrying support\n\n- Wrap dial calls in a retry loop\n- Add jittered backoff between retries\n- Log every retry attempt at warn level"

	known := []KnownPlan{{ID: "p1", NormalizedContent: Normalize(original), ContentHash: ContentHash(original)}}
	result := Dedup(Candidate{Body: nearCopy}, known)
	if !result.Duplicate {
		t.Fatalf("expected near-duplicate plans to dedup via similarity, got %+v", result)
	}
}

func TestDedupDistinctPlansNotFlagged(t *testing.T) {
	original := "# Add retry support\n\n- Wrap dial calls in retry loop\n- Add jittered backoff"
	unrelated := "# Rework the search index scoring\n\n- Reweight technology tokens\n- Add stemming support for keywords"

	known := []KnownPlan{{ID: "p1", NormalizedContent: Normalize(original), ContentHash: ContentHash(original)}}
	result := Dedup(Candidate{Body: unrelated}, known)
	if result.Duplicate {
		t.Fatalf("expected unrelated plans not to dedup, got %+v", result)
	}
}

func TestDeriveIDStableAndPathDependent(t *testing.T) {
	id1 := DeriveID("/Users/dev/project/PLAN.md")
	id2 := DeriveID("/Users/dev/project/PLAN.md")
	if id1 != id2 {
		t.Fatal("expected DeriveID to be deterministic for the same path")
	}
	id3 := DeriveID("/Users/dev/project/OTHER.md")
	if id1 == id3 {
		t.Fatal("expected DeriveID to differ for distinct paths")
	}
	if !strings.HasPrefix(id1, "plan-") {
		t.Fatalf("expected slug prefix from basename, got %q", id1)
	}
}
