package prompt_test

import (
	"strings"
	"testing"

	"pulseboard/internal/prompt"
)

func TestBuildEmbedsRawDataVerbatim(t *testing.T) {
	raw := "id\ttitle\tassignee\n1\tETL rework\tPriya\n2\t%s weird tokens %%v\t"
	got := prompt.Build(raw)
	if !strings.Contains(got, raw) {
		t.Fatalf("raw data not embedded verbatim:\n%s", got)
	}
	if !strings.Contains(got, "Senior AI Project Analyst") {
		t.Fatalf("role missing:\n%s", got)
	}
	if !strings.Contains(got, "Delivery Sentiment") {
		t.Fatalf("sentiment instruction missing:\n%s", got)
	}
}

func TestBuildNeverRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "\x00\x01\x02", strings.Repeat("a", 1<<16)} {
		got := prompt.Build(raw)
		if !strings.Contains(got, "Raw Data:") {
			t.Fatalf("payload malformed, len(raw)=%d", len(raw))
		}
	}
}
