package domain_test

import (
	"testing"

	"newsdigest/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func TestParseSlot(t *testing.T) {
	tests := []struct {
		in     string
		want   domain.Slot
		wantOK bool
		hour   int
	}{
		{"morning", domain.SlotMorning, true, 8},
		{"EVENING", domain.SlotEvening, true, 18},
		{" Night ", domain.SlotNight, true, 22},
		{"noon", "noon", false, 8},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, ok := domain.ParseSlot(test.in)
			if got != test.want || ok != test.wantOK {
				t.Fatalf("Expected (%q, %v), got (%q, %v)", test.want, test.wantOK, got, ok)
			}

			if hour := got.Hour(); hour != test.hour {
				t.Fatalf("Expected hour %d, got %d", test.hour, hour)
			}
		})
	}
}

func TestClampCount(t *testing.T) {
	for in, want := range map[int]int{-5: 1, 0: 1, 1: 1, 7: 7, 10: 10, 15: 10} {
		if got := domain.ClampCount(in); got != want {
			t.Errorf("ClampCount(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestToggleTopic(t *testing.T) {
	topics := []string{"technology", "world"}

	added := domain.ToggleTopic(topics, "science")
	if diff := cmp.Diff([]string{"technology", "world", "science"}, added); diff != "" {
		t.Fatalf("unexpected topics after add (-want +got):\n%s", diff)
	}

	removed := domain.ToggleTopic(added, "science")
	if diff := cmp.Diff(topics, removed); diff != "" {
		t.Fatalf("unexpected topics after remove (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"technology", "world"}, topics); diff != "" {
		t.Fatalf("input was modified (-want +got):\n%s", diff)
	}
}

func TestUniqueTopics(t *testing.T) {
	got := domain.UniqueTopics([]string{" world", "", "world", "science", "world "})
	if diff := cmp.Diff([]string{"world", "science"}, got); diff != "" {
		t.Fatalf("unexpected topics (-want +got):\n%s", diff)
	}

	if got := domain.UniqueTopics(nil); got == nil || len(got) != 0 {
		t.Fatalf("Expected an empty non-nil slice, got %#v", got)
	}
}

func TestArticleBody(t *testing.T) {
	tests := []struct {
		article domain.Article
		want    string
	}{
		{domain.Article{Content: "full", Summary: "short"}, "full"},
		{domain.Article{Summary: "short"}, "short"},
		{domain.Article{}, ""},
	}

	for _, test := range tests {
		if got := test.article.Body(); got != test.want {
			t.Errorf("Expected %q, got %q", test.want, got)
		}
	}
}

func TestSettingsCount(t *testing.T) {
	s := domain.Settings{LatestCount: 3, DailyCount: 5}

	if s.Count(domain.CountLatest) != 3 || s.Count(domain.CountDaily) != 5 {
		t.Fatalf("Unexpected counts for %+v", s)
	}
}
