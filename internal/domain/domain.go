package domain

import (
	"strings"
	"time"
)

const (
	MinArticleCount = 1
	MaxArticleCount = 10
)

type Slot string

const (
	SlotMorning Slot = "morning"
	SlotEvening Slot = "evening"
	SlotNight   Slot = "night"
)

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var slotHours = map[Slot]int{
	SlotMorning: 8,
	SlotEvening: 18,
	SlotNight:   22,
}

// ParseSlot resolves a slot name case-insensitively.
func ParseSlot(s string) (Slot, bool) {
	slot := Slot(strings.ToLower(strings.TrimSpace(s)))
	_, ok := slotHours[slot]

	return slot, ok
}

// Hour returns the local hour of the slot. Unknown slots fall back to the
// morning hour.
func (s Slot) Hour() int {
	if hour, ok := slotHours[Slot(strings.ToLower(string(s)))]; ok {
		return hour
	}

	return slotHours[SlotMorning]
}

func ClampCount(n int) int {
	return min(max(n, MinArticleCount), MaxArticleCount)
}

type Settings struct {
	LatestCount int  `json:"latest_count"`
	DailyCount  int  `json:"daily_count"`
	Schedule    Slot `json:"schedule"`
	Subscribed  bool `json:"subscribed"`
}

// SettingsPatch holds a partial settings update. Nil fields are left as is.
type SettingsPatch struct {
	LatestCount *int
	DailyCount  *int
	Schedule    *Slot
	Subscribed  *bool
}

type CountKey string

const (
	CountLatest CountKey = "latest_count"
	CountDaily  CountKey = "daily_count"
)

func (s Settings) Count(key CountKey) int {
	if key == CountDaily {
		return s.DailyCount
	}

	return s.LatestCount
}

type ContentSource string

const (
	ContentExtracted   ContentSource = "extracted"
	ContentFeedSummary ContentSource = "feed_summary"
	ContentNone        ContentSource = "none"
)

type Article struct {
	Title     string
	URL       string
	Published *time.Time
	// Summary is the short text provided by the feed itself.
	Summary string
	Content string
	Source  ContentSource
}

// Body returns the best text available for summarization.
func (a Article) Body() string {
	if a.Content != "" {
		return a.Content
	}

	return a.Summary
}

type Block struct {
	Title   string
	Summary string
	URL     string
}

type Section struct {
	Topic  string
	Blocks []Block
}

// ToggleTopic flips membership of topic. Remaining topics keep their
// relative order and a newly added topic goes to the end.
func ToggleTopic(topics []string, topic string) []string {
	toggled := make([]string, 0, len(topics)+1)
	found := false

	for _, t := range topics {
		if t == topic {
			found = true
			continue
		}
		toggled = append(toggled, t)
	}

	if !found {
		toggled = append(toggled, topic)
	}

	return toggled
}

// UniqueTopics drops empty and repeated names keeping first occurrences.
func UniqueTopics(topics []string) []string {
	unique := make([]string, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))

	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}

		seen[t] = struct{}{}
		unique = append(unique, t)
	}

	return unique
}
