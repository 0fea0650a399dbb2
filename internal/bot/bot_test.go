package bot_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"newsdigest/internal/bot"
	"newsdigest/internal/domain"
	"newsdigest/internal/feed"
	"newsdigest/internal/store"

	"github.com/google/go-cmp/cmp"
)

const (
	testUserID = int64(42)
	testChatID = int64(42)
)

type sentMessage struct {
	ChatID    int64
	MessageID int
	Message   bot.Message
}

type fakeSender struct {
	mu        sync.Mutex
	sent      []sentMessage
	edited    []sentMessage
	keyboards []bot.Keyboard
	answered  []string
	nextID    int
	sendErr   error
}

func (s *fakeSender) SendMessage(_ context.Context, chatID int64, message bot.Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendErr != nil {
		return 0, s.sendErr
	}

	s.nextID++
	s.sent = append(s.sent, sentMessage{ChatID: chatID, MessageID: s.nextID, Message: message})

	return s.nextID, nil
}

func (s *fakeSender) EditMessage(_ context.Context, chatID int64, messageID int, message bot.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.edited = append(s.edited, sentMessage{ChatID: chatID, MessageID: messageID, Message: message})

	return nil
}

func (s *fakeSender) EditKeyboard(_ context.Context, _ int64, _ int, keyboard bot.Keyboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keyboards = append(s.keyboards, keyboard)

	return nil
}

func (s *fakeSender) AnswerCallback(_ context.Context, callbackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answered = append(s.answered, callbackID)

	return nil
}

func (s *fakeSender) SendTyping(context.Context, int64) error {
	return nil
}

func (s *fakeSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	texts := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		texts = append(texts, m.Message.Text)
	}

	return texts
}

func (s *fakeSender) last() sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sent[len(s.sent)-1]
}

type fakeScheduler struct {
	jobs      map[int64]domain.Slot
	scheduled int
	err       error
}

func (s *fakeScheduler) ScheduleDailyJob(userID int64, slot domain.Slot) error {
	if s.err != nil {
		return s.err
	}
	if s.jobs == nil {
		s.jobs = make(map[int64]domain.Slot)
	}

	s.scheduled++
	s.jobs[userID] = slot

	return nil
}

func (s *fakeScheduler) CancelDailyJob(userID int64) {
	delete(s.jobs, userID)
}

type fakeDigests struct {
	sections []domain.Section
	calls    []domain.CountKey
}

func (d *fakeDigests) Build(_ context.Context, _ int64, key domain.CountKey) ([]domain.Section, error) {
	d.calls = append(d.calls, key)
	return d.sections, nil
}

type testEnv struct {
	bot       *bot.Bot
	sender    *fakeSender
	scheduler *fakeScheduler
	digests   *fakeDigests
	store     *store.Store
}

func newTestEnv(t *testing.T, opts bot.Options) *testEnv {
	t.Helper()

	catalog, err := feed.LoadCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	backend := store.NewFileBackend(filepath.Join(t.TempDir(), "users.json"), slog.Default())
	prefs := store.New(backend, store.Defaults{
		Topics: []string{"technology", "world"},
		Settings: domain.Settings{
			LatestCount: 3,
			DailyCount:  5,
			Schedule:    domain.SlotMorning,
		},
	}, slog.Default())

	env := &testEnv{
		sender:    &fakeSender{},
		scheduler: &fakeScheduler{},
		digests:   &fakeDigests{},
		store:     prefs,
	}
	env.bot = bot.New(env.sender, prefs, env.digests, env.scheduler, catalog, opts, slog.Default())

	return env
}

func (e *testEnv) command(t *testing.T, text string) {
	t.Helper()

	name, args, ok := bot.ParseCommand(text)
	if !ok {
		t.Fatalf("not a command: %q", text)
	}

	err := e.bot.HandleCommand(context.Background(), bot.Command{
		ChatID: testChatID,
		UserID: testUserID,
		Name:   name,
		Args:   args,
	})
	if err != nil {
		t.Fatalf("handle %q: %v", text, err)
	}
}

func (e *testEnv) press(t *testing.T, data string) {
	t.Helper()

	err := e.bot.HandleCallback(context.Background(), bot.Callback{
		ID:        "cb-" + data,
		ChatID:    testChatID,
		UserID:    testUserID,
		MessageID: 7,
		Data:      data,
	})
	if err != nil {
		t.Fatalf("handle callback %q: %v", data, err)
	}
}

func (e *testEnv) settings(t *testing.T) domain.Settings {
	t.Helper()

	settings, err := e.store.GetSettings(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}

	return settings
}

func TestStartShowsTopicKeyboard(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.command(t, "/start")

	got := env.sender.last()
	if !strings.HasPrefix(got.Message.Text, "Welcome!") {
		t.Fatalf("Unexpected text: %q", got.Message.Text)
	}

	want := bot.Keyboard{
		{{Text: "✅ Technology", Data: "toggle:technology"}},
		{{Text: "✅ World", Data: "toggle:world"}},
		{{Text: "⬜ Business", Data: "toggle:business"}},
		{{Text: "⬜ Sports", Data: "toggle:sports"}},
		{{Text: "⬜ Science", Data: "toggle:science"}},
		{{Text: "⬜ Health", Data: "toggle:health"}},
		{{Text: "⬜ Entertainment", Data: "toggle:entertainment"}},
		{{Text: "Done ✅", Data: "done"}},
	}
	if diff := cmp.Diff(want, got.Message.Keyboard); diff != "" {
		t.Fatalf("unexpected keyboard (-want +got):\n%s", diff)
	}
}

func TestToggleTopicPersistsImmediately(t *testing.T) {
	env := newTestEnv(t, bot.Options{})
	ctx := context.Background()

	env.press(t, "toggle:science")

	topics, err := env.store.GetTopics(ctx, testUserID)
	if err != nil {
		t.Fatalf("get topics: %v", err)
	}
	if diff := cmp.Diff([]string{"technology", "world", "science"}, topics); diff != "" {
		t.Fatalf("unexpected topics (-want +got):\n%s", diff)
	}

	env.press(t, "toggle:science")

	topics, err = env.store.GetTopics(ctx, testUserID)
	if err != nil {
		t.Fatalf("get topics: %v", err)
	}
	if diff := cmp.Diff([]string{"technology", "world"}, topics); diff != "" {
		t.Fatalf("unexpected topics after second toggle (-want +got):\n%s", diff)
	}

	if len(env.sender.keyboards) != 2 || len(env.sender.answered) != 2 {
		t.Fatalf("Expected two keyboard edits and two answers, got %d and %d",
			len(env.sender.keyboards), len(env.sender.answered))
	}

	if got := env.sender.keyboards[0][4][0].Text; got != "✅ Science" {
		t.Fatalf("Expected Science to be selected, got %q", got)
	}
}

func TestToggleUnknownTopicIsIgnored(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.press(t, "toggle:gardening")

	topics, err := env.store.GetTopics(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("get topics: %v", err)
	}
	if diff := cmp.Diff([]string{"technology", "world"}, topics); diff != "" {
		t.Fatalf("unexpected topics (-want +got):\n%s", diff)
	}
}

func TestDoneClosesKeyboard(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.press(t, "done")

	want := []sentMessage{{
		ChatID:    testChatID,
		MessageID: 7,
		Message:   bot.Message{Text: "Topics saved. Use /latest to get news."},
	}}
	if diff := cmp.Diff(want, env.sender.edited); diff != "" {
		t.Fatalf("unexpected edits (-want +got):\n%s", diff)
	}
}

func TestCountCommands(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		wantText   string
		wantLatest int
		wantDaily  int
	}{
		{"Clamped high", "/setlatestcount 15", "Set articles per topic for /latest to 10.", 10, 5},
		{"Clamped low", "/setlatestcount 0", "Set articles per topic for /latest to 1.", 1, 5},
		{"Clamped overflow", "/setlatestcount 99999999999999999999", "Set articles per topic for /latest to 10.", 10, 5},
		{"Daily", "/setdailycount 7", "Set articles per topic in daily digest to 7.", 3, 7},
		{"Non-numeric", "/setlatestcount abc", "Please provide a number between 1 and 10.", 3, 5},
		{"Missing argument", "/setdailycount", "Usage: /setdailycount <number>", 3, 5},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			env := newTestEnv(t, bot.Options{})

			env.command(t, test.command)

			if got := env.sender.last().Message.Text; got != test.wantText {
				t.Fatalf("Expected %q, got %q", test.wantText, got)
			}

			settings := env.settings(t)
			if settings.LatestCount != test.wantLatest || settings.DailyCount != test.wantDaily {
				t.Fatalf("Expected counts %d/%d, got %d/%d",
					test.wantLatest, test.wantDaily, settings.LatestCount, settings.DailyCount)
			}
		})
	}
}

func TestScheduleCommand(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.command(t, "/schedule EVENING")

	if got := env.sender.last().Message.Text; got != "Daily digest time set to evening." {
		t.Fatalf("Unexpected reply: %q", got)
	}
	if got := env.settings(t).Schedule; got != domain.SlotEvening {
		t.Fatalf("Expected evening, got %q", got)
	}
	if env.scheduler.scheduled != 0 {
		t.Fatalf("Expected no job for an unsubscribed user")
	}

	env.command(t, "/schedule noon")

	if got := env.sender.last().Message.Text; got != "Usage: /schedule <morning|evening|night>" {
		t.Fatalf("Unexpected reply: %q", got)
	}
	if got := env.settings(t).Schedule; got != domain.SlotEvening {
		t.Fatalf("Expected schedule to stay evening, got %q", got)
	}
}

func TestScheduleReschedulesSubscribedUser(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.command(t, "/subscribe")
	env.command(t, "/schedule night")

	if got := env.scheduler.jobs[testUserID]; got != domain.SlotNight {
		t.Fatalf("Expected the job to move to night, got %q", got)
	}
}

func TestSubscribeTwiceKeepsOneJob(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.command(t, "/subscribe")
	env.command(t, "/subscribe")

	texts := env.sender.texts()
	want := []string{
		"Subscribed. You will receive a daily digest at your scheduled time.",
		"You are already subscribed to daily digests.",
	}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Fatalf("unexpected replies (-want +got):\n%s", diff)
	}

	if len(env.scheduler.jobs) != 1 || env.scheduler.jobs[testUserID] != domain.SlotMorning {
		t.Fatalf("Expected one morning job, got %v", env.scheduler.jobs)
	}

	if !env.settings(t).Subscribed {
		t.Fatalf("Expected user to be subscribed")
	}
}

func TestUnsubscribe(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.command(t, "/unsubscribe")
	if got := env.sender.last().Message.Text; got != "You are not subscribed." {
		t.Fatalf("Unexpected reply: %q", got)
	}

	env.command(t, "/subscribe")
	env.command(t, "/unsubscribe")

	if got := env.sender.last().Message.Text; got != "Unsubscribed from daily digests." {
		t.Fatalf("Unexpected reply: %q", got)
	}
	if len(env.scheduler.jobs) != 0 {
		t.Fatalf("Expected the job to be cancelled, got %v", env.scheduler.jobs)
	}
	if env.settings(t).Subscribed {
		t.Fatalf("Expected user to be unsubscribed")
	}
}

func TestSubscribeSchedulingFailure(t *testing.T) {
	env := newTestEnv(t, bot.Options{})
	env.scheduler.err = errors.New("cron is down")

	err := env.bot.HandleCommand(context.Background(), bot.Command{
		ChatID: testChatID,
		UserID: testUserID,
		Name:   "subscribe",
	})
	if err == nil {
		t.Fatalf("Expected an error")
	}

	if got := env.sender.last().Message.Text; got != "Something went wrong. Please try later." {
		t.Fatalf("Unexpected reply: %q", got)
	}

	settings, err := env.store.GetSettings(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.Subscribed {
		t.Fatalf("Expected the user to stay unsubscribed after a scheduling failure")
	}
}

func TestLatestWithoutTopics(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	if err := env.store.SetTopics(context.Background(), testUserID, []string{}); err != nil {
		t.Fatalf("set topics: %v", err)
	}

	env.command(t, "/latest")

	if diff := cmp.Diff([]string{"No topics selected. Use /topics to choose."}, env.sender.texts()); diff != "" {
		t.Fatalf("unexpected replies (-want +got):\n%s", diff)
	}
	if len(env.digests.calls) != 0 {
		t.Fatalf("Expected no digest to be built")
	}
}

func TestLatestNothingFound(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.command(t, "/latest")

	want := []string{
		"Fetching and summarizing articles… This may take a few seconds.",
		"No recent articles found right now. Please try later.",
	}
	if diff := cmp.Diff(want, env.sender.texts()); diff != "" {
		t.Fatalf("unexpected replies (-want +got):\n%s", diff)
	}
}

func TestLatestSendsSections(t *testing.T) {
	env := newTestEnv(t, bot.Options{})
	env.digests.sections = []domain.Section{
		{Topic: "world", Blocks: []domain.Block{{Title: "W", Summary: "S.", URL: "https://example.com/w"}}},
		{Topic: "technology", Blocks: []domain.Block{{Title: "T", Summary: "S.", URL: "https://example.com/t"}}},
	}

	env.command(t, "/latest")

	env.sender.mu.Lock()
	sent := env.sender.sent
	env.sender.mu.Unlock()

	if len(sent) != 3 {
		t.Fatalf("Expected progress plus two sections, got %d messages", len(sent))
	}
	if !sent[1].Message.HTML || !strings.HasPrefix(sent[1].Message.Text, "<u><b>World</b></u>") {
		t.Fatalf("Unexpected first section: %+v", sent[1].Message)
	}
	if !strings.HasPrefix(sent[2].Message.Text, "<u><b>Technology</b></u>") {
		t.Fatalf("Unexpected second section: %+v", sent[2].Message)
	}

	if diff := cmp.Diff([]domain.CountKey{domain.CountLatest}, env.digests.calls); diff != "" {
		t.Fatalf("unexpected count keys (-want +got):\n%s", diff)
	}
}

func TestSendDailyDigest(t *testing.T) {
	env := newTestEnv(t, bot.Options{})
	ctx := context.Background()

	if err := env.bot.SendDailyDigest(ctx, testUserID); err != nil {
		t.Fatalf("send daily digest: %v", err)
	}
	if len(env.sender.texts()) != 0 {
		t.Fatalf("Expected nothing to be sent for an empty digest")
	}

	env.digests.sections = []domain.Section{
		{Topic: "world", Blocks: []domain.Block{{Title: "W", URL: "https://example.com/w"}}},
	}

	if err := env.bot.SendDailyDigest(ctx, testUserID); err != nil {
		t.Fatalf("send daily digest: %v", err)
	}
	if got := env.sender.last(); got.ChatID != testUserID || !got.Message.HTML {
		t.Fatalf("Unexpected delivery: %+v", got)
	}

	if err := env.store.SetTopics(ctx, testUserID, nil); err != nil {
		t.Fatalf("set topics: %v", err)
	}
	calls := len(env.digests.calls)

	if err := env.bot.SendDailyDigest(ctx, testUserID); err != nil {
		t.Fatalf("send daily digest: %v", err)
	}
	if len(env.digests.calls) != calls {
		t.Fatalf("Expected no digest to be built for a user without topics")
	}

	if diff := cmp.Diff([]domain.CountKey{domain.CountDaily, domain.CountDaily}, env.digests.calls); diff != "" {
		t.Fatalf("unexpected count keys (-want +got):\n%s", diff)
	}
}

func TestSettingsCommand(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.command(t, "/settings")

	got := env.sender.last().Message.Text
	for _, want := range []string{
		"Topics: technology, world",
		"Articles per topic for /latest: 3",
		"Articles per topic in daily digest: 5",
		"Daily digest time: morning (08:00",
		"Subscribed: no",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("Expected %q in:\n%s", want, got)
		}
	}
}

func TestHelpListsCommands(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.command(t, "/help")

	got := env.sender.last().Message.Text
	for _, c := range bot.Commands() {
		if !strings.Contains(got, c.Usage) {
			t.Fatalf("Expected %q in help:\n%s", c.Usage, got)
		}
	}
}

func TestAllowedUsers(t *testing.T) {
	env := newTestEnv(t, bot.Options{AllowedUsers: []int64{1}})

	env.command(t, "/start")
	env.press(t, "toggle:science")

	if len(env.sender.texts()) != 0 || len(env.sender.answered) != 0 {
		t.Fatalf("Expected updates from other users to be ignored")
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	env := newTestEnv(t, bot.Options{})

	env.command(t, "/weather")

	if len(env.sender.texts()) != 0 {
		t.Fatalf("Expected no reply, got %v", env.sender.texts())
	}
}
