package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"taskline/internal/assistant"
	dbmodel "taskline/internal/db"
	"taskline/internal/llm"
	"taskline/internal/taskstore"

	"gorm.io/gorm"
)

type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	settings llm.Settings
	messages []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, settings llm.Settings, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.settings = settings
	f.messages = append([]llm.Message(nil), messages...)
	return f.reply, f.err
}

type recordingNotifier struct {
	owners  []int64
	turnIDs []string
	actions [][]assistant.Outcome
}

func (r *recordingNotifier) TasksChanged(ownerID int64, turnID string, actions []assistant.Outcome) {
	r.owners = append(r.owners, ownerID)
	r.turnIDs = append(r.turnIDs, turnID)
	r.actions = append(r.actions, actions)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := dbmodel.OpenSQLite(filepath.Join(t.TempDir(), "taskline.db"))
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	t.Cleanup(func() { _ = dbmodel.Close(gdb) })
	if err := dbmodel.MigrateUp(gdb); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	return gdb
}

func newTestService(t *testing.T, gdb *gorm.DB, fake *fakeCompleter, notifier Notifier) *Service {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewService(Options{
		DB:       gdb,
		LLM:      fake,
		Engine:   assistant.NewEngine(logger),
		Defaults: Defaults{Settings: llm.Settings{APIKey: "server-key", Model: "gpt-4o-mini"}},
		Notifier: notifier,
		Logger:   logger,
	})
}

func TestService_SendMessage_ExecutesActionsAndStoresSanitizedReply(t *testing.T) {
	gdb := openTestDB(t)
	fake := &fakeCompleter{reply: "Sure!\n```json\n{\"action\":\"create_task\",\"title\":\"AI task\",\"due_date\":\"2030-01-01\",\"tags\":[\"ai\"]}\n```\nDone."}
	notifier := &recordingNotifier{}
	svc := newTestService(t, gdb, fake, notifier)

	res, err := svc.SendMessage(t.Context(), 5, "  add an AI task  ")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if res.Response != "Sure!\nDone." {
		t.Fatalf("unexpected response %q", res.Response)
	}
	if res.TurnID == "" || res.ConversationID == 0 {
		t.Fatalf("expected turn and conversation ids, got %+v", res)
	}
	if len(res.Actions) != 1 || res.Actions[0].Kind != assistant.KindCreateTask || res.Actions[0].CreatedID == nil {
		t.Fatalf("unexpected actions %+v", res.Actions)
	}

	task, err := taskstore.New(gdb).FindTaskByExactTitle(t.Context(), 5, "AI task")
	if err != nil || task == nil {
		t.Fatalf("expected task to exist, got %+v err=%v", task, err)
	}

	history, err := svc.History(t.Context(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 stored messages, got %+v", history)
	}
	if history[0].Role != "user" || history[0].Content != "add an AI task" {
		t.Fatalf("unexpected user message %+v", history[0])
	}
	if history[1].Role != "assistant" || strings.Contains(history[1].Content, "```") {
		t.Fatalf("stored reply must be sanitized: %+v", history[1])
	}

	if len(notifier.owners) != 1 || notifier.owners[0] != 5 || notifier.turnIDs[0] != res.TurnID {
		t.Fatalf("expected one notification for owner 5, got %+v", notifier)
	}

	if len(fake.messages) != 2 || fake.messages[0].Role != llm.RoleSystem || fake.messages[1].Content != "add an AI task" {
		t.Fatalf("unexpected model input %+v", fake.messages)
	}
	if !strings.Contains(fake.messages[0].Content, "```json") {
		t.Fatal("system prompt should describe the action block format")
	}
}

func TestService_SendMessage_RejectsEmptyMessage(t *testing.T) {
	gdb := openTestDB(t)
	fake := &fakeCompleter{reply: "hi"}
	svc := newTestService(t, gdb, fake, nil)

	if _, err := svc.SendMessage(t.Context(), 1, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatal("model must not be called")
	}
}

func TestService_SendMessage_RequiresAPIKey(t *testing.T) {
	gdb := openTestDB(t)
	fake := &fakeCompleter{reply: "hi"}
	svc := NewService(Options{DB: gdb, LLM: fake, Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))})

	if _, err := svc.SendMessage(t.Context(), 1, "hello"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	if err := taskstore.New(gdb).SaveUserAISettings(t.Context(), 1, taskstore.AISettings{APIKey: "user-key", Model: "custom-model", APIURL: "https://llm.example/v1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SendMessage(t.Context(), 1, "hello"); err != nil {
		t.Fatalf("expected configured user to succeed, got %v", err)
	}
	if fake.settings.APIKey != "user-key" || fake.settings.Model != "custom-model" || fake.settings.BaseURL != "https://llm.example/v1" {
		t.Fatalf("user settings should override defaults, got %+v", fake.settings)
	}
}

func TestService_SendMessage_ModelFailurePersistsNothing(t *testing.T) {
	gdb := openTestDB(t)
	fake := &fakeCompleter{err: errors.New("upstream 401")}
	svc := newTestService(t, gdb, fake, nil)

	_, err := svc.SendMessage(t.Context(), 1, "hello")
	if !errors.Is(err, ErrModelFailed) {
		t.Fatalf("expected ErrModelFailed, got %v", err)
	}
	var n int64
	if err := gdb.Model(&dbmodel.Message{}).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected no stored messages, got %d", n)
	}
}

func TestService_SendMessage_SendsBoundedHistory(t *testing.T) {
	gdb := openTestDB(t)
	fake := &fakeCompleter{reply: "ok"}
	svc := newTestService(t, gdb, fake, nil)

	convs := NewConversationStore(gdb)
	conv, err := convs.Create(t.Context(), 1, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatal(err)
	}
	for i := range 12 {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		if _, err := convs.Append(t.Context(), conv.ID, role, "msg", time.Unix(1_700_000_000+int64(i), 0)); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := svc.SendMessage(t.Context(), 1, "latest"); err != nil {
		t.Fatal(err)
	}
	// system + 9 stored + the new message
	if len(fake.messages) != 11 {
		t.Fatalf("expected 11 model messages, got %d", len(fake.messages))
	}
	if fake.messages[len(fake.messages)-1].Content != "latest" {
		t.Fatalf("expected new message last, got %+v", fake.messages[len(fake.messages)-1])
	}
}

func TestService_SendMessage_NoNotificationWithoutActions(t *testing.T) {
	gdb := openTestDB(t)
	notifier := &recordingNotifier{}
	svc := newTestService(t, gdb, &fakeCompleter{reply: "Just chatting."}, notifier)

	res, err := svc.SendMessage(t.Context(), 1, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Actions) != 0 || len(notifier.owners) != 0 {
		t.Fatalf("expected no actions and no notification, got %+v %+v", res.Actions, notifier.owners)
	}
}

func TestService_SendMessage_FailedActionsStillReply(t *testing.T) {
	gdb := openTestDB(t)
	svc := newTestService(t, gdb, &fakeCompleter{reply: "Marked it done.\n```json\n{\"action\":\"complete_task\",\"task_title\":\"nothing here\"}\n```"}, nil)

	res, err := svc.SendMessage(t.Context(), 1, "finish it")
	if err != nil {
		t.Fatal(err)
	}
	if res.Response != "Marked it done." || len(res.Actions) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestService_ClearRemovesOnlyOwnersConversations(t *testing.T) {
	gdb := openTestDB(t)
	svc := newTestService(t, gdb, &fakeCompleter{reply: "ok"}, nil)

	for _, owner := range []int64{1, 2} {
		if _, err := svc.SendMessage(t.Context(), owner, "hello"); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := svc.Clear(t.Context(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 conversation removed, got %d", removed)
	}
	mine, _ := svc.History(t.Context(), 1)
	theirs, _ := svc.History(t.Context(), 2)
	if len(mine) != 0 || len(theirs) != 2 {
		t.Fatalf("unexpected histories: mine=%d theirs=%d", len(mine), len(theirs))
	}
}

func TestService_SendMessage_NoNotificationWhenEveryActionFails(t *testing.T) {
	gdb := openTestDB(t)
	notifier := &recordingNotifier{}
	svc := newTestService(t, gdb, &fakeCompleter{reply: "Done.\n```json\n{\"action\":\"archive_task\",\"task_title\":\"missing\"}\n```"}, notifier)

	if _, err := svc.SendMessage(t.Context(), 1, "archive it"); err != nil {
		t.Fatal(err)
	}
	if len(notifier.owners) != 0 {
		t.Fatalf("expected no notification, got %+v", notifier.owners)
	}
}
