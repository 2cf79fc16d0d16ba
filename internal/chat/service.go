package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskline/internal/assistant"
	"taskline/internal/llm"
	"taskline/internal/taskstore"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultHistoryWindow = 10
	HistoryPageSize      = 50
)

var (
	ErrEmptyMessage  = errors.New("chat: message is empty")
	ErrNotConfigured = errors.New("chat: ai api is not configured")
	ErrModelFailed   = errors.New("chat: model call failed")
)

// Defaults are the server-wide assistant settings; per-user settings override the
// endpoint, key and model when they are set.
type Defaults struct {
	Settings      llm.Settings
	HistoryWindow int
	Timeout       time.Duration
}

// Notifier hears about turns that changed tasks, after the turn committed.
type Notifier interface {
	TasksChanged(ownerID int64, turnID string, actions []assistant.Outcome)
}

type Options struct {
	DB       *gorm.DB
	LLM      llm.Completer
	Engine   *assistant.Engine
	Defaults Defaults
	Notifier Notifier
	// Secrets opens API keys sealed in user_settings. Nil reads them as stored.
	Secrets taskstore.Sealer
	Logger  *slog.Logger
}

type TurnResult struct {
	Response       string
	ConversationID int64
	TurnID         string
	Actions        []assistant.Outcome
}

type Service struct {
	db       *gorm.DB
	llm      llm.Completer
	engine   *assistant.Engine
	defaults Defaults
	notifier Notifier
	secrets  taskstore.Sealer
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engine := opts.Engine
	if engine == nil {
		engine = assistant.NewEngine(logger)
	}
	defaults := opts.Defaults
	if defaults.HistoryWindow <= 0 {
		defaults.HistoryWindow = DefaultHistoryWindow
	}
	return &Service{
		db:       opts.DB,
		llm:      opts.LLM,
		engine:   engine,
		defaults: defaults,
		notifier: opts.Notifier,
		secrets:  opts.Secrets,
		logger:   logger.With("module", "chat"),
		now:      time.Now,
	}
}

// SendMessage runs one chat turn: the model is called first, then the reply's actions, both
// messages and the conversation bump are written in a single transaction.
func (s *Service) SendMessage(ctx context.Context, ownerID int64, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	settings, err := s.ResolveSettings(ctx, ownerID)
	if err != nil {
		return TurnResult{}, err
	}
	if !settings.Configured() {
		return TurnResult{}, ErrNotConfigured
	}

	turnID := uuid.NewString()
	logger := s.logger.With("owner_id", ownerID, "turn_id", turnID)
	now := s.now()

	messages, err := s.buildMessages(ctx, ownerID, text, now, logger)
	if err != nil {
		return TurnResult{}, err
	}

	callCtx := ctx
	if s.defaults.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.defaults.Timeout)
		defer cancel()
	}
	raw, err := s.llm.Complete(callCtx, settings, messages)
	if err != nil {
		logger.Error("model call failed", "model", settings.Model, "err", err)
		return TurnResult{}, fmt.Errorf("%w: %w", ErrModelFailed, err)
	}

	result := TurnResult{TurnID: turnID}
	changed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		convs := NewConversationStore(tx)
		conv, err := convs.LatestOrCreate(ctx, ownerID, now)
		if err != nil {
			return fmt.Errorf("load conversation: %w", err)
		}
		if _, err := convs.Append(ctx, conv.ID, llm.RoleUser, text, now); err != nil {
			return fmt.Errorf("store user message: %w", err)
		}

		clean, report, err := s.engine.Run(ctx, taskstore.New(tx), ownerID, raw)
		if err != nil {
			return fmt.Errorf("run assistant actions: %w", err)
		}

		repliedAt := s.now()
		if _, err := convs.Append(ctx, conv.ID, llm.RoleAssistant, clean, repliedAt); err != nil {
			return fmt.Errorf("store assistant message: %w", err)
		}
		if err := convs.Touch(ctx, conv.ID, repliedAt); err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		result.Response = clean
		result.ConversationID = conv.ID
		result.Actions = report.Executed()
		changed = report.ChangedTasks()
		return nil
	})
	if err != nil {
		logger.Error("chat turn rolled back", "err", err)
		return TurnResult{}, err
	}

	logger.Info("chat turn committed", "conversation_id", result.ConversationID, "actions_executed", len(result.Actions))
	if s.notifier != nil && changed {
		s.notifier.TasksChanged(ownerID, turnID, result.Actions)
	}
	return result, nil
}

func (s *Service) buildMessages(ctx context.Context, ownerID int64, text string, now time.Time, logger *slog.Logger) ([]llm.Message, error) {
	convs := NewConversationStore(s.db)
	history := []Message{}
	conv, err := convs.Latest(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if conv != nil {
		history, err = convs.Recent(ctx, conv.ID, s.defaults.HistoryWindow-1)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
	}

	uc, err := BuildUserContext(ctx, taskstore.New(s.db), ownerID, now)
	if err != nil {
		logger.Warn("user context unavailable, continuing without it", "err", err)
		uc = UserContext{OverdueTasks: []OverdueTask{}, RecentTasks: []RecentTask{}}
	}

	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: BuildSystemPrompt(uc, now)})
	for _, msg := range history {
		out = append(out, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	out = append(out, llm.Message{Role: llm.RoleUser, Content: text})
	return out, nil
}

// ResolveSettings layers the user's saved AI settings over the server defaults.
func (s *Service) ResolveSettings(ctx context.Context, ownerID int64) (llm.Settings, error) {
	out := s.defaults.Settings
	st := taskstore.New(s.db)
	if s.secrets != nil {
		st = st.WithSealer(s.secrets)
	}
	user, err := st.UserAISettings(ctx, ownerID)
	if err != nil {
		return out, fmt.Errorf("load ai settings: %w", err)
	}
	if v := strings.TrimSpace(user.APIURL); v != "" {
		out.BaseURL = v
	}
	if v := strings.TrimSpace(user.APIKey); v != "" {
		out.APIKey = v
	}
	if v := strings.TrimSpace(user.Model); v != "" {
		out.Model = v
	}
	return out, nil
}

// History returns the latest conversation's last page of messages, oldest first.
func (s *Service) History(ctx context.Context, ownerID int64) ([]Message, error) {
	convs := NewConversationStore(s.db)
	conv, err := convs.Latest(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return []Message{}, nil
	}
	return convs.Recent(ctx, conv.ID, HistoryPageSize)
}

func (s *Service) Clear(ctx context.Context, ownerID int64) (int64, error) {
	removed, err := NewConversationStore(s.db).Clear(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("cleared conversations", "owner_id", ownerID, "count", removed)
	return removed, nil
}
