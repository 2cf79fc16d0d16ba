package taskstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbmodel "taskline/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sealer encrypts secrets at rest. A store without one keeps API keys in plaintext.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

type AISettings struct {
	APIURL string
	APIKey string
	Model  string
}

// Configured reports whether a key is present; the endpoint and model may fall back to defaults.
func (s AISettings) Configured() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

func (s *Store) UserAISettings(ctx context.Context, userID int64) (AISettings, error) {
	gdb, err := s.conn(ctx)
	if err != nil {
		return AISettings{}, err
	}
	var row dbmodel.UserSettings
	err = gdb.Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AISettings{}, nil
	}
	if err != nil {
		return AISettings{}, err
	}
	key := strings.TrimSpace(row.AIAPIKey)
	if s.sealer != nil && key != "" {
		if key, err = s.sealer.Open(key); err != nil {
			return AISettings{}, fmt.Errorf("open stored api key: %w", err)
		}
	}
	return AISettings{
		APIURL: strings.TrimSpace(row.AIAPIURL),
		APIKey: key,
		Model:  strings.TrimSpace(row.AIModel),
	}, nil
}

func (s *Store) SaveUserAISettings(ctx context.Context, userID int64, in AISettings) error {
	gdb, err := s.conn(ctx)
	if err != nil {
		return err
	}
	key := strings.TrimSpace(in.APIKey)
	if s.sealer != nil {
		if key, err = s.sealer.Seal(key); err != nil {
			return fmt.Errorf("seal api key: %w", err)
		}
	}
	row := dbmodel.UserSettings{
		UserID:    userID,
		AIAPIURL:  strings.TrimSpace(in.APIURL),
		AIAPIKey:  key,
		AIModel:   strings.TrimSpace(in.Model),
		UpdatedAt: s.now().UTC().Unix(),
	}
	return gdb.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"ai_api_url": row.AIAPIURL,
			"ai_api_key": row.AIAPIKey,
			"ai_model":   row.AIModel,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
}
