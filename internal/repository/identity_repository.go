package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teleguard/agent/internal/models"
)

// IdentityRepository persists the single registered recipient as one small
// JSON record. Get returns nil while no recipient has been registered.
type IdentityRepository struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewIdentityRepository builds the repository around the given file path.
func NewIdentityRepository(path string, logger *zap.Logger) *IdentityRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		path = "./admin.json"
	}
	return &IdentityRepository{path: path, logger: logger}
}

// Get loads the registered recipient, nil when unset.
func (r *IdentityRepository) Get(ctx context.Context) (*models.AdminIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read identity file: %w", err)
	}

	var identity models.AdminIdentity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("decode identity file: %w", err)
	}
	if identity.ChatID == 0 {
		return nil, nil
	}
	return &identity, nil
}

// Set registers the recipient, replacing any previous one. Written through a
// temp file and rename so a crash never leaves a half-written record.
func (r *IdentityRepository) Set(ctx context.Context, chatID int64) (*models.AdminIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if chatID == 0 {
		return nil, fmt.Errorf("set identity: chat id must be non-zero")
	}

	identity := &models.AdminIdentity{ChatID: chatID, RegisteredAt: time.Now().UTC()}
	data, err := json.Marshal(identity)
	if err != nil {
		return nil, fmt.Errorf("encode identity: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return nil, fmt.Errorf("write identity file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("commit identity file: %w", err)
	}

	r.logger.Info("admin recipient registered", zap.Int64("chat_id", chatID))
	return identity, nil
}
