package services

import (
	"encoding/json"
	"errors"

	"gemchat/internal/logger"
	"gemchat/internal/storage"
	"gemchat/pkg/chattypes"

	"github.com/charmbracelet/log"
)

// SessionsKey is the single storage key holding the session snapshot.
const SessionsKey = "gemini_chat_sessions"

// PersistenceService mirrors the session collection into a storage slot.
// It never fails loudly: a broken slot degrades to an empty collection on
// Load and is logged and ignored on Save.
type PersistenceService struct {
	slot   storage.Slot
	logger *log.Logger
}

// NewPersistenceService creates a persistence adapter over slot.
func NewPersistenceService(slot storage.Slot) *PersistenceService {
	return &PersistenceService{
		slot:   slot,
		logger: logger.NewStyledLogger("Storage"),
	}
}

// Name returns the service name "persistence".
func (p *PersistenceService) Name() string {
	return "persistence"
}

// Load reads the stored sessions. Stored streaming flags are cleared because
// no stream survives a restart.
func (p *PersistenceService) Load() []chattypes.ChatSession {
	data, err := p.slot.Get(SessionsKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			p.logger.Debug("No stored sessions", "key", SessionsKey)
		} else {
			p.logger.Warn("Failed to read stored sessions", "key", SessionsKey, "error", err)
		}
		return []chattypes.ChatSession{}
	}

	var sessions []chattypes.ChatSession
	if err := json.Unmarshal(data, &sessions); err != nil {
		p.logger.Warn("Stored sessions are corrupt, starting empty", "key", SessionsKey, "error", err)
		return []chattypes.ChatSession{}
	}
	if sessions == nil {
		sessions = []chattypes.ChatSession{}
	}

	for i := range sessions {
		if sessions[i].Messages == nil {
			sessions[i].Messages = []chattypes.Message{}
		}
		for j := range sessions[i].Messages {
			sessions[i].Messages[j].IsStreaming = false
		}
	}

	p.logger.Debug("Loaded sessions", "key", SessionsKey, "count", len(sessions))
	return sessions
}

// Save replaces the stored snapshot with sessions.
func (p *PersistenceService) Save(sessions []chattypes.ChatSession) {
	if sessions == nil {
		sessions = []chattypes.ChatSession{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		p.logger.Error("Failed to encode sessions", "error", err)
		return
	}
	if err := p.slot.Put(SessionsKey, data); err != nil {
		p.logger.Error("Failed to save sessions", "key", SessionsKey, "error", err)
	}
}

// Close closes the underlying slot.
func (p *PersistenceService) Close() error {
	return p.slot.Close()
}
