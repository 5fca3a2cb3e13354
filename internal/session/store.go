package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rtr-labs/repaircam/internal/shared"
	"github.com/rtr-labs/repaircam/internal/stream"
	"gorm.io/gorm"
)

const (
	// recent history window handed to the model; image placeholder messages
	// are excluded because they carry no conversational content.
	recentMessageLimit = 10
	maxContextEntries  = 10

	imagePlaceholderPrefix = "[Image"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Session{}, &Message{}, &DetectedItem{}, &ConversationContext{})
}

func (s *Store) CreateSession(ctx context.Context, title string) (*Session, error) {
	sess := &Session{
		ID:    shared.NewID("sess_"),
		Title: title,
	}
	if sess.Title == "" {
		sess.Title = "New Repair Session"
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSessionFull loads a session with its messages and detected items.
func (s *Store) GetSessionFull(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("detected_at ASC") }).
		Where("id = ?", id).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]*Session, error) {
	var sessions []*Session
	err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&sessions).Error
	return sessions, err
}

func (s *Store) UpdateTitle(ctx context.Context, id, title string) error {
	res := s.db.WithContext(ctx).Model(&Session{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&Session{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		if err := tx.Where("session_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", id).Delete(&DetectedItem{}).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", id).Delete(&ConversationContext{}).Error
	})
}

func (s *Store) AddMessage(ctx context.Context, sessionID, role, content string, images ...string) (*Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	msg := &Message{
		ID:        shared.NewID("msg_"),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Images:    shared.StringSlice(images),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&Session{}).Where("id = ?", sessionID).
			Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	var msgs []*Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

// GetRecentMessages returns the newest conversational messages in
// chronological order, skipping image placeholders.
func (s *Store) GetRecentMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	var msgs []*Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(recentMessageLimit * 2).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	filtered := make([]*Message, 0, recentMessageLimit)
	for _, m := range msgs {
		if strings.HasPrefix(m.Content, imagePlaceholderPrefix) {
			continue
		}
		filtered = append(filtered, m)
		if len(filtered) == recentMessageLimit {
			break
		}
	}

	// reverse back to chronological order
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}
	return filtered, nil
}

// SaveDetection stores a detection result as a DetectedItem and, when the
// session still has the default title, renames it after the detected object.
func (s *Store) SaveDetection(ctx context.Context, sessionID string, data *stream.DetectionData) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	item := &DetectedItem{
		ID:           shared.NewID("item_"),
		SessionID:    sessionID,
		Object:       data.Object,
		Brand:        data.Brand,
		Model:        data.Model,
		SerialNumber: data.SerialNumber,
		Condition:    shared.ParseCondition(data.Condition).String(),
		Issues:       shared.StringSlice(data.Issues),
		Description:  data.Description,
		DetectedAt:   time.Now(),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		if sess.Title == "New Repair Session" && data.Object != "" {
			return tx.Model(&Session{}).Where("id = ?", sessionID).
				Update("title", data.Object).Error
		}
		return nil
	})
}

func (s *Store) GetDetectedItems(ctx context.Context, sessionID string) ([]*DetectedItem, error) {
	var items []*DetectedItem
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("detected_at ASC").
		Find(&items).Error
	return items, err
}

func (s *Store) GetDetectedItem(ctx context.Context, sessionID, itemID string) (*DetectedItem, error) {
	var item DetectedItem
	err := s.db.WithContext(ctx).
		Where("id = ? AND session_id = ?", itemID, sessionID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateDetectedItem overwrites the user-editable fields of an item and
// renames the session after the corrected object name.
func (s *Store) UpdateDetectedItem(ctx context.Context, item *DetectedItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&DetectedItem{}).
			Where("id = ? AND session_id = ?", item.ID, item.SessionID).
			Updates(map[string]any{
				"object":        item.Object,
				"brand":         item.Brand,
				"model":         item.Model,
				"serial_number": item.SerialNumber,
				"condition":     shared.ParseCondition(item.Condition).String(),
				"issues":        item.Issues,
				"description":   item.Description,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		if item.Object != "" {
			return tx.Model(&Session{}).Where("id = ?", item.SessionID).
				Update("title", item.Object).Error
		}
		return nil
	})
}

// AppendContext adds one summary entry, keeping only the newest
// maxContextEntries.
func (s *Store) AppendContext(ctx context.Context, sessionID, entry string) error {
	var cc ConversationContext
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&cc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cc = ConversationContext{SessionID: sessionID}
	} else if err != nil {
		return err
	}

	cc.Entries = append(cc.Entries, entry)
	if len(cc.Entries) > maxContextEntries {
		cc.Entries = cc.Entries[len(cc.Entries)-maxContextEntries:]
	}
	cc.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Save(&cc).Error
}

func (s *Store) GetContext(ctx context.Context, sessionID string) ([]string, error) {
	var cc ConversationContext
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&cc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return cc.Entries, nil
}
