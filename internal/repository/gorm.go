package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"whatsapp-assistant/backend/internal/models"

	"gorm.io/gorm"
)

// GormRepository stores everything in Postgres through GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps an open connection. The connection must be opened
// with TranslateError so unique violations map to ErrDuplicate.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Thread{}, &models.Message{})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func (r *GormRepository) CreateUser(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *GormRepository) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormRepository) SetPasswordHash(ctx context.Context, id uint, hash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepository) CreateThread(ctx context.Context, thread *models.Thread) error {
	return translate(r.db.WithContext(ctx).Create(thread).Error)
}

func (r *GormRepository) GetThread(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	if err := r.db.WithContext(ctx).First(&thread, id).Error; err != nil {
		return nil, translate(err)
	}
	return &thread, nil
}

func (r *GormRepository) FindThreadByTitle(ctx context.Context, userID uint, title string) (*models.Thread, error) {
	var thread models.Thread
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND title = ?", userID, title).
		Order("id ASC").
		First(&thread).Error
	if err != nil {
		return nil, translate(err)
	}
	return &thread, nil
}

func (r *GormRepository) LatestThread(ctx context.Context, userID uint) (*models.Thread, error) {
	var thread models.Thread
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&thread).Error
	if err != nil {
		return nil, translate(err)
	}
	return &thread, nil
}

func (r *GormRepository) ListThreads(ctx context.Context, userID uint) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&threads).Error
	return threads, err
}

func (r *GormRepository) DeleteThread(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Thread{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *GormRepository) SetTakeover(ctx context.Context, id uint, active bool) (*models.Thread, error) {
	thread, err := r.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if thread.HumanTakeover == active {
		return thread, nil
	}
	if err := r.db.WithContext(ctx).Model(thread).Update("human_takeover", active).Error; err != nil {
		return nil, translate(err)
	}
	thread.HumanTakeover = active
	return thread, nil
}

func (r *GormRepository) AttachContact(ctx context.Context, id uint, address, channel string) error {
	return r.db.WithContext(ctx).
		Model(&models.Thread{}).
		Where("id = ? AND external_user_phone IS NULL", id).
		Updates(map[string]any{"external_user_phone": address, "channel": channel}).Error
}

func (r *GormRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	if !message.Role.Valid() {
		return fmt.Errorf("invalid message role %q", message.Role)
	}
	return translate(r.db.WithContext(ctx).Create(message).Error)
}

func (r *GormRepository) ListMessages(ctx context.Context, threadID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormRepository) Usage(ctx context.Context, userID uint) (*Usage, error) {
	db := r.db.WithContext(ctx)
	usage := &Usage{}

	if err := db.Model(&models.Thread{}).Where("user_id = ?", userID).Count(&usage.Threads).Error; err != nil {
		return nil, err
	}

	owned := func() *gorm.DB {
		return db.Model(&models.Message{}).
			Joins("JOIN threads ON threads.id = messages.thread_id").
			Where("threads.user_id = ?", userID)
	}
	if err := owned().Where("messages.role = ?", models.RoleUser).Count(&usage.UserMessages).Error; err != nil {
		return nil, err
	}
	if err := owned().Where("messages.role = ?", models.RoleAssistant).Count(&usage.AssistantMessages).Error; err != nil {
		return nil, err
	}

	var last sql.NullTime
	if err := owned().Select("MAX(messages.created_at)").Row().Scan(&last); err != nil {
		return nil, err
	}
	if last.Valid {
		usage.LastActivity = &last.Time
	}
	return usage, nil
}

func (r *GormRepository) RecentMessages(ctx context.Context, userID uint, limit int) ([]RecentMessage, error) {
	var out []RecentMessage
	err := r.db.WithContext(ctx).
		Table("messages").
		Select("messages.id AS message_id, messages.thread_id, threads.title AS thread_title, " +
			"messages.role, messages.content, messages.is_human, messages.created_at").
		Joins("JOIN threads ON threads.id = messages.thread_id").
		Where("threads.user_id = ?", userID).
		Order("messages.created_at DESC, messages.id DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (r *GormRepository) RecentThreads(ctx context.Context, userID uint, limit int) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&threads).Error
	return threads, err
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
