package repository

import (
	"errors"
	"time"

	"github.com/TPAIN22/nubian-storefront/internal/app/model"
	"github.com/TPAIN22/nubian-storefront/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrQuantityLimit = errors.New("cart line quantity limit exceeded")

// CartRepository stores the cart lines of each session
type CartRepository interface {
	Create(line *model.CartLine) error
	// Merge adds line to the session's line with the same key, creating it
	// when absent. It fails with ErrQuantityLimit, changing nothing, when the
	// merged quantity would exceed limit.
	Merge(line *model.CartLine, limit int) (*model.CartLine, error)
	FindBySession(sessionID string) ([]model.CartLine, error)
	FindByLineKey(sessionID, lineKey string) (*model.CartLine, error)
	Update(line *model.CartLine) error
	Delete(id uint) error
	DeleteBySession(sessionID string) error
	ReplaceSession(sessionID string, lines []model.CartLine) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) Create(line *model.CartLine) error {
	logger.Debug("Creating cart line in database", map[string]interface{}{
		"session_id": line.SessionID,
		"line_key":   line.LineKey,
		"quantity":   line.Quantity,
	})

	if err := r.db.Create(line).Error; err != nil {
		logger.Error("Failed to create cart line in database", err, map[string]interface{}{
			"session_id": line.SessionID,
			"line_key":   line.LineKey,
		})
		return err
	}

	logger.Debug("Cart line created in database", map[string]interface{}{
		"cart_line_id": line.ID,
		"session_id":   line.SessionID,
	})
	return nil
}

func (r *cartRepository) Merge(line *model.CartLine, limit int) (*model.CartLine, error) {
	logger.Debug("Merging cart line in database", map[string]interface{}{
		"session_id": line.SessionID,
		"line_key":   line.LineKey,
		"quantity":   line.Quantity,
	})

	updates := map[string]interface{}{
		"quantity":   gorm.Expr("cart_lines.quantity + ?", line.Quantity),
		"unit_price": line.UnitPrice,
		"variant_id": line.VariantID,
		"updated_at": time.Now(),
	}
	if line.RemoteID != "" {
		updates["remote_id"] = line.RemoteID
	}

	var merged model.CartLine
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// the upsert locks the row, so concurrent merges of one key serialize
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "line_key"}},
			DoUpdates: clause.Assignments(updates),
		}).Create(line).Error
		if err != nil {
			return err
		}

		if err := tx.Where("session_id = ? AND line_key = ?", line.SessionID, line.LineKey).
			First(&merged).Error; err != nil {
			return err
		}
		if merged.Quantity > limit {
			return ErrQuantityLimit
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrQuantityLimit) {
			logger.Debug("Cart line merge exceeds limit", map[string]interface{}{
				"session_id": line.SessionID,
				"line_key":   line.LineKey,
				"limit":      limit,
			})
			return nil, err
		}
		logger.Error("Failed to merge cart line in database", err, map[string]interface{}{
			"session_id": line.SessionID,
			"line_key":   line.LineKey,
		})
		return nil, err
	}
	return &merged, nil
}

func (r *cartRepository) FindBySession(sessionID string) ([]model.CartLine, error) {
	logger.Debug("Finding cart lines by session in database", map[string]interface{}{
		"session_id": sessionID,
	})

	var lines []model.CartLine
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&lines).Error
	if err != nil {
		logger.Error("Failed to find cart lines by session in database", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return nil, err
	}

	logger.Debug("Cart lines found by session in database", map[string]interface{}{
		"session_id": sessionID,
		"count":      len(lines),
	})
	return lines, nil
}

// FindByLineKey returns gorm.ErrRecordNotFound when the session has no such line
func (r *cartRepository) FindByLineKey(sessionID, lineKey string) (*model.CartLine, error) {
	var line model.CartLine
	err := r.db.Where("session_id = ? AND line_key = ?", sessionID, lineKey).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Debug("Cart line not found", map[string]interface{}{
				"session_id": sessionID,
				"line_key":   lineKey,
			})
			return nil, err
		}
		logger.Error("Failed to find cart line by key in database", err, map[string]interface{}{
			"session_id": sessionID,
			"line_key":   lineKey,
		})
		return nil, err
	}
	return &line, nil
}

func (r *cartRepository) Update(line *model.CartLine) error {
	logger.Debug("Updating cart line in database", map[string]interface{}{
		"cart_line_id": line.ID,
		"quantity":     line.Quantity,
	})

	if err := r.db.Save(line).Error; err != nil {
		logger.Error("Failed to update cart line in database", err, map[string]interface{}{
			"cart_line_id": line.ID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) Delete(id uint) error {
	logger.Debug("Deleting cart line from database", map[string]interface{}{
		"cart_line_id": id,
	})

	if err := r.db.Delete(&model.CartLine{}, id).Error; err != nil {
		logger.Error("Failed to delete cart line from database", err, map[string]interface{}{
			"cart_line_id": id,
		})
		return err
	}
	return nil
}

func (r *cartRepository) DeleteBySession(sessionID string) error {
	logger.Debug("Deleting cart lines by session from database", map[string]interface{}{
		"session_id": sessionID,
	})

	if err := r.db.Where("session_id = ?", sessionID).Delete(&model.CartLine{}).Error; err != nil {
		logger.Error("Failed to delete cart lines by session from database", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return err
	}
	return nil
}

// ReplaceSession swaps the whole cart of a session in one transaction. Used
// after reconciling with the cart backend.
func (r *cartRepository) ReplaceSession(sessionID string, lines []model.CartLine) error {
	logger.Debug("Replacing cart lines of session", map[string]interface{}{
		"session_id": sessionID,
		"count":      len(lines),
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.CartLine{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].ID = 0
			lines[i].SessionID = sessionID
			if err := tx.Create(&lines[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to replace cart lines of session", err, map[string]interface{}{
			"session_id": sessionID,
		})
		return err
	}
	return nil
}
