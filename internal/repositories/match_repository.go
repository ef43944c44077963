package repositories

import (
	"context"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/pkg/errors"
	"gorm.io/gorm"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// CreateMatch persists an accepted pairing
func (r *MatchRepository) CreateMatch(ctx context.Context, match *models.Match) error {
	if match.Status == "" {
		match.Status = models.MatchStatusPending
	}
	if err := r.db.WithContext(ctx).Create(match).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create match")
	}
	return nil
}

// GetMatchByID retrieves a match by ID
func (r *MatchRepository) GetMatchByID(ctx context.Context, id uint) (*models.Match, error) {
	var match models.Match
	if err := r.db.WithContext(ctx).First(&match, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.New(errors.ErrCodeNotFound, "match not found")
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get match")
	}
	return &match, nil
}

// ListMatches returns match history, newest first
func (r *MatchRepository) ListMatches(ctx context.Context, filters *models.MatchFilters) ([]models.Match, error) {
	query := r.db.WithContext(ctx).Model(&models.Match{}).Order("created_at DESC")

	if filters != nil {
		if filters.UserID != "" {
			query = query.Where("user_a_id = ? OR user_b_id = ?", filters.UserID, filters.UserID)
		}
		if filters.DebateType != "" {
			query = query.Where("debate_type = ?", filters.DebateType)
		}
		if filters.Limit > 0 {
			query = query.Limit(filters.Limit)
		}
		if filters.Offset > 0 {
			query = query.Offset(filters.Offset)
		}
	}

	var matches []models.Match
	if err := query.Find(&matches).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list matches")
	}
	return matches, nil
}
