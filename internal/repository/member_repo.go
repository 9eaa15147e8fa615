package repository

import (
	"context"

	"github.com/lexcabinet/cabinet-backend/internal/common"
	"github.com/lexcabinet/cabinet-backend/internal/domain"
	"gorm.io/gorm"
)

// MemberRepository read-only access to the staff directory
type MemberRepository interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

// DisplayNames maps user ids to display names. Unknown ids are absent from the result.
func (r *memberRepository) DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return names, nil
	}

	var members []domain.Member
	err := r.db.WithContext(ctx).
		Select("user_id", "nickname", "name").
		Where("user_id IN ?", userIDs).
		Find(&members).Error
	if err != nil {
		return nil, common.WrapStorage("member names", err)
	}

	for i := range members {
		names[members[i].UserID] = members[i].DisplayName()
	}
	return names, nil
}
