package repository

import (
	"context"
	"errors"

	"github.com/sangkips/coopmart-api/internal/domain/entity"
	domainRepo "github.com/sangkips/coopmart-api/internal/domain/repository"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"gorm.io/gorm"
)

type memberRepository struct {
	db        *gorm.DB
	chunkSize int
}

// NewMemberRepository creates a new member repository writing imports in chunks of chunkSize
func NewMemberRepository(db *gorm.DB, chunkSize int) domainRepo.MemberRepository {
	return &memberRepository{db: db, chunkSize: chunkSize}
}

func (r *memberRepository) GetByID(ctx context.Context, id uint) (*entity.Member, error) {
	var member entity.Member
	err := r.db.WithContext(ctx).
		Preload("HomeBranch").Preload("Department").
		First(&member, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &member, err
}

func (r *memberRepository) GetByMemberNo(ctx context.Context, memberNo string) (*entity.Member, error) {
	var member entity.Member
	err := r.db.WithContext(ctx).
		Preload("HomeBranch").Preload("Department").
		First(&member, "member_no = ?", utils.NormalizeCode(memberNo)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &member, err
}

func (r *memberRepository) Upsert(ctx context.Context, members []entity.Member) (int, error) {
	w := gormChunkWriter[entity.Member]{
		db:       r.db,
		table:    entity.Member{}.TableName(),
		conflict: []string{"member_no"},
		updates:  []string{"name", "category", "savings", "loans", "global_limit", "home_branch_id", "department_id", "updated_at"},
		key: func(m *entity.Member) map[string]interface{} {
			return map[string]interface{}{"member_no": utils.NormalizeCode(m.MemberNo)}
		},
	}
	return writeInChunks[entity.Member](ctx, w, w.table, members, r.chunkSize)
}
