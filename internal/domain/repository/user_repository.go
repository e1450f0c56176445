package repository

import (
	"context"

	"arbitex/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListMediators(ctx context.Context) ([]*entity.User, error)
}
