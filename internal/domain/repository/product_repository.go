package repository

import (
	"context"

	"arbitex/internal/domain/entity"
)

type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}
