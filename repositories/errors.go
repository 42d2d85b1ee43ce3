package repositories

import (
	"errors"
	"fmt"

	"consultancy-cms/models"

	"gorm.io/gorm"
)

// translate maps GORM errors onto the model error kinds. Other errors are
// wrapped with op for context.
func translate(err error, op, entity, id string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.ErrorNotFound{Entity: entity, ID: id}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.ErrorConflict{Message: fmt.Sprintf("%s already exists", entity)}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return models.ErrorInvalidReference{Field: entity, Message: "references a row that does not exist"}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// pageOffset normalizes page/limit and returns the offset to use.
func pageOffset(page, limit, defLimit, maxLimit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, (page - 1) * limit
}
