package services

import (
	"errors"

	"consultancy-cms/models"
)

func isNotFound(err error) bool {
	var nf models.ErrorNotFound
	return errors.As(err, &nf)
}

// missing turns a not-found error into a nil result for point lookups.
func missing[T any](v *T, err error) (*T, error) {
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}
