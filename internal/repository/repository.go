package repository

import (
	"errors"

	"github.com/Masterminds/squirrel"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("record not found")

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
