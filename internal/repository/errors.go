package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNothingDeleted is returned when a guarded delete matched no row, for
// example a course that still has registrations.
var ErrNothingDeleted = errors.New("nothing deleted")

const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// failure, such as a second registration for the same (student, course).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
