package store

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"clinic-portal-server/internal/backend"
)

// remoteError maps database errors raised by constraints and stored
// procedures to backend rejections so their message reaches the user.
// Anything else is returned unchanged.
func remoteError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &backend.Error{
			Status:  pgStatus(pgErr.Code),
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		status := http.StatusBadRequest
		if myErr.Number == 1062 {
			status = http.StatusConflict
		}
		return &backend.Error{
			Status:  status,
			Code:    strconv.Itoa(int(myErr.Number)),
			Message: myErr.Message,
		}
	}

	return err
}

func pgStatus(code string) int {
	switch {
	case code == "23505":
		return http.StatusConflict
	case code == "42501":
		return http.StatusForbidden
	case len(code) >= 2 && code[:2] == "23":
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// wrap returns backend rejections as they are and annotates anything else with op.
func wrap(op string, err error) error {
	mapped := remoteError(err)
	if _, ok := backend.AsError(mapped); ok {
		return mapped
	}
	return fmt.Errorf("%s: %w", op, err)
}
