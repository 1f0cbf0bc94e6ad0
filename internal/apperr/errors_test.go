package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestFromDB(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"no rows", pgx.ErrNoRows, KindNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), KindNotFound},
		{"deadline", context.DeadlineExceeded, KindUnavailable},
		{"unique", &pgconn.PgError{Code: "23505"}, KindConflict},
		{"fk", &pgconn.PgError{Code: "23503"}, KindValidation},
		{"other pg", &pgconn.PgError{Code: "42P01"}, KindInternal},
		{"plain", errors.New("boom"), KindInternal},
		{"already categorized", NotFound("incident not found"), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDB("op", tt.err)
			if KindOf(got) != tt.want {
				t.Fatalf("got kind %s want %s (%v)", KindOf(got), tt.want, got)
			}
		})
	}

	if FromDB("op", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}

func TestPublicMessage_HidesInternals(t *testing.T) {
	t.Parallel()

	err := Wrap(KindInternal, "storage failure", errors.New("password=secret"))
	if got := PublicMessage(err); got != "internal error" {
		t.Fatalf("leaked message %q", got)
	}
	if got := PublicMessage(errors.New("raw")); got != "internal error" {
		t.Fatalf("leaked message %q", got)
	}
	if got := PublicMessage(Validation("latitude out of range")); got != "latitude out of range" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	if HTTPStatus(KindConflict) != http.StatusConflict {
		t.Fatal("conflict should map to 409")
	}
	if HTTPStatus(KindIntegration) != http.StatusBadGateway {
		t.Fatal("integration should map to 502")
	}
	if HTTPStatus(Kind("weird")) != http.StatusInternalServerError {
		t.Fatal("unknown kind should map to 500")
	}
}
