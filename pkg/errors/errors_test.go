package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_NEW"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", meta.HTTPStatus)
	}
}

func TestGatewayErrorsHideDetails(t *testing.T) {
	meta := MetadataFor(CodeGateway)
	if meta.DetailsAllowed {
		t.Fatal("gateway errors must not expose details")
	}
	if meta.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", meta.HTTPStatus)
	}
}

func TestAsFindsWrappedError(t *testing.T) {
	typed := New(CodeMissingGatewayReference, "no gateway order")
	wrapped := fmt.Errorf("reconcile: %w", typed)

	got := As(wrapped)
	if got == nil || got.Code() != CodeMissingGatewayReference {
		t.Fatalf("expected typed error, got %v", got)
	}
	if !IsCode(wrapped, CodeMissingGatewayReference) {
		t.Fatal("expected IsCode to match")
	}
	if IsCode(stdErrors.New("plain"), CodeMissingGatewayReference) {
		t.Fatal("plain errors carry no code")
	}
}

func TestDumpCollectsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key", TableName: "orders"}
	err := Wrap(CodePersistence, pgErr, "insert order")

	dump := Dump(err)
	if dump.Code != CodePersistence {
		t.Fatalf("expected persistence code, got %s", dump.Code)
	}
	if dump.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", dump.HTTPStatus)
	}
	if dump.PG == nil || dump.PG.Code != "23505" || dump.PG.Constraint != "orders_order_number_key" || dump.PG.Table != "orders" {
		t.Fatalf("unexpected pg fields %+v", dump.PG)
	}
	if !dump.PG.UniqueViolation("orders_order_number_key") || dump.PG.UniqueViolation("orders_gateway_order_id_key") {
		t.Fatal("unique violation must match on constraint name")
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", dump.Chain)
	}
}

func TestPostgresDiagnosticsClassifiesTransientCodes(t *testing.T) {
	cases := map[string]bool{
		"40001": true,
		"40P01": true,
		"08006": true,
		"23505": false,
		"42P01": false,
	}
	for code, want := range cases {
		diag := PostgresDiagnostics(fmt.Errorf("update: %w", &pgconn.PgError{Code: code}))
		if got := diag.Transient(); got != want {
			t.Fatalf("Transient(%s) = %v, want %v", code, got, want)
		}
	}
	if PostgresDiagnostics(stdErrors.New("plain")) != nil {
		t.Fatal("plain errors carry no diagnostics")
	}
}

func TestPublicMessageFollowsMetadata(t *testing.T) {
	if got := New(CodeNotFound, "order not found").PublicMessage(); got != "order not found" {
		t.Fatalf("not found errors expose their message, got %q", got)
	}
	persist := Wrap(CodePersistence, stdErrors.New("pq: deadlock"), "update order status")
	if got := persist.PublicMessage(); got != MetadataFor(CodeGateway).PublicMessage {
		t.Fatalf("persistence and gateway failures share one public message, got %q", got)
	}
	if persist.WithDetails(map[string]string{"table": "orders"}).PublicDetails() != nil {
		t.Fatal("persistence details must stay internal")
	}
	if got := Newf(CodeValidation, "items[%d]: quantity must be positive", 2).PublicMessage(); got != "items[2]: quantity must be positive" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(New(CodeValidation, "bad")) {
		t.Fatal("validation errors are not retryable")
	}
	if !IsRetryable(fmt.Errorf("wrap: %w", New(CodeGateway, "timeout"))) {
		t.Fatal("gateway errors are retryable")
	}
	if !IsRetryable(stdErrors.New("plain")) {
		t.Fatal("untyped errors are treated as retryable internals")
	}
}
