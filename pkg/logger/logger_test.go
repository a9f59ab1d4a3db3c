package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsAreCarriedIntoEntries(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})

	ctx := logg.WithOrderID(context.Background(), "order-1")
	ctx = logg.WithGatewayOrderID(ctx, "gw-1")
	logg.Error(ctx, "status update failed", errors.New("boom"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["service"] != "api" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
	if entry["order_id"] != "order-1" || entry["gateway_order_id"] != "gw-1" {
		t.Fatalf("expected context fields, got %v", entry)
	}
	if entry["error"] != "boom" {
		t.Fatalf("expected error field, got %v", entry["error"])
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatal("expected stack on error entries")
	}
}

func TestLevelFiltersLowerEntries(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf, Level: "warn"})

	logg.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info entry to be filtered, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"unknown": zerolog.InfoLevel,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestCustomerContactFieldsAreMasked(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"customer_email": "ana@example.com",
		"customer_phone": "+34600111222",
		"order_number":   "LC-1",
	})
	logg.Info(ctx, "order created")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["customer_email"] != "a***@example.com" {
		t.Fatalf("expected masked email, got %v", entry["customer_email"])
	}
	if entry["customer_phone"] != "+***" {
		t.Fatalf("expected masked phone, got %v", entry["customer_phone"])
	}
	if entry["order_number"] != "LC-1" {
		t.Fatalf("unmasked fields must pass through, got %v", entry["order_number"])
	}
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Ñandú 12":        "Ñ***",
		"ana@example.com": "a***@example.com",
	}
	for in, want := range cases {
		if got := Mask(in); got != want {
			t.Fatalf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnsetLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})

	logg.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug entry to be filtered by default, got %s", buf.String())
	}
	logg.Info(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatal("expected info entry at the default level")
	}
}
