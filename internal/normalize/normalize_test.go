package normalize

import (
	"errors"
	"testing"
	"time"

	csvparser "github.com/Ananya0222/entity-data-processor/internal/parser/csv"
	"github.com/Ananya0222/entity-data-processor/internal/records"
	"github.com/Ananya0222/entity-data-processor/internal/schema"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testContract() schema.Contract {
	return schema.Contract{
		Name:             "entity",
		LastUpdateColumn: "last_update_date",
		Fields: []schema.Field{
			{Name: "customer_id", Type: "int", Key: true},
			{Name: "corporation_name", Type: "text", Nullable: true},
			{Name: "registration_number", Type: "int", Nullable: true},
			{Name: "date_of_incorporation", Type: "date", Nullable: true},
			{Name: "create_date", Type: "date", FillNow: true},
			{Name: "last_update_date", Type: "date"},
		},
	}
}

func newTestNormalizer() *Normalizer {
	return New(testContract(), func() time.Time { return testNow })
}

func row(vals map[string]any) records.Record {
	r := records.Record{csvparser.LineKey: 7}
	for k, v := range vals {
		r[k] = v
	}
	return r
}

func TestNormalizeHappyPath(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	rec, err := n.Normalize(row(map[string]any{
		"customer_id":           "42",
		"corporation_name":      "  acme corp ",
		"registration_number":   "1001",
		"date_of_incorporation": "2001-05-20",
		"last_update_date":      "2024-03-01 10:30:00",
	}), "a.csv")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if rec.Key != "42" {
		t.Errorf("Key = %q, want 42", rec.Key)
	}
	if got := rec.Attrs["customer_id"]; got != int64(42) {
		t.Errorf("customer_id = %#v, want int64(42)", got)
	}
	if got := rec.Attrs["corporation_name"]; got != "ACME CORP" {
		t.Errorf("corporation_name = %#v, want uppercased/trimmed", got)
	}
	if got := rec.Attrs["date_of_incorporation"].(time.Time); !got.Equal(time.Date(2001, 5, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date_of_incorporation = %v", got)
	}
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	if !rec.LastUpdate.Equal(want) {
		t.Errorf("LastUpdate = %v, want %v", rec.LastUpdate, want)
	}
	if rec.File != "a.csv" || rec.Line != 7 {
		t.Errorf("provenance = %s:%d", rec.File, rec.Line)
	}
}

func TestNormalizeFillNowAndMissingLastUpdate(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	rec, err := n.Normalize(row(map[string]any{"customer_id": "1"}), "a.csv")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if got := rec.Attrs["create_date"].(time.Time); !got.Equal(testNow) {
		t.Errorf("create_date = %v, want clock value", got)
	}
	if !rec.LastUpdate.Equal(testNow) {
		t.Errorf("LastUpdate = %v, want clock value", rec.LastUpdate)
	}
	if rec.Attrs["date_of_incorporation"] != nil {
		t.Errorf("nullable date = %#v, want nil", rec.Attrs["date_of_incorporation"])
	}
}

func TestNormalizeUnparsableDateFallsBackToClock(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	rec, err := n.Normalize(row(map[string]any{
		"customer_id":      "1",
		"last_update_date": "not-a-date",
	}), "a.csv")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !rec.LastUpdate.Equal(testNow) {
		t.Errorf("LastUpdate = %v, want clock value", rec.LastUpdate)
	}
}

func TestNormalizeDateLayouts(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-03-01 10:30:00", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"03/01/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"01.03.2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		rec, err := n.Normalize(row(map[string]any{
			"customer_id":           "1",
			"date_of_incorporation": c.in,
		}), "a.csv")
		if err != nil {
			t.Fatalf("Normalize(%q): %v", c.in, err)
		}
		if got := rec.Attrs["date_of_incorporation"].(time.Time); !got.Equal(c.want) {
			t.Errorf("date %q = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNormalizeRejectsMissingKey(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	_, err := n.Normalize(row(map[string]any{"corporation_name": "acme"}), "a.csv")

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if ve.Column != "customer_id" || ve.File != "a.csv" || ve.Line != 7 {
		t.Fatalf("ValidationError = %+v", ve)
	}
}

func TestNormalizeRejectsUnparsableKey(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	_, err := n.Normalize(row(map[string]any{"customer_id": "abc"}), "a.csv")

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if ve.Column != "customer_id" {
		t.Fatalf("ValidationError column = %q", ve.Column)
	}
}

func TestNormalizeNullableIntToleratesGarbage(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	rec, err := n.Normalize(row(map[string]any{
		"customer_id":         "1",
		"registration_number": "n/a",
	}), "a.csv")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.Attrs["registration_number"] != nil {
		t.Fatalf("registration_number = %#v, want nil", rec.Attrs["registration_number"])
	}
}
