package csvparser

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

const germanCSV = "Datum;Belegnummer;Buchungstext;Betrag;Konto;Gegenkonto;Kostenstelle\n" +
	"15.01.2024;RE-001;Büromaterial;1.190,00;4930;1200;KST1\n" +
	"16.01.2024;RE-002;Rückerstattung;-250,50;1200;8400;\n"

func TestParseGermanSemicolon(t *testing.T) {
	res, err := Parse([]byte(germanCSV), Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if res.EncodingUsed != EncodingUTF8 {
		t.Errorf("EncodingUsed = %q, want %q", res.EncodingUsed, EncodingUTF8)
	}
	if res.Delimiter != ";" {
		t.Errorf("Delimiter = %q, want %q", res.Delimiter, ";")
	}
	if res.TotalRows != 2 || res.ValidRows != 2 || res.InvalidRows != 0 {
		t.Fatalf("counts = %d/%d/%d, want 2/2/0", res.TotalRows, res.ValidRows, res.InvalidRows)
	}

	first := res.Rows[0]
	if first.Date != "15.01.2024" || first.DocumentNumber != "RE-001" || first.BookingText != "Büromaterial" {
		t.Errorf("first row = %+v", first)
	}
	if !first.Amount.Valid || !first.Amount.Decimal.Equal(decimal.RequireFromString("1190")) {
		t.Errorf("first amount = %v, want 1190", first.Amount)
	}
	if first.Account != "4930" || first.CounterAccount != "1200" {
		t.Errorf("accounts = %s/%s", first.Account, first.CounterAccount)
	}
	if first.ExtraFields["Kostenstelle"] != "KST1" {
		t.Errorf("ExtraFields = %v, want Kostenstelle=KST1", first.ExtraFields)
	}

	if !res.Rows[1].Amount.Decimal.Equal(decimal.RequireFromString("-250.50")) {
		t.Errorf("second amount = %v, want -250.50", res.Rows[1].Amount.Decimal)
	}
}

func TestParseWindows1252(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(germanCSV))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	res, err := Parse(encoded, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.EncodingUsed != EncodingWindows1252 {
		t.Errorf("EncodingUsed = %q, want %q", res.EncodingUsed, EncodingWindows1252)
	}
	if res.Rows[0].BookingText != "Büromaterial" {
		t.Errorf("BookingText = %q, want %q", res.Rows[0].BookingText, "Büromaterial")
	}
}

func TestParseUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, germanCSV...)
	res, err := Parse(data, Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.ValidRows != 2 {
		t.Errorf("ValidRows = %d, want 2", res.ValidRows)
	}
}

func TestParseCommaEnglish(t *testing.T) {
	input := "date,documentNumber,text,amount,account,counterAccount\n" +
		`15.01.2024,INV-1,Office supplies,"1,234.56",4930,1200` + "\n"

	res, err := Parse([]byte(input), Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.Delimiter != "," {
		t.Errorf("Delimiter = %q, want %q", res.Delimiter, ",")
	}
	if len(res.Rows) != 1 {
		t.Fatalf("len(Rows) = %d, want 1", len(res.Rows))
	}
	if !res.Rows[0].Amount.Decimal.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("amount = %s, want 1234.56", res.Rows[0].Amount.Decimal)
	}
}

func TestParseFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    Options
		wantErr error
	}{
		{name: "empty", input: "", wantErr: types.ErrEmptyInput},
		{name: "blank", input: " \n\n", wantErr: types.ErrEmptyInput},
		{name: "too large", input: germanCSV, opts: Options{MaxBytes: 10}, wantErr: types.ErrInputTooLarge},
		{name: "missing columns", input: "Datum;Belegnummer;Betrag\n01.01.2024;1;5\n", wantErr: types.ErrMissingColumns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse([]byte(tt.input), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Errorf("Parse() returned a result alongside a fatal error")
			}
		})
	}
}

func TestParseMissingColumnsNamesThem(t *testing.T) {
	_, err := Parse([]byte("Datum;Belegnummer;Betrag\n"), Options{})
	if err == nil {
		t.Fatal("Parse() error = nil")
	}
	for _, col := range []string{"bookingText", "account", "counterAccount"} {
		if !strings.Contains(err.Error(), col) {
			t.Errorf("error %q does not name %s", err, col)
		}
	}
}

func TestParseRowErrors(t *testing.T) {
	input := "Datum;Belegnummer;Buchungstext;Betrag;Konto;Gegenkonto\n" +
		"15.01.2024;RE-001;Miete;100,00;4210;1200\n" +
		"31.02.2024;RE-002;;abc;4210;1200\n" +
		";;;;;\n" +
		"15.1.24;RE-003;Strom;50;4240;1200\n" +
		"17.01.2024;RE-004;Porto;4,80;4910;1000\n"

	res, err := Parse([]byte(input), Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if res.TotalRows != 4 {
		t.Errorf("TotalRows = %d, want 4 (blank rows are skipped)", res.TotalRows)
	}
	if res.ValidRows != 2 || res.InvalidRows != 2 {
		t.Errorf("ValidRows/InvalidRows = %d/%d, want 2/2", res.ValidRows, res.InvalidRows)
	}
	if res.TotalRows != res.ValidRows+res.InvalidRows {
		t.Error("TotalRows should equal ValidRows + InvalidRows")
	}

	want := []types.RowError{
		{RowIndex: 1, Field: types.FieldBookingText, Message: "Field 'bookingText' is required but empty"},
		{RowIndex: 1, Field: types.FieldDate, Message: "Date '31.02.2024' is not a valid calendar date"},
		{RowIndex: 1, Field: types.FieldAmount, Message: "Amount 'abc' is not a valid number"},
		{RowIndex: 3, Field: types.FieldDate, Message: "Date '15.1.24' is not in DD.MM.YYYY format"},
	}
	if len(res.RowErrors) != len(want) {
		t.Fatalf("RowErrors = %+v, want %d entries", res.RowErrors, len(want))
	}
	for i := range want {
		if res.RowErrors[i] != want[i] {
			t.Errorf("RowErrors[%d] = %+v, want %+v", i, res.RowErrors[i], want[i])
		}
	}

	if res.Rows[0].DocumentNumber != "RE-001" || res.Rows[1].DocumentNumber != "RE-004" {
		t.Errorf("valid rows = %s, %s", res.Rows[0].DocumentNumber, res.Rows[1].DocumentNumber)
	}
}

func TestParseShortRowReportsMissingFields(t *testing.T) {
	input := "Datum;Belegnummer;Buchungstext;Betrag;Konto;Gegenkonto\n" +
		"15.01.2024;RE-001;Miete\n"

	res, err := Parse([]byte(input), Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(res.RowErrors) != 3 {
		t.Errorf("RowErrors = %+v, want 3 (amount, account, counterAccount)", res.RowErrors)
	}
}

func TestParseDuplicateCanonicalColumn(t *testing.T) {
	input := "Datum;Belegdatum;Belegnummer;Buchungstext;Betrag;Konto;Gegenkonto\n" +
		"15.01.2024;14.01.2024;RE-001;Miete;100;4210;1200\n"

	res, err := Parse([]byte(input), Options{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	row := res.Rows[0]
	if row.Date != "15.01.2024" {
		t.Errorf("Date = %q, want the first date column", row.Date)
	}
	if row.ExtraFields["Belegdatum"] != "14.01.2024" {
		t.Errorf("ExtraFields = %v, want the second date column passed through", row.ExtraFields)
	}
}

func TestParseTransformHook(t *testing.T) {
	input := "Datum;Belegnummer;Buchungstext;Betrag;Konto;Gegenkonto\n" +
		"15.01.2024;re-001;Miete;100;42;1200\n"

	opts := Options{
		Transform: func(field, value string) string {
			switch field {
			case types.FieldDocumentNumber:
				return strings.ToUpper(value)
			case types.FieldAccount:
				return strings.Repeat("0", 4-len(value)) + value
			}
			return value
		},
	}

	res, err := Parse([]byte(input), opts)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.Rows[0].DocumentNumber != "RE-001" || res.Rows[0].Account != "0042" {
		t.Errorf("row = %+v, want transformed document number and account", res.Rows[0])
	}
}

func TestParseLogsSanitizedBookingText(t *testing.T) {
	input := "Datum;Belegnummer;Buchungstext;Betrag;Konto;Gegenkonto\n" +
		"15.01.2024;RE-001;Erstattung an max@example.com;100;4210;1200\n"

	buf := &bytes.Buffer{}
	log := zerolog.New(buf).Level(zerolog.DebugLevel)

	res, err := Parse([]byte(input), Options{Logger: &log})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if res.Rows[0].BookingText != "Erstattung an max@example.com" {
		t.Errorf("returned BookingText = %q, want the raw text", res.Rows[0].BookingText)
	}
	if strings.Contains(buf.String(), "max@example.com") {
		t.Errorf("log output leaks the e-mail address: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "[EMAIL REDACTED]") {
		t.Errorf("log output should carry the masked text: %s", buf.String())
	}
}

func TestParseCustomNormalizer(t *testing.T) {
	n, err := NewColumnNormalizer(map[string]string{"Buchungsbetrag": types.FieldAmount})
	if err != nil {
		t.Fatalf("NewColumnNormalizer() error = %v", err)
	}

	input := "Datum;Belegnummer;Buchungstext;Buchungsbetrag;Konto;Gegenkonto\n" +
		"15.01.2024;RE-001;Miete;100;4210;1200\n"

	res, err := Parse([]byte(input), Options{Normalizer: n})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if res.ValidRows != 1 {
		t.Errorf("ValidRows = %d, want 1", res.ValidRows)
	}

	if _, err := Parse([]byte(input), Options{}); !errors.Is(err, types.ErrMissingColumns) {
		t.Errorf("default normalizer should not know the custom alias, got %v", err)
	}
}
