package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gobd-datev-export/internal/converter"
	"github.com/ginjaninja78/gobd-datev-export/internal/locale"
	"github.com/ginjaninja78/gobd-datev-export/internal/logger"
	"github.com/ginjaninja78/gobd-datev-export/internal/pii"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
	"github.com/ginjaninja78/gobd-datev-export/internal/validation"
)

// multipartOverhead is the allowance for multipart boundaries and headers
// on top of the file size limit.
const multipartOverhead = 1 << 20

// =============================================================================
// REQUEST PAYLOADS
// =============================================================================

// recordPayload is a transaction record as sent by clients. The amount may
// be a JSON number or a German or English formatted string.
type recordPayload struct {
	Date           string            `json:"date"`
	DocumentNumber string            `json:"documentNumber"`
	BookingText    string            `json:"bookingText"`
	Amount         json.RawMessage   `json:"amount"`
	Account        string            `json:"account"`
	CounterAccount string            `json:"counterAccount"`
	ExtraFields    map[string]string `json:"extraFields,omitempty"`
}

// toRecord converts the payload. A null, absent or blank amount yields a
// record without amount, which the validator reports.
func (p recordPayload) toRecord() (types.TransactionRecord, error) {
	rec := types.TransactionRecord{
		Date:           p.Date,
		DocumentNumber: p.DocumentNumber,
		BookingText:    p.BookingText,
		Account:        p.Account,
		CounterAccount: p.CounterAccount,
		ExtraFields:    p.ExtraFields,
	}

	raw := bytes.TrimSpace(p.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return rec, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return rec, err
		}
		if strings.TrimSpace(text) == "" {
			return rec, nil
		}
	}

	amount, err := locale.ParseAmount(text)
	if err != nil {
		return rec, err
	}
	rec.Amount = decimal.NullDecimal{Decimal: amount, Valid: true}
	return rec, nil
}

type invoicePayload struct {
	Record                 recordPayload `json:"record"`
	PreviousDocumentNumber string        `json:"previousDocumentNumber,omitempty"`
}

type sanitizeRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode,omitempty"`
}

type sanitizeResponse struct {
	SanitizedText string       `json:"sanitizedText"`
	Entities      []pii.Entity `json:"entitiesFound"`
	EntityCount   int          `json:"entityCount"`
	ModeUsed      pii.Mode     `json:"modeUsed"`
}

type healthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: s.version,
		Services: map[string]string{
			"csv_parser":     "ok",
			"gobd_validator": "ok",
			"datev_export":   "ok",
		},
	})
}

// handleParseCSV parses an uploaded CSV or XLSX file. Workbooks are
// recognised by the uploaded file name or the "filename" query parameter.
func (s *Server) handleParseCSV(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.readUpload(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}

	var res *types.ParseResult
	if converter.IsXLSX(name) {
		res, err = s.conv.ParseXLSX(bytes.NewReader(data))
	} else {
		res, err = s.conv.ParseCSV(data)
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().
		Int("rows", res.TotalRows).
		Int("valid", res.ValidRows).
		Int("invalid", res.InvalidRows).
		Str("encoding", res.EncodingUsed).
		Msg("input parsed")

	writeJSON(w, http.StatusOK, res)
}

// handlePrepare validates a JSON array of records.
func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var payload []recordPayload
	if err := s.decodeJSON(w, r, &payload); err != nil {
		fail(w, r, err)
		return
	}

	records := make([]types.TransactionRecord, 0, len(payload))
	for i, p := range payload {
		rec, err := p.toRecord()
		if err != nil {
			fail(w, r, fmt.Errorf("%w: record %d: %v", errUnprocessable, i, err))
			return
		}
		records = append(records, rec)
	}

	res, err := s.conv.ValidateGoBD(records)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleExport serializes an export request and returns the EXTF file as an
// attachment.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req types.ExportRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	out, err := s.conv.ExportDatev(req)
	if err != nil {
		fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset="+out.Encoding)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.FileName}))
	w.Header().Set("X-Datev-Rows", fmt.Sprint(out.Rows))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

// handleValidateInvoice checks a single record on entry.
func (s *Server) handleValidateInvoice(w http.ResponseWriter, r *http.Request) {
	var payload invoicePayload
	if err := s.decodeJSON(w, r, &payload); err != nil {
		fail(w, r, err)
		return
	}

	rec, err := payload.Record.toRecord()
	if err != nil {
		fail(w, r, fmt.Errorf("%w: %v", errUnprocessable, err))
		return
	}

	writeJSON(w, http.StatusOK, s.conv.ValidateInvoice(validation.InvoiceCheck{
		Record:                 rec,
		PreviousDocumentNumber: payload.PreviousDocumentNumber,
	}))
}

// handleSanitize replaces personal data in free text. Tokenize mode gets a
// token store of its own for this request; nothing survives the response.
func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	var req sanitizeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}

	mode := s.piiMode
	if m := strings.ToLower(strings.TrimSpace(req.Mode)); m != "" {
		mode = pii.ParseMode(m)
		if string(mode) != m {
			fail(w, r, fmt.Errorf("%w: unknown mode %q", errBadRequest, req.Mode))
			return
		}
	}

	tokens := pii.NewCacheTokenStore(pii.DefaultTokenTTL)
	text, entities := pii.NewRegexSanitizer(tokens).SanitizeDetailed(req.Text, mode)
	if entities == nil {
		entities = []pii.Entity{}
	}

	log := logger.FromContext(r.Context())
	log.Info().
		Str("mode", string(mode)).
		Int("length", len(req.Text)).
		Int("entities", len(entities)).
		Int("tokens", tokens.Len()).
		Msg("text sanitized")

	writeJSON(w, http.StatusOK, sanitizeResponse{
		SanitizedText: text,
		Entities:      entities,
		EntityCount:   len(entities),
		ModeUsed:      mode,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// readUpload returns the uploaded bytes and the file name, if any. Multipart
// requests must carry the file in the "file" field; anything else is read
// as the raw body. The parsers enforce the size limit on what is returned.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(io.LimitReader(r.Body, s.maxBytes+1))
		if err != nil {
			return nil, "", fmt.Errorf("failed to read body: %w", err)
		}
		return data, r.URL.Query().Get("filename"), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", fmt.Errorf("%w: limit is %d bytes", types.ErrInputTooLarge, s.maxBytes)
		}
		return nil, "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", fmt.Errorf("%w: multipart field 'file' is required", errBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	return data, header.Filename, nil
}

// decodeJSON decodes a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", types.ErrInputTooLarge, s.maxBytes)
		}
		if errors.Is(err, io.EOF) {
			return types.ErrEmptyInput
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}
