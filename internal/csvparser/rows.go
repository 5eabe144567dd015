package csvparser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/gobd-datev-export/internal/locale"
	"github.com/ginjaninja78/gobd-datev-export/internal/types"
)

// columnLayout records where each canonical field sits in a row. When two
// headers normalize to the same field the first one wins and the other is
// kept as a passthrough column.
type columnLayout struct {
	canonical map[string]int
	extra     []extraColumn
}

type extraColumn struct {
	header string
	index  int
}

func newColumnLayout(headers []string, n *ColumnNormalizer) (*columnLayout, error) {
	normalized := n.NormalizeAll(headers)

	if missing := MissingColumns(normalized); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrMissingColumns, strings.Join(missing, ", "))
	}

	layout := &columnLayout{canonical: make(map[string]int, len(types.RequiredFields))}
	required := make(map[string]bool, len(types.RequiredFields))
	for _, f := range types.RequiredFields {
		required[f] = true
	}

	for i, name := range normalized {
		if _, taken := layout.canonical[name]; required[name] && !taken {
			layout.canonical[name] = i
			continue
		}
		layout.extra = append(layout.extra, extraColumn{header: headers[i], index: i})
	}

	return layout, nil
}

// extract builds a record from one data row and reports one RowError per
// failing field. The returned record is only meaningful when no errors are
// returned, apart from BookingText which is used for logging.
func (l *columnLayout) extract(rowIndex int, row []string, transform TransformFunc) (types.TransactionRecord, []types.RowError) {
	cell := func(field string, index int) string {
		value := ""
		if index < len(row) {
			value = strings.TrimSpace(row[index])
		}
		if transform != nil {
			value = transform(field, value)
		}
		return value
	}

	values := make(map[string]string, len(l.canonical))
	for field, index := range l.canonical {
		values[field] = cell(field, index)
	}

	var errs []types.RowError
	addErr := func(field, message string) {
		errs = append(errs, types.RowError{RowIndex: rowIndex, Field: field, Message: message})
	}

	for _, field := range types.RequiredFields {
		if values[field] == "" {
			addErr(field, fmt.Sprintf("Field '%s' is required but empty", field))
		}
	}

	if raw := values[types.FieldDate]; raw != "" {
		if _, err := locale.ParseDate(raw); err != nil {
			addErr(types.FieldDate, err.Error())
		}
	}

	var amount decimal.NullDecimal
	if raw := values[types.FieldAmount]; raw != "" {
		d, err := locale.ParseAmount(raw)
		if err != nil {
			addErr(types.FieldAmount, err.Error())
		} else {
			amount = decimal.NewNullDecimal(d)
		}
	}

	record := types.TransactionRecord{
		Date:           values[types.FieldDate],
		DocumentNumber: values[types.FieldDocumentNumber],
		BookingText:    values[types.FieldBookingText],
		Amount:         amount,
		Account:        values[types.FieldAccount],
		CounterAccount: values[types.FieldCounterAccount],
	}

	if len(l.extra) > 0 {
		record.ExtraFields = make(map[string]string, len(l.extra))
		for _, col := range l.extra {
			record.ExtraFields[col.header] = cell(col.header, col.index)
		}
	}

	return record, errs
}
