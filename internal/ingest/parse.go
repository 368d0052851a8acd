package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pulse/internal/core"
)

// quarterDocument mirrors the subset of a quarter file that is read.
// Entries stay raw so that one malformed entry does not fail the whole file.
type quarterDocument struct {
	Data *struct {
		TransactionData []json.RawMessage `json:"transactionData"`
	} `json:"data"`
}

type transactionEntry struct {
	Name               *string             `json:"name"`
	PaymentInstruments []paymentInstrument `json:"paymentInstruments"`
}

type paymentInstrument struct {
	Type   string       `json:"type"`
	Count  *json.Number `json:"count"`
	Amount *json.Number `json:"amount"`
}

var (
	errMissingName        = errors.New("missing name")
	errMissingInstruments = errors.New("missing payment instruments")
	errMissingCount       = errors.New("missing count")
	errMissingAmount      = errors.New("missing amount")
	errInvalidCount       = errors.New("count is not a non-negative integer")
	errInvalidAmount      = errors.New("amount is not a non-negative number")
)

// fileKey identifies the (state, year, quarter) a file belongs to.
type fileKey struct {
	State   string
	Year    int
	Quarter int
}

// parseQuarterFile decodes one quarter file. It returns the well-formed
// records and the skipped entries; hasData is false when the document has no
// data.transactionData list.
func parseQuarterFile(body []byte, key fileKey) (records []core.TransactionRecord, skipped []EntrySkip, hasData bool, err error) {
	var doc quarterDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, nil, false, fmt.Errorf("decode json: %w", err)
	}
	if doc.Data == nil || doc.Data.TransactionData == nil {
		return nil, nil, false, nil
	}

	for i, raw := range doc.Data.TransactionData {
		rec, name, err := parseEntry(raw, key)
		if err != nil {
			skipped = append(skipped, EntrySkip{Index: i, Name: name, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, true, nil
}

// parseEntry flattens one entry using only its first payment instrument.
func parseEntry(raw json.RawMessage, key fileKey) (core.TransactionRecord, string, error) {
	var e transactionEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return core.TransactionRecord{}, "", fmt.Errorf("decode entry: %w", err)
	}
	if e.Name == nil || strings.TrimSpace(*e.Name) == "" {
		return core.TransactionRecord{}, "", errMissingName
	}
	name := *e.Name
	if len(e.PaymentInstruments) == 0 {
		return core.TransactionRecord{}, name, errMissingInstruments
	}
	first := e.PaymentInstruments[0]
	if first.Count == nil {
		return core.TransactionRecord{}, name, errMissingCount
	}
	if first.Amount == nil {
		return core.TransactionRecord{}, name, errMissingAmount
	}
	count, err := parseCount(*first.Count)
	if err != nil {
		return core.TransactionRecord{}, name, err
	}
	amount, err := first.Amount.Float64()
	if err != nil || amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return core.TransactionRecord{}, name, errInvalidAmount
	}

	return core.TransactionRecord{
		State:           key.State,
		Year:            key.Year,
		Quarter:         key.Quarter,
		TransactionType: name,
		Count:           count,
		Amount:          amount,
	}, name, nil
}

func parseCount(n json.Number) (int64, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		if i < 0 {
			return 0, errInvalidCount
		}
		return i, nil
	}
	// Some exports write integral counts as 1.2e3 or 1200.0.
	f, err := n.Float64()
	if err != nil || f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, errInvalidCount
	}
	return int64(f), nil
}
