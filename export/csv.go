// Package export renders JSON rows and calls as CSV downloads.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"krom-analysis/models"
	"krom-analysis/tokenutil"
)

var ErrNoData = errors.New("no data provided")

// WriteJSON writes a JSON array of objects as CSV. Columns follow the key
// order of the first object; nulls and missing keys become empty cells and
// nested values are written as compact JSON.
func WriteJSON(w io.Writer, data json.RawMessage) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("data must be an array of objects: %w", err)
	}
	if len(rows) == 0 {
		return ErrNoData
	}
	headers, err := objectKeys(rows[0])
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	record := make([]string, len(headers))
	for i, raw := range rows {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		for j, h := range headers {
			record[j] = cell(obj[h])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("first row is not an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func cell(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || string(v) == "null" {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err == nil {
			return buf.String()
		}
	}
	return string(v)
}

var callColumns = []string{
	"krom_id", "ticker", "network", "contract_address", "group", "buy_timestamp",
	"analysis_score", "analysis_tier", "token_type", "legitimacy_factor",
	"x_analysis_score", "x_analysis_tier",
	"price_at_call", "current_price", "ath_price", "roi_percent", "ath_roi_percent",
	"is_imposter", "is_invalidated",
}

// WriteCalls writes calls with a fixed column set.
func WriteCalls(w io.Writer, calls []models.Call) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(callColumns); err != nil {
		return err
	}
	for _, c := range calls {
		err := cw.Write([]string{
			c.KromID, c.Ticker, c.Network, c.ContractAddress,
			tokenutil.GroupFor(c.RawData, c.Source),
			formatTime(c.BuyTimestamp),
			formatF(c.AnalysisScore), c.AnalysisTier, c.CombinedTokenType(), c.AnalysisLegitimacyFactor,
			formatF(c.XAnalysisScore), c.XAnalysisTier,
			formatF(c.PriceAtCall), formatF(c.CurrentPrice), formatF(c.ATHPrice),
			formatF(c.ROIPercent), formatF(c.ATHROIPercent),
			strconv.FormatBool(c.IsImposter), strconv.FormatBool(c.IsInvalidated),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatF(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
