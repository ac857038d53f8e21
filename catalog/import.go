/*
import.go - Bulk offer import from a delimited table

PURPOSE:
  Parses a CSV table of offers into AddOffer requests plus follow-up
  patches, then replays them through the normal Add/Set path. Parsing is a
  pure boundary: nothing touches the store until a row has fully validated,
  and each row commits independently (a bad row stops the import but leaves
  previously imported rows in place).

FORMAT:
  Header row (exact, order-sensitive):
    name,description,appIds,tags,imageUrl,time,properties,itemIds,prices
  List and object columns are JSON-encoded inline, e.g.
    appIds  -> ["appA","appB"]
    time    -> {"start":0,"end":1000,"intervalDuration":100,"intervalDelay":50}
    prices  -> [{"itemId":"i1","currencyId":"coins","amount":25}]
*/
package catalog

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/playforge/store-engine/auth"
)

var importHeader = []string{
	"name", "description", "appIds", "tags", "imageUrl", "time", "properties", "itemIds", "prices",
}

// ImportRow is one fully parsed and validated table row.
type ImportRow struct {
	Add        AddOffer
	ImageURL   string
	Time       TimeInfo
	Properties string
	Prices     []PriceInfo
}

type importPrice struct {
	AppIDs     []string        `json:"appIds"`
	ItemID     string          `json:"itemId"`
	CurrencyID string          `json:"currencyId"`
	Amount     decimal.Decimal `json:"amount"`
}

type importTime struct {
	Start            int64 `json:"start"`
	End              int64 `json:"end"`
	IntervalDuration int64 `json:"intervalDuration"`
	IntervalDelay    int64 `json:"intervalDelay"`
}

// ParseImport reads the whole table, validating every row. It returns either
// all rows or the first row error; no partial slices.
func ParseImport(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, invalidArgument("import table is empty")
	}
	if len(header) != len(importHeader) {
		return nil, invalidArgument(fmt.Sprintf("expected %d columns, got %d", len(importHeader), len(header)))
	}
	for i, col := range importHeader {
		if header[i] != col {
			return nil, invalidArgument(fmt.Sprintf("column %d must be %q, got %q", i, col, header[i]))
		}
	}

	var rows []ImportRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalidArgument(fmt.Sprintf("row %d: %v", line, err))
		}
		row, err := parseImportRow(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseImportRow(record []string) (ImportRow, error) {
	var row ImportRow
	row.Add.Name = record[0]
	row.Add.Description = record[1]
	row.ImageURL = record[4]

	if err := jsonColumn(record[2], "appIds", &row.Add.AppIDs); err != nil {
		return row, err
	}
	if err := jsonColumn(record[3], "tags", &row.Add.Tags); err != nil {
		return row, err
	}
	if record[5] != "" {
		var t importTime
		if err := jsonColumn(record[5], "time", &t); err != nil {
			return row, err
		}
		row.Time = TimeInfo(t)
	}
	row.Properties = record[6]
	if row.Properties != "" {
		if err := ValidateProperties(row.Properties); err != nil {
			return row, err
		}
	}
	if err := jsonColumn(record[7], "itemIds", &row.Add.ItemIDs); err != nil {
		return row, err
	}
	if record[8] != "" {
		var prices []importPrice
		if err := jsonColumn(record[8], "prices", &prices); err != nil {
			return row, err
		}
		for _, p := range prices {
			if p.ItemID == "" {
				return row, invalidArgument("prices: itemId must not be empty")
			}
			row.Prices = append(row.Prices, PriceInfo{
				AppIDs:     p.AppIDs,
				ItemID:     p.ItemID,
				CurrencyID: p.CurrencyID,
				Amount:     p.Amount,
			})
		}
	}
	return row, row.Add.Validate()
}

func jsonColumn(raw, name string, dest any) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return invalidArgument(fmt.Sprintf("%s: %v", name, err))
	}
	return nil
}

// Import parses the table and creates one offer per row. Admin-gated once
// up front; each row is a single atomic insert, so a failing row aborts the
// rest of the import without rolling back earlier rows. Returns the offers
// created, including any created before an error.
func (s *Service) Import(ctx context.Context, caller auth.Caller, r io.Reader) ([]Offer, error) {
	if err := s.guard.RequireAdmin(caller); err != nil {
		return nil, err
	}
	rows, err := ParseImport(r)
	if err != nil {
		return nil, err
	}

	var created []Offer
	for i, row := range rows {
		offer := row.offer()
		offer.ID = uuid.NewString()
		offer.CreatedAt = s.now()
		if err := s.store.Insert(ctx, offer); err != nil {
			return created, fmt.Errorf("import row %d: %w", i+2, err)
		}
		created = append(created, offer)
	}
	return created, nil
}

// offer assembles the full record described by the row, id and timestamp
// left for the caller.
func (r ImportRow) offer() Offer {
	properties := r.Properties
	if properties == "" {
		properties = "{}"
	}
	return Offer{
		AppIDs:      DedupeStrings(r.Add.AppIDs),
		ItemIDs:     append([]string(nil), r.Add.ItemIDs...),
		Name:        r.Add.Name,
		Description: r.Add.Description,
		ImageURL:    r.ImageURL,
		Tags:        append([]string(nil), r.Add.Tags...),
		Prices:      append([]PriceInfo(nil), r.Prices...),
		Time:        r.Time,
		Properties:  properties,
	}
}
