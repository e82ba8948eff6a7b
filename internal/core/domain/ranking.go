package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	rankingTupleSeparator = "|"
	rankingFieldSeparator = ":"
)

// ProductSales aggregates order lines of one product over a time window.
type ProductSales struct {
	ProductID int64           `json:"product_id"`
	UnitsSold int64           `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// EncodeRanking serialises entries as productId:unitsSold:revenue joined by "|".
func EncodeRanking(entries []ProductSales) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%d%s%d%s%s",
			e.ProductID, rankingFieldSeparator, e.UnitsSold, rankingFieldSeparator, e.Revenue.StringFixed(2)))
	}
	return strings.Join(parts, rankingTupleSeparator)
}

func DecodeRanking(s string) ([]ProductSales, error) {
	if s == "" {
		return nil, nil
	}
	tuples := strings.Split(s, rankingTupleSeparator)
	entries := make([]ProductSales, 0, len(tuples))
	for _, t := range tuples {
		fields := strings.Split(t, rankingFieldSeparator)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed ranking tuple %q", t)
		}
		productID, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse product id %q: %w", fields[0], err)
		}
		units, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse units %q: %w", fields[1], err)
		}
		revenue, err := decimal.NewFromString(fields[2])
		if err != nil {
			return nil, fmt.Errorf("parse revenue %q: %w", fields[2], err)
		}
		entries = append(entries, ProductSales{ProductID: productID, UnitsSold: units, Revenue: revenue})
	}
	return entries, nil
}
