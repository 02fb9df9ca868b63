package fns

import (
	"github.com/shopspring/decimal"
)

// Receipt is the part of the detail response the ledger needs.
type Receipt struct {
	User               string `json:"user"`
	UserINN            string `json:"userInn"`
	RetailPlaceAddress string `json:"retailPlaceAddress"`
	DateTime           string `json:"dateTime"`
	TotalSum           int64  `json:"totalSum"`
	Items              []Item `json:"items"`
}

// Item is a receipt line. Price and Sum are in kopecks.
type Item struct {
	Name     string          `json:"name"`
	Price    int64           `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Sum      int64           `json:"sum"`
}

// detailsResponse mirrors the envelope of the detail endpoint.
type detailsResponse struct {
	Document struct {
		Receipt *Receipt `json:"receipt"`
	} `json:"document"`
}
