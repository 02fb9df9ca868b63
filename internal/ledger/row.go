package ledger

import (
	"github.com/ginjaninja78/receipt-ledger/internal/fns"
	"github.com/ginjaninja78/receipt-ledger/internal/qrcode"
	"github.com/shopspring/decimal"
)

// Column names of the ledger CSV, in file order. The composite key columns
// come first.
const (
	ColMonth      = "month"
	ColDate       = "date"
	ColReceiptSum = "receipt_sum"
	ColName       = "name"
	ColCategory   = "category"
	ColPrice      = "price"
	ColQuantity   = "quantity"
	ColSum        = "sum"
)

// Columns lists the ledger columns in file order.
var Columns = []string{
	ColMonth, ColDate, ColReceiptSum,
	ColName, ColCategory, ColPrice, ColQuantity, ColSum,
}

// Row is one receipt line item. Money fields are kopecks.
type Row struct {
	Month      string
	Date       string
	ReceiptSum int64

	Name     string
	Category string
	Price    int64
	Quantity decimal.Decimal
	Sum      int64
}

// Key identifies the receipt a row belongs to. It is assumed unique per
// receipt: two receipts with the same date and total in the same month are
// indistinguishable.
type Key struct {
	Month      string
	Date       string
	ReceiptSum string
}

// KeyOf returns the composite key of a row.
func (f Format) KeyOf(r Row) Key {
	return Key{Month: r.Month, Date: r.Date, ReceiptSum: f.Amount(r.ReceiptSum)}
}

// KeyOfCode returns the composite key a receipt would be stored under.
func (f Format) KeyOfCode(code *qrcode.Code) Key {
	return Key{
		Month:      f.Month(code.Time),
		Date:       f.Date(code.Time),
		ReceiptSum: f.Amount(code.Sum),
	}
}

// Record renders the row as CSV fields in Columns order.
func (f Format) Record(r Row) []string {
	return []string{
		r.Month,
		r.Date,
		f.Amount(r.ReceiptSum),
		r.Name,
		r.Category,
		f.Amount(r.Price),
		r.Quantity.StringFixed(3),
		f.Amount(r.Sum),
	}
}

// FromReceipt flattens a fetched receipt into ledger rows. The date, month
// and receipt total come from the QR code; categories are looked up by name.
func (f Format) FromReceipt(code *qrcode.Code, receipt *fns.Receipt, categories CategoryMap) []Row {
	rows := make([]Row, 0, len(receipt.Items))
	month, date := f.Month(code.Time), f.Date(code.Time)

	for _, item := range receipt.Items {
		rows = append(rows, Row{
			Month:      month,
			Date:       date,
			ReceiptSum: code.Sum,
			Name:       item.Name,
			Category:   categories[item.Name],
			Price:      item.Price,
			Quantity:   item.Quantity,
			Sum:        item.Sum,
		})
	}

	return rows
}
