// Package reports builds spreadsheet exports shared by the admin API and
// the operations CLI.
package reports

import (
	"github.com/tealeg/xlsx"

	"tradepost/internal/domain"
)

// OrdersSheet renders the order book into a single-sheet workbook.
func OrdersSheet(orders []domain.Order) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}

	headerRow := sheet.AddRow()
	for _, col := range []string{"ID", "Buyer", "Status", "TotalCents", "Currency", "CreatedAt"} {
		headerRow.AddCell().SetValue(col)
	}
	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(o.BuyerID)
		row.AddCell().SetValue(o.Status)
		row.AddCell().SetValue(o.TotalCents)
		row.AddCell().SetValue(o.Currency)
		row.AddCell().SetValue(o.CreatedAt)
	}
	return file, nil
}
