package boardsync

import (
	"bitbucket.org/mmdatafocus/ledgersync_backend/models"
)

// Column ids on the remote board. The mapping from invoice fields to columns
// is fixed; changing a column on the board means changing it here too.
const (
	columnCustomerName = "text_mknkr94f"
	columnOrderRef     = "text_mknk2qt"
	columnDocumentDate = "date4"
	columnDueDate      = "date_mknkfx2h"
	columnCurrency     = "text_mkq36w8v"
	columnExchangeRate = "numeric_mknkwc1"
	columnAmount       = "numeric_mknkb26y"
	columnBaseAmount   = "numeric_mknk6qv1"
	columnSalesPerson  = "text_mkr4r61z"
)

const boardDateLayout = "2006-01-02"

// itemColumnValues maps one mirror row to the board's column-value payload.
// The item name itself carries the document key and is passed separately.
func itemColumnValues(invoice models.MirrorInvoice) map[string]interface{} {
	return map[string]interface{}{
		columnCustomerName: invoice.CustomerName,
		columnOrderRef:     invoice.OrderRef,
		columnDocumentDate: invoice.DocumentDate.Format(boardDateLayout),
		columnDueDate:      invoice.DueDate.Format(boardDateLayout),
		columnCurrency:     invoice.Currency,
		columnExchangeRate: invoice.ExchangeRate.InexactFloat64(),
		columnAmount:       invoice.Amount.InexactFloat64(),
		columnBaseAmount:   invoice.BaseAmount.InexactFloat64(),
		columnSalesPerson:  invoice.SalesPerson,
	}
}
