package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/eraload/internal/model"
)

// WriteParquet writes line items as model.LineItemRow records.
func WriteParquet(w io.Writer, items []model.LineItem) (int, error) {
	rows := make([]model.LineItemRow, len(items))
	for i := range items {
		rows[i] = model.NewLineItemRow(&items[i])
	}

	writer := parquet.NewGenericWriter[model.LineItemRow](w)
	n, err := writer.Write(rows)
	if err != nil {
		return n, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return n, fmt.Errorf("close parquet writer: %w", err)
	}
	return n, nil
}
