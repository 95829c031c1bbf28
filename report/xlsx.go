package report

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the hits.
const SheetName = "results"

const maxColumnWidth = 60

// Columns written as numbers and the link column written as a formula.
const (
	colMailID = 0
	colHitID  = 1
	colLink   = 3
)

func (r *Report) storeXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}

	rows := r.Rows()
	for i, row := range rows {
		rowNum := i + 2
		cells := make([]any, len(row))
		for j, v := range row {
			switch j {
			case colMailID, colHitID:
				if n, err := strconv.Atoi(v); err == nil {
					cells[j] = n
					continue
				}
				cells[j] = v
			case colLink:
				cells[j] = nil
			default:
				cells[j] = v
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return fmt.Errorf("xlsx row %d: %w", rowNum, err)
		}
		if formula := row[colLink]; formula != "" {
			linkCell, _ := excelize.CoordinatesToCellName(colLink+1, rowNum)
			if err := f.SetCellFormula(SheetName, linkCell, strings.TrimPrefix(formula, "=")); err != nil {
				return fmt.Errorf("xlsx link %s: %w", linkCell, err)
			}
		}
	}

	if err := r.fitColumns(f, rows); err != nil {
		r.logger.Warn("xlsx column widths not set", "err", err)
	}
	if err := r.applyFilter(f, rows); err != nil {
		r.logger.Warn("xlsx default filter not set", "err", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

// fitColumns sizes each column to its longest cell plus padding, capped.
func (r *Report) fitColumns(f *excelize.File, rows [][]string) error {
	for col := range Headers {
		width := utf8.RuneCountInString(Headers[col])
		for _, row := range rows {
			if n := utf8.RuneCountInString(row[col]); n > width {
				width = n
			}
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, float64(min(width+2, maxColumnWidth))); err != nil {
			return err
		}
	}
	return nil
}

// applyFilter adds an auto filter over the whole table that initially shows
// only the first hit of each mail.
func (r *Report) applyFilter(f *excelize.File, rows [][]string) error {
	last, err := excelize.CoordinatesToCellName(len(Headers), len(rows)+1)
	if err != nil {
		return err
	}
	hitCol, err := excelize.ColumnNumberToName(colHitID + 1)
	if err != nil {
		return err
	}
	opts := []excelize.AutoFilterOptions{{Column: hitCol, Expression: "x == 1"}}
	if err := f.AutoFilter(SheetName, "A1:"+last, opts); err != nil {
		return err
	}
	// Excel does not re-evaluate the filter on open.
	for i, row := range rows {
		if row[colHitID] == "1" {
			continue
		}
		if err := f.SetRowVisible(SheetName, i+2, false); err != nil {
			return err
		}
	}
	return nil
}
