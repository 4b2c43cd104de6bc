// Package output serialises reports as JSON, CSV or XLSX.
package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"domainfinder/internal/domain"
)

var ErrUnknownFormat = errors.New("unknown output format")

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Companies"

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Path swaps a .json extension for the extension of f.
func Path(file string, f Format) string {
	if f == FormatJSON || !strings.EqualFold(filepath.Ext(file), ".json") {
		return file
	}
	return strings.TrimSuffix(file, filepath.Ext(file)) + "." + string(f)
}

// Write serialises r to w in format f.
func Write(w io.Writer, f Format, r domain.Report) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatCSV:
		return WriteCSV(w, r)
	case FormatXLSX:
		return WriteXLSX(w, r)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

func WriteJSON(w io.Writer, r domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

var header = []string{
	"Organization Number",
	"Business Name",
	"Unique Domains",
	"Domain Count",
	"Estimated Revenue (NOK)",
	"Employees",
	"Size Category",
	"Industry",
	"Municipality",
	"Founded",
	"NACE Code",
}

// Header returns the tabular column names shared by CSV and XLSX.
func Header() []string { return append([]string(nil), header...) }

// Row flattens one result; absent numbers become empty cells.
func Row(res domain.Result) []string {
	return []string{
		res.OrganizationNumber,
		res.BusinessName,
		strings.Join(res.UniqueDomains, "; "),
		strconv.Itoa(len(res.UniqueDomains)),
		optInt64(res.EstimatedRevenue),
		optInt(res.Employees),
		res.SizeCategory,
		res.Industry,
		res.Municipality,
		res.Founded,
		res.NACECode,
	}
}

func WriteCSV(w io.Writer, r domain.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, res := range r.Companies {
		if err := cw.Write(Row(res)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteXLSX(w io.Writer, r domain.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", cells(header)); err != nil {
		return err
	}
	for i, res := range r.Companies {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, xlsxRow(res)); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

// xlsxRow keeps numeric columns numeric so spreadsheets can sort them.
func xlsxRow(res domain.Result) []any {
	row := cells(Row(res))
	row[3] = len(res.UniqueDomains)
	if res.EstimatedRevenue != nil {
		row[4] = *res.EstimatedRevenue
	}
	if res.Employees != nil {
		row[5] = *res.Employees
	}
	return row
}

func cells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func optInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
