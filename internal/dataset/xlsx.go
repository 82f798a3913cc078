package dataset

import (
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/tabloom-cli/internal/errors"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

// Load reads the selected sheet. If SheetName is empty, SheetIndex (1-based) picks the
// sheet; an index <= 0 means the first one.
func (xlsxLoader) Load(path string, opt Options) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Validationf("open xlsx %s: %v", filepath.Base(path), err)
	}
	defer f.Close()

	sheet, err := resolveSheet(f.GetSheetList(), opt.SheetName, opt.SheetIndex, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	// Raw values keep numeric cells numeric instead of their display format.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %q", sheet)
	}
	if len(rows) == 0 {
		return New(filepath.Base(path)), nil
	}
	return fromRecords(filepath.Base(path), rows[0], rows[1:], opt), nil
}

func resolveSheet(sheets []string, name string, index int, book string) (string, error) {
	if len(sheets) == 0 {
		return "", errors.Validationf("workbook %q has no sheets", book)
	}
	if name != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, name) {
				return s, nil
			}
		}
		return "", errors.Validationf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
			name, book, strings.Join(sheets, ", "))
	}
	if index <= 0 {
		index = 1
	}
	if index > len(sheets) {
		return "", errors.Validationf("sheet index %d out of range in workbook '%s' (%d sheets)", index, book, len(sheets))
	}
	return sheets[index-1], nil
}
