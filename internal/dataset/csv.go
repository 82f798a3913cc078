package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/KaramelBytes/tabloom-cli/internal/errors"
)

const sniffBytes = 4096

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

func (csvLoader) Load(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer f.Close()
	return ReadCSV(f, filepath.Base(path), opt)
}

// ReadCSV reads delimited text with a header row.
func ReadCSV(r io.Reader, name string, opt Options) (*Dataset, error) {
	dec, err := decoder(opt.Encoding)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(transform.NewReader(r, dec), sniffBytes)
	delim := opt.Delimiter
	if delim == 0 {
		if strings.HasSuffix(strings.ToLower(name), ".tsv") {
			delim = '\t'
		} else {
			head, _ := br.Peek(sniffBytes)
			delim = sniffDelimiter(head)
		}
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(name), nil
		}
		return nil, errors.Validationf("read header of %s: %v", name, err)
	}
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Validationf("read row %d of %s: %v", len(rows)+1, name, err)
		}
		rows = append(rows, rec)
	}
	return fromRecords(name, header, rows, opt), nil
}

func decoder(name string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "latin-1", "latin1", "iso-8859-1":
		enc = charmap.ISO8859_1
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	default:
		return nil, errors.Validationf("unsupported encoding %q (use utf-8, latin-1 or windows-1252)", name)
	}
	return enc.NewDecoder(), nil
}

// sniffDelimiter picks the candidate that splits the sampled lines into the same,
// largest number of fields. Defaults to comma.
func sniffDelimiter(head []byte) rune {
	lines := bytes.Split(head, []byte("\n"))
	// The last line may be cut mid-record.
	if len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}
	best, bestCount := ',', 0
	for _, cand := range []rune{',', ';', '\t', '|'} {
		sep := []byte(string(cand))
		count, consistent := -1, true
		for _, ln := range lines {
			ln = bytes.TrimRight(ln, "\r")
			if len(ln) == 0 {
				continue
			}
			n := bytes.Count(ln, sep)
			if count == -1 {
				count = n
			} else if n != count {
				consistent = false
				break
			}
		}
		if consistent && count > bestCount {
			best, bestCount = cand, count
		}
	}
	return best
}
