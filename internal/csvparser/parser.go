// =============================================================================
// Receipt Ledger - CSV Parser Module
// =============================================================================
//
// This module reads and writes the ledger CSV file. It handles:
//   - Different delimiters (comma, semicolon, tab, pipe)
//   - UTF-8 and Windows-1251 files (ledgers edited in a Russian locale
//     spreadsheet are often saved as Windows-1251)
//   - A UTF-8 byte order mark at the start of the file
//   - Rows addressed by header name
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/receipt-ledger/internal/config"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// =============================================================================
// SETTINGS AND DATA STRUCTURES
// =============================================================================

// Settings controls how a CSV file is read and written.
type Settings struct {
	// Delimiter is the field separator. Accepts a single character or one of
	// the names "tab", "pipe", "semicolon".
	Delimiter string

	// Encoding is "UTF-8" or "Windows-1251".
	Encoding string
}

// CSVData represents a parsed CSV file.
type CSVData struct {
	// Headers contains the column headers from the first row.
	Headers []string

	// Rows contains the data rows as maps of header -> value.
	Rows []map[string]string

	// SourceFile is the path to the source CSV file.
	SourceFile string
}

// utf8BOM is stripped from the first header if present.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed data.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: Delimiter and encoding.
//
// RETURNS:
//   - A pointer to the CSVData struct containing the parsed data.
//   - An error if the file cannot be read or parsed.
func Parse(filePath string, settings Settings) (*CSVData, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := Read(file, settings)
	if err != nil {
		return nil, err
	}
	data.SourceFile = filePath

	return data, nil
}

// Read parses CSV content from r. An empty input yields no headers and no rows.
func Read(r io.Reader, settings Settings) (*CSVData, error) {
	reader, err := decodingReader(r, settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(reader)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(allRows) == 0 {
		return &CSVData{}, nil
	}

	headers := cleanHeaders(allRows[0])

	return &CSVData{
		Headers: headers,
		Rows:    extractDataRows(allRows[1:], headers),
	}, nil
}

// decodingReader wraps r so that it yields UTF-8.
func decodingReader(r io.Reader, encoding string) (io.Reader, error) {
	buffered := bufio.NewReader(r)

	switch config.NormalizeEncoding(encoding) {
	case config.EncodingUTF8:
		if head, err := buffered.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			buffered.Discard(len(utf8BOM))
		}
		return buffered, nil
	case config.EncodingWindows1251:
		return transform.NewReader(buffered, charmap.Windows1251.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings Settings) {
	reader.Comma = delimiterRune(settings.Delimiter)

	// Hand-edited ledgers may have ragged rows.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
}

// delimiterRune resolves delimiter names to the separator character.
func delimiterRune(delimiter string) rune {
	switch delimiter {
	case "\\t", "\t", "tab", "TAB":
		return '\t'
	case "|", "pipe", "PIPE":
		return '|'
	case ";", "semicolon":
		return ';'
	default:
		if len(delimiter) > 0 {
			return []rune(delimiter)[0]
		}
		return ','
	}
}

// cleanHeaders trims headers and names empty ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}

	return cleaned
}

// extractDataRows converts rows to header -> value maps, skipping blank rows.
func extractDataRows(rows [][]string, headers []string) []map[string]string {
	dataRows := make([]map[string]string, 0, len(rows))

	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}

		rowMap := make(map[string]string, len(headers))
		for colIndex, header := range headers {
			if colIndex < len(row) {
				rowMap[header] = strings.TrimSpace(row[colIndex])
			} else {
				rowMap[header] = ""
			}
		}

		dataRows = append(dataRows, rowMap)
	}

	return dataRows
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// WRITER FUNCTIONS
// =============================================================================

// Write encodes a header row followed by records to w.
//
// For Windows-1251 output, characters the code page has no byte for (item
// names from the API may contain "½" or emoji) are written as '?'.
func Write(w io.Writer, settings Settings, headers []string, records [][]string) error {
	var out io.Writer = w
	var encoder io.WriteCloser

	switch config.NormalizeEncoding(settings.Encoding) {
	case config.EncodingUTF8:
	case config.EncodingWindows1251:
		encoder = transform.NewWriter(w, charmap.Windows1251.NewEncoder())
		out = encoder
		headers = toWindows1251Repertoire(headers)
		mapped := make([][]string, len(records))
		for i, record := range records {
			mapped[i] = toWindows1251Repertoire(record)
		}
		records = mapped
	default:
		return fmt.Errorf("unsupported encoding %q", settings.Encoding)
	}

	csvWriter := csv.NewWriter(out)
	csvWriter.Comma = delimiterRune(settings.Delimiter)

	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := csvWriter.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write CSV rows: %w", err)
	}

	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("failed to encode CSV: %w", err)
		}
	}

	return nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// toWindows1251Repertoire returns a copy of fields with every rune that
// Windows-1251 cannot encode replaced by '?'.
func toWindows1251Repertoire(fields []string) []string {
	out := make([]string, len(fields))
	for i, field := range fields {
		out[i] = strings.Map(func(r rune) rune {
			if _, ok := charmap.Windows1251.EncodeRune(r); ok {
				return r
			}
			return '?'
		}, field)
	}
	return out
}

// MissingHeaders reports which of the wanted headers are missing.
func (d *CSVData) MissingHeaders(wanted ...string) []string {
	present := make(map[string]bool, len(d.Headers))
	for _, h := range d.Headers {
		present[h] = true
	}

	var missing []string
	for _, w := range wanted {
		if !present[w] {
			missing = append(missing, w)
		}
	}
	return missing
}
