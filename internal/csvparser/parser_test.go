package csvparser

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	input := "\xEF\xBB\xBFmonth,date,name\n2019-02,2019-02-15,Молоко\n,,\n2019-03,2019-03-01\n"

	data, err := Read(strings.NewReader(input), Settings{Delimiter: ",", Encoding: "UTF-8"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if want := []string{"month", "date", "name"}; !reflect.DeepEqual(data.Headers, want) {
		t.Errorf("Headers = %v, want %v", data.Headers, want)
	}
	if len(data.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2 (blank row skipped)", len(data.Rows))
	}
	if data.Rows[0]["name"] != "Молоко" {
		t.Errorf("Rows[0][name] = %q", data.Rows[0]["name"])
	}
	if v, ok := data.Rows[1]["name"]; !ok || v != "" {
		t.Errorf("short row should get empty name, got %q (present=%v)", v, ok)
	}
}

func TestReadEmpty(t *testing.T) {
	data, err := Read(strings.NewReader(""), Settings{Encoding: "UTF-8"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(data.Headers) != 0 || len(data.Rows) != 0 {
		t.Errorf("expected empty data, got %+v", data)
	}
}

func TestDelimiters(t *testing.T) {
	tests := map[string]rune{
		"":          ',',
		",":         ',',
		";":         ';',
		"semicolon": ';',
		"tab":       '\t',
		"\\t":       '\t',
		"pipe":      '|',
	}
	for in, want := range tests {
		if got := delimiterRune(in); got != want {
			t.Errorf("delimiterRune(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteWindows1251ReplacesUnsupportedRunes(t *testing.T) {
	settings := Settings{Delimiter: ",", Encoding: "Windows-1251"}
	records := [][]string{{"Кофе ½ л ☕", "Напитки"}, {"茶", ""}}

	var buf bytes.Buffer
	if err := Write(&buf, settings, []string{"name", "category"}, records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := Read(&buf, settings)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := data.Rows[0]["name"]; got != "Кофе ? л ?" {
		t.Errorf("Rows[0] name = %q, want %q", got, "Кофе ? л ?")
	}
	if got := data.Rows[0]["category"]; got != "Напитки" {
		t.Errorf("Rows[0] category = %q", got)
	}
	if got := data.Rows[1]["name"]; got != "?" {
		t.Errorf("Rows[1] name = %q, want %q", got, "?")
	}
	if records[0][0] != "Кофе ½ л ☕" {
		t.Error("Write must not modify the caller's records")
	}
}

func TestWriteAndParseWindows1251(t *testing.T) {
	settings := Settings{Delimiter: ";", Encoding: "Windows-1251"}
	headers := []string{"name", "category"}
	records := [][]string{{"Хлеб", "Продукты"}, {"Мыло; хозяйственное", ""}}

	var buf bytes.Buffer
	if err := Write(&buf, settings, headers, records); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Cyrillic letters take one byte each in Windows-1251.
	if bytes.Contains(buf.Bytes(), []byte("Хлеб")) {
		t.Error("output should not contain UTF-8 encoded text")
	}

	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	data, err := Parse(path, settings)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if data.SourceFile != path {
		t.Errorf("SourceFile = %q", data.SourceFile)
	}
	if data.Rows[0]["name"] != "Хлеб" || data.Rows[0]["category"] != "Продукты" {
		t.Errorf("Rows[0] = %v", data.Rows[0])
	}
	if data.Rows[1]["name"] != "Мыло; хозяйственное" {
		t.Errorf("quoted delimiter not preserved: %v", data.Rows[1])
	}
}

func TestUnsupportedEncoding(t *testing.T) {
	if _, err := Read(strings.NewReader("a\n"), Settings{Encoding: "koi8-r"}); err == nil {
		t.Error("Read() expected error")
	}
	if err := Write(&bytes.Buffer{}, Settings{Encoding: "koi8-r"}, []string{"a"}, nil); err == nil {
		t.Error("Write() expected error")
	}
}

func TestMissingHeaders(t *testing.T) {
	data := &CSVData{Headers: []string{"month", "date"}}
	got := data.MissingHeaders("month", "name", "sum")
	if want := []string{"name", "sum"}; !reflect.DeepEqual(got, want) {
		t.Errorf("MissingHeaders() = %v, want %v", got, want)
	}
}
