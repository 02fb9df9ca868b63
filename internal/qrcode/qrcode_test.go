package qrcode

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantSum  int64
		wantTime time.Time
		wantOp   string
	}{
		{
			name:     "minute precision",
			payload:  "t=20190215T1415&s=1234.50&fn=9289000100408074&i=37311&fp=3185475219&n=1",
			wantSum:  123450,
			wantTime: time.Date(2019, 2, 15, 14, 15, 0, 0, time.UTC),
			wantOp:   "1",
		},
		{
			name:     "second precision with trailing newline",
			payload:  "t=20190215T141532&s=99.9&fn=9289000100408074&i=37311&fp=3185475219&n=2\n",
			wantSum:  9990,
			wantTime: time.Date(2019, 2, 15, 14, 15, 32, 0, time.UTC),
			wantOp:   "2",
		},
		{
			name:     "whole rubles without n",
			payload:  "t=20200101T0000&s=100&fn=1&i=2&fp=3",
			wantSum:  10000,
			wantTime: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			wantOp:   DefaultOperationType,
		},
		{
			name:     "url prefix",
			payload:  "https://check.example/?t=20200101T0000&s=1.01&fn=1&i=2&fp=3&n=1",
			wantSum:  101,
			wantTime: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			wantOp:   "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := Parse(tt.payload)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if code.Sum != tt.wantSum {
				t.Errorf("Sum = %d, want %d", code.Sum, tt.wantSum)
			}
			if !code.Time.Equal(tt.wantTime) {
				t.Errorf("Time = %v, want %v", code.Time, tt.wantTime)
			}
			if code.OperationType != tt.wantOp {
				t.Errorf("OperationType = %q, want %q", code.OperationType, tt.wantOp)
			}
		})
	}
}

func TestParseFields(t *testing.T) {
	code, err := Parse("t=20190215T1415&s=1234.50&fn=9289000100408074&i=37311&fp=3185475219&n=1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if code.FiscalDrive != "9289000100408074" {
		t.Errorf("FiscalDrive = %q", code.FiscalDrive)
	}
	if code.FiscalDocument != "37311" {
		t.Errorf("FiscalDocument = %q", code.FiscalDocument)
	}
	if code.FiscalSign != "3185475219" {
		t.Errorf("FiscalSign = %q", code.FiscalSign)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"missing t", "s=1&fn=1&i=2&fp=3", ErrMissingField},
		{"missing fp", "t=20200101T0000&s=1&fn=1&i=2", ErrMissingField},
		{"empty fn", "t=20200101T0000&s=1&fn=&i=2&fp=3", ErrMissingField},
		{"short timestamp", "t=20200101T00&s=1&fn=1&i=2&fp=3", ErrTimestampFormat},
		{"bad timestamp", "t=2020AB01T0000&s=1&fn=1&i=2&fp=3", ErrTimestampFormat},
		{"bad sum", "t=20200101T0000&s=abc&fn=1&i=2&fp=3", ErrInvalidSum},
		{"negative sum", "t=20200101T0000&s=-1&fn=1&i=2&fp=3", ErrInvalidSum},
		{"fractional kopecks", "t=20200101T0000&s=1.005&fn=1&i=2&fp=3", ErrInvalidSum},
		{"non-numeric fd", "t=20200101T0000&s=1&fn=1&i=x2&fp=3", ErrInvalidNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.payload)
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCheckDate(t *testing.T) {
	code, err := Parse("t=20190215T141532&s=1&fn=1&i=2&fp=3")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := code.CheckDate(); got != "2019-02-15T14:15:00" {
		t.Errorf("CheckDate() = %q", got)
	}
	if got := code.SumString(); got != "100" {
		t.Errorf("SumString() = %q", got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	orig, err := Parse("t=20190215T141532&s=1234.5&fn=9289000100408074&i=37311&fp=3185475219&n=1")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	again, err := Parse(orig.String())
	if err != nil {
		t.Fatalf("Parse(String()) error = %v", err)
	}
	if *again != *orig {
		t.Errorf("round trip mismatch: %+v != %+v", again, orig)
	}
}
