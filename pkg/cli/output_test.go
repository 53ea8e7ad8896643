package cli

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestJSONFormatter(t *testing.T) {
	tests := []struct {
		name   string
		indent bool
		data   interface{}
		want   string
	}{
		{
			name: "compact",
			data: map[string]string{"email": "a@example.com"},
			want: `{"email":"a@example.com"}`,
		},
		{
			name:   "indented",
			indent: true,
			data:   map[string]int{"count": 3},
			want:   "{\n  \"count\": 3\n}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &JSONFormatter{Indent: tt.indent}
			got, err := formatter.Format(tt.data)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJSONFormatterWriter(t *testing.T) {
	formatter := &JSONFormatter{Indent: true}
	var buf bytes.Buffer
	if err := formatter.FormatTo(&buf, []string{"a", "b"}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"a"`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestCSVFormatter(t *testing.T) {
	formatter := &CSVFormatter{Headers: []string{"email", "status"}}
	rows := [][]string{
		{"a@example.com", "active"},
		{"b@example.com", "blocked"},
	}

	got, err := formatter.Format(rows)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "email,status\na@example.com,active\nb@example.com,blocked\n"
	if string(got) != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestCSVFormatterQuoting(t *testing.T) {
	formatter := &CSVFormatter{}
	got, err := formatter.Format([][]string{{`with,comma`, `plain`}})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(got) != "\"with,comma\",plain\n" {
		t.Errorf("Format() = %q", got)
	}
}

func TestCSVFormatterRejectsNonRows(t *testing.T) {
	formatter := &CSVFormatter{}
	if _, err := formatter.Format(map[string]string{"not": "rows"}); err == nil {
		t.Error("expected error for non-tabular input")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  OutputFormat
		want    string
		wantErr bool
	}{
		{format: FormatJSON, want: "*cli.JSONFormatter"},
		{format: FormatCSV, want: "*cli.CSVFormatter"},
		{format: FormatText, wantErr: true},
		{format: OutputFormat("junit"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			formatter, err := NewFormatter(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewFormatter(%q): expected error", tt.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewFormatter(%q) error = %v", tt.format, err)
			}
			if got := fmt.Sprintf("%T", formatter); got != tt.want {
				t.Errorf("NewFormatter(%q) type = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}
