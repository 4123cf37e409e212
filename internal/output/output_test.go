// internal/output/output_test.go
package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

func testListings() []types.Listing {
	first := time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
	return []types.Listing{
		{
			ID: "1001_A1", ComplexNo: "1001", ComplexName: "래미안", ArticleNo: "A1",
			TradeType: types.TradeSale, Price: 125000, AreaGross: 112.4, AreaNet: 84.9,
			Floor: "12/25", TotalFloors: 25, Direction: "남향", ApprovalYear: 2015,
			HouseholdCount: 1200, RoomCount: 3, BathroomCount: 2, Tags: []string{"역세권", "올수리"},
			URL: "https://new.land.naver.com/complexes/1001?articleNo=A1", FirstSeen: first, Notified: true,
		},
		{
			ID: "1002_B7", ComplexNo: "1002", ComplexName: "자이", ArticleNo: "B7",
			TradeType: types.TradeMonthly, Price: 5000, RentPrice: 150, FirstSeen: first.Add(time.Hour),
		},
	}
}

type fakeSource []types.Listing

func (f fakeSource) All(context.Context) ([]types.Listing, error) { return f, nil }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name, path string
		want       Format
		ok         bool
	}{
		{"xlsx", "", FormatXLSX, true},
		{"excel", "", FormatXLSX, true},
		{"", "out/listings.CSV", FormatCSV, true},
		{"", "dump.json", FormatJSON, true},
		{"pdf", "", "", false},
		{"", "noext", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseFormat(tt.name, tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseFormat(%q, %q) = %q, %v", tt.name, tt.path, got, ok)
		}
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, true)
	if err := w.Write(testListings()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Fatal("missing BOM")
	}
	rows, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][2] != "단지명" || rows[1][2] != "래미안" {
		t.Errorf("complex column = %q / %q", rows[0][2], rows[1][2])
	}
	if rows[1][4] != "매매" || rows[1][5] != "125000" || rows[2][6] != "150" {
		t.Errorf("trade/price columns = %v", rows[1][4:7])
	}
	if rows[1][17] != "역세권, 올수리" {
		t.Errorf("tags = %q", rows[1][17])
	}
	if rows[1][20] != "true" || rows[2][20] != "false" {
		t.Errorf("notified = %q %q", rows[1][20], rows[2][20])
	}
}

func TestCSVWriterEmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf, false)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	rows, _ := csv.NewReader(&buf).ReadAll()
	if len(rows) != 1 || len(rows[0]) != len(Headers()) {
		t.Errorf("rows = %v", rows)
	}
}

func TestExcelExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.xlsx")
	m := NewManager(fakeSource(testListings()), utils.DiscardLogger())
	n, err := m.Export(context.Background(), FormatXLSX, path)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d, want 2", n)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows("매물")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "매물ID" || rows[1][0] != "1001_A1" || rows[2][2] != "자이" {
		t.Errorf("unexpected cells: %v / %v", rows[0][:3], rows[2][:3])
	}
	price, err := f.GetCellValue("매물", "F2", excelize.Options{RawCellValue: true})
	if err != nil || price != "125000" {
		t.Errorf("F2 raw value = %q, %v", price, err)
	}
}

func TestExcelWriterSplitsSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "split.xlsx")
	w, err := NewExcelWriter(ExcelConfig{FilePath: path, MaxSheetRows: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(testListings()); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 2 {
		t.Errorf("sheets = %v, want 2", sheets)
	}
}

func TestJSONExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listings.json")
	m := NewManager(fakeSource(testListings()), utils.DiscardLogger())
	if _, err := m.Export(context.Background(), FormatJSON, path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []types.Listing
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].RentPrice != 150 {
		t.Errorf("decoded = %+v", got)
	}
}

func TestGetWriterUnknownFormat(t *testing.T) {
	if _, err := GetWriter("pdf", "x.pdf"); utils.CodeOf(err) != utils.ErrCodeConfiguration {
		t.Errorf("GetWriter(pdf) error = %v", err)
	}
}
