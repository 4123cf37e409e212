// internal/output/types.go
package output

import (
	"strings"
	"time"

	"github.com/valpere/landwatch/pkg/types"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts a format name or infers it from a file extension.
func ParseFormat(name, path string) (Format, bool) {
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(extOf(path)), ".")
	}
	switch Format(strings.ToLower(name)) {
	case FormatXLSX, "excel":
		return FormatXLSX, true
	case FormatCSV:
		return FormatCSV, true
	case FormatJSON:
		return FormatJSON, true
	}
	return "", false
}

func extOf(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

// Writer writes a batch of listings.
type Writer interface {
	Write(listings []types.Listing) error
	Close() error
}

// column is one exported field.
type column struct {
	header string
	width  float64
	value  func(l types.Listing) any
}

var columns = []column{
	{"매물ID", 22, func(l types.Listing) any { return l.ID }},
	{"단지번호", 10, func(l types.Listing) any { return l.ComplexNo }},
	{"단지명", 24, func(l types.Listing) any { return l.ComplexName }},
	{"매물번호", 12, func(l types.Listing) any { return l.ArticleNo }},
	{"거래", 8, func(l types.Listing) any { return l.TradeType.Label() }},
	{"가격(만원)", 12, func(l types.Listing) any { return l.Price }},
	{"월세(만원)", 10, func(l types.Listing) any { return l.RentPrice }},
	{"공급면적(㎡)", 12, func(l types.Listing) any { return l.AreaGross }},
	{"전용면적(㎡)", 12, func(l types.Listing) any { return l.AreaNet }},
	{"층", 8, func(l types.Listing) any { return l.Floor }},
	{"총층", 6, func(l types.Listing) any { return l.TotalFloors }},
	{"방향", 8, func(l types.Listing) any { return l.Direction }},
	{"사용승인", 8, func(l types.Listing) any { return l.ApprovalYear }},
	{"세대수", 8, func(l types.Listing) any { return l.HouseholdCount }},
	{"방", 5, func(l types.Listing) any { return l.RoomCount }},
	{"욕실", 5, func(l types.Listing) any { return l.BathroomCount }},
	{"융자(만원)", 10, func(l types.Listing) any { return l.LoanAmount }},
	{"특징", 30, func(l types.Listing) any { return l.Description() }},
	{"링크", 50, func(l types.Listing) any { return l.URL }},
	{"최초확인", 20, func(l types.Listing) any { return l.FirstSeen }},
	{"알림", 6, func(l types.Listing) any { return l.Notified }},
}

// Headers returns the export column headers in order.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}

const timeLayout = "2006-01-02 15:04:05"

func localTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Local()
}
