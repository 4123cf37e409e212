// pkg/types/types.go
package types

import (
	"fmt"
	"strings"
	"time"
)

// TradeType identifies the contract kind of a listing
type TradeType string

const (
	TradeSale      TradeType = "A1"
	TradeLease     TradeType = "B1"
	TradeMonthly   TradeType = "B2"
	TradeShortTerm TradeType = "B3"
)

// ValidTradeTypes returns all valid trade type values
func ValidTradeTypes() []TradeType {
	return []TradeType{TradeSale, TradeLease, TradeMonthly, TradeShortTerm}
}

// IsValid checks if the trade type is a known value
func (t TradeType) IsValid() bool {
	for _, valid := range ValidTradeTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// Label returns the Korean display label of the trade type
func (t TradeType) Label() string {
	switch t {
	case TradeSale:
		return "매매"
	case TradeLease:
		return "전세"
	case TradeMonthly:
		return "월세"
	case TradeShortTerm:
		return "단기임대"
	default:
		return string(t)
	}
}

// ParseTradeType converts a code such as "B1" into a TradeType
func ParseTradeType(s string) (TradeType, error) {
	t := TradeType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown trade type %q", s)
	}
	return t, nil
}

// Complex is the subset of a complex summary the poller keeps
type Complex struct {
	No             string `json:"complex_no"`
	Name           string `json:"complex_name"`
	MaxFloor       int    `json:"max_floor"`
	ApprovalYMD    string `json:"approval_ymd"`
	HouseholdCount int    `json:"household_count"`
}

// ApprovalYear returns the four digit year of the use-approval date, or 0
func (c Complex) ApprovalYear() int {
	if len(c.ApprovalYMD) < 4 {
		return 0
	}
	year := 0
	for _, r := range c.ApprovalYMD[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}

// Listing is a single normalized article. Prices are in units of 10,000 KRW.
type Listing struct {
	ID             string    `json:"id"`
	ComplexNo      string    `json:"complex_no"`
	ComplexName    string    `json:"complex_name"`
	ArticleNo      string    `json:"article_no"`
	TradeType      TradeType `json:"trade_type"`
	Price          int64     `json:"price"`
	RentPrice      int64     `json:"rent_price"`
	AreaGross      float64   `json:"area_gross"`
	AreaNet        float64   `json:"area_net"`
	Floor          string    `json:"floor"`
	TotalFloors    int       `json:"total_floors"`
	Direction      string    `json:"direction"`
	ApprovalYear   int       `json:"approval_year"`
	HouseholdCount int       `json:"household_count"`
	RoomCount      int       `json:"room_count"`
	BathroomCount  int       `json:"bathroom_count"`
	LoanAmount     int64     `json:"loan_amount"`
	Tags           []string  `json:"tags,omitempty"`
	URL            string    `json:"url"`
	FirstSeen      time.Time `json:"first_seen,omitempty"`
	Notified       bool      `json:"notified"`
}

// ListingID builds the dedup key of an article within a complex
func ListingID(complexNo, articleNo string) string {
	return complexNo + "_" + articleNo
}

// Description joins the listing tags for display and storage
func (l Listing) Description() string {
	return strings.Join(l.Tags, ", ")
}

// RunSummary aggregates the counters of one polling run
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Fetched   int           `json:"fetched"`
	Filtered  int           `json:"filtered"`
	New       int           `json:"new"`
	Notified  int           `json:"notified"`
	Errors    int           `json:"errors"`
	StoredAll int           `json:"stored_total"`
	Duration  time.Duration `json:"duration"`
}

// Add accumulates another summary into s
func (s *RunSummary) Add(o RunSummary) {
	s.Fetched += o.Fetched
	s.Filtered += o.Filtered
	s.New += o.New
	s.Notified += o.Notified
	s.Errors += o.Errors
}
