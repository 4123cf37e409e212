// internal/scraper/parser.go
package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// The payload types below name only the fields the poller reads. Missing
// or null fields decode to zero values; numbers may arrive as JSON numbers
// or as strings.

type complexPayload struct {
	ComplexNo           flexString `json:"complexNo"`
	ComplexName         string     `json:"complexName"`
	MaxFloor            flexInt    `json:"maxFloor"`
	HighFloor           flexInt    `json:"highFloor"`
	UseApproveYmd       flexString `json:"useApproveYmd"`
	TotalHouseholdCount flexInt    `json:"totalHouseholdCount"`
}

type articlePayload struct {
	ArticleNo        flexString `json:"articleNo"`
	DealOrWarrantPrc flexPrice  `json:"dealOrWarrantPrc"`
	RentPrc          flexPrice  `json:"rentPrc"`
	Area1            flexFloat  `json:"area1"`
	Area2            flexFloat  `json:"area2"`
	FloorInfo        string     `json:"floorInfo"`
	Direction        string     `json:"direction"`
	RoomCnt          flexInt    `json:"roomCnt"`
	BathroomCnt      flexInt    `json:"bathroomCnt"`
	LoanAmount       flexPrice  `json:"loanAmount"`
	TagList          []string   `json:"tagList"`
}

type detailPayload struct {
	ArticleDetail *struct {
		RoomCount     flexInt    `json:"roomCount"`
		BathroomCount flexInt    `json:"bathroomCount"`
		Direction     string     `json:"direction"`
		ArticleNo     flexString `json:"articleNo"`
	} `json:"articleDetail"`
	ArticlePrice *struct {
		FinancePrice flexPrice `json:"financePrice"`
	} `json:"articlePrice"`
}

// ArticleDetail is the subset of the article detail endpoint the poller
// uses to enrich listings.
type ArticleDetail struct {
	RoomCount     int
	BathroomCount int
	Direction     string
	LoanAmount    int64
}

// DecodeComplexList extracts complexList from a search response.
func DecodeComplexList(body []byte) ([]types.Complex, error) {
	var envelope struct {
		ComplexList *[]complexPayload `json:"complexList"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, malformed("complex list", err)
	}
	if envelope.ComplexList == nil {
		return nil, malformed("complex list", fmt.Errorf("missing complexList"))
	}
	out := make([]types.Complex, 0, len(*envelope.ComplexList))
	for _, p := range *envelope.ComplexList {
		if p.ComplexNo == "" {
			continue
		}
		out = append(out, p.toComplex())
	}
	return out, nil
}

// DecodeArticleList extracts the raw articleList entries.
func DecodeArticleList(body []byte) ([]json.RawMessage, error) {
	var envelope struct {
		ArticleList *[]json.RawMessage `json:"articleList"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, malformed("article list", err)
	}
	if envelope.ArticleList == nil {
		return nil, malformed("article list", fmt.Errorf("missing articleList"))
	}
	return *envelope.ArticleList, nil
}

// DecodeArticleDetail extracts the fields of the detail endpoint.
func DecodeArticleDetail(body []byte) (ArticleDetail, error) {
	var p detailPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ArticleDetail{}, malformed("article detail", err)
	}
	if p.ArticleDetail == nil {
		return ArticleDetail{}, malformed("article detail", fmt.Errorf("missing articleDetail"))
	}
	d := ArticleDetail{
		RoomCount:     int(p.ArticleDetail.RoomCount),
		BathroomCount: int(p.ArticleDetail.BathroomCount),
		Direction:     p.ArticleDetail.Direction,
	}
	if p.ArticlePrice != nil {
		d.LoanAmount = int64(p.ArticlePrice.FinancePrice)
	}
	return d, nil
}

// ParseArticle maps one raw article onto a Listing. It is a pure function
// of its inputs.
func ParseArticle(raw json.RawMessage, cx types.Complex, trade types.TradeType) (types.Listing, error) {
	var a articlePayload
	if err := json.Unmarshal(raw, &a); err != nil {
		return types.Listing{}, malformed("article", err)
	}
	articleNo := string(a.ArticleNo)
	if articleNo == "" {
		return types.Listing{}, malformed("article", fmt.Errorf("missing articleNo"))
	}

	var tags []string
	if len(a.TagList) > 0 {
		tags = append([]string(nil), a.TagList...)
	}

	return types.Listing{
		ID:             types.ListingID(cx.No, articleNo),
		ComplexNo:      cx.No,
		ComplexName:    cx.Name,
		ArticleNo:      articleNo,
		TradeType:      trade,
		Price:          int64(a.DealOrWarrantPrc),
		RentPrice:      int64(a.RentPrc),
		AreaGross:      float64(a.Area1),
		AreaNet:        float64(a.Area2),
		Floor:          a.FloorInfo,
		TotalFloors:    cx.MaxFloor,
		Direction:      a.Direction,
		ApprovalYear:   cx.ApprovalYear(),
		HouseholdCount: cx.HouseholdCount,
		RoomCount:      int(a.RoomCnt),
		BathroomCount:  int(a.BathroomCnt),
		LoanAmount:     int64(a.LoanAmount),
		Tags:           tags,
		URL:            ListingURL(cx.No, articleNo),
	}, nil
}

// ApplyDetail fills fields the list endpoint left empty.
func ApplyDetail(l types.Listing, d ArticleDetail) types.Listing {
	if l.RoomCount == 0 {
		l.RoomCount = d.RoomCount
	}
	if l.BathroomCount == 0 {
		l.BathroomCount = d.BathroomCount
	}
	if l.Direction == "" {
		l.Direction = d.Direction
	}
	if l.LoanAmount == 0 {
		l.LoanAmount = d.LoanAmount
	}
	return l
}

// ListingURL is the public page of an article.
func ListingURL(complexNo, articleNo string) string {
	return fmt.Sprintf("https://new.land.naver.com/complexes/%s?articleNo=%s", complexNo, articleNo)
}

func (p complexPayload) toComplex() types.Complex {
	floors := int(p.MaxFloor)
	if floors == 0 {
		floors = int(p.HighFloor)
	}
	return types.Complex{
		No:             string(p.ComplexNo),
		Name:           p.ComplexName,
		MaxFloor:       floors,
		ApprovalYMD:    string(p.UseApproveYmd),
		HouseholdCount: int(p.TotalHouseholdCount),
	}
}

func malformed(what string, err error) error {
	return utils.WrapError(err, utils.ErrCodeMalformedResponse, "malformed "+what)
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	*s = flexString(string(b))
	return nil
}

// flexInt accepts a JSON number or a numeric string; anything else is 0.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*n = flexInt(f)
	return nil
}

// flexFloat accepts a JSON number or a numeric string; anything else is 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(string(s), ",", ""), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// flexPrice is an amount in units of 10,000 KRW. It accepts numbers and
// display strings such as "12억 5,000" or "8,500".
type flexPrice int64

func (p *flexPrice) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	*p = flexPrice(ParseKoreanPrice(string(s)))
	return nil
}

// ParseKoreanPrice converts a display price into units of 10,000 KRW.
// Unparseable input yields 0.
func ParseKoreanPrice(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "원"), "만")
	if s == "" {
		return 0
	}

	var total float64
	if idx := strings.Index(s, "억"); idx >= 0 {
		eok, err := strconv.ParseFloat(s[:idx], 64)
		if err != nil {
			return 0
		}
		total = eok * 10000
		s = s[idx+len("억"):]
	}
	if s != "" {
		man, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		total += man
	}
	return int64(total + 0.5)
}
