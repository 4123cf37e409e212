package filter

import (
	"testing"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

func baseListing() types.Listing {
	return types.Listing{
		ID:             "1001_A1",
		TradeType:      types.TradeSale,
		Price:          100000,
		AreaNet:        70,
		ApprovalYear:   2020,
		HouseholdCount: 500,
		Floor:          "10/25",
		TotalFloors:    25,
		RoomCount:      3,
		BathroomCount:  2,
		Direction:      "남향",
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		rules  Rules
		mutate func(*types.Listing)
		want   Result
	}{
		{name: "defaults pass", rules: DefaultRules(), want: Result{Pass: true}},
		{
			name:   "trade type excluded",
			rules:  DefaultRules(),
			mutate: func(l *types.Listing) { l.TradeType = types.TradeMonthly },
			want:   Result{Rule: "trade_type"},
		},
		{
			name:  "price above max for trade",
			rules: Rules{Price: map[types.TradeType]Range[int64]{types.TradeSale: {Max: 90000}}},
			want:  Result{Rule: "price"},
		},
		{
			name:  "price range for other trade ignored",
			rules: Rules{Price: map[types.TradeType]Range[int64]{types.TradeLease: {Max: 10}}},
			want:  Result{Pass: true},
		},
		{
			name:  "area below min",
			rules: Rules{AreaNet: Range[float64]{Min: 84}},
			want:  Result{Rule: "area_net"},
		},
		{
			name:  "approval year too old",
			rules: Rules{ApprovalYear: Range[int]{Min: 2021}},
			want:  Result{Rule: "approval_year"},
		},
		{
			name:  "households too few",
			rules: Rules{HouseholdCount: Range[int]{Min: 1000}},
			want:  Result{Rule: "household_count"},
		},
		{
			name:  "floor class matches",
			rules: Rules{Floors: []FloorClass{FloorMiddle}},
			want:  Result{Pass: true},
		},
		{
			name:  "floor class mismatch",
			rules: Rules{Floors: []FloorClass{FloorTop, FloorFirst}},
			want:  Result{Rule: "floor"},
		},
		{
			name:   "unparseable floor fails floor rule",
			rules:  Rules{Floors: []FloorClass{FloorLow}},
			mutate: func(l *types.Listing) { l.Floor = "B1" },
			want:   Result{Rule: "floor"},
		},
		{
			name:  "rooms",
			rules: Rules{Rooms: []int{4}},
			want:  Result{Rule: "rooms"},
		},
		{
			name:  "bathrooms",
			rules: Rules{Bathrooms: []int{1, 2}},
			want:  Result{Pass: true},
		},
		{
			name:  "direction without suffix",
			rules: Rules{Directions: []string{"남"}},
			want:  Result{Pass: true},
		},
		{
			name:  "direction mismatch",
			rules: Rules{Directions: []string{"동향"}},
			want:  Result{Rule: "direction"},
		},
		{
			name:   "loan none",
			rules:  Rules{Loan: LoanNone},
			mutate: func(l *types.Listing) { l.LoanAmount = 1 },
			want:   Result{Rule: "loan"},
		},
		{
			name:   "loan under 30 percent passes",
			rules:  Rules{Loan: LoanUnder30},
			mutate: func(l *types.Listing) { l.LoanAmount = 29999 },
			want:   Result{Pass: true},
		},
		{
			name:   "loan at 30 percent fails",
			rules:  Rules{Loan: LoanUnder30},
			mutate: func(l *types.Listing) { l.LoanAmount = 30000 },
			want:   Result{Rule: "loan"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.rules, utils.DiscardLogger())
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			l := baseListing()
			if tt.mutate != nil {
				tt.mutate(&l)
			}
			if got := e.Evaluate(l); got != tt.want {
				t.Errorf("Evaluate() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClassifyFloor(t *testing.T) {
	tests := []struct {
		floor string
		total int
		want  FloorClass
		ok    bool
	}{
		{"1/25", 0, FloorFirst, true},
		{"2/25", 0, FloorLow, true},
		{"8/25", 0, FloorLow, true},
		{"9/25", 0, FloorMiddle, true},
		{"16/25", 0, FloorMiddle, true},
		{"17/25", 0, FloorHigh, true},
		{"25/25", 0, FloorTop, true},
		{"12", 15, FloorHigh, true},
		{"저/15", 0, FloorLow, true},
		{"중/15", 0, FloorMiddle, true},
		{"고/15", 0, FloorHigh, true},
		{"B1/15", 0, "", false},
		{"7", 0, "", false},
	}
	for _, tt := range tests {
		got, ok := ClassifyFloor(tt.floor, tt.total)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ClassifyFloor(%q, %d) = %q, %v; want %q, %v", tt.floor, tt.total, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRulesValidate(t *testing.T) {
	bad := []Rules{
		{TradeTypes: []types.TradeType{"Z9"}},
		{AreaNet: Range[float64]{Min: 100, Max: 50}},
		{Floors: []FloorClass{"basement"}},
		{Loan: "some"},
		{Price: map[types.TradeType]Range[int64]{types.TradeSale: {Min: -1}}},
	}
	for i, r := range bad {
		if err := r.Validate(); utils.CodeOf(err) != utils.ErrCodeConfiguration {
			t.Errorf("case %d: Validate() = %v, want CONFIGURATION", i, err)
		}
	}
	if err := DefaultRules().Validate(); err != nil {
		t.Errorf("DefaultRules().Validate() = %v", err)
	}
}

func TestApply(t *testing.T) {
	e, _ := New(Rules{Rooms: []int{3}}, utils.DiscardLogger())
	a, b := baseListing(), baseListing()
	b.RoomCount = 2
	if got := e.Apply([]types.Listing{a, b}); len(got) != 1 {
		t.Errorf("Apply() kept %d listings, want 1", len(got))
	}
}
