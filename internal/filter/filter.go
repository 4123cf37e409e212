// Package filter decides which scraped listings are worth a notification.
package filter

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// FloorClass is a coarse position of a unit within its building.
type FloorClass string

const (
	FloorFirst  FloorClass = "first"
	FloorLow    FloorClass = "low"
	FloorMiddle FloorClass = "middle"
	FloorHigh   FloorClass = "high"
	FloorTop    FloorClass = "top"
)

// LoanPolicy restricts the existing mortgage on a listing.
type LoanPolicy string

const (
	LoanAny     LoanPolicy = "any"
	LoanNone    LoanPolicy = "none"
	LoanUnder30 LoanPolicy = "under30"
)

// Range is an inclusive bound; a zero Max means unbounded.
type Range[T int | int64 | float64] struct {
	Min T `yaml:"min" json:"min"`
	Max T `yaml:"max" json:"max"`
}

// Contains reports whether v lies in the range.
func (r Range[T]) Contains(v T) bool {
	if v < r.Min {
		return false
	}
	return r.Max == 0 || v <= r.Max
}

func (r Range[T]) validate(name string) error {
	if r.Min < 0 || r.Max < 0 || (r.Max != 0 && r.Max < r.Min) {
		return utils.NewError(utils.ErrCodeConfiguration, fmt.Sprintf("invalid %s range", name)).
			WithContext("min", r.Min).WithContext("max", r.Max).Build()
	}
	return nil
}

// Rules configure the evaluator. Empty lists and zero ranges match everything.
type Rules struct {
	TradeTypes     []types.TradeType                 `yaml:"trade_types" json:"trade_types"`
	Price          map[types.TradeType]Range[int64] `yaml:"price" json:"price"`
	AreaNet        Range[float64]                    `yaml:"area_net" json:"area_net"`
	ApprovalYear   Range[int]                        `yaml:"approval_year" json:"approval_year"`
	HouseholdCount Range[int]                        `yaml:"household_count" json:"household_count"`
	Floors         []FloorClass                      `yaml:"floors" json:"floors"`
	Rooms          []int                             `yaml:"rooms" json:"rooms"`
	Bathrooms      []int                             `yaml:"bathrooms" json:"bathrooms"`
	Directions     []string                          `yaml:"directions" json:"directions"`
	Loan           LoanPolicy                        `yaml:"loan" json:"loan"`
}

// DefaultRules accepts sales and leases of any size or price.
func DefaultRules() Rules {
	return Rules{
		TradeTypes: []types.TradeType{types.TradeSale, types.TradeLease},
		Loan:       LoanAny,
	}
}

// Validate checks the rule values.
func (r Rules) Validate() error {
	for _, t := range r.TradeTypes {
		if !t.IsValid() {
			return utils.NewError(utils.ErrCodeConfiguration, fmt.Sprintf("unknown trade type %q", t)).Build()
		}
	}
	for t, pr := range r.Price {
		if err := pr.validate("price " + string(t)); err != nil {
			return err
		}
	}
	if err := r.AreaNet.validate("area"); err != nil {
		return err
	}
	if err := r.ApprovalYear.validate("approval year"); err != nil {
		return err
	}
	if err := r.HouseholdCount.validate("household"); err != nil {
		return err
	}
	for _, f := range r.Floors {
		switch f {
		case FloorFirst, FloorLow, FloorMiddle, FloorHigh, FloorTop:
		default:
			return utils.NewError(utils.ErrCodeConfiguration, fmt.Sprintf("unknown floor class %q", f)).Build()
		}
	}
	switch r.Loan {
	case "", LoanAny, LoanNone, LoanUnder30:
	default:
		return utils.NewError(utils.ErrCodeConfiguration, fmt.Sprintf("unknown loan policy %q", r.Loan)).Build()
	}
	return nil
}

// Result is the outcome for one listing. Rule names the first failing rule.
type Result struct {
	Pass bool
	Rule string
}

// Evaluator applies Rules to listings.
type Evaluator struct {
	rules  Rules
	logger *slog.Logger
}

// New builds an Evaluator after validating rules.
func New(rules Rules, logger *slog.Logger) (*Evaluator, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = utils.NewComponentLogger("filter")
	}
	return &Evaluator{rules: rules, logger: logger}, nil
}

// Evaluate checks l against every rule in order.
func (e *Evaluator) Evaluate(l types.Listing) Result {
	r := e.rules
	fail := func(rule string, args ...any) Result {
		e.logger.Debug("listing filtered", append([]any{"id", l.ID, "rule", rule}, args...)...)
		return Result{Rule: rule}
	}

	if len(r.TradeTypes) > 0 && !slices.Contains(r.TradeTypes, l.TradeType) {
		return fail("trade_type", "trade", l.TradeType)
	}
	if pr, ok := r.Price[l.TradeType]; ok && !pr.Contains(l.Price) {
		return fail("price", "price", l.Price)
	}
	if !r.AreaNet.Contains(l.AreaNet) {
		return fail("area_net", "area", l.AreaNet)
	}
	if !r.ApprovalYear.Contains(l.ApprovalYear) {
		return fail("approval_year", "year", l.ApprovalYear)
	}
	if !r.HouseholdCount.Contains(l.HouseholdCount) {
		return fail("household_count", "households", l.HouseholdCount)
	}
	if len(r.Floors) > 0 {
		class, ok := ClassifyFloor(l.Floor, l.TotalFloors)
		if !ok || !slices.Contains(r.Floors, class) {
			return fail("floor", "floor", l.Floor)
		}
	}
	if len(r.Rooms) > 0 && !slices.Contains(r.Rooms, l.RoomCount) {
		return fail("rooms", "rooms", l.RoomCount)
	}
	if len(r.Bathrooms) > 0 && !slices.Contains(r.Bathrooms, l.BathroomCount) {
		return fail("bathrooms", "bathrooms", l.BathroomCount)
	}
	if len(r.Directions) > 0 && !matchDirection(r.Directions, l.Direction) {
		return fail("direction", "direction", l.Direction)
	}
	switch r.Loan {
	case LoanNone:
		if l.LoanAmount > 0 {
			return fail("loan", "loan", l.LoanAmount)
		}
	case LoanUnder30:
		if l.Price > 0 && float64(l.LoanAmount)/float64(l.Price) >= 0.3 {
			return fail("loan", "loan", l.LoanAmount, "price", l.Price)
		}
	}
	return Result{Pass: true}
}

// Apply keeps the listings that pass.
func (e *Evaluator) Apply(listings []types.Listing) []types.Listing {
	out := make([]types.Listing, 0, len(listings))
	for _, l := range listings {
		if e.Evaluate(l).Pass {
			out = append(out, l)
		}
	}
	e.logger.Info("filter applied", "total", len(listings), "passed", len(out))
	return out
}

// ClassifyFloor maps a floor string such as "5/25", "저/15" or "12" to a
// class. total is used when the string carries no total.
func ClassifyFloor(floor string, total int) (FloorClass, bool) {
	cur, rest, hasTotal := strings.Cut(strings.TrimSpace(floor), "/")
	if hasTotal {
		if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			total = n
		}
	}
	cur = strings.TrimSuffix(strings.TrimSpace(cur), "층")

	switch cur {
	case "저":
		return FloorLow, true
	case "중":
		return FloorMiddle, true
	case "고":
		return FloorHigh, true
	}

	n, err := strconv.Atoi(cur)
	if err != nil || n < 1 || total < 1 {
		return "", false
	}
	switch {
	case n == 1:
		return FloorFirst, true
	case n >= total:
		return FloorTop, true
	case n <= total/3:
		return FloorLow, true
	case n <= total*2/3:
		return FloorMiddle, true
	default:
		return FloorHigh, true
	}
}

// matchDirection accepts "남향" for a configured "남" and the reverse.
func matchDirection(want []string, got string) bool {
	got = strings.TrimSuffix(strings.TrimSpace(got), "향")
	if got == "" {
		return false
	}
	for _, w := range want {
		if strings.TrimSuffix(strings.TrimSpace(w), "향") == got {
			return true
		}
	}
	return false
}
