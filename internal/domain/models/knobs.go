package models

import "strings"

// Series identifiers, in export order.
const (
	FieldGDPGrowthRate              = "gdp_growth_rate"
	FieldUnemploymentRate           = "unemployment_rate"
	FieldInflationRate              = "inflation_rate"
	FieldTargetInterestRate         = "target_interest_rate"
	FieldSecuritiesHoldingsPcChange = "securities_holdings_pc_change"
	FieldLoanToDepositRatio         = "loan_to_deposit_ratio"
	FieldDepositInterestRate        = "deposit_interest_rate"
	FieldLoansInterestRate          = "loans_interest_rate"
	FieldConsumerLoanFocus          = "consumer_loan_focus"
)

// FieldSpec describes one series of the global state.
type FieldSpec struct {
	ID    string
	Label string
	Kind  Kind
	Owner Role
}

var fieldSpecs = []FieldSpec{
	{FieldGDPGrowthRate, "GDP Growth Rate (% Change)", KindSignedPercent, RoleEconomy},
	{FieldUnemploymentRate, "Unemployment Rate (%)", KindNonnegPercent, RoleEconomy},
	{FieldInflationRate, "Inflation Rate (%)", KindSignedPercent, RoleEconomy},
	{FieldTargetInterestRate, "Target Interest Rate (%)", KindNonnegPercent, RoleCentralBank},
	{FieldSecuritiesHoldingsPcChange, "Securities Holdings Percent Change (%)", KindSignedPercent, RoleCentralBank},
	{FieldLoanToDepositRatio, "Loan to Deposit Ratio (%)", KindNonnegPercent, RoleBigBank},
	{FieldDepositInterestRate, "Deposit Interest Rate (%)", KindNonnegPercent, RoleBigBank},
	{FieldLoansInterestRate, "Loans Interest Rate (%)", KindNonnegPercent, RoleSmallBank},
	{FieldConsumerLoanFocus, "Consumer Loan Focus (%)", KindNonnegPercent, RoleSmallBank},
}

// FieldSpecs returns the catalogue of series in group-then-declaration order.
func FieldSpecs() []FieldSpec {
	return append([]FieldSpec(nil), fieldSpecs...)
}

// FieldOrder returns the series identifiers in export order.
func FieldOrder() []string {
	ids := make([]string, len(fieldSpecs))
	for i, f := range fieldSpecs {
		ids[i] = f.ID
	}
	return ids
}

// LookupField finds a field by identifier.
func LookupField(id string) (FieldSpec, bool) {
	for _, f := range fieldSpecs {
		if f.ID == id {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldsOf returns the fields owned by role, in declaration order.
func FieldsOf(role Role) []FieldSpec {
	var out []FieldSpec
	for _, f := range fieldSpecs {
		if f.Owner == role {
			out = append(out, f)
		}
	}
	return out
}

func newSeriesFor(id string) *Series {
	f, _ := LookupField(id)
	return NewSeries(f.ID, f.Label, f.Kind)
}

// KnobGroup is a named bag of series owned by exactly one role.
type KnobGroup interface {
	Name() string
	Owner() Role
	Series() []*Series
	Render() string
}

func renderGroup(g KnobGroup, extra ...string) string {
	var b strings.Builder
	b.WriteString(g.Name())
	b.WriteString(":\n")
	for _, line := range extra {
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, s := range g.Series() {
		b.WriteString(s.Render())
		b.WriteString("\n")
	}
	return b.String()
}

// EconomicVariables are forecast by the economy role and read by everyone.
type EconomicVariables struct {
	GDPGrowthRate    *Series
	UnemploymentRate *Series
	InflationRate    *Series
}

func NewEconomicVariables() *EconomicVariables {
	return &EconomicVariables{
		GDPGrowthRate:    newSeriesFor(FieldGDPGrowthRate),
		UnemploymentRate: newSeriesFor(FieldUnemploymentRate),
		InflationRate:    newSeriesFor(FieldInflationRate),
	}
}

func (g *EconomicVariables) Name() string { return "economic_variables" }
func (g *EconomicVariables) Owner() Role  { return RoleEconomy }
func (g *EconomicVariables) Series() []*Series {
	return []*Series{g.GDPGrowthRate, g.UnemploymentRate, g.InflationRate}
}
func (g *EconomicVariables) Render() string { return renderGroup(g) }

// DefaultInterestRateGoal is the central bank's fixed policy goal.
const DefaultInterestRateGoal = 0.02

// CentralBankKnobs are set by the central bank.
type CentralBankKnobs struct {
	// InterestRateGoal is fixed for the whole run.
	InterestRateGoal           BoundedValue
	TargetInterestRate         *Series
	SecuritiesHoldingsPcChange *Series
}

func NewCentralBankKnobs() *CentralBankKnobs {
	return &CentralBankKnobs{
		InterestRateGoal:           MustBounded(KindSignedPercent, DefaultInterestRateGoal),
		TargetInterestRate:         newSeriesFor(FieldTargetInterestRate),
		SecuritiesHoldingsPcChange: newSeriesFor(FieldSecuritiesHoldingsPcChange),
	}
}

func (g *CentralBankKnobs) Name() string { return "central_bank_knobs" }
func (g *CentralBankKnobs) Owner() Role  { return RoleCentralBank }
func (g *CentralBankKnobs) Series() []*Series {
	return []*Series{g.TargetInterestRate, g.SecuritiesHoldingsPcChange}
}
func (g *CentralBankKnobs) Render() string {
	return renderGroup(g, "Interest Rate Goal (%): "+g.InterestRateGoal.String())
}

// BigBankKnobs are set by the representative large commercial bank.
type BigBankKnobs struct {
	LoanToDepositRatio  *Series
	DepositInterestRate *Series
}

func NewBigBankKnobs() *BigBankKnobs {
	return &BigBankKnobs{
		LoanToDepositRatio:  newSeriesFor(FieldLoanToDepositRatio),
		DepositInterestRate: newSeriesFor(FieldDepositInterestRate),
	}
}

func (g *BigBankKnobs) Name() string { return "big_bank_knobs" }
func (g *BigBankKnobs) Owner() Role  { return RoleBigBank }
func (g *BigBankKnobs) Series() []*Series {
	return []*Series{g.LoanToDepositRatio, g.DepositInterestRate}
}
func (g *BigBankKnobs) Render() string { return renderGroup(g) }

// SmallBankKnobs are set by the representative small community bank.
type SmallBankKnobs struct {
	LoansInterestRate *Series
	ConsumerLoanFocus *Series
}

func NewSmallBankKnobs() *SmallBankKnobs {
	return &SmallBankKnobs{
		LoansInterestRate: newSeriesFor(FieldLoansInterestRate),
		ConsumerLoanFocus: newSeriesFor(FieldConsumerLoanFocus),
	}
}

func (g *SmallBankKnobs) Name() string { return "small_bank_knobs" }
func (g *SmallBankKnobs) Owner() Role  { return RoleSmallBank }
func (g *SmallBankKnobs) Series() []*Series {
	return []*Series{g.LoansInterestRate, g.ConsumerLoanFocus}
}
func (g *SmallBankKnobs) Render() string { return renderGroup(g) }
