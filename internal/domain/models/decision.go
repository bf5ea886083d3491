package models

import "fmt"

// Decision is the structured result a role proposes for its own knob group.
type Decision interface {
	Role() Role
	// Values maps field id to the proposed raw value. Missing fields are absent.
	Values() map[string]float64
}

// DecisionRequest is what a decider sees for one invocation.
type DecisionRequest struct {
	Role        Role
	Quarter     int
	Attempt     int
	Snapshot    string
	Instruction string
}

// CentralBankDecision is the central bank's result schema.
type CentralBankDecision struct {
	TargetInterestRate         *float64 `json:"target_interest_rate" validate:"required,gte=0,lte=1"`
	SecuritiesHoldingsPcChange *float64 `json:"securities_holdings_pc_change" validate:"required,gte=-1,lte=1"`
}

func (d *CentralBankDecision) Role() Role { return RoleCentralBank }

func (d *CentralBankDecision) Values() map[string]float64 {
	return collect(map[string]*float64{
		FieldTargetInterestRate:         d.TargetInterestRate,
		FieldSecuritiesHoldingsPcChange: d.SecuritiesHoldingsPcChange,
	})
}

// BigBankDecision is the large commercial bank's result schema.
type BigBankDecision struct {
	LoanToDepositRatio  *float64 `json:"loan_to_deposit_ratio" validate:"required,gte=0,lte=1"`
	DepositInterestRate *float64 `json:"deposit_interest_rate" validate:"required,gte=0,lte=1"`
}

func (d *BigBankDecision) Role() Role { return RoleBigBank }

func (d *BigBankDecision) Values() map[string]float64 {
	return collect(map[string]*float64{
		FieldLoanToDepositRatio:  d.LoanToDepositRatio,
		FieldDepositInterestRate: d.DepositInterestRate,
	})
}

// SmallBankDecision is the small community bank's result schema.
type SmallBankDecision struct {
	LoansInterestRate *float64 `json:"loans_interest_rate" validate:"required,gte=0,lte=1"`
	ConsumerLoanFocus *float64 `json:"consumer_loan_focus" validate:"required,gte=0,lte=1"`
}

func (d *SmallBankDecision) Role() Role { return RoleSmallBank }

func (d *SmallBankDecision) Values() map[string]float64 {
	return collect(map[string]*float64{
		FieldLoansInterestRate: d.LoansInterestRate,
		FieldConsumerLoanFocus: d.ConsumerLoanFocus,
	})
}

// EconomicForecast is the economy role's result schema.
type EconomicForecast struct {
	GDPGrowthRate    *float64 `json:"gdp_growth_rate" validate:"required,gte=-1,lte=1"`
	UnemploymentRate *float64 `json:"unemployment_rate" validate:"required,gte=0,lte=1"`
	InflationRate    *float64 `json:"inflation_rate" validate:"required,gte=-1,lte=1"`
}

func (d *EconomicForecast) Role() Role { return RoleEconomy }

func (d *EconomicForecast) Values() map[string]float64 {
	return collect(map[string]*float64{
		FieldGDPGrowthRate:    d.GDPGrowthRate,
		FieldUnemploymentRate: d.UnemploymentRate,
		FieldInflationRate:    d.InflationRate,
	})
}

func collect(m map[string]*float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

// NewDecision returns an empty result of the role's schema, ready to be decoded into.
func NewDecision(role Role) (Decision, error) {
	switch role {
	case RoleCentralBank:
		return &CentralBankDecision{}, nil
	case RoleBigBank:
		return &BigBankDecision{}, nil
	case RoleSmallBank:
		return &SmallBankDecision{}, nil
	case RoleEconomy:
		return &EconomicForecast{}, nil
	default:
		return nil, fmt.Errorf("no decision schema for %s", role)
	}
}

// DecisionFromValues builds a role result from field id -> value.
// Fields absent from values stay nil.
func DecisionFromValues(role Role, values map[string]float64) (Decision, error) {
	p := func(id string) *float64 {
		v, ok := values[id]
		if !ok {
			return nil
		}
		return &v
	}
	switch role {
	case RoleCentralBank:
		return &CentralBankDecision{
			TargetInterestRate:         p(FieldTargetInterestRate),
			SecuritiesHoldingsPcChange: p(FieldSecuritiesHoldingsPcChange),
		}, nil
	case RoleBigBank:
		return &BigBankDecision{
			LoanToDepositRatio:  p(FieldLoanToDepositRatio),
			DepositInterestRate: p(FieldDepositInterestRate),
		}, nil
	case RoleSmallBank:
		return &SmallBankDecision{
			LoansInterestRate: p(FieldLoansInterestRate),
			ConsumerLoanFocus: p(FieldConsumerLoanFocus),
		}, nil
	case RoleEconomy:
		return &EconomicForecast{
			GDPGrowthRate:    p(FieldGDPGrowthRate),
			UnemploymentRate: p(FieldUnemploymentRate),
			InflationRate:    p(FieldInflationRate),
		}, nil
	default:
		return nil, fmt.Errorf("no decision schema for %s", role)
	}
}

func NewCentralBankDecision(targetRate, securitiesChange float64) *CentralBankDecision {
	return &CentralBankDecision{TargetInterestRate: &targetRate, SecuritiesHoldingsPcChange: &securitiesChange}
}

func NewBigBankDecision(loanToDeposit, depositRate float64) *BigBankDecision {
	return &BigBankDecision{LoanToDepositRatio: &loanToDeposit, DepositInterestRate: &depositRate}
}

func NewSmallBankDecision(loansRate, consumerFocus float64) *SmallBankDecision {
	return &SmallBankDecision{LoansInterestRate: &loansRate, ConsumerLoanFocus: &consumerFocus}
}

func NewEconomicForecast(gdp, unemployment, inflation float64) *EconomicForecast {
	return &EconomicForecast{GDPGrowthRate: &gdp, UnemploymentRate: &unemployment, InflationRate: &inflation}
}
