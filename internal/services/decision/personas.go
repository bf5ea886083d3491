package decision

import (
	"fmt"
	"strings"

	"Agentomics/internal/domain/models"
	"Agentomics/internal/service/llm"
)

type example struct {
	thought string
	values  map[string]float64
}

// persona is the fixed prompt material of one role.
type persona struct {
	name     string
	tool     string
	system   string
	examples []example
}

const countryX = `You reside in Country X, a hypothetical country with an ideal, well-functioning government that believes in capitalism and free markets. The central banking authority of Country X is CentralBank. Country X's currency is CRX.`

const briefing = `You will receive series showing the values of economic variables and the actions of the central bank and the commercial banks of Country X, with the latest published values at the end of each series.`

var personas = map[models.Role]persona{
	models.RoleCentralBank: {
		name: "CentralBank",
		tool: "result_central_bank_knobs_tool",
		system: `You are CentralBank, a comprehensive central banking authority. ` + countryX + `

` + briefing + ` Analyze the current economic conditions and the behavior of the other banks and decide:
    1) your new target interest rate
    2) your new percent change in securities holdings`,
		examples: []example{{
			thought: "The interest rate goal should be 2.0%, the target interest rate should be at 1.5%, and total securities holdings should decrease by 10%.",
			values:  map[string]float64{models.FieldTargetInterestRate: 0.015, models.FieldSecuritiesHoldingsPcChange: -0.1},
		}},
	},
	models.RoleBigBank: {
		name: "BigBank",
		tool: "result_big_bank_knobs_tool",
		system: `You are BigBank, a large commercial bank serving individuals, companies and governments of every size. ` + countryX + ` You follow the laws of Country X and the regulations of CentralBank.

` + briefing + ` Analyze the current economic conditions and the behavior of the other banks and decide:
    1) your new loan-to-deposit ratio
    2) your new deposit interest rate`,
		examples: []example{{
			thought: "The loan to deposit ratio should be 80%, and the deposit interest rate should be at 1.2%.",
			values:  map[string]float64{models.FieldLoanToDepositRatio: 0.80, models.FieldDepositInterestRate: 0.012},
		}},
	},
	models.RoleSmallBank: {
		name: "SmallBank",
		tool: "result_small_bank_knobs_tool",
		system: `You are SmallBank, a community bank representative of the other community banks. ` + countryX + ` You follow the laws of Country X and the regulations of CentralBank.

` + briefing + ` Analyze the current economic conditions and the behavior of the other banks and decide:
    1) your new loans interest rate
    2) your new consumer loan focus`,
		examples: []example{{
			thought: "The loans interest rate should be 3.5%, and the consumer loan focus should be at 60%.",
			values:  map[string]float64{models.FieldLoansInterestRate: 0.035, models.FieldConsumerLoanFocus: 0.60},
		}},
	},
	models.RoleEconomy: {
		name: "EconomyAgent",
		tool: "result_econ_vars_tool",
		system: `You are EconomyAgent and you simulate the economic conditions of Country X. ` + countryX + ` BigBank represents the large commercial banks and SmallBank represents the small community banks.

` + briefing + ` Analyze the current economic conditions and the behavior of all banks and predict for the next quarter:
    1) the GDP growth rate percent change
    2) the unemployment rate
    3) the inflation rate`,
		examples: []example{
			{
				thought: "From my analysis, I think the GDP growth rate should be 2.7%, the unemployment rate should be at 14%, and the inflation rate should be at 2.5% for this quarter.",
				values:  map[string]float64{models.FieldGDPGrowthRate: 0.027, models.FieldUnemploymentRate: 0.14, models.FieldInflationRate: 0.025},
			},
			{
				thought: "GDP should shrink by 5.4%. Let unemployment rise to 25%. We should start to see deflation at a rate of 1.4%.",
				values:  map[string]float64{models.FieldGDPGrowthRate: -0.054, models.FieldUnemploymentRate: 0.25, models.FieldInflationRate: -0.014},
			},
		},
	},
}

// systemPrompt renders the role description, the reporting rules and the
// worked examples.
func (p persona) systemPrompt(role models.Role) string {
	var b strings.Builder
	b.WriteString(p.system)
	b.WriteString("\n\nReport every percentage as a decimal (2.5% is 0.025). When you are ready, call `")
	b.WriteString(p.tool)
	b.WriteString("` exactly once with your new values.\n\nExamples:\n")
	fields := models.FieldsOf(role)
	for _, ex := range p.examples {
		b.WriteString("- ")
		b.WriteString(ex.thought)
		b.WriteString("\n  ")
		b.WriteString(p.tool)
		b.WriteString(" {")
		for i, f := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%q: %g", f.ID, ex.values[f.ID])
		}
		b.WriteString("}\n")
	}
	return b.String()
}

// toolDef is the JSON-schema function definition of the role's result.
func (p persona) toolDef(role models.Role) llm.Tool {
	props := make(map[string]any)
	required := make([]string, 0, 3)
	for _, f := range models.FieldsOf(role) {
		lo, hi := f.Kind.Bounds()
		prop := map[string]any{
			"type":        "number",
			"description": f.Label + ", as a decimal",
			"minimum":     lo,
		}
		if f.Kind.IsPercent() {
			prop["maximum"] = hi
		}
		props[f.ID] = prop
		required = append(required, f.ID)
	}
	return llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        p.tool,
			Description: fmt.Sprintf("Report the new values decided by %s", p.name),
			Parameters: map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		},
	}
}
