package usecase

import (
	"fmt"

	"Agentomics/internal/domain/models"
)

const headerLegend = `Here is the latest data. economic_variables is the header given to the series that represent different economic variables over the last quarters. central_bank_knobs is the header given to the series that represent the different knobs that %s. big_bank_knobs is the header given to the series that represent the different knobs that %s. small_bank_knobs is the header given to the series that represent the different knobs that %s.`

// Instruction builds the per-role request text around a state snapshot.
func Instruction(role models.Role, snapshot string) string {
	cb := "the central bank has manipulated in the past"
	bb := "a representative large commercial bank has manipulated in the past"
	sb := "a representative small community bank has manipulated in the past"
	var ask string

	switch role {
	case models.RoleCentralBank:
		cb = "you, CentralBank, have manipulated in the past"
		ask = "Now analyze this new data and make your new decision on the new target interest rate and your new percent change in securities holdings."
	case models.RoleBigBank:
		bb = "you, BigBank, have manipulated in the past"
		ask = "Now analyze this new data and make your new decisions on the loan-to-deposit ratio and the deposit interest rate."
	case models.RoleSmallBank:
		sb = "you, SmallBank, have manipulated in the past"
		ask = "Now analyze this new data and make your new decision on the new loans interest rate and consumer loan focus."
	case models.RoleEconomy:
		ask = "Now analyze this new data and make your new predictions for the next quarter."
	}

	return fmt.Sprintf(headerLegend, cb, bb, sb) + "\n" + snapshot + "\n" + ask + "\nReport every percentage as a decimal."
}
