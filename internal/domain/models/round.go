package models

import "fmt"

// Round buffers the validated results of one quarter until they are committed.
type Round struct {
	Quarter int

	CentralBank *CentralBankDecision
	BigBank     *BigBankDecision
	SmallBank   *SmallBankDecision
	Economy     *EconomicForecast
}

// Put stores d in the slot of its role. A slot can be filled only once.
func (r *Round) Put(d Decision) error {
	switch v := d.(type) {
	case *CentralBankDecision:
		if r.CentralBank != nil {
			return fmt.Errorf("round %d: %s already decided", r.Quarter, v.Role())
		}
		r.CentralBank = v
	case *BigBankDecision:
		if r.BigBank != nil {
			return fmt.Errorf("round %d: %s already decided", r.Quarter, v.Role())
		}
		r.BigBank = v
	case *SmallBankDecision:
		if r.SmallBank != nil {
			return fmt.Errorf("round %d: %s already decided", r.Quarter, v.Role())
		}
		r.SmallBank = v
	case *EconomicForecast:
		if r.Economy != nil {
			return fmt.Errorf("round %d: %s already decided", r.Quarter, v.Role())
		}
		r.Economy = v
	default:
		return fmt.Errorf("round %d: unsupported decision %T", r.Quarter, d)
	}
	return nil
}

// Decisions returns the filled slots in turn order.
func (r *Round) Decisions() []Decision {
	out := make([]Decision, 0, 4)
	if r.CentralBank != nil {
		out = append(out, r.CentralBank)
	}
	if r.BigBank != nil {
		out = append(out, r.BigBank)
	}
	if r.SmallBank != nil {
		out = append(out, r.SmallBank)
	}
	if r.Economy != nil {
		out = append(out, r.Economy)
	}
	return out
}

// Missing lists the roles that have not decided yet.
func (r *Round) Missing() []Role {
	var out []Role
	if r.CentralBank == nil {
		out = append(out, RoleCentralBank)
	}
	if r.BigBank == nil {
		out = append(out, RoleBigBank)
	}
	if r.SmallBank == nil {
		out = append(out, RoleSmallBank)
	}
	if r.Economy == nil {
		out = append(out, RoleEconomy)
	}
	return out
}

// Values flattens the round into field id -> value.
func (r *Round) Values() map[string]float64 {
	out := make(map[string]float64, len(fieldSpecs))
	for _, d := range r.Decisions() {
		for k, v := range d.Values() {
			out[k] = v
		}
	}
	return out
}
