package entities

// Pharmaceutical is one national drug product record: trade name, dose form
// and an ordered list of active-substance components. Records are built once
// from the registry extract and never mutated afterwards.
type Pharmaceutical struct {
	DrugID     string      `json:"drugId"`
	TradeName  string      `json:"tradeName"`
	DoseForm   DoseForm    `json:"doseForm"`
	Components []Component `json:"components"`
}

// Component is one active substance with its strength and unit. Strength is
// kept as the raw registry string (national decimal notation); it is never
// parsed as a number.
type Component struct {
	Substance Substance `json:"substance"`
	Strength  string    `json:"strength"`
	Unit      string    `json:"unit"`
}

// Equal reports full structural equality between two pharmaceuticals.
func (p Pharmaceutical) Equal(o Pharmaceutical) bool {
	if p.DrugID != o.DrugID || p.TradeName != o.TradeName || p.DoseForm != o.DoseForm {
		return false
	}
	if len(p.Components) != len(o.Components) {
		return false
	}
	for i := range p.Components {
		if p.Components[i] != o.Components[i] {
			return false
		}
	}
	return true
}
