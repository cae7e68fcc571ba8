package catalog

import "fmt"

// PartyRole is the closed set of deal participant roles.
type PartyRole string

const (
	RoleBuyer  PartyRole = "BUYER"
	RoleSeller PartyRole = "SELLER"
	RoleBroker PartyRole = "BROKER"
)

// ParseRole converts a raw role string into a PartyRole
func ParseRole(s string) (PartyRole, error) {
	switch PartyRole(s) {
	case RoleBuyer, RoleSeller, RoleBroker:
		return PartyRole(s), nil
	default:
		return "", fmt.Errorf("unknown party role %q", s)
	}
}

// Phase groups workflow steps into the four trade phases
type Phase string

const (
	PhasePreTrade     Phase = "PRE-TRADE"
	PhaseAgreement    Phase = "AGREEMENT"
	PhaseVerification Phase = "VERIFICATION"
	PhaseSettlement   Phase = "SETTLEMENT"
)

// StepCount is the fixed number of workflow steps per deal
const StepCount = 12

// Step describes one entry of the static deal workflow catalog
type Step struct {
	Number            int         `json:"number"`
	Name              string      `json:"name"`
	Phase             Phase       `json:"phase"`
	Description       string      `json:"description"`
	RequiredParties   []PartyRole `json:"required_parties"`
	RequiredDocuments []string    `json:"required_documents"`
}

// dealSteps is the ordered 12-step workflow table. Order is significant:
// dealSteps[i].Number == i+1.
var dealSteps = [StepCount]Step{
	{
		Number:            1,
		Name:              "NCNDA / IMFPA",
		Phase:             PhasePreTrade,
		Description:       "Non-circumvention, non-disclosure, commission terms",
		RequiredParties:   []PartyRole{RoleBuyer, RoleSeller, RoleBroker},
		RequiredDocuments: []string{"NCNDA", "IMFPA"},
	},
	{
		Number:            2,
		Name:              "ICPO",
		Phase:             PhasePreTrade,
		Description:       "Irrevocable Corporate Purchase Order",
		RequiredParties:   []PartyRole{RoleBuyer},
		RequiredDocuments: []string{"ICPO"},
	},
	{
		Number:            3,
		Name:              "Seller's SCO",
		Phase:             PhasePreTrade,
		Description:       "Soft Corporate Offer",
		RequiredParties:   []PartyRole{RoleSeller},
		RequiredDocuments: []string{"SCO"},
	},
	{
		Number:            4,
		Name:              "Buyer Signs SCO",
		Phase:             PhasePreTrade,
		Description:       "Buyer accepts seller terms",
		RequiredParties:   []PartyRole{RoleBuyer},
		RequiredDocuments: []string{"SCO"},
	},
	{
		Number:            5,
		Name:              "SPA Draft",
		Phase:             PhaseAgreement,
		Description:       "Sales & Purchase Agreement draft",
		RequiredParties:   []PartyRole{RoleSeller},
		RequiredDocuments: []string{"SPA"},
	},
	{
		Number:            6,
		Name:              "SPA Countersign",
		Phase:             PhaseAgreement,
		Description:       "Both parties sign SPA",
		RequiredParties:   []PartyRole{RoleBuyer, RoleSeller},
		RequiredDocuments: []string{"SPA"},
	},
	{
		Number:            7,
		Name:              "Bank Readiness",
		Phase:             PhaseVerification,
		Description:       "Exchange POF and POP via banks",
		RequiredParties:   []PartyRole{RoleBuyer, RoleSeller},
		RequiredDocuments: []string{"POF_MT799", "POP_TSA"},
	},
	{
		Number:            8,
		Name:              "DTA",
		Phase:             PhaseVerification,
		Description:       "Dip Test Authorization",
		RequiredParties:   []PartyRole{RoleSeller},
		RequiredDocuments: []string{"DTA"},
	},
	{
		Number:            9,
		Name:              "Dip Test / Q&Q",
		Phase:             PhaseVerification,
		Description:       "Quality & Quantity inspection",
		RequiredParties:   []PartyRole{RoleBuyer, RoleSeller},
		RequiredDocuments: []string{"INSPECTION_REPORT"},
	},
	{
		Number:            10,
		Name:              "Payment & Title",
		Phase:             PhaseSettlement,
		Description:       "Payment and title transfer",
		RequiredParties:   []PartyRole{RoleBuyer, RoleSeller},
		RequiredDocuments: []string{"PAYMENT_MT103", "TITLE_TRANSFER"},
	},
	{
		Number:            11,
		Name:              "Lift / Delivery",
		Phase:             PhaseSettlement,
		Description:       "Physical product transfer",
		RequiredParties:   []PartyRole{RoleSeller},
		RequiredDocuments: []string{"BILL_OF_LADING"},
	},
	{
		Number:            12,
		Name:              "Commission",
		Phase:             PhaseSettlement,
		Description:       "Commission disbursement",
		RequiredParties:   []PartyRole{RoleBroker},
		RequiredDocuments: []string{"OTHER"},
	},
}

// Steps returns the full ordered catalog
func Steps() []Step {
	out := make([]Step, StepCount)
	copy(out, dealSteps[:])
	return out
}

// StepInfo returns the catalog entry for step n, or false for numbers
// outside 1..12.
func StepInfo(n int) (Step, bool) {
	if n < 1 || n > StepCount {
		return Step{}, false
	}
	return dealSteps[n-1], true
}

// RequiredParties returns the roles whose approval completes step n.
// Unknown step numbers yield an empty set.
func RequiredParties(n int) []PartyRole {
	step, ok := StepInfo(n)
	if !ok {
		return nil
	}
	return step.RequiredParties
}

// CanAct reports whether role is one of step n's required parties
func CanAct(role PartyRole, n int) bool {
	for _, r := range RequiredParties(n) {
		if r == role {
			return true
		}
	}
	return false
}

// PhaseGroup is one phase with its steps in workflow order
type PhaseGroup struct {
	Phase Phase  `json:"phase"`
	Steps []Step `json:"steps"`
}

// StepsByPhase groups the catalog into the four phases, preserving step order
// both across and within groups.
func StepsByPhase() []PhaseGroup {
	order := []Phase{PhasePreTrade, PhaseAgreement, PhaseVerification, PhaseSettlement}
	groups := make([]PhaseGroup, 0, len(order))
	for _, p := range order {
		g := PhaseGroup{Phase: p}
		for _, s := range dealSteps {
			if s.Phase == p {
				g.Steps = append(g.Steps, s)
			}
		}
		groups = append(groups, g)
	}
	return groups
}
