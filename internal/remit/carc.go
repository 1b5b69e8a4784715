package remit

// Claim adjustment group codes (CAS01).
var groupCodes = map[string]string{
	"CO": "Contractual Obligation",
	"CR": "Correction and Reversal",
	"OA": "Other Adjustment",
	"PI": "Payer Initiated Reduction",
	"PR": "Patient Responsibility",
}

// Frequently seen claim adjustment reason codes. Anything else is carried
// through as the bare code.
var reasonCodes = map[string]string{
	"1":   "Deductible amount",
	"2":   "Coinsurance amount",
	"3":   "Co-payment amount",
	"4":   "Procedure code inconsistent with modifier",
	"16":  "Claim lacks information needed for adjudication",
	"18":  "Exact duplicate claim/service",
	"22":  "Care may be covered by another payer",
	"23":  "Impact of prior payer adjudication",
	"29":  "Time limit for filing has expired",
	"45":  "Charge exceeds fee schedule/maximum allowable",
	"50":  "Non-covered service: not deemed a medical necessity",
	"96":  "Non-covered charge(s)",
	"97":  "Benefit included in payment for another service",
	"119": "Benefit maximum for this time period has been reached",
	"197": "Precertification/authorization absent",
	"204": "Service not covered under patient's current benefit plan",
	"253": "Sequestration - reduction in federal payment",
}

// describeAdjustment renders "CO-45 Charge exceeds fee schedule/maximum allowable".
func describeAdjustment(group, reason string) string {
	code := group + "-" + reason
	if group == "" {
		code = reason
	}
	if desc, ok := reasonCodes[reason]; ok {
		return code + " " + desc
	}
	return code
}
