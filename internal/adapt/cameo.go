package adapt

// OtherEventType labels event codes whose root is not in the CAMEO table
const OtherEventType = "Other"

// cameoRoots maps two-character CAMEO root codes to human-readable labels
var cameoRoots = map[string]string{
	"01": "Make public statement",
	"02": "Appeal",
	"03": "Express intent to cooperate",
	"04": "Consult",
	"05": "Engage in diplomatic cooperation",
	"06": "Engage in material cooperation",
	"07": "Provide aid",
	"08": "Yield",
	"09": "Investigate",
	"10": "Demand",
	"11": "Disapprove",
	"12": "Reject",
	"13": "Threaten",
	"14": "Protest",
	"15": "Exhibit military posture",
	"16": "Reduce relations",
	"17": "Coerce",
	"18": "Assault",
	"19": "Fight",
	"20": "Use unconventional mass violence",
}

// EventTypeLabel returns the label for an event code's root (its first two
// characters, leading zeros kept). Codes outside the table map to "Other".
func EventTypeLabel(eventCode string) string {
	if len(eventCode) < 2 {
		return OtherEventType
	}
	if label, ok := cameoRoots[eventCode[:2]]; ok {
		return label
	}
	return OtherEventType
}

// EventTypeLabels returns every label the adapter can produce, in root-code order
func EventTypeLabels() []string {
	labels := make([]string, 0, len(cameoRoots)+1)
	for _, code := range []string{
		"01", "02", "03", "04", "05", "06", "07", "08", "09", "10",
		"11", "12", "13", "14", "15", "16", "17", "18", "19", "20",
	} {
		labels = append(labels, cameoRoots[code])
	}
	return append(labels, OtherEventType)
}
