package docstore

import "github.com/civicgrid/veridoc/pkg/models"

// wellKnown is a built-in reference table for widely cited documents. It is
// the last per-document retrieval fallback: even with an empty index and an
// empty store, a question scoped to one of these still gets grounded in its
// summary.
var wellKnown = map[string]models.Document{
	"income-tax-act-2025": {
		ID:       "income-tax-act-2025",
		Title:    "Income Tax Act, 2025",
		Category: models.CategoryAct,
		Summary: "Replaces the Income Tax Act of 1961 with a shorter, plainly " +
			"worded law. The number of sections drops from 819 to 536 and the " +
			"chapter count from 47 to 23, without changing tax rates. A single " +
			"'tax year' replaces the separate assessment and previous year concepts.",
		KeyPoints: []string{
			"Sections reduced from 819 to 536 and chapters from 47 to 23.",
			"Tax rates and slabs are unchanged; the rewrite is structural.",
			"One 'tax year' replaces the assessment year and previous year.",
			"Tables and formulas replace long provisos for readability.",
		},
		SourceOrg: "Ministry of Finance",
	},
	"dpdp-act-2023": {
		ID:       "dpdp-act-2023",
		Title:    "Digital Personal Data Protection Act, 2023",
		Category: models.CategoryAct,
		Summary: "Sets rules for how organizations may collect and process " +
			"personal data in digital form. Requires notice and consent before " +
			"processing, gives individuals rights to access and erase their " +
			"data, and establishes a Data Protection Board to hear complaints.",
		KeyPoints: []string{
			"Consent is required before personal data is processed.",
			"Individuals can demand access, correction, and erasure.",
			"A Data Protection Board adjudicates complaints and penalties.",
		},
		SourceOrg: "Ministry of Electronics and Information Technology",
	},
	"rti-act-2005": {
		ID:       "rti-act-2005",
		Title:    "Right to Information Act, 2005",
		Category: models.CategoryAct,
		Summary: "Gives citizens the right to request information from public " +
			"authorities, which must reply within thirty days. Every public " +
			"authority must appoint information officers and proactively " +
			"publish key records.",
		KeyPoints: []string{
			"Any citizen may request records from a public authority.",
			"Authorities must respond within thirty days.",
			"Information officers face penalties for wrongful refusal.",
		},
		SourceOrg: "Ministry of Personnel, Public Grievances and Pensions",
	},
}

// WellKnown looks up a document in the built-in reference table.
func WellKnown(id string) (models.Document, bool) {
	doc, ok := wellKnown[id]
	return doc, ok
}
