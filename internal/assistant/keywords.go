package assistant

import "strings"

// institutionalKeywords marks questions that are about the institute.
// Queries that mention none of these skip retrieval entirely: greeting
// and general-knowledge questions do not need an embedding round-trip.
var institutionalKeywords = []string{
	"thapar", "tiet", "patiala", "derabassi",
	"hostel", "mess", "campus", "library",
	"fee", "fees", "scholarship", "refund",
	"admission", "counselling", "cutoff", "eligibility",
	"semester", "exam", "result", "syllabus", "timetable",
	"course", "branch", "department", "credit",
	"faculty", "professor", "dean", "registrar",
	"placement", "internship", "training",
	"institute", "college", "university",
	"degree", "btech", "mtech", "phd",
	"student", "attendance", "backlog", "reappear",
	"convocation", "transcript", "migration",
}

// aboutInstitute reports whether the text appears to concern the
// institute and therefore warrants knowledge-base retrieval.
func aboutInstitute(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range institutionalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
