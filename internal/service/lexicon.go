package service

import "github.com/studentlink/concern-service/internal/domain"

// Keyword lexicons driving priority classification. Matching is a
// case-insensitive substring scan, so multi-word phrases are allowed.
// Each tier hit adds the tier weight once per keyword.

const (
	urgentKeywordWeight = 1.0
	highKeywordWeight   = 0.7
	mediumKeywordWeight = 0.5
	lowKeywordWeight    = 0.3
)

var urgentKeywords = []string{
	"urgent", "emergency", "asap", "immediately", "critical",
	"danger", "unsafe", "threat", "severe", "right away", "crisis",
}

var highKeywords = []string{
	"broken", "failed", "failure", "error", "cannot", "can't",
	"unable", "blocked", "locked out", "deadline", "overdue", "not working",
}

var mediumKeywords = []string{
	"help", "issue", "problem", "question", "request", "slow",
	"delayed", "confused", "concern", "trouble",
}

var lowKeywords = []string{
	"suggestion", "feedback", "whenever", "minor", "someday",
	"curious", "wondering", "information",
}

// Sentiment word sets. Any urgent-language hit forces urgent sentiment;
// otherwise negative/positive majority decides.

var urgentLanguageWords = []string{
	"urgent", "emergency", "immediately", "asap", "critical", "right now", "desperate",
}

var negativeWords = []string{
	"angry", "frustrated", "disappointed", "unfair", "terrible",
	"awful", "worst", "annoyed", "upset", "unacceptable", "ridiculous",
}

var positiveWords = []string{
	"thanks", "thank you", "appreciate", "great", "pleased", "happy", "wonderful",
}

// Context composites. Four independent scores accumulated from keyword
// presence; per-keyword contributions stay in the 0.2-0.4 band and the
// composites are deliberately uncapped.

var timeSensitivityWords = map[string]float64{
	"asap":        0.4,
	"deadline":    0.4,
	"immediately": 0.4,
	"last day":    0.4,
	"urgent":      0.3,
	"today":       0.3,
	"expires":     0.3,
	"tomorrow":    0.2,
}

var academicImpactWords = map[string]float64{
	"exam":         0.4,
	"graduation":   0.4,
	"grade":        0.3,
	"enrollment":   0.3,
	"registration": 0.3,
	"thesis":       0.3,
	"scholarship":  0.3,
	"class":        0.2,
	"course":       0.2,
}

var financialImpactWords = map[string]float64{
	"tuition":     0.4,
	"payment":     0.3,
	"refund":      0.3,
	"billing":     0.3,
	"debt":        0.3,
	"scholarship": 0.3,
	"fee":         0.2,
	"charge":      0.2,
}

var safetyConcernWords = map[string]float64{
	"danger":     0.4,
	"unsafe":     0.4,
	"threat":     0.4,
	"injury":     0.4,
	"harassment": 0.4,
	"assault":    0.4,
	"stalking":   0.4,
	"weapon":     0.4,
	"fire":       0.3,
	"accident":   0.3,
}

// Skill lookup for assignment scoring: concern type to title keywords that
// count as an exact skill match.
var skillKeywordsByType = map[domain.ConcernType][]string{
	domain.ConcernTypeAcademic:        {"academic", "registrar", "advisor", "faculty"},
	domain.ConcernTypeFinancial:       {"financial", "bursar", "billing", "accounting"},
	domain.ConcernTypeFacility:        {"facility", "facilities", "maintenance", "custodial"},
	domain.ConcernTypeStudentServices: {"student services", "student affairs", "counselor"},
	domain.ConcernTypeTechnical:       {"technical", "it ", "technology", "systems", "network"},
	domain.ConcernTypeDisciplinary:    {"disciplinary", "conduct", "compliance"},
	domain.ConcernTypeGeneral:         {"general", "administration"},
	domain.ConcernTypeSafety:          {"safety", "security", "police"},
	domain.ConcernTypeEmergency:       {"emergency", "security", "safety", "police"},
	domain.ConcernTypeOther:           {"coordinator"},
}

// Titles that count as generic support capability for any concern type.
var genericSupportKeywords = []string{"support", "assistant", "coordinator", "officer", "helpdesk"}
