package domain

// SentimentType labels the dominant tone detected in concern text.
type SentimentType string

const (
	SentimentUrgent   SentimentType = "URGENT"
	SentimentNegative SentimentType = "NEGATIVE"
	SentimentPositive SentimentType = "POSITIVE"
	SentimentNeutral  SentimentType = "NEUTRAL"
)

// Sentiment pairs a detected tone with its contribution score.
type Sentiment struct {
	Type  SentimentType
	Score float64
}

// ContextScores holds the four independent composite context signals.
type ContextScores struct {
	TimeSensitivity float64
	AcademicImpact  float64
	FinancialImpact float64
	SafetyConcern   float64
}

// Total sums the four context components.
func (c ContextScores) Total() float64 {
	return c.TimeSensitivity + c.AcademicImpact + c.FinancialImpact + c.SafetyConcern
}

// PriorityAnalysisResult is the transient output of text classification.
// It is never persisted; it only drives a priority update and retains the
// reasoning strings for audit logging.
type PriorityAnalysisResult struct {
	OriginalPriority     ConcernPriority
	DetectedPriority     ConcernPriority
	Confidence           float64
	Reasons              []string
	KeywordsFound        []string
	Sentiment            Sentiment
	Context              ContextScores
	UrgentKeywordPresent bool
	AutoEscalation       bool
}

// Upgrades reports whether the analysis should overwrite the current
// priority: confidence above threshold and a strictly higher tier.
// Automated classification never downgrades.
func (r PriorityAnalysisResult) Upgrades(current ConcernPriority, confidenceFloor float64) bool {
	if r.Confidence <= confidenceFloor {
		return false
	}
	return r.DetectedPriority.Rank() > current.Rank()
}
