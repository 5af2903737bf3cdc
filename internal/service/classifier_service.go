package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/studentlink/concern-service/internal/config"
	"github.com/studentlink/concern-service/internal/domain"
	"github.com/studentlink/concern-service/internal/observability"
	apperrors "github.com/studentlink/concern-service/pkg/util/errorutil"
)

// ClassifierService scores free concern text against keyword, sentiment and
// context lexicons to produce a priority tier with a confidence. It never
// mutates the concern; applying the result is the orchestrator's job.
type ClassifierService struct {
	cfg     config.ClassifierConfig
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewClassifierService constructs the classifier.
func NewClassifierService(cfg config.ClassifierConfig, metrics *observability.Metrics, logger *zap.Logger) *ClassifierService {
	return &ClassifierService{cfg: cfg, metrics: metrics, logger: logger}
}

// Analyze classifies the concatenated subject and description. Malformed or
// empty input never fails: it falls back to medium priority with minimal
// confidence so the concern stays on a manual-triage path.
func (s *ClassifierService) Analyze(subject, description string, current domain.ConcernPriority) domain.PriorityAnalysisResult {
	text := strings.ToLower(strings.TrimSpace(subject + " " + description))
	s.metrics.RecordEngine("classifications")

	result := domain.PriorityAnalysisResult{
		OriginalPriority: current,
	}

	if text == "" {
		result.DetectedPriority = domain.ConcernPriorityMedium
		result.Confidence = 0.1
		result.Sentiment = domain.Sentiment{Type: domain.SentimentNeutral}
		result.Reasons = append(result.Reasons, "empty concern text; defaulting to medium priority")
		s.logger.Warn("classification fell back to default priority",
			zap.Error(apperrors.NewClassificationError("no analyzable text", nil)))
		return result
	}

	tierScores := map[domain.ConcernPriority]float64{}

	// 1. Weighted keyword scan.
	scanTier := func(tier domain.ConcernPriority, keywords []string, weight float64) {
		var hits []string
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				tierScores[tier] += weight
				hits = append(hits, kw)
			}
		}
		if len(hits) > 0 {
			result.KeywordsFound = append(result.KeywordsFound, hits...)
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("%s keywords: %s", strings.ToLower(string(tier)), strings.Join(hits, ", ")))
		}
		if tier == domain.ConcernPriorityUrgent && len(hits) > 0 {
			result.UrgentKeywordPresent = true
		}
	}
	scanTier(domain.ConcernPriorityUrgent, urgentKeywords, urgentKeywordWeight)
	scanTier(domain.ConcernPriorityHigh, highKeywords, highKeywordWeight)
	scanTier(domain.ConcernPriorityMedium, mediumKeywords, mediumKeywordWeight)
	scanTier(domain.ConcernPriorityLow, lowKeywords, lowKeywordWeight)

	// 2. Sentiment scan.
	result.Sentiment = detectSentiment(text)
	switch result.Sentiment.Type {
	case domain.SentimentUrgent:
		tierScores[domain.ConcernPriorityUrgent] += 1.0
		result.Reasons = append(result.Reasons, "urgent language detected")
	case domain.SentimentNegative:
		tierScores[domain.ConcernPriorityHigh] += 0.5
		result.Reasons = append(result.Reasons, "negative sentiment detected")
	}

	// 3. Context composites.
	result.Context = domain.ContextScores{
		TimeSensitivity: contextScore(text, timeSensitivityWords),
		AcademicImpact:  contextScore(text, academicImpactWords),
		FinancialImpact: contextScore(text, financialImpactWords),
		SafetyConcern:   contextScore(text, safetyConcernWords),
	}
	total := result.Context.Total()
	switch {
	case total >= 0.8:
		tierScores[domain.ConcernPriorityUrgent] += 1.0
		result.Reasons = append(result.Reasons, fmt.Sprintf("context score %.2f adds urgent weight", total))
	case total >= 0.5:
		tierScores[domain.ConcernPriorityHigh] += 0.7
		result.Reasons = append(result.Reasons, fmt.Sprintf("context score %.2f adds high weight", total))
	case total >= 0.2:
		tierScores[domain.ConcernPriorityMedium] += 0.5
		result.Reasons = append(result.Reasons, fmt.Sprintf("context score %.2f adds medium weight", total))
	default:
		tierScores[domain.ConcernPriorityLow] += 0.3
	}

	// 4. Detected tier and confidence. Ties resolve to the higher tier.
	var sum float64
	for _, score := range tierScores {
		sum += score
	}
	detected := domain.ConcernPriorityLow
	var best float64
	for _, tier := range domain.Priorities() {
		if tierScores[tier] >= best && tierScores[tier] > 0 {
			best = tierScores[tier]
			detected = tier
		}
	}
	result.DetectedPriority = detected
	if sum > 0 {
		result.Confidence = best / sum
	} else {
		result.Confidence = 0.5
		result.DetectedPriority = current
	}
	result.Reasons = append(result.Reasons,
		fmt.Sprintf("detected %s with confidence %.2f", strings.ToLower(string(result.DetectedPriority)), result.Confidence))

	// 5. Auto-escalation flag.
	if (result.DetectedPriority == domain.ConcernPriorityUrgent && result.Confidence > s.cfg.AutoEscalationConfidence) ||
		result.Context.SafetyConcern > s.cfg.SafetyEscalationScore {
		result.AutoEscalation = true
	}

	s.logger.Debug("classified concern text",
		zap.String("detected", string(result.DetectedPriority)),
		zap.Float64("confidence", result.Confidence),
		zap.Strings("keywords", result.KeywordsFound))

	return result
}

func detectSentiment(text string) domain.Sentiment {
	for _, word := range urgentLanguageWords {
		if strings.Contains(text, word) {
			return domain.Sentiment{Type: domain.SentimentUrgent, Score: 0.8}
		}
	}
	negatives := countHits(text, negativeWords)
	positives := countHits(text, positiveWords)
	switch {
	case negatives > positives:
		return domain.Sentiment{Type: domain.SentimentNegative, Score: 0.5}
	case positives > negatives:
		return domain.Sentiment{Type: domain.SentimentPositive, Score: 0.5}
	}
	return domain.Sentiment{Type: domain.SentimentNeutral}
}

func countHits(text string, words []string) int {
	var count int
	for _, word := range words {
		if strings.Contains(text, word) {
			count++
		}
	}
	return count
}

func contextScore(text string, words map[string]float64) float64 {
	var score float64
	for word, weight := range words {
		if strings.Contains(text, word) {
			score += weight
		}
	}
	return score
}
