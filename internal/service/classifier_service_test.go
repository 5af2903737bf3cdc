package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studentlink/concern-service/internal/config"
	"github.com/studentlink/concern-service/internal/domain"
)

func newClassifier() *ClassifierService {
	return NewClassifierService(config.DefaultEngineConfig().Classifier, nil, zap.NewNop())
}

func TestAnalyzeUrgentCompositeText(t *testing.T) {
	c := newClassifier()

	result := c.Analyze("My enrollment is broken", "urgent help needed ASAP", domain.ConcernPriorityMedium)

	assert.Equal(t, domain.ConcernPriorityUrgent, result.DetectedPriority)
	// urgent tier: urgent + asap keywords (2.0), urgent sentiment (1.0),
	// context total 1.0 adds another 1.0; high gets broken (0.7), medium
	// gets help (0.5): 4.0 / 5.2
	assert.InDelta(t, 0.769, result.Confidence, 0.005)
	assert.True(t, result.UrgentKeywordPresent)
	assert.True(t, result.AutoEscalation)
	assert.Equal(t, domain.SentimentUrgent, result.Sentiment.Type)
	assert.True(t, result.Upgrades(domain.ConcernPriorityMedium, c.cfg.ConfidenceFloor))
}

func TestAnalyzeEmptyTextFallsBackToMedium(t *testing.T) {
	c := newClassifier()

	result := c.Analyze("", "   ", domain.ConcernPriorityLow)

	assert.Equal(t, domain.ConcernPriorityMedium, result.DetectedPriority)
	assert.InDelta(t, 0.1, result.Confidence, 0.001)
	assert.Equal(t, domain.SentimentNeutral, result.Sentiment.Type)
	assert.False(t, result.Upgrades(domain.ConcernPriorityLow, c.cfg.ConfidenceFloor))
}

func TestAnalyzeSafetyContextForcesAutoEscalation(t *testing.T) {
	c := newClassifier()

	result := c.Analyze("Harassment in the dorm", "", domain.ConcernPriorityMedium)

	require.Greater(t, result.Context.SafetyConcern, 0.3)
	assert.True(t, result.AutoEscalation)
	assert.NotEqual(t, domain.ConcernPriorityUrgent, result.DetectedPriority)
}

func TestAnalyzeLowTierText(t *testing.T) {
	c := newClassifier()

	result := c.Analyze("Just wondering", "some information about parking passes", domain.ConcernPriorityMedium)

	assert.Equal(t, domain.ConcernPriorityLow, result.DetectedPriority)
	// high confidence in a lower tier must never downgrade
	assert.False(t, result.Upgrades(domain.ConcernPriorityMedium, c.cfg.ConfidenceFloor))
}

func TestAnalyzeNegativeSentimentBoostsHigh(t *testing.T) {
	c := newClassifier()

	result := c.Analyze("I am frustrated", "this is unacceptable and terrible", domain.ConcernPriorityLow)

	assert.Equal(t, domain.SentimentNegative, result.Sentiment.Type)
	assert.Equal(t, domain.ConcernPriorityHigh, result.DetectedPriority)
}

func TestUpgradesRequiresConfidenceStrictlyAboveFloor(t *testing.T) {
	result := domain.PriorityAnalysisResult{
		DetectedPriority: domain.ConcernPriorityHigh,
		Confidence:       0.6,
	}
	assert.False(t, result.Upgrades(domain.ConcernPriorityMedium, 0.6))

	result.Confidence = 0.61
	assert.True(t, result.Upgrades(domain.ConcernPriorityMedium, 0.6))
	assert.False(t, result.Upgrades(domain.ConcernPriorityHigh, 0.6))
	assert.False(t, result.Upgrades(domain.ConcernPriorityUrgent, 0.6))
}
