package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/supportsphere/escalation-engine/internal/core/kb"
	"github.com/supportsphere/escalation-engine/internal/models"
)

func keywordRule(name, keyword, action string) models.ThresholdRule {
	return models.ThresholdRule{
		ID:          uuid.New(),
		RuleName:    name,
		TriggerType: models.TriggerKeyword,
		Keyword:     keyword,
		Action:      action,
		IsActive:    true,
	}
}

func similarityRule(threshold float64) models.ThresholdRule {
	return models.ThresholdRule{
		ID:                  uuid.New(),
		RuleName:            "confidence floor",
		TriggerType:         models.TriggerSimilarity,
		ConfidenceThreshold: threshold,
		IsActive:            true,
	}
}

func hit(score float32, answer string) kb.RetrievalResult {
	return kb.RetrievalResult{
		Kind:      kb.SourceFaq,
		RefID:     uuid.New(),
		Score:     score,
		Answer:    answer,
		UpdatedAt: time.Now(),
	}
}

func TestSnapshotThreshold(t *testing.T) {
	t.Run("default applies with no rules", func(t *testing.T) {
		assert.Equal(t, DefaultThreshold, Snapshot{}.Threshold())
	})

	t.Run("first active similarity rule wins", func(t *testing.T) {
		s := Snapshot{Rules: []models.ThresholdRule{
			keywordRule("kw", "refund", "escalate"),
			similarityRule(0.8),
			similarityRule(0.2),
		}}
		assert.Equal(t, 0.8, s.Threshold())
	})

	t.Run("inactive similarity rules are skipped", func(t *testing.T) {
		inactive := similarityRule(0.9)
		inactive.IsActive = false
		s := Snapshot{Rules: []models.ThresholdRule{inactive}}
		assert.Equal(t, DefaultThreshold, s.Threshold())
	})
}

func TestDecideKeywordPrecedence(t *testing.T) {
	t.Run("keyword rule fires even when similarity would autoreply", func(t *testing.T) {
		snapshot := Snapshot{Rules: []models.ThresholdRule{
			keywordRule("refund escalation", "refund", "escalate"),
		}}
		results := []kb.RetrievalResult{hit(0.99, "perfect answer")}

		d := Decide(snapshot, results, "I want a REFUND now")
		assert.Equal(t, DecisionApplyAction, d.Kind)
		assert.Equal(t, "escalate", d.Action)
		assert.Equal(t, "refund escalation", d.RuleName)
	})

	t.Run("keyword match is case-insensitive substring", func(t *testing.T) {
		snapshot := Snapshot{Rules: []models.ThresholdRule{
			keywordRule("closer", "goodbye", "close"),
		}}
		d := Decide(snapshot, nil, "ok Goodbye then")
		assert.Equal(t, DecisionApplyAction, d.Kind)
		assert.Equal(t, "close", d.Action)
	})

	t.Run("keyword rules fire in snapshot order", func(t *testing.T) {
		snapshot := Snapshot{Rules: []models.ThresholdRule{
			keywordRule("first", "help", "reply-a"),
			keywordRule("second", "help", "reply-b"),
		}}
		d := Decide(snapshot, nil, "please help me")
		assert.Equal(t, "first", d.RuleName)
		assert.Equal(t, "reply-a", d.Action)
	})

	t.Run("inactive keyword rules never fire", func(t *testing.T) {
		rule := keywordRule("off", "refund", "escalate")
		rule.IsActive = false
		snapshot := Snapshot{Rules: []models.ThresholdRule{rule}}
		results := []kb.RetrievalResult{hit(0.9, "answer")}

		d := Decide(snapshot, results, "refund please")
		assert.Equal(t, DecisionAutoreply, d.Kind)
	})
}

func TestDecideSimilarity(t *testing.T) {
	t.Run("score above threshold autoreplies with the top answer", func(t *testing.T) {
		results := []kb.RetrievalResult{
			hit(0.9, "best answer"),
			hit(0.6, "second answer"),
		}
		d := Decide(Snapshot{}, results, "how do I reset my password")
		assert.Equal(t, DecisionAutoreply, d.Kind)
		assert.Equal(t, "best answer", d.Answer)
		assert.NotNil(t, d.Source)
		assert.Equal(t, results[0].RefID, d.Source.RefID)
	})

	t.Run("score exactly at threshold autoreplies", func(t *testing.T) {
		results := []kb.RetrievalResult{hit(0.5, "boundary answer")}
		d := Decide(Snapshot{}, results, "question")
		assert.Equal(t, DecisionAutoreply, d.Kind)
	})

	t.Run("score below threshold escalates", func(t *testing.T) {
		results := []kb.RetrievalResult{hit(0.49, "weak answer")}
		d := Decide(Snapshot{}, results, "question")
		assert.Equal(t, DecisionEscalate, d.Kind)
		assert.NotEmpty(t, d.Reason)
	})

	t.Run("no results escalates", func(t *testing.T) {
		d := Decide(Snapshot{}, nil, "question")
		assert.Equal(t, DecisionEscalate, d.Kind)
	})

	t.Run("configured threshold overrides the default", func(t *testing.T) {
		snapshot := Snapshot{Rules: []models.ThresholdRule{similarityRule(0.95)}}
		results := []kb.RetrievalResult{hit(0.9, "answer")}
		d := Decide(snapshot, results, "question")
		assert.Equal(t, DecisionEscalate, d.Kind)
	})
}

func TestDecideIsPure(t *testing.T) {
	snapshot := Snapshot{Rules: []models.ThresholdRule{
		keywordRule("kw", "agent", "escalate"),
		similarityRule(0.7),
	}}
	results := []kb.RetrievalResult{hit(0.75, "answer")}

	first := Decide(snapshot, results, "some question")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Decide(snapshot, results, "some question"))
	}
}
