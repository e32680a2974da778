package rules

import (
	"fmt"
	"strings"

	"github.com/supportsphere/escalation-engine/internal/core/kb"
	"github.com/supportsphere/escalation-engine/internal/models"
)

// DefaultThreshold is the global confidence floor used when no similarity
// rule is configured for an owner
const DefaultThreshold = 0.5

// DecisionKind tags the outcome of rule evaluation
type DecisionKind string

const (
	DecisionAutoreply   DecisionKind = "autoreply"
	DecisionApplyAction DecisionKind = "apply_action"
	DecisionEscalate    DecisionKind = "escalate"
)

// Decision is the evaluator's verdict for one inbound message
type Decision struct {
	Kind DecisionKind `json:"kind"`

	// Autoreply: the answer text and the retrieval hit it came from
	Answer string              `json:"answer,omitempty"`
	Source *kb.RetrievalResult `json:"source,omitempty"`

	// ApplyAction: the configured action of the keyword rule that fired
	Action   string `json:"action,omitempty"`
	RuleName string `json:"rule_name,omitempty"`

	// Escalate
	Reason string `json:"reason,omitempty"`
}

// Snapshot is the per-request rule configuration, loaded once and passed by
// value so evaluation stays pure
type Snapshot struct {
	Rules []models.ThresholdRule
}

// Threshold returns the confidence threshold applicable to this snapshot:
// the first active similarity rule's threshold, or the global default
func (s Snapshot) Threshold() float64 {
	for _, rule := range s.Rules {
		if rule.TriggerType == models.TriggerSimilarity && rule.IsActive {
			return rule.ConfidenceThreshold
		}
	}
	return DefaultThreshold
}

// Decide maps retrieval results and the raw inbound text to a decision.
//
// Policy, in order:
//  1. any matching keyword rule fires its action (keyword rules pre-empt
//     similarity, in snapshot order)
//  2. if the best retrieval score meets the threshold (inclusive), autoreply
//     with the top result's answer
//  3. otherwise escalate
//
// Pure given its inputs: identical arguments always yield the same decision.
func Decide(snapshot Snapshot, results []kb.RetrievalResult, inboundText string) Decision {
	lowered := strings.ToLower(inboundText)

	for _, rule := range snapshot.Rules {
		if !rule.IsActive || rule.TriggerType != models.TriggerKeyword || rule.Keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(rule.Keyword)) {
			return Decision{
				Kind:     DecisionApplyAction,
				Action:   rule.Action,
				RuleName: rule.RuleName,
			}
		}
	}

	threshold := snapshot.Threshold()

	if len(results) == 0 {
		return Decision{
			Kind:   DecisionEscalate,
			Reason: "no knowledge base matches",
		}
	}

	top := results[0]
	if float64(top.Score) >= threshold {
		return Decision{
			Kind:   DecisionAutoreply,
			Answer: top.Answer,
			Source: &top,
		}
	}

	return Decision{
		Kind:   DecisionEscalate,
		Reason: fmt.Sprintf("best score %.4f below threshold %.4f", top.Score, threshold),
	}
}
