package repository

import (
	"context"
	"fmt"

	"QuantGate/internal/domain/models"
	pkgkafka "QuantGate/pkg/kafka"
	applogger "QuantGate/pkg/logger"
)

// KafkaDecisionPublisher hands gate decisions and run summaries to the
// strategy registry over Kafka. Messages are keyed by candidate so the
// registry sees each candidate's decisions in order.
type KafkaDecisionPublisher struct {
	producer       *pkgkafka.Producer
	decisionsTopic string
	summariesTopic string
	l              *applogger.Logger
}

func NewKafkaDecisionPublisher(p *pkgkafka.Producer, decisionsTopic, summariesTopic string) *KafkaDecisionPublisher {
	return &KafkaDecisionPublisher{producer: p, decisionsTopic: decisionsTopic, summariesTopic: summariesTopic}
}

// SetLogger injects a structured logger.
func (p *KafkaDecisionPublisher) SetLogger(l *applogger.Logger) { p.l = l }

func (p *KafkaDecisionPublisher) PublishDecision(ctx context.Context, d *models.GateDecision) error {
	if err := p.producer.Publish(ctx, p.decisionsTopic, []byte(d.CandidateID), d); err != nil {
		return fmt.Errorf("publish gate decision: %w", err)
	}
	if p.l != nil {
		p.l.Info("gate decision published",
			applogger.String("topic", p.decisionsTopic),
			applogger.String("candidate", d.CandidateID),
			applogger.String("stage", d.StageName),
			applogger.String("verdict", string(d.Verdict)),
		)
	}
	return nil
}

func (p *KafkaDecisionPublisher) PublishSummary(ctx context.Context, s *models.AggregateSummary) error {
	if err := p.producer.Publish(ctx, p.summariesTopic, []byte(s.RunID), s); err != nil {
		return fmt.Errorf("publish run summary: %w", err)
	}
	if p.l != nil {
		p.l.Info("run summary published",
			applogger.String("topic", p.summariesTopic),
			applogger.String("run_id", s.RunID),
			applogger.Bool("promotion_eligible", s.PromotionEligible),
		)
	}
	return nil
}

func (p *KafkaDecisionPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher satisfies DecisionPublisher when Kafka is disabled.
// Decisions still land in the evidence store; only the registry feed is
// skipped.
type NoopPublisher struct{}

func (NoopPublisher) PublishDecision(context.Context, *models.GateDecision) error    { return nil }
func (NoopPublisher) PublishSummary(context.Context, *models.AggregateSummary) error { return nil }
func (NoopPublisher) Close() error                                                  { return nil }
