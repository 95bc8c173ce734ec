package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/util"
)

// RuleService manages a user's global and per-asset alert rules.
type RuleService struct {
	rules    domrepo.RuleStore
	resolver *Resolver
	timeout  time.Duration
	now      func() time.Time
}

func NewRuleService(rules domrepo.RuleStore, resolver *Resolver, timeout time.Duration) *RuleService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RuleService{rules: rules, resolver: resolver, timeout: timeout, now: time.Now}
}

func (s *RuleService) List(ctx context.Context, userID string) ([]models.AlertRule, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.rules.List(ctx, userID)
}

// Global returns the stored global rule, or the defaults when there is none.
func (s *RuleService) Global(ctx context.Context, userID string) (models.AlertRule, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.globalOrDefault(ctx, userID)
}

func (s *RuleService) UpdateGlobal(ctx context.Context, userID string, patch models.RulePatch) (models.AlertRule, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rule, err := s.globalOrDefault(ctx, userID)
	if err != nil {
		return models.AlertRule{}, err
	}
	patch.Apply(&rule)
	if err := s.save(ctx, &rule); err != nil {
		return models.AlertRule{}, err
	}
	return rule, nil
}

// ResetGlobal restores the defaults. The global rule itself is never removed.
func (s *RuleService) ResetGlobal(ctx context.Context, userID string) (models.AlertRule, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rule := models.DefaultAlertRule(userID)
	if err := s.save(ctx, &rule); err != nil {
		return models.AlertRule{}, err
	}
	return rule, nil
}

func (s *RuleService) DeleteGlobal(context.Context, string) error {
	return models.ErrGlobalRuleUndeletable
}

func (s *RuleService) Asset(ctx context.Context, userID, asset string) (*models.AlertRule, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.rules.Get(ctx, userID, util.NormalizeSymbol(asset))
}

// UpsertAsset patches the asset rule. A missing asset rule starts as a copy
// of the user's global rule (or the defaults).
func (s *RuleService) UpsertAsset(ctx context.Context, userID, asset string, patch models.RulePatch) (models.AlertRule, error) {
	asset = util.NormalizeSymbol(asset)
	if asset == "" {
		return models.AlertRule{}, fmt.Errorf("%w: asset is required", models.ErrInvalidRule)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rule models.AlertRule
	existing, err := s.rules.Get(ctx, userID, asset)
	switch {
	case err == nil:
		rule = *existing
	case errors.Is(err, models.ErrNotFound):
		if rule, err = s.globalOrDefault(ctx, userID); err != nil {
			return models.AlertRule{}, err
		}
		rule.AssetSymbol = asset
	default:
		return models.AlertRule{}, fmt.Errorf("load asset rule: %w", err)
	}

	patch.Apply(&rule)
	if err := s.save(ctx, &rule); err != nil {
		return models.AlertRule{}, err
	}
	return rule, nil
}

func (s *RuleService) DeleteAsset(ctx context.Context, userID, asset string) error {
	asset = util.NormalizeSymbol(asset)
	if asset == "" {
		return models.ErrGlobalRuleUndeletable
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.rules.Delete(ctx, userID, asset)
}

// Effective is the rule the pipeline would apply right now.
func (s *RuleService) Effective(ctx context.Context, userID, asset string) models.EffectiveRule {
	rule, origin := s.resolver.Resolve(ctx, userID, util.NormalizeSymbol(asset))
	return models.EffectiveRule{Rule: rule, Origin: origin}
}

func (s *RuleService) globalOrDefault(ctx context.Context, userID string) (models.AlertRule, error) {
	rule, err := s.rules.Get(ctx, userID, "")
	switch {
	case err == nil:
		return *rule, nil
	case errors.Is(err, models.ErrNotFound):
		return models.DefaultAlertRule(userID), nil
	default:
		return models.AlertRule{}, fmt.Errorf("load global rule: %w", err)
	}
}

func (s *RuleService) save(ctx context.Context, rule *models.AlertRule) error {
	rule.UpdatedAt = s.now().UTC()
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := s.rules.Put(ctx, rule); err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return nil
}
