package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nachochiappe/fairsplit-sub000/internal/cache"
	"github.com/nachochiappe/fairsplit-sub000/internal/core"
)

// MonthSettlement is the settlement snapshot for one household month,
// including any warnings the materializers produced along the way.
type MonthSettlement struct {
	Month      string          `json:"month"`
	Settlement core.Settlement `json:"settlement"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// SettlementService computes monthly settlement snapshots. A read first
// materializes everything due for the month, then aggregates and runs the
// engine; the snapshot is cached per (household, month) until a mutation in
// that month invalidates it.
type SettlementService struct {
	repo         Repository
	fixed        *FixedMaterializer
	installments *InstallmentService
	cache        cache.Store
}

func NewSettlementService(repo Repository, fixed *FixedMaterializer, installments *InstallmentService, store cache.Store) *SettlementService {
	return &SettlementService{
		repo:         repo,
		fixed:        fixed,
		installments: installments,
		cache:        store,
	}
}

func snapshotKey(householdID string, month core.Month) string {
	return "settlement:" + householdID + ":" + month.String()
}

// ForMonth returns the settlement snapshot for the household month,
// computing and caching it on a miss.
func (s *SettlementService) ForMonth(ctx context.Context, householdID string, month core.Month) (*MonthSettlement, error) {
	key := snapshotKey(householdID, month)
	if s.cache != nil {
		if raw, ok := s.cache.Get(ctx, key); ok {
			var snap MonthSettlement
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return &snap, nil
			}
			// A corrupt entry is dropped and recomputed.
			_ = s.cache.Delete(ctx, key)
		}
	}

	snap, err := s.compute(ctx, householdID, month)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := s.cache.Set(ctx, key, string(raw)); err != nil {
				slog.WarnContext(ctx, "Failed to cache settlement snapshot",
					"key", key,
					"error", err)
			}
		}
	}
	return snap, nil
}

func (s *SettlementService) compute(ctx context.Context, householdID string, month core.Month) (*MonthSettlement, error) {
	warnings, err := s.fixed.EnsureForMonth(ctx, householdID, month)
	if err != nil {
		return nil, err
	}
	if err := s.installments.EnsureForMonth(ctx, householdID, month); err != nil {
		return nil, err
	}

	incomes := make(map[string]decimal.Decimal)
	paid := make(map[string]decimal.Decimal)

	// Every household member participates, with or without entries.
	users, err := s.repo.ListUsers(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		incomes[u.ID] = decimal.Decimal{}
		paid[u.ID] = decimal.Decimal{}
	}

	monthIncomes, err := s.repo.ListIncomesByMonth(ctx, householdID, month)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	for _, in := range monthIncomes {
		incomes[in.UserID] = incomes[in.UserID].Add(in.AmountARS)
	}

	expenses, err := s.repo.ListExpensesByMonth(ctx, householdID, month)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	for _, e := range expenses {
		paid[e.PaidBy] = paid[e.PaidBy].Add(e.AmountARS)
	}

	settlement, err := core.ComputeSettlement(core.SettlementInput{
		Incomes: incomes,
		Paid:    paid,
	})
	if err != nil {
		return nil, err
	}
	return &MonthSettlement{
		Month:      month.String(),
		Settlement: settlement,
		Warnings:   warnings,
	}, nil
}

// Invalidate drops the cached snapshot for the household month.
func (s *SettlementService) Invalidate(ctx context.Context, householdID string, month core.Month) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, snapshotKey(householdID, month))
}

// Refresh recomputes the snapshot, replacing whatever is cached. The worker
// calls this when an expense change event arrives.
func (s *SettlementService) Refresh(ctx context.Context, householdID string, month core.Month) (*MonthSettlement, error) {
	if err := s.Invalidate(ctx, householdID, month); err != nil {
		slog.WarnContext(ctx, "Failed to invalidate settlement snapshot",
			"household_id", householdID,
			"month", month.String(),
			"error", err)
	}
	return s.ForMonth(ctx, householdID, month)
}
