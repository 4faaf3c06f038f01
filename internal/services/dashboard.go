package services

import (
	"context"
	"fmt"
	"time"

	"feedesk/internal/core"

	"golang.org/x/sync/errgroup"
)

const recentPaymentsLimit = 10

// DashboardStore is the read side the dashboard aggregates over.
type DashboardStore interface {
	SumPayments(ctx context.Context, f core.PaymentFilter) (core.PeriodTotal, error)
	TotalsByMethod(ctx context.Context, from, to core.Date) ([]core.MethodAmount, error)
	TotalsByFeeType(ctx context.Context, academicYear string) ([]core.FeeTypeAmount, error)
	ListPayments(ctx context.Context, f core.PaymentFilter) ([]core.PaymentView, error)
}

// DashboardService assembles the cashier dashboard.
type DashboardService struct {
	store    DashboardStore
	location *time.Location
}

func NewDashboardService(store DashboardStore, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{store: store, location: loc}
}

// Summary collects the totals shown to caller at now. The queries are
// independent and run concurrently; the first failure cancels the rest.
func (s *DashboardService) Summary(ctx context.Context, caller core.Identity, now time.Time) (core.DashboardSummary, error) {
	local := now.In(s.location)
	today := core.DateOf(local)
	monthStart := core.NewDate(local.Year(), int(local.Month()), 1)
	yearFrom, yearTo := core.AcademicYearBounds(local)

	sum := core.DashboardSummary{
		Date:         today,
		AcademicYear: core.CurrentAcademicYear(local),
	}

	g, gctx := errgroup.WithContext(ctx)
	total := func(dst *core.PeriodTotal, f core.PaymentFilter) func() error {
		return func() error {
			t, err := s.store.SumPayments(gctx, f)
			if err != nil {
				return err
			}
			*dst = t
			return nil
		}
	}

	g.Go(total(&sum.Today, core.PaymentFilter{From: today, To: today}))
	g.Go(total(&sum.Month, core.PaymentFilter{From: monthStart, To: today}))
	g.Go(total(&sum.Year, core.PaymentFilter{From: yearFrom, To: yearTo}))
	g.Go(total(&sum.MineToday, core.PaymentFilter{From: today, To: today, CollectedBy: caller.UserID}))
	g.Go(func() error {
		var err error
		sum.ByMethod, err = s.store.TotalsByMethod(gctx, yearFrom, yearTo)
		return err
	})
	g.Go(func() error {
		var err error
		sum.ByFeeType, err = s.store.TotalsByFeeType(gctx, sum.AcademicYear)
		return err
	})
	g.Go(func() error {
		var err error
		sum.Recent, err = s.store.ListPayments(gctx, core.PaymentFilter{
			CollectedBy: caller.UserID,
			Limit:       recentPaymentsLimit,
		})
		return err
	})

	if err := g.Wait(); err != nil {
		return core.DashboardSummary{}, fmt.Errorf("dashboard summary: %w", err)
	}
	return sum, nil
}
