package market

import (
	"context"
	"fmt"

	"github.com/energyweb/market-contracts-go/pkg/executor"
)

// DefaultPageSize is the number of records read per page by the All* helpers.
const DefaultPageSize = 50

// Page is a window of records starting at Start. Total is the list length
// at the time the page was read.
type Page[T any] struct {
	Start   uint64
	Total   uint64
	Records []*T
}

func readPage[T any](
	ctx context.Context,
	start, limit uint64,
	length func(context.Context) (uint64, error),
	get func(context.Context, uint64) (*T, error),
) (*Page[T], error) {
	total, err := length(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list length: %w", err)
	}
	page := &Page[T]{Start: start, Total: total, Records: []*T{}}
	if start >= total {
		return page, nil
	}
	end := total
	if limit > 0 && limit < total-start {
		end = start + limit
	}
	for i := start; i < end; i++ {
		record, err := get(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch record %d: %w", i, err)
		}
		page.Records = append(page.Records, record)
	}
	return page, nil
}

func readAll[T any](
	ctx context.Context,
	length func(context.Context) (uint64, error),
	get func(context.Context, uint64) (*T, error),
) ([]*T, error) {
	all := []*T{}
	for start := uint64(0); ; start += DefaultPageSize {
		page, err := readPage(ctx, start, DefaultPageSize, length, get)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if start+DefaultPageSize >= page.Total {
			return all, nil
		}
	}
}

func (m *MarketLogic) demandFns(params *executor.TxParams) (func(context.Context) (uint64, error), func(context.Context, uint64) (*Demand, error)) {
	return func(ctx context.Context) (uint64, error) { return m.GetAllDemandListLength(ctx, params) },
		func(ctx context.Context, i uint64) (*Demand, error) { return m.GetDemand(ctx, params, i) }
}

func (m *MarketLogic) supplyFns(params *executor.TxParams) (func(context.Context) (uint64, error), func(context.Context, uint64) (*Supply, error)) {
	return func(ctx context.Context) (uint64, error) { return m.GetAllSupplyListLength(ctx, params) },
		func(ctx context.Context, i uint64) (*Supply, error) { return m.GetSupply(ctx, params, i) }
}

func (m *MarketLogic) agreementFns(params *executor.TxParams) (func(context.Context) (uint64, error), func(context.Context, uint64) (*Agreement, error)) {
	return func(ctx context.Context) (uint64, error) { return m.GetAllAgreementListLength(ctx, params) },
		func(ctx context.Context, i uint64) (*Agreement, error) { return m.GetAgreement(ctx, params, i) }
}

// ListDemands reads up to limit demands starting at index start. A zero
// limit reads to the end of the list.
func (m *MarketLogic) ListDemands(ctx context.Context, params *executor.TxParams, start, limit uint64) (*Page[Demand], error) {
	length, get := m.demandFns(params)
	return readPage(ctx, start, limit, length, get)
}

func (m *MarketLogic) ListSupplies(ctx context.Context, params *executor.TxParams, start, limit uint64) (*Page[Supply], error) {
	length, get := m.supplyFns(params)
	return readPage(ctx, start, limit, length, get)
}

func (m *MarketLogic) ListAgreements(ctx context.Context, params *executor.TxParams, start, limit uint64) (*Page[Agreement], error) {
	length, get := m.agreementFns(params)
	return readPage(ctx, start, limit, length, get)
}

// AllDemands reads every demand, DefaultPageSize at a time.
func (m *MarketLogic) AllDemands(ctx context.Context, params *executor.TxParams) ([]*Demand, error) {
	length, get := m.demandFns(params)
	return readAll(ctx, length, get)
}

func (m *MarketLogic) AllSupplies(ctx context.Context, params *executor.TxParams) ([]*Supply, error) {
	length, get := m.supplyFns(params)
	return readAll(ctx, length, get)
}

func (m *MarketLogic) AllAgreements(ctx context.Context, params *executor.TxParams) ([]*Agreement, error) {
	length, get := m.agreementFns(params)
	return readAll(ctx, length, get)
}
