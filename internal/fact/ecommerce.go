package fact

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
	"github.com/leapstack-labs/mktwh/pkg/core"
)

// TransactionSchema is the canonical ecommerce line item.
var TransactionSchema = table.Schema{
	{Name: "order_id", Kind: table.String},
	{Name: "order_datetime", Kind: table.Timestamp},
	{Name: "dma_name", Kind: table.String, Nullable: true},
	{Name: "state", Kind: table.String, Nullable: true},
	{Name: "product_category", Kind: table.String, Nullable: true},
	{Name: "size", Kind: table.String, Nullable: true},
	{Name: "promo_flag", Kind: table.String, Nullable: true},
	{Name: "quantity", Kind: table.Int},
	{Name: "unit_price", Kind: table.Money, Nullable: true},
	{Name: "discount_per_unit", Kind: table.Money, Nullable: true},
	{Name: "unit_cost", Kind: table.Money, Nullable: true},
	{Name: "line_revenue", Kind: table.Money},
}

var transactionDerived = table.Schema{
	{Name: "discount_x_qty", Kind: table.Money, Nullable: true},
	{Name: "cost_x_qty", Kind: table.Money, Nullable: true},
	{Name: "is_return", Kind: table.Bool},
}

var ecommerceDailyPolicy = table.Policy{
	{Name: "orders", Op: table.CountDistinct, Source: "order_id"},
	{Name: "line_items", Op: table.Count},
	{Name: "total_quantity", Op: table.Sum, Source: "quantity"},
	{Name: "gross_revenue", Op: table.Sum, Source: "line_revenue"},
	{Name: "total_discount", Op: table.Sum, Source: "discount_x_qty"},
	{Name: "total_cost", Op: table.Sum, Source: "cost_x_qty"},
	{Name: "avg_unit_price", Op: table.Mean, Source: "unit_price"},
	{Name: "negative_revenue_rows", Op: table.Sum, Source: "is_return"},
}

// times multiplies a money cell by a quantity.
func times(money, qty any) any {
	d, ok := money.(decimal.Decimal)
	if !ok {
		return nil
	}
	return d.Mul(decimal.NewFromInt(qty.(int64)))
}

// Ecommerce writes line items as fact_ecommerce_transactions, the source
// columns plus date, and aggregates them to the daily grain through a staging
// table that carries the per-line products. Negative revenue lines are
// returns and are kept.
func Ecommerce(env Env) (*Result, error) {
	all, res, err := load(env, core.StreamEcommerce, TransactionSchema)
	if err != nil {
		return nil, err
	}

	lines := derive(all, warehouse.FactEcommerceTransaction,
		prepend(table.Column{Name: "date", Kind: table.Date}, TransactionSchema),
		func(r table.Row) table.Row {
			return append(table.Row{dayOf(r[1])}, r...)
		})

	qty, disc, cost, rev := lines.Index("quantity"), lines.Index("discount_per_unit"),
		lines.Index("unit_cost"), lines.Index("line_revenue")
	returns := 0
	staged := derive(lines, "ecommerce_staging", append(slices.Clone(lines.Schema), transactionDerived...),
		func(r table.Row) table.Row {
			isReturn := r[rev].(decimal.Decimal).IsNegative()
			if isReturn {
				returns++
			}
			return append(slices.Clone(r), times(r[disc], r[qty]), times(r[cost], r[qty]), isReturn)
		})

	daily, err := table.GroupBy(staged, warehouse.FactEcommerceDaily,
		grainOf(warehouse.FactEcommerceDaily), ecommerceDailyPolicy)
	if err != nil {
		return nil, err
	}
	if returns > 0 {
		env.logger().Warn("negative revenue lines preserved", "table", warehouse.FactEcommerceDaily, "rows", returns)
	}

	res.Actions = append(res.Actions,
		fmt.Sprintf("aggregated %d line items to %d daily rows", lines.Len(), daily.Len()),
		fmt.Sprintf("negative revenue rows (preserved): %d", returns))
	res.Tables = []*table.Table{daily, lines}
	return res, nil
}
