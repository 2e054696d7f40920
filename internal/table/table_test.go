package table

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/mktwh/pkg/core"
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var equateMoney = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func d(s string) time.Time {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

var ordersSchema = Schema{
	{Name: "date", Kind: Date},
	{Name: "order_id", Kind: String},
	{Name: "category", Kind: String, Nullable: true},
	{Name: "quantity", Kind: Int},
	{Name: "revenue", Kind: Money},
	{Name: "is_return", Kind: Bool},
}

func ordersTable() *Table {
	t := New("orders", ordersSchema)
	t.Append(Row{d("2023-02-02"), "o1", "tops", int64(2), money("20.00"), false})
	t.Append(Row{d("2023-02-01"), "o2", "tops", int64(1), money("-10.00"), true})
	t.Append(Row{d("2023-02-02"), "o1", nil, int64(3), money("33.33"), false})
	t.Append(Row{d("2023-02-01"), "o3", "tops", int64(1), money("10.01"), false})
	return t
}

func TestGroupBy_Policy(t *testing.T) {
	got, err := GroupBy(ordersTable(), "daily", []string{"date"}, Policy{
		{Name: "orders", Op: CountDistinct, Source: "order_id"},
		{Name: "line_items", Op: Count},
		{Name: "total_quantity", Op: Sum, Source: "quantity"},
		{Name: "gross_revenue", Op: Sum, Source: "revenue"},
		{Name: "avg_revenue", Op: Mean, Source: "revenue"},
		{Name: "category", Op: First, Source: "category"},
		{Name: "returns", Op: Sum, Source: "is_return"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"date"}, got.Grain)
	assert.Equal(t, []string{"date", "orders", "line_items", "total_quantity",
		"gross_revenue", "avg_revenue", "category", "returns"}, got.Schema.Names())

	want := []Row{
		{d("2023-02-02"), int64(1), int64(2), int64(5), money("53.33"), money("26.67"), "tops", int64(0)},
		{d("2023-02-01"), int64(2), int64(2), int64(2), money("0.01"), money("0.01"), "tops", int64(1)},
	}
	if diff := cmp.Diff(want, got.Rows, equateMoney); diff != "" {
		t.Errorf("GroupBy rows mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupBy_SumOfNullsIsNull(t *testing.T) {
	src := New("s", Schema{{Name: "k", Kind: String}, {Name: "v", Kind: Int, Nullable: true}})
	src.Append(Row{"a", nil})
	src.Append(Row{"b", int64(3)})

	got, err := GroupBy(src, "g", []string{"k"}, Policy{{Name: "v", Op: Sum, Source: "v"}})
	require.NoError(t, err)
	assert.Nil(t, got.Rows[0][1])
	assert.Equal(t, int64(3), got.Rows[1][1])
	assert.True(t, got.Schema[1].Nullable)
}

func TestGroupBy_MoneySumKeepsSubCents(t *testing.T) {
	src := New("s", Schema{{Name: "k", Kind: String}, {Name: "spend", Kind: Money}})
	for _, v := range []string{"1.004", "1.004", "1.004", "0.125", "0.285"} {
		src.Append(Row{"a", money(v)})
	}

	got, err := GroupBy(src, "g", []string{"k"}, Policy{
		{Name: "spend", Op: Sum, Source: "spend"},
		{Name: "avg_spend", Op: Mean, Source: "spend"},
	})
	require.NoError(t, err)
	assert.Equal(t, "3.422", Format(Money, got.Rows[0][1]))
	// 3.422 / 5 = 0.6844
	assert.Equal(t, "0.68", Format(Money, got.Rows[0][2]))
}

func TestGroupBy_UnknownColumn(t *testing.T) {
	_, err := GroupBy(ordersTable(), "g", []string{"nope"}, nil)
	assert.Error(t, err)

	_, err = GroupBy(ordersTable(), "g", []string{"date"}, Policy{{Name: "x", Op: Max, Source: "nope"}})
	assert.Error(t, err)
}

func TestSortBy_NullsFirstStable(t *testing.T) {
	tbl := ordersTable()
	require.NoError(t, tbl.SortBy("category", "date"))

	ids := make([]string, 0, tbl.Len())
	for i := range tbl.Rows {
		ids = append(ids, tbl.Get(i, "order_id").(string))
	}
	assert.Equal(t, []string{"o1", "o2", "o3", "o1"}, ids)

	assert.Error(t, tbl.SortBy("missing"))
}

func TestDistinct_FirstSeenOrder(t *testing.T) {
	got, err := ordersTable().Distinct("ids", "order_id")
	require.NoError(t, err)
	assert.Equal(t, []Row{{"o1"}, {"o2"}, {"o3"}}, got.Rows)
}

func TestFilter(t *testing.T) {
	kept, dropped := ordersTable().Filter(func(r Row) bool { return !r[5].(bool) })
	assert.Equal(t, 3, kept.Len())
	assert.Equal(t, 1, dropped)
}

func TestDateRange(t *testing.T) {
	lo, hi, ok := ordersTable().DateRange("date")
	require.True(t, ok)
	assert.Equal(t, d("2023-02-01"), lo)
	assert.Equal(t, d("2023-02-02"), hi)

	_, _, ok = New("empty", ordersSchema).DateRange("date")
	assert.False(t, ok)
}

func TestConcat_SchemaMismatch(t *testing.T) {
	a := ordersTable()
	b := New("other", Schema{{Name: "date", Kind: Date}})
	_, err := Concat("all", ordersSchema, a, b)
	assert.Error(t, err)

	all, err := Concat("all", ordersSchema, a, ordersTable())
	require.NoError(t, err)
	assert.Equal(t, 8, all.Len())
}

func TestCheckGrain(t *testing.T) {
	tbl := ordersTable()
	tbl.Grain = []string{"date", "order_id"}

	err := CheckGrain(tbl)
	var grainErr *core.GrainError
	require.True(t, errors.As(err, &grainErr))
	assert.Equal(t, "orders", grainErr.Table)
	assert.Equal(t, 2, grainErr.Duplicates)
	assert.Equal(t, "2023-02-02|o1", grainErr.SampleKey)

	tbl.Grain = []string{"date", "order_id", "quantity"}
	assert.NoError(t, CheckGrain(tbl))

	tbl.Grain = nil
	assert.NoError(t, CheckGrain(tbl))
}

func TestWriteCSV_ReadCSV(t *testing.T) {
	tbl := ordersTable()
	var buf bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&buf))

	want := "date,order_id,category,quantity,revenue,is_return\n" +
		"2023-02-02,o1,tops,2,20.00,false\n" +
		"2023-02-01,o2,tops,1,-10.00,true\n" +
		"2023-02-02,o1,,3,33.33,false\n" +
		"2023-02-01,o3,tops,1,10.01,false\n"
	assert.Equal(t, want, buf.String())

	raw, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, ordersSchema.Names(), raw.Header)
	require.Len(t, raw.Records, 4)

	revenue, ok := raw.Values("revenue")
	require.True(t, ok)
	assert.Equal(t, []string{"20.00", "-10.00", "33.33", "10.01"}, revenue)

	_, ok = raw.Values("missing")
	assert.False(t, ok)
}

func TestReadCSV_BOMAndShortRecords(t *testing.T) {
	raw, err := ReadCSV(bytes.NewBufferString("\ufeffa,b,c\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, raw.Header)
	assert.Equal(t, [][]string{{"1", "2", ""}}, raw.Records)

	_, err = ReadCSV(bytes.NewBufferString(""))
	assert.Error(t, err)
}

func TestReadCSV_LongRecords(t *testing.T) {
	raw, err := ReadCSV(bytes.NewBufferString("a,b\n1,2,,\n3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, raw.Records)

	_, err = ReadCSV(bytes.NewBufferString("a,b\n1,2\n3,4,extra\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3: 3 fields, header has 2")
}
