package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	for _, name := range []string{"orders", "order_items", "products", "users"} {
		tbl, err := Get(name)
		require.NoError(t, err)
		require.Equal(t, name, tbl.Name)
		require.Equal(t, Dataset+"."+name, tbl.FQTN)
		require.NotEmpty(t, tbl.PrimaryKey)
	}

	_, err := Get("sessions")
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestMustFQTN(t *testing.T) {
	require.Equal(t, "bigquery-public-data.thelook_ecommerce.orders", MustFQTN("orders"))
	require.Panics(t, func() { MustFQTN("sessions") })
}

func TestDefaultDateColumn(t *testing.T) {
	col, err := DefaultDateColumn("orders")
	require.NoError(t, err)
	require.Equal(t, "created_at", col)

	// Static catalog table has no date column.
	col, err = DefaultDateColumn("products")
	require.NoError(t, err)
	require.Empty(t, col)

	_, err = DefaultDateColumn("sessions")
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestResolveDimension(t *testing.T) {
	col, err := ResolveDimension("country")
	require.NoError(t, err)
	require.Equal(t, "users.country", col)

	col, err = ResolveDimension("product_name")
	require.NoError(t, err)
	require.Equal(t, "products.name", col)

	_, err = ResolveDimension("zodiac_sign")
	require.ErrorIs(t, err, ErrUnsupportedDimension)
}

func TestJoinAllowed(t *testing.T) {
	require.True(t, JoinAllowed("orders", "users", "user_id", "id"))
	// Symmetric orientation.
	require.True(t, JoinAllowed("users", "orders", "id", "user_id"))
	// Wrong keys.
	require.False(t, JoinAllowed("orders", "users", "order_id", "id"))
	// No direct edge.
	require.False(t, JoinAllowed("products", "users", "id", "id"))
}

func TestValidateMetricColumns(t *testing.T) {
	require.NoError(t, ValidateMetricColumns("order_items", []string{"sale_price", "status"}))

	err := ValidateMetricColumns("order_items", []string{"sale_price", "discount", "margin"})
	require.ErrorIs(t, err, ErrDisallowedColumns)
	require.Contains(t, err.Error(), "discount")
	require.Contains(t, err.Error(), "margin")
}

func TestAllowedTables(t *testing.T) {
	allowed := AllowedTables()
	require.Len(t, allowed, 4)
	require.Contains(t, allowed, "orders")
	require.Contains(t, allowed, "order_items")
}

func TestPromptSummary(t *testing.T) {
	summary := PromptSummary()
	for _, name := range TableNames() {
		require.Contains(t, summary, "- "+name+": ")
	}
	require.Contains(t, summary, "orders.user_id = users.id")
	require.Contains(t, summary, "LIMIT")
	// Stable across calls.
	require.Equal(t, summary, PromptSummary())
	// No stray whitespace inflation.
	require.Less(t, strings.Count(summary, "\n\n"), 4)
}
