package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/erain9/ordercache/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	f := Canonical()

	require.Len(t, f.Book, 13)
	book, err := f.BookOrders()
	require.NoError(t, err)
	assert.Equal(t, "OrdId13", book[12].ID())
	assert.Equal(t, core.Sell, book[12].Side())
	assert.Equal(t, "Company", book[12].Company())

	require.Len(t, f.Scenarios, 3)
	names := make([]string, 0, len(f.Scenarios))
	for _, s := range f.Scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"matchTest0", "matchTest1", "matchTest2"}, names)

	orders, err := f.ScenarioOrders(f.Scenarios[1])
	require.NoError(t, err)
	assert.Len(t, orders, 13)

	orders, err = f.ScenarioOrders(f.Scenarios[0])
	require.NoError(t, err)
	assert.Len(t, orders, 8)
	assert.Equal(t, []Expectation{{"SecId2", 2700}, {"SecId1", 0}}, f.Scenarios[0].Expect)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"bad yaml", "book: [\n"},
		{"unknown key", "book: []\nextra: 1\n"},
		{"bad side", "book:\n  - {orderid: a, securityid: s, side: Hold, qty: 1, user: u, company: c}\n"},
		{"missing id", "book:\n  - {securityid: s, side: Buy, qty: 1, user: u, company: c}\n"},
		{"unnamed scenario", "scenarios:\n  - orders: []\n"},
		{"book and orders", "book:\n  - {orderid: a, securityid: s, side: Buy, qty: 1, user: u, company: c}\n" +
			"scenarios:\n  - name: x\n    use_book: true\n    orders:\n      - {orderid: b, securityid: s, side: Buy, qty: 1, user: u, company: c}\n"},
		{"empty book", "scenarios:\n  - name: x\n    use_book: true\n"},
		{"expectation without security", "scenarios:\n  - name: x\n    expect:\n      - {size: 3}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_InvalidOrderWrapsCoreError(t *testing.T) {
	_, err := Parse([]byte("book:\n  - {orderid: a, securityid: s, side: Hold, qty: 1, user: u, company: c}\n"))
	assert.ErrorIs(t, err, core.ErrInvalidSide)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	doc := `
scenarios:
  - name: single pair
    orders:
      - {orderid: a, securityid: S, side: buy, qty: 10, user: u1, company: A}
      - {orderid: b, securityid: S, side: SELL, qty: 4, user: u2, company: B}
    expect:
      - {security: S, size: 4}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Scenarios, 1)

	orders, err := f.ScenarioOrders(f.Scenarios[0])
	require.NoError(t, err)
	assert.Equal(t, core.Buy, orders[0].Side())
	assert.Equal(t, core.Sell, orders[1].Side())

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
