package cart

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shopbot/shop/catalog"
	"github.com/m3rciful/shopbot/shop/session"
)

func product(name, price string) catalog.Product {
	return catalog.Product{Name: name, Price: decimal.RequireFromString(price)}
}

func TestAddKeepsDuplicatesAsLines(t *testing.T) {
	var s session.Session
	require.True(t, IsEmpty(&s))

	p := product("ELFLIQ", "18")
	Add(&s, p)
	Add(&s, p)

	assert.Equal(t, 2, Count(&s))
	assert.False(t, IsEmpty(&s))
	assert.True(t, decimal.NewFromInt(36).Equal(Total(&s)))
}

func TestAddCopiesProduct(t *testing.T) {
	var s session.Session
	p := product("x", "1")
	p.Attributes = map[string]string{"volume": "10ml"}
	Add(&s, p)

	p.Attributes["volume"] = "30ml"
	p.Name = "renamed"
	assert.Equal(t, "x", s.Cart[0].Name)
	assert.Equal(t, "10ml", s.Cart[0].Attributes["volume"])
}

func TestTotalRounding(t *testing.T) {
	cases := []struct {
		prices []string
		want   string
	}{
		{[]string{"0.1", "0.2"}, "0.3"},
		{[]string{"9.99", "9.99", "9.99"}, "29.97"},
		{[]string{"1.005"}, "1.01"},
		{[]string{"2.345", "0"}, "2.35"},
		{[]string{"0.004"}, "0"},
		{nil, "0"},
	}
	for _, tc := range cases {
		var s session.Session
		for i, price := range tc.prices {
			Add(&s, product(string(rune('a'+i)), price))
		}
		assert.True(t, decimal.RequireFromString(tc.want).Equal(Total(&s)), "prices %v: got %s", tc.prices, Total(&s))
	}
}

func TestTotalMatchesSumOfLines(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		var s session.Session
		want := decimal.Zero
		for i := 0; i < r.Intn(20); i++ {
			price := decimal.New(r.Int63n(100000), -3)
			Add(&s, catalog.Product{Name: "p", Price: price})
			want = want.Add(price)
		}
		assert.True(t, want.Round(2).Equal(Total(&s)))
	}
}

func TestClearLeavesNavigation(t *testing.T) {
	s := session.Session{Path: []string{"liquids"}, Awaiting: session.PromptLocality}
	s.SetExtra(session.ExtraLocality, "kyiv")
	Add(&s, product("x", "1"))

	Clear(&s)
	assert.True(t, IsEmpty(&s))
	assert.Equal(t, []string{"liquids"}, s.Path)
	assert.Equal(t, session.PromptLocality, s.Awaiting)
	assert.Equal(t, "kyiv", s.Locality())
}
