package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKnownVerbs(t *testing.T) {
	cases := []struct {
		token string
		want  Action
	}{
		{"start", Start{}},
		{"home", Home{}},
		{"navigate", Navigate{}},
		{"navigate:liquids", Navigate{Path: []string{"liquids"}}},
		{"navigate:pods/elfbar", Navigate{Path: []string{"pods", "elfbar"}}},
		{"localities", Localities{}},
		{"add:liquids:0", Add{Path: []string{"liquids"}, Index: 0}},
		{"add:pods/elfbar:12", Add{Path: []string{"pods", "elfbar"}, Index: 12}},
		{"cart", Cart{}},
		{"clear_cart", ClearCart{}},
		{"checkout", Checkout{}},
		{"set_locality:kyiv", SetLocality{Key: "kyiv"}},
		{"await_locality_text", AwaitLocalityText{}},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			got, err := Parse(tc.token)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.token, got.Token())
		})
	}
}

func TestParseUnknownVerb(t *testing.T) {
	for _, token := range []string{"frobnicate:1", "", "buy_p1", "Cart", "cart_x"} {
		_, err := Parse(token)
		require.Error(t, err, token)
		assert.True(t, errors.Is(err, ErrUnknownAction), "token %q: %v", token, err)
	}
}

func TestParseMalformedArguments(t *testing.T) {
	for _, token := range []string{
		"cart:1",
		"checkout:now",
		"add:liquids",
		"add::0",
		"add:liquids:-1",
		"add:liquids:x",
		"navigate:a//b",
		"navigate:a:b",
		"set_locality",
		"set_locality:",
	} {
		_, err := Parse(token)
		require.Error(t, err, token)
		assert.True(t, errors.Is(err, ErrMalformedAction), "token %q: %v", token, err)

		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, token, perr.Token)
	}
}

func TestCartAndClearCartAreDistinct(t *testing.T) {
	a, err := Parse("cart")
	require.NoError(t, err)
	b, err := Parse("clear_cart")
	require.NoError(t, err)
	assert.NotEqual(t, a.Verb(), b.Verb())
}

func TestVerbsCoversEveryVariant(t *testing.T) {
	all := []Action{
		Start{}, Home{}, Navigate{}, Localities{}, Add{Path: []string{"a"}},
		Cart{}, ClearCart{}, Checkout{}, SetLocality{Key: "k"}, AwaitLocalityText{},
	}
	seen := map[Verb]bool{}
	for _, a := range all {
		seen[a.Verb()] = true
		parsed, err := Parse(a.Token())
		require.NoError(t, err)
		assert.Equal(t, a.Verb(), parsed.Verb())
	}
	assert.Len(t, seen, len(Verbs()))
	for _, v := range Verbs() {
		assert.True(t, seen[v], "verb %s has no variant", v)
	}
}
