package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		display  string
		cents    int64
		currency string
	}{
		{"$20", 2000, "USD"},
		{"$20.00", 2000, "USD"},
		{"$19.99", 1999, "USD"},
		{"20.5", 2050, "USD"},
		{"€12.34", 1234, "EUR"},
		{" $7 ", 700, "USD"},
	}

	for _, tc := range cases {
		m, err := Parse(tc.display)
		require.NoError(t, err, tc.display)
		assert.Equal(t, tc.cents, m.Cents, tc.display)
		assert.Equal(t, tc.currency, m.Currency, tc.display)
	}
}

func TestParseInvalid(t *testing.T) {
	for _, display := range []string{"", "free", "$", "$-5"} {
		_, err := Parse(display)
		assert.Error(t, err, display)
	}
}

func TestMulAndFormat(t *testing.T) {
	m := MustParse("$20")
	assert.Equal(t, "$40.00", m.Mul(2).Format())
}

func TestAdd(t *testing.T) {
	total := MustParse("$20").Add(MustParse("$19.99"))
	assert.Equal(t, int64(3999), total.Cents)
	assert.Equal(t, "$39.99", total.Format())
}
