package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Money
		wantErr bool
	}{
		{name: "two decimal places", raw: "120.00", want: 12000},
		{name: "no decimal places", raw: "120", want: 12000},
		{name: "one decimal place", raw: "120.5", want: 12050},
		{name: "zero", raw: "0", want: 0},
		{name: "whitespace trimmed", raw: " 99.99 ", want: 9999},
		{name: "empty", raw: "", wantErr: true},
		{name: "sub-minor-unit precision", raw: "12.345", wantErr: true},
		{name: "negative", raw: "-1.00", wantErr: true},
		{name: "not a number", raw: "RM120.00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "120.00", Money(12000).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "0.00", Money(0).String())
}

func TestAuction_MoneyAccessors(t *testing.T) {
	reserve := "100.00"
	bid := "120.00"
	a := Auction{ReservePrice: &reserve, CurrentBid: &bid}

	r, err := a.ReserveMoney()
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, Money(10000), *r)

	c, err := a.CurrentBidMoney()
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, Money(12000), *c)

	none := Auction{}
	r, err = none.ReserveMoney()
	require.NoError(t, err)
	assert.Nil(t, r)

	junk := "1,200"
	bad := Auction{ReservePrice: &junk}
	_, err = bad.ReserveMoney()
	assert.Error(t, err)
}
