package payroll

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSlip() Slip {
	return Slip{
		ID:           12,
		EmployeeName: "Jane <Doe>",
		CompanyName:  "Acme Inc",
		Period:       "2026-09",
		Currency:     "USD",
		Earnings: []LineItem{
			{Label: "Basic", Amount: 500000},
			{Label: "Housing", Amount: 123456},
		},
		Deductions: []LineItem{
			{Label: "Tax", Amount: 98765},
		},
		VerificationCode: "ABCDEF0123456789",
		IssuedAt:         time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTotals(t *testing.T) {
	s := sampleSlip()
	assert.Equal(t, int64(623456), s.Gross())
	assert.Equal(t, int64(98765), s.TotalDeductions())
	assert.Equal(t, int64(524691), s.Net())
}

func TestFormatAmount(t *testing.T) {
	cases := map[int64]string{
		0:         "USD 0.00",
		5:         "USD 0.05",
		123456:    "USD 1,234.56",
		100000000: "USD 1,000,000.00",
		-2500:     "-USD 25.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(in, "USD"), in)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, sampleSlip().Validate())

	cases := map[string]func(*Slip){
		"no name":         func(s *Slip) { s.EmployeeName = " " },
		"bad period":      func(s *Slip) { s.Period = "2026-13" },
		"bad currency":    func(s *Slip) { s.Currency = "usd" },
		"no earnings":     func(s *Slip) { s.Earnings = nil },
		"empty label":     func(s *Slip) { s.Deductions[0].Label = "" },
		"negative amount": func(s *Slip) { s.Earnings[0].Amount = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := sampleSlip()
			mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSlip))
		})
	}
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "September 2026", PeriodLabel("2026-09"))
	assert.Equal(t, "garbage", PeriodLabel("garbage"))
}

func TestBody(t *testing.T) {
	body, err := Body(sampleSlip(), "https://hr.example.com/v1/salary-slips/verify/ABCDEF0123456789")
	require.NoError(t, err)

	assert.Contains(t, body, "Jane &lt;Doe&gt;")
	assert.Contains(t, body, "September 2026")
	assert.Contains(t, body, "USD 5,246.91")
	assert.Contains(t, body, `src="data:image/png;base64,`)
	assert.NotContains(t, body, "ZgotmplZ")

	plain, err := Body(sampleSlip(), "")
	require.NoError(t, err)
	assert.False(t, strings.Contains(plain, "<img"))
}

func TestNewVerificationCode(t *testing.T) {
	a, b := NewVerificationCode(), NewVerificationCode()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToUpper(a), a)
}
