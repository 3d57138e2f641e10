package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/qveris-lab/quantsim/internal/types"
	"github.com/qveris-lab/quantsim/pkg/errors"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func window(closes ...float64) []types.Bar {
	bars := make([]types.Bar, len(closes))
	for i, c := range closes {
		bars[i] = types.Bar{
			Symbol: "600000",
			Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Close:  c,
		}
	}

	return bars
}

func (suite *IndicatorTestSuite) TestSMA() {
	tests := []struct {
		name   string
		closes []float64
		period int
		want   float64
	}{
		{"exact window", []float64{10, 20, 30}, 3, 20},
		{"uses last period bars", []float64{100, 10, 20, 30}, 3, 20},
		{"period one", []float64{10, 20, 30}, 1, 30},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			got, err := SMA(window(tc.closes...), tc.period)
			suite.NoError(err)
			suite.InDelta(tc.want, got, 1e-9)
		})
	}
}

func (suite *IndicatorTestSuite) TestSMAInsufficientData() {
	_, err := SMA(window(10, 20), 3)
	suite.Error(err)
	suite.True(errors.IsInsufficientDataError(err))

	var insufficientErr *errors.InsufficientDataError
	suite.Require().True(errors.As(err, &insufficientErr))
	suite.Equal(3, insufficientErr.Required)
	suite.Equal(2, insufficientErr.Actual)
	suite.Equal("600000", insufficientErr.Symbol)
}

func (suite *IndicatorTestSuite) TestSMAInvalidPeriod() {
	_, err := SMA(window(10, 20), 0)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *IndicatorTestSuite) TestEMA() {
	// Seeded with SMA(10,20) = 15, multiplier 2/3:
	// 15 + (30-15)*2/3 = 25.
	got, err := EMA(window(10, 20, 30), 2)
	suite.NoError(err)
	suite.InDelta(25, got, 1e-9)

	// EMA over the exact period equals the SMA seed.
	got, err = EMA(window(10, 20, 30), 3)
	suite.NoError(err)
	suite.InDelta(20, got, 1e-9)
}

func (suite *IndicatorTestSuite) TestMomentum() {
	got, err := Momentum(window(10, 11, 12), 2)
	suite.NoError(err)
	suite.InDelta(0.2, got, 1e-9)

	_, err = Momentum(window(10, 11), 2)
	suite.Error(err)
	suite.True(errors.IsInsufficientDataError(err))

	// A zero base degrades to zero instead of dividing by zero.
	got, err = Momentum(window(0, 1, 2), 2)
	suite.NoError(err)
	suite.Equal(0.0, got)
}
