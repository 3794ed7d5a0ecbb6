package panel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"QuantShield/internal/domain/models"
)

func TestAssignLabel(t *testing.T) {
	cases := []struct {
		name              string
		vol, var95, maxDD float64
		want              models.RiskLevel
	}{
		{"calm", 0.08, 0.01, 0.05, models.RiskLow},
		{"volatile", 0.25, 0.01, 0.05, models.RiskHigh},
		{"deep drawdown", 0.15, 0.01, 0.30, models.RiskHigh},
		{"tail risk", 0.15, 0.035, 0.10, models.RiskHigh},
		{"middling", 0.15, 0.02, 0.20, models.RiskMedium},
		{"low vol but deep drawdown", 0.10, 0.01, 0.20, models.RiskMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, AssignLabel(tc.vol, tc.var95, tc.maxDD))
		})
	}
}

func TestAssignLabelBoundaries(t *testing.T) {
	// thresholds are exclusive on both sides
	require.Equal(t, models.RiskMedium, AssignLabel(0.12, 0.01, 0.05))
	require.Equal(t, models.RiskMedium, AssignLabel(0.20, 0.01, 0.16))
	require.Equal(t, models.RiskMedium, AssignLabel(0.15, 0.03, 0.16))
	require.Equal(t, models.RiskMedium, AssignLabel(0.15, 0.01, 0.25))
}

func TestAssignLabelLowWinsOverHigh(t *testing.T) {
	// Low is checked first; a window under both Low cutoffs stays Low even
	// with an elevated VaR.
	require.Equal(t, models.RiskLow, AssignLabel(0.10, 0.05, 0.10))
}
