package certificate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
)

func TestStandardUID(t *testing.T) {
	uid, err := StandardUID("SPT", "EVT2026", "STU0042")
	require.NoError(t, err)
	assert.Equal(t, "SPT-CERT-EVT2026-STU0042", uid)
}

func TestWinnerUID(t *testing.T) {
	uid, err := WinnerUID("SPT", "EVT2026", "STU0042", 2)
	require.NoError(t, err)
	assert.Equal(t, "SPT-WINNER-EVT2026-STU0042-POS2", uid)

	_, err = WinnerUID("SPT", "EVT2026", "STU0042", 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUID_MissingDisplayIDsAreErrors(t *testing.T) {
	cases := [][3]string{
		{"SPT", "", "STU1"},
		{"SPT", "EVT1", "  "},
		{"", "EVT1", "STU1"},
		{"SPT", "EVT/1", "STU1"},
	}
	for _, c := range cases {
		_, err := StandardUID(c[0], c[1], c[2])
		require.Error(t, err, "%v", c)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
}

func TestPositionLabel(t *testing.T) {
	badge, text := PositionLabel(1)
	assert.Equal(t, "GOLD", badge)
	assert.Equal(t, "1st Place", text)

	badge, text = PositionLabel(3)
	assert.Equal(t, "BRONZE", badge)
	assert.Equal(t, "3rd Place", text)

	badge, text = PositionLabel(7)
	assert.Empty(t, badge)
	assert.Equal(t, "Position 7", text)
}

func TestArtifactKey(t *testing.T) {
	assert.Equal(t, "certificates/SPT-CERT-E-S.pdf", ArtifactKey("SPT-CERT-E-S", "pdf"))
}
