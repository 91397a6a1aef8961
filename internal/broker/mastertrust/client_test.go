package mastertrust

import (
	"context"
	"testing"

	"github.com/multibroker/oms/internal/logger"
	"github.com/multibroker/oms/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMTMOverPrefetchedPositions(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{BaseURL: "http://localhost", ClientID: "ab12", TokenDir: t.TempDir()}, logger.NewNopLogger())

	positions := []model.Position{
		// Long 100 @ buy value 10000, trading at 105: -10000 + 100*105 = +500.
		{Symbol: "ABC", Quantity: 100, BuyValue: 10000, SellValue: 0, LTP: 105},
		// Short 50, sold for 5000, trading at 98: 5000 - 50*98 = +100.
		{Symbol: "XYZ", Quantity: -50, BuyValue: 0, SellValue: 5000, LTP: 98},
	}

	mtm, err := c.MTM(context.Background(), positions)
	require.NoError(t, err)
	assert.InDelta(t, 600.0, mtm, 1e-9)
}

func TestClientIDForcedUpper(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{BaseURL: "http://localhost", ClientID: "ab12"}, logger.NewNopLogger())
	assert.Equal(t, "AB12", c.ClientID())
}
