package client

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMain(m *testing.M) {
	// Match the binary: amounts are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}
