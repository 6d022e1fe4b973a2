package exchange

import "errors"

// ErrUnknownSymbol is returned by QueryMarketInfo for a symbol the venue
// has not reported metadata for.
var ErrUnknownSymbol = errors.New("exchange: unknown symbol")
