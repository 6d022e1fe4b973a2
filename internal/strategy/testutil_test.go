package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tommy-ca/gridbot/internal/market"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func newTestContext(symbol string, info market.Info) *Context {
	reg := market.NewRegistry(info)
	return NewContext(symbol, reg, nopLogger{}, func() time.Time { return time.Unix(0, 0) })
}

func dd(s string) decimal.Decimal { return decimal.RequireFromString(s) }
