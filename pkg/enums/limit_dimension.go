package enums

// LimitDimension names a quota axis on a subscription plan.
type LimitDimension string

const (
	LimitDimensionSessions       LimitDimension = "sessions"
	LimitDimensionRealtimeTokens LimitDimension = "realtime_tokens"
	LimitDimensionTextTokens     LimitDimension = "text_tokens"
)

// String implements fmt.Stringer.
func (d LimitDimension) String() string {
	return string(d)
}
