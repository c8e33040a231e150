package risk

import "fmt"

// Profile fixes the hard sizing bounds for a risk appetite. The max
// fraction is binding: no sizing refinement may exceed it.
type Profile struct {
	Name            string
	MaxFraction     float64 // max fraction of capital committed per trade
	StopLossPct     float64 // default protective stop distance
	TakeProfitRatio float64 // reward multiple of the stop distance
}

var profiles = map[string]Profile{
	"conservative": {Name: "conservative", MaxFraction: 0.03, StopLossPct: 0.02, TakeProfitRatio: 1.5},
	"balanced":     {Name: "balanced", MaxFraction: 0.07, StopLossPct: 0.03, TakeProfitRatio: 2.0},
	"aggressive":   {Name: "aggressive", MaxFraction: 0.12, StopLossPct: 0.05, TakeProfitRatio: 2.5},
}

func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown risk profile %q", name)
	}
	return p, nil
}
