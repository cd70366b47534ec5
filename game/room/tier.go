package room

import (
	"fmt"
	"strconv"
)

type (
	// Tier is an entry fee bracket.  It determines the prize pool and the move limit of a room.
	Tier string

	// Amount is money in hundredths of a currency unit.
	Amount int64

	// Prizes is the breakdown of the money collected for a room.
	Prizes struct {
		Total      Amount `json:"total"`
		Commission Amount `json:"commission"`
		Pool       Amount `json:"pool"`
		Winner     Amount `json:"winner"`
		RunnerUp   Amount `json:"runnerUp"`
	}

	// TierInfo describes a tier for display.
	TierInfo struct {
		Tier      Tier   `json:"tier"`
		EntryFee  Amount `json:"entryFee"`
		MoveLimit int    `json:"moveLimit"`
		Prizes    Prizes `json:"prizes"`
	}
)

const (
	// Tiers, from the cheapest to the most expensive.
	Micro    Tier = "micro"
	Beginner Tier = "beginner"
	Amateur  Tier = "amateur"
	Pro      Tier = "pro"
	Expert   Tier = "expert"
	Master   Tier = "master"
	Elite    Tier = "elite"
	Legend   Tier = "legend"
	Champion Tier = "champion"
	Ultimate Tier = "ultimate"

	// CommissionPercent is the share of the total stake kept by the house.
	CommissionPercent = 5
	// WinnerPercent is the share of the pool paid to the winner.  The runner-up gets the rest.
	WinnerPercent = 80

	// Unit is one whole currency unit.
	Unit Amount = 100

	defaultMoveLimit = 10
	lowTierMoveLimit = 16
)

var tiers = []Tier{Micro, Beginner, Amateur, Pro, Expert, Master, Elite, Legend, Champion, Ultimate}

var entryFees = map[Tier]Amount{
	Micro:    2 * Unit,
	Beginner: 5 * Unit,
	Amateur:  10 * Unit,
	Pro:      25 * Unit,
	Expert:   50 * Unit,
	Master:   100 * Unit,
	Elite:    250 * Unit,
	Legend:   500 * Unit,
	Champion: 1000 * Unit,
	Ultimate: 5000 * Unit,
}

// Tiers returns all tiers from the cheapest to the most expensive.
func Tiers() []Tier {
	t := make([]Tier, len(tiers))
	copy(t, tiers)
	return t
}

// Valid determines if the tier is known.
func (t Tier) Valid() bool {
	_, ok := entryFees[t]
	return ok
}

// EntryFee is the stake each player pays to join a room of the tier.
func (t Tier) EntryFee() (Amount, error) {
	fee, ok := entryFees[t]
	if !ok {
		return 0, fmt.Errorf("unknown tier %q", t)
	}
	return fee, nil
}

// MoveLimit is the number of moves each seat may make in a room of the tier.
func (t Tier) MoveLimit() int {
	switch t {
	case Micro, Beginner:
		return lowTierMoveLimit
	}
	return defaultMoveLimit
}

// Info describes the tier for a full room.
func (t Tier) Info() (*TierInfo, error) {
	fee, err := t.EntryFee()
	if err != nil {
		return nil, err
	}
	i := TierInfo{
		Tier:      t,
		EntryFee:  fee,
		MoveLimit: t.MoveLimit(),
		Prizes:    NewPrizes(fee, MaxPlayers),
	}
	return &i, nil
}

// NewPrizes splits the stake collected from the players.
func NewPrizes(entryFee Amount, players int) Prizes {
	total := entryFee * Amount(players)
	commission := total * CommissionPercent / 100
	pool := total - commission
	winner := pool * WinnerPercent / 100
	p := Prizes{
		Total:      total,
		Commission: commission,
		Pool:       pool,
		Winner:     winner,
		RunnerUp:   pool - winner,
	}
	return p
}

// String formats the amount in whole currency units.
func (a Amount) String() string {
	sign := ""
	if a < 0 {
		sign, a = "-", -a
	}
	cents := strconv.FormatInt(int64(a%Unit), 10)
	if len(cents) < 2 {
		cents = "0" + cents
	}
	return sign + strconv.FormatInt(int64(a/Unit), 10) + "." + cents
}
