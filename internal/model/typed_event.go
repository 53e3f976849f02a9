package model

import "encoding/json"

// Event is an engine event enriched with the pool state it produced.
type Event struct {
	Sequence  uint64      `json:"sequence"`
	Name      string      `json:"event_name"`
	Pool      string      `json:"pool,omitempty"`
	TokenA    string      `json:"token_a,omitempty"`
	TokenB    string      `json:"token_b,omitempty"`
	LPToken   string      `json:"lp_token,omitempty"`
	Fee       uint16      `json:"fee_basis_points"`
	ReserveA  uint64      `json:"reserve_a"`
	ReserveB  uint64      `json:"reserve_b"`
	LPSupply  uint64      `json:"lp_supply"`
	Timestamp uint64      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewPoolEvent builds an Event carrying pool's resulting reserves.
func NewPoolEvent(name string, pool Pool, data interface{}) Event {
	return Event{
		Name:     name,
		Pool:     pool.Address.Hex(),
		TokenA:   pool.TokenA.Hex(),
		TokenB:   pool.TokenB.Hex(),
		LPToken:  pool.LPToken.Hex(),
		Fee:      pool.FeeBasisPoints,
		ReserveA: pool.ReserveA,
		ReserveB: pool.ReserveB,
		LPSupply: pool.LPSupply,
		Data:     data,
	}
}

// EventRecord is the JSON representation read back for aggregation.
type EventRecord struct {
	Sequence  uint64          `json:"sequence"`
	Name      string          `json:"event_name"`
	Pool      string          `json:"pool,omitempty"`
	TokenA    string          `json:"token_a,omitempty"`
	TokenB    string          `json:"token_b,omitempty"`
	LPToken   string          `json:"lp_token,omitempty"`
	Fee       uint16          `json:"fee_basis_points"`
	ReserveA  uint64          `json:"reserve_a"`
	ReserveB  uint64          `json:"reserve_b"`
	LPSupply  uint64          `json:"lp_supply"`
	Timestamp uint64          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}
