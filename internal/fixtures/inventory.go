package fixtures

// Inventory has no generated encoder. It is checked through the msgpack
// fallback codec.
type Inventory struct {
	Owner    string             `json:"owner"`
	Items    map[string][]int32 `json:"items"`
	Prices   map[uint16]float64 `json:"prices"`
	Location *Coordinates       `json:"location"`
	History  [][]string         `json:"history"`
	Limits   [4]int16           `json:"limits"`
	Sealed   bool               `json:"sealed"`
}

type Coordinates struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Label string  `json:"label"`
}
