package entity

// Demand is the number of bikes and free docks every station should end up with
type Demand struct {
	Bikes int `json:"bikes"`
	Docks int `json:"docks"`
}
