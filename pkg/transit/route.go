package transit

type Route struct {
	PrimaryIdentifier string `groups:"basic"`

	CreationDateTime     string `groups:"detailed"`
	ModificationDateTime string `groups:"detailed"`

	Name   string `groups:"basic"`
	Number string `groups:"basic"`

	// Ordered by Sequence, sequences unique and strictly increasing
	Stops []RouteStop `groups:"detailed"`

	OperatingHours OperatingHours `groups:"detailed"`

	// Minutes between vehicles
	Frequency int `groups:"detailed"`

	Fare  float64 `groups:"detailed"`
	Color string  `groups:"basic"`

	Active bool `groups:"detailed"`
}

type RouteStop struct {
	StopRef  string `groups:"basic"`
	Sequence int    `groups:"basic"`

	// Scheduled minutes from the start of the route
	EstimatedTime int `groups:"detailed"`
}

type OperatingHours struct {
	Start string `groups:"detailed"`
	End   string `groups:"detailed"`
}
