package transit

type Stop struct {
	PrimaryIdentifier string `groups:"basic"`

	CreationDateTime     string `groups:"detailed"`
	ModificationDateTime string `groups:"detailed"`

	PrimaryName string `groups:"basic"`
	Address     string `groups:"detailed"`
	City        string `groups:"detailed"`

	Location *Location `groups:"basic"`

	Facilities []StopFacility `groups:"detailed"`

	Active bool `groups:"detailed"`

	// Routes that call at this stop, maintained by the entity management side
	RouteRefs []string `groups:"detailed"`
}

type StopFacility string

const (
	StopFacilityShelter       StopFacility = "shelter"
	StopFacilityBench         StopFacility = "bench"
	StopFacilityLighting      StopFacility = "lighting"
	StopFacilityAccessibility StopFacility = "accessibility"
	StopFacilityTicketBooth   StopFacility = "ticket_booth"
	StopFacilityWifi          StopFacility = "wifi"
)
