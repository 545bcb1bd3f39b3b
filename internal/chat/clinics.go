package chat

// Clinic is a demo clinic surfaced by the map widget.
type Clinic struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Phone     string  `json:"phone"`
	Specialty string  `json:"specialty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

// demoClinics is the static list the demo ships with. A production build
// would query a places API instead.
var demoClinics = []Clinic{
	{
		Name:      "City Clinic",
		Address:   "412 Market St",
		Phone:     "+15550000001",
		Specialty: "Family Medicine",
		Lat:       37.7897,
		Lng:       -122.4011,
	},
	{
		Name:      "Bayview Urgent Care",
		Address:   "88 Harbor Way",
		Phone:     "+15550000002",
		Specialty: "Urgent Care",
		Lat:       37.7341,
		Lng:       -122.3861,
	},
	{
		Name:      "Sunrise Medical Group",
		Address:   "1500 Lakeshore Ave",
		Phone:     "+15550000003",
		Specialty: "Internal Medicine",
		Lat:       37.8012,
		Lng:       -122.2583,
	},
}

// Clinics returns the demo clinic list.
func Clinics() []Clinic {
	out := make([]Clinic, len(demoClinics))
	copy(out, demoClinics)
	return out
}
