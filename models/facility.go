package models

// FacilityKind groups the directory entries the results view can refer to
type FacilityKind string

const (
	DiabetesCenter      FacilityKind = "diabetes_center"
	DiabetesDoctor      FacilityKind = "diabetes_doctor"
	DiabetesLab         FacilityKind = "diabetes_lab"
	BloodDonationCenter FacilityKind = "blood_donation_center"
)

// Facility is one hospital, clinic, lab or donation center
type Facility struct {
	Name     string   `json:"name" yaml:"name"`
	Address  string   `json:"address" yaml:"address"`
	Tel      []string `json:"tel,omitempty" yaml:"tel,omitempty"`
	Mobile   []string `json:"mobile,omitempty" yaml:"mobile,omitempty"`
	Email    []string `json:"email,omitempty" yaml:"email,omitempty"`
	Website  string   `json:"website,omitempty" yaml:"website,omitempty"`
	Facebook string   `json:"facebook,omitempty" yaml:"facebook,omitempty"`
	Notes    string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// CityFacilities lists the facilities of one kind in one city
type CityFacilities struct {
	City       string     `json:"city" yaml:"city"`
	Facilities []Facility `json:"facilities" yaml:"facilities"`
}

// Referral is a directory section recommended for a result
type Referral struct {
	Kind   FacilityKind     `json:"kind"`
	Reason string           `json:"reason"`
	Cities []CityFacilities `json:"cities"`
}
