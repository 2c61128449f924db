package services

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

//go:embed data/facilities.yaml
var embeddedFacilities []byte

// AllCities selects every city in List and Referrals
const AllCities = "all"

// FacilityDirectory is the read-only lookup of hospitals, doctors, labs and
// blood donation centers, grouped by kind and city
type FacilityDirectory struct {
	entries map[models.FacilityKind][]models.CityFacilities
}

// LoadFacilityDirectory reads the directory from path, or the built-in data
// when path is empty
func LoadFacilityDirectory(path string) (*FacilityDirectory, error) {
	data := embeddedFacilities
	source := "embedded"
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read facility data: %w", err)
		}
		data = content
		source = path
	}

	directory, err := ParseFacilityDirectory(data)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"component": "FacilityDirectory",
		"source":    source,
		"kinds":     len(directory.entries),
	}).Info("Loaded facility directory")

	return directory, nil
}

// ParseFacilityDirectory decodes YAML keyed by facility kind
func ParseFacilityDirectory(data []byte) (*FacilityDirectory, error) {
	var entries map[models.FacilityKind][]models.CityFacilities
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse facility data: %w", err)
	}
	for kind := range entries {
		if !isKnownKind(kind) {
			return nil, fmt.Errorf("unknown facility kind %q", kind)
		}
	}
	return &FacilityDirectory{entries: entries}, nil
}

// List returns the facilities of kind, filtered to city unless city is empty or "all"
func (d *FacilityDirectory) List(kind models.FacilityKind, city string) []models.CityFacilities {
	city = strings.TrimSpace(city)
	all := city == "" || strings.EqualFold(city, AllCities)

	result := []models.CityFacilities{}
	for _, group := range d.entries[kind] {
		if all || strings.EqualFold(group.City, city) {
			result = append(result, group)
		}
	}
	return result
}

// Cities returns every city the directory knows, sorted
func (d *FacilityDirectory) Cities() []string {
	seen := make(map[string]struct{})
	for _, groups := range d.entries {
		for _, group := range groups {
			seen[group.City] = struct{}{}
		}
	}
	cities := make([]string, 0, len(seen))
	for city := range seen {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

// Referrals picks the directory sections worth showing next to a result.
// Elevated diabetes risk refers to centers, doctors and labs; an unknown risk
// refers to labs for a follow-up test; participants willing to donate without
// elevated risk are pointed at donation centers.
func (d *FacilityDirectory) Referrals(envelope *models.ResultEnvelope, city string) []models.Referral {
	referrals := []models.Referral{}
	add := func(kind models.FacilityKind, reason string) {
		referrals = append(referrals, models.Referral{Kind: kind, Reason: reason, Cities: d.List(kind, city)})
	}

	risk := strings.ToLower(strings.TrimSpace(envelope.DiabetesResult.DiabetesRisk))
	switch {
	case IsElevatedRisk(risk):
		add(models.DiabetesCenter, "elevated_diabetes_risk")
		add(models.DiabetesDoctor, "elevated_diabetes_risk")
		add(models.DiabetesLab, "elevated_diabetes_risk")
	case risk == "" || risk == strings.ToLower(models.UnknownPrediction):
		add(models.DiabetesLab, "diabetes_risk_unknown")
	default:
		if willingToDonate(envelope.ParticipantData) {
			add(models.BloodDonationCenter, "willing_to_donate")
		}
	}

	return referrals
}

// IsElevatedRisk reports whether a diabetes_risk label calls for a referral
func IsElevatedRisk(risk string) bool {
	switch strings.ToLower(strings.TrimSpace(risk)) {
	case "diabetic", "high", "at risk":
		return true
	}
	return false
}

func willingToDonate(participant json.RawMessage) bool {
	if !isPresent(participant) {
		return false
	}
	var fields struct {
		WillingToDonate json.RawMessage `json:"willing_to_donate"`
	}
	if err := json.Unmarshal(participant, &fields); err != nil {
		return false
	}
	return parseBool(fields.WillingToDonate)
}

func isKnownKind(kind models.FacilityKind) bool {
	switch kind {
	case models.DiabetesCenter, models.DiabetesDoctor, models.DiabetesLab, models.BloodDonationCenter:
		return true
	}
	return false
}
