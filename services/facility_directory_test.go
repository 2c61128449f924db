package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referralKinds(referrals []models.Referral) []models.FacilityKind {
	kinds := make([]models.FacilityKind, 0, len(referrals))
	for _, r := range referrals {
		kinds = append(kinds, r.Kind)
	}
	return kinds
}

func TestLoadFacilityDirectory_Embedded(t *testing.T) {
	directory, err := LoadFacilityDirectory("")
	require.NoError(t, err)

	assert.Equal(t, []string{"Angeles", "Mabalacat", "San Fernando"}, directory.Cities())
	for _, kind := range []models.FacilityKind{models.DiabetesCenter, models.DiabetesDoctor, models.DiabetesLab, models.BloodDonationCenter} {
		groups := directory.List(kind, "")
		require.Len(t, groups, 3, "kind %s", kind)
		for _, group := range groups {
			assert.NotEmpty(t, group.Facilities)
			for _, facility := range group.Facilities {
				assert.NotEmpty(t, facility.Name)
				assert.NotEmpty(t, facility.Address)
			}
		}
	}
}

func TestFacilityDirectory_ListFiltersByCity(t *testing.T) {
	directory, err := LoadFacilityDirectory("")
	require.NoError(t, err)

	groups := directory.List(models.DiabetesLab, "angeles")
	require.Len(t, groups, 1)
	assert.Equal(t, "Angeles", groups[0].City)

	assert.Len(t, directory.List(models.DiabetesLab, AllCities), 3)
	assert.Empty(t, directory.List(models.DiabetesLab, "Manila"))
	assert.Empty(t, directory.List(models.FacilityKind("pharmacy"), ""))
}

func TestLoadFacilityDirectory_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facilities.yaml")
	content := `
blood_donation_center:
  - city: "Clark"
    facilities:
      - name: "Clark Blood Bank"
        address: "Clark Freeport Zone"
        tel: ["045-000-0000"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	directory, err := LoadFacilityDirectory(path)
	require.NoError(t, err)

	groups := directory.List(models.BloodDonationCenter, "Clark")
	require.Len(t, groups, 1)
	assert.Equal(t, "Clark Blood Bank", groups[0].Facilities[0].Name)
	assert.Equal(t, []string{"045-000-0000"}, groups[0].Facilities[0].Tel)
	assert.Empty(t, directory.List(models.DiabetesCenter, ""))
}

func TestLoadFacilityDirectory_Errors(t *testing.T) {
	_, err := LoadFacilityDirectory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseFacilityDirectory([]byte("pharmacy:\n  - city: X\n"))
	assert.Error(t, err)

	_, err = ParseFacilityDirectory([]byte("{not yaml"))
	assert.Error(t, err)
}

func TestFacilityDirectory_Referrals(t *testing.T) {
	directory, err := LoadFacilityDirectory("")
	require.NoError(t, err)

	withRisk := func(risk string, participant string) *models.ResultEnvelope {
		envelope := sampleEnvelope("t1", risk, 0.8)
		if participant != "" {
			envelope.ParticipantData = json.RawMessage(participant)
		}
		return envelope
	}

	tests := []struct {
		name     string
		envelope *models.ResultEnvelope
		want     []models.FacilityKind
	}{
		{"diabetic", withRisk("Diabetic", ""), []models.FacilityKind{models.DiabetesCenter, models.DiabetesDoctor, models.DiabetesLab}},
		{"at risk", withRisk("At Risk", `{"willing_to_donate":true}`), []models.FacilityKind{models.DiabetesCenter, models.DiabetesDoctor, models.DiabetesLab}},
		{"high", withRisk("HIGH", ""), []models.FacilityKind{models.DiabetesCenter, models.DiabetesDoctor, models.DiabetesLab}},
		{"unknown", withRisk(models.UnknownPrediction, ""), []models.FacilityKind{models.DiabetesLab}},
		{"healthy donor", withRisk("Healthy", `{"willing_to_donate":true}`), []models.FacilityKind{models.BloodDonationCenter}},
		{"healthy non-donor", withRisk("Healthy", `{"willing_to_donate":false}`), []models.FacilityKind{}},
		{"not at risk", withRisk("Not At Risk", ""), []models.FacilityKind{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, referralKinds(directory.Referrals(tt.envelope, "")))
		})
	}
}

func TestFacilityDirectory_ReferralsNarrowByCity(t *testing.T) {
	directory, err := LoadFacilityDirectory("")
	require.NoError(t, err)

	referrals := directory.Referrals(sampleEnvelope("t1", "Diabetic", 0.9), "San Fernando")
	require.Len(t, referrals, 3)
	for _, referral := range referrals {
		require.Len(t, referral.Cities, 1)
		assert.Equal(t, "San Fernando", referral.Cities[0].City)
		assert.Equal(t, "elevated_diabetes_risk", referral.Reason)
	}
}
