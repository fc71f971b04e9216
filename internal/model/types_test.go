package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestValidate(t *testing.T) {
	is := is.New(t)

	good := PositionSample{Latitude: 59.3, Longitude: 18.1, ObservedAt: "2024-01-15T12:00:00Z"}
	is.NoErr(good.Validate())

	edge := PositionSample{Latitude: -90, Longitude: 180}
	is.NoErr(edge.Validate())

	badLon := PositionSample{Latitude: 0, Longitude: 181}
	is.True(badLon.Validate() != nil)

	badLat := PositionSample{Latitude: -91, Longitude: 0}
	is.True(badLat.Validate() != nil)

	negAccuracy := -1.0
	badAcc := PositionSample{Latitude: 0, Longitude: 0, Accuracy: &negAccuracy}
	is.True(badAcc.Validate() != nil)
}

func TestOptionalFieldsOmittedFromJSON(t *testing.T) {
	is := is.New(t)

	sample := PositionSample{
		DeviceID:   "dev1",
		Latitude:   59.3,
		Longitude:  18.1,
		ObservedAt: "2024-01-15T12:00:00Z",
	}

	raw, err := json.Marshal(sample)
	is.NoErr(err)

	body := string(raw)
	is.True(!strings.Contains(body, "accuracy"))
	is.True(!strings.Contains(body, "network_status"))
	is.True(!strings.Contains(body, "local_seq"))
	is.True(strings.Contains(body, `"location_time":"2024-01-15T12:00:00Z"`))
}

func TestBodyCarriesSampleFields(t *testing.T) {
	is := is.New(t)

	accuracy := 7.5
	sample := PositionSample{
		DeviceID:      "dev1",
		Latitude:      59.3,
		Longitude:     18.1,
		ObservedAt:    "2024-01-15T12:00:00Z",
		Accuracy:      &accuracy,
		NetworkStatus: NetworkCellular,
		LocalSeq:      4,
	}

	body := sample.Body()
	is.Equal(body.Latitude, 59.3)
	is.Equal(body.Longitude, 18.1)
	is.Equal(body.LocationTime, "2024-01-15T12:00:00Z")
	is.Equal(*body.Accuracy, 7.5)
	is.Equal(body.NetworkStatus, NetworkCellular)
}
