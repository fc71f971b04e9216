package reachability

import (
	"testing"

	"github.com/matryer/is"

	"trackpoint/location-agent/internal/model"
)

func TestClassifyName(t *testing.T) {
	is := is.New(t)

	is.Equal(classifyName("wlan0"), model.NetworkWifi)
	is.Equal(classifyName("wlp3s0"), model.NetworkWifi)
	is.Equal(classifyName("WiFi"), model.NetworkWifi)
	is.Equal(classifyName("ath0"), model.NetworkWifi)

	is.Equal(classifyName("wwan0"), model.NetworkCellular)
	is.Equal(classifyName("rmnet_data0"), model.NetworkCellular)
	is.Equal(classifyName("ppp0"), model.NetworkCellular)

	is.Equal(classifyName("eth0"), model.NetworkUnknown)
	is.Equal(classifyName("en0"), model.NetworkUnknown)
}

func TestReachableMatchesNetworkType(t *testing.T) {
	is := is.New(t)

	c := New()
	is.Equal(c.Reachable(), c.NetworkType() != model.NetworkOffline)
}
