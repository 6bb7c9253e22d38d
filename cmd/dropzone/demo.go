package main

import (
	"net/http/httptest"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/api/apifake"
)

const (
	demoEmail    = "demo@dropzone.example"
	demoPassword = "demo-password"
	demoAPIKey   = apifake.DefaultAPIKey
)

var demoLocations = []api.Location{
	{ID: "dz-spa", Name: "Skydive Spa", Country: "BE", Type: "dropzone", Latitude: 50.48, Longitude: 5.91},
	{ID: "dz-empuriabrava", Name: "Skydive Empuriabrava", Country: "ES", Type: "dropzone", Latitude: 42.25, Longitude: 3.11},
	{ID: "dz-hibaldstow", Name: "Skydive Hibaldstow", Country: "GB", Type: "dropzone", Latitude: 53.50, Longitude: -0.52},
	{ID: "wt-eloy", Name: "SkyVenture Arizona", Country: "US", Type: "tunnel", Latitude: 32.81, Longitude: -111.59},
}

// startDemoServer runs the fake API in-process with a demo account and a
// handful of locations.
func startDemoServer() *httptest.Server {
	fake := apifake.New(apifake.WithAPIKey(demoAPIKey))
	user := fake.AddUser(demoEmail, demoPassword, "Demo Jumper")
	for _, loc := range demoLocations {
		fake.AddLocation(loc)
	}
	fake.MarkSaved(user.ID, demoLocations[0].ID)
	return httptest.NewServer(fake)
}
