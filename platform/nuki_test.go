// api/platform/nuki_test.go
package platform_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/platform"
)

func nukiServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, handler := range handlers {
		mux.HandleFunc(path, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newNuki(server *httptest.Server) *platform.NukiClient {
	return platform.NewNukiClient(server.URL, "token-1", 5*time.Second)
}

func TestNuki_GetDeviceMapsStates(t *testing.T) {
	logger.InitLogger("")

	cases := []struct {
		name        string
		state       int
		serverState int
		batteryCrit bool
		want        model.LockStatus
	}{
		{name: "locked", state: 1, want: model.LockStatusLocked},
		{name: "motor blocked is locked", state: 4, want: model.LockStatusLocked},
		{name: "unlocked", state: 3, want: model.LockStatusUnlocked},
		{name: "uncalibrated", state: 0, want: model.LockStatusMaintenance},
		{name: "unmapped state", state: 99, want: model.LockStatusUnknown},
		{name: "offline wins", state: 1, serverState: 4, want: model.LockStatusOffline},
		{name: "battery critical", state: 1, batteryCrit: true, want: model.LockStatusLowBattery},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := nukiServer(t, map[string]http.HandlerFunc{
				"/smartlock/17": func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
					json.NewEncoder(w).Encode(map[string]interface{}{
						"smartlockId": 17,
						"name":        "Back Door",
						"type":        4,
						"serverState": tc.serverState,
						"state": map[string]interface{}{
							"state":           tc.state,
							"batteryCritical": tc.batteryCrit,
							"batteryCharge":   64,
						},
					})
				},
			})

			device, err := newNuki(server).GetDevice(context.Background(), "17")
			assert.NoError(t, err)
			assert.Equal(t, tc.want, device.Status)
			assert.Equal(t, "17", device.ExternalID)
			assert.Equal(t, "Nuki Smart Lock 3/4", device.Model)
		})
	}
}

func TestNuki_CreateAccessCodeLooksUpAsyncAuth(t *testing.T) {
	logger.InitLogger("")

	var created map[string]interface{}
	server := nukiServer(t, map[string]http.HandlerFunc{
		"/smartlock/17/auth": func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPut:
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&created))
				w.WriteHeader(http.StatusNoContent)
			case http.MethodGet:
				json.NewEncoder(w).Encode([]map[string]interface{}{
					{"id": "auth-1", "name": "someone else", "type": 0},
					{"id": "auth-2", "name": "keyway-rule-1", "type": 13},
				})
			}
		},
	})

	vendorID, err := newNuki(server).CreateAccessCode(context.Background(), "17", platform.CodeSpec{
		Name:       "keyway-rule-1",
		Code:       "553301",
		ValidFrom:  time.Now(),
		ValidUntil: time.Now().AddDate(0, 0, 7),
	})
	assert.NoError(t, err)
	assert.Equal(t, "auth-2", vendorID)
	assert.Equal(t, float64(13), created["type"])
	assert.Equal(t, float64(553301), created["code"])
}

func TestNuki_NonNumericCodeRejected(t *testing.T) {
	logger.InitLogger("")
	server := nukiServer(t, nil)

	_, err := newNuki(server).CreateAccessCode(context.Background(), "17", platform.CodeSpec{
		Name: "keyway-rule-1",
		Code: "abc123",
	})
	assert.ErrorIs(t, err, keyway_errors.ErrVendorRejected)
}

func TestNuki_ClientErrorIsRejection(t *testing.T) {
	logger.InitLogger("")
	server := nukiServer(t, map[string]http.HandlerFunc{
		"/smartlock/17/action/unlock": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	})

	err := newNuki(server).Unlock(context.Background(), "17")
	assert.ErrorIs(t, err, keyway_errors.ErrVendorRejected)
}

func TestNuki_ServerErrorIsUnavailable(t *testing.T) {
	logger.InitLogger("")
	server := nukiServer(t, map[string]http.HandlerFunc{
		"/smartlock": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})

	_, err := newNuki(server).ListDevices(context.Background())
	assert.ErrorIs(t, err, keyway_errors.ErrVendorUnavailable)
}
