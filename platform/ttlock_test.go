// api/platform/ttlock_test.go
package platform_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
	"github.com/propsync/keyway/api/platform"
)

func ttlockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, handler := range handlers {
		mux.HandleFunc(path, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTTLock(server *httptest.Server) *platform.TTLockClient {
	return platform.NewTTLockClient(server.URL, "client-1", "secret", "token-1", "refresh-1", 5*time.Second)
}

func TestTTLock_GetDevice(t *testing.T) {
	logger.InitLogger("")
	server := ttlockServer(t, map[string]http.HandlerFunc{
		"/v3/lock/detail": func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.PostForm.Get("lockId"))
			assert.Equal(t, "client-1", r.PostForm.Get("clientId"))
			w.Write([]byte(`{"errcode":0,"lockId":42,"lockAlias":"Front Door","modelNum":"M501","electricQuantity":82,"hasGateway":1}`))
		},
	})

	device, err := newTTLock(server).GetDevice(context.Background(), "42")
	assert.NoError(t, err)
	assert.Equal(t, "42", device.ExternalID)
	assert.Equal(t, "Front Door", device.Name)
	assert.Equal(t, 82, device.BatteryLevel)
	assert.True(t, device.Online)
}

func TestTTLock_ErrcodeIsRejection(t *testing.T) {
	logger.InitLogger("")
	server := ttlockServer(t, map[string]http.HandlerFunc{
		"/v3/lock/unlock": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"errcode":-3,"errmsg":"invalid token"}`))
		},
	})

	err := newTTLock(server).Unlock(context.Background(), "42")
	assert.ErrorIs(t, err, keyway_errors.ErrVendorRejected)
}

func TestTTLock_ExpiredTokenRefreshesAndRetries(t *testing.T) {
	logger.InitLogger("")
	unlockCalls := 0
	server := ttlockServer(t, map[string]http.HandlerFunc{
		"/v3/lock/unlock": func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			unlockCalls++
			if r.PostForm.Get("accessToken") == "token-1" {
				w.Write([]byte(`{"errcode":10003,"errmsg":"access token expired"}`))
				return
			}
			assert.Equal(t, "token-2", r.PostForm.Get("accessToken"))
			w.Write([]byte(`{"errcode":0}`))
		},
		"/oauth2/token": func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client-1", r.PostForm.Get("clientId"))
			assert.Equal(t, "secret", r.PostForm.Get("clientSecret"))
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
			w.Write([]byte(`{"access_token":"token-2","refresh_token":"refresh-2"}`))
		},
	})

	err := newTTLock(server).Unlock(context.Background(), "42")
	assert.NoError(t, err)
	assert.Equal(t, 2, unlockCalls)
}

func TestTTLock_ExpiredTokenWithoutRefreshTokenFails(t *testing.T) {
	logger.InitLogger("")
	server := ttlockServer(t, map[string]http.HandlerFunc{
		"/v3/lock/unlock": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"errcode":10003,"errmsg":"access token expired"}`))
		},
	})

	client := platform.NewTTLockClient(server.URL, "client-1", "secret", "token-1", "", 5*time.Second)
	err := client.Unlock(context.Background(), "42")
	assert.ErrorIs(t, err, keyway_errors.ErrVendorRejected)
}

func TestTTLock_ServerErrorIsUnavailable(t *testing.T) {
	logger.InitLogger("")
	server := ttlockServer(t, map[string]http.HandlerFunc{
		"/v3/lock/lock": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})

	err := newTTLock(server).Lock(context.Background(), "42")
	assert.ErrorIs(t, err, keyway_errors.ErrVendorUnavailable)
}

func TestTTLock_TransportFailureIsUnavailable(t *testing.T) {
	logger.InitLogger("")
	server := httptest.NewServer(nil)
	server.Close() // refuse connections

	client := platform.NewTTLockClient(server.URL, "c", "s", "t", "r", time.Second)
	_, err := client.ListDevices(context.Background())
	assert.ErrorIs(t, err, keyway_errors.ErrVendorUnavailable)
}

func TestTTLock_CreateAccessCode(t *testing.T) {
	logger.InitLogger("")
	server := ttlockServer(t, map[string]http.HandlerFunc{
		"/v3/keyboardPwd/add": func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "553301", r.PostForm.Get("keyboardPwd"))
			assert.Equal(t, "2", r.PostForm.Get("addType"))
			w.Write([]byte(`{"errcode":0,"keyboardPwdId":910}`))
		},
	})

	vendorID, err := newTTLock(server).CreateAccessCode(context.Background(), "42", platform.CodeSpec{
		Name:       "keyway-rule-1",
		Code:       "553301",
		ValidFrom:  time.Now(),
		ValidUntil: time.Now().AddDate(0, 0, 90),
	})
	assert.NoError(t, err)
	assert.Equal(t, "910", vendorID)
}

func TestTTLock_SyncStatusMapsStates(t *testing.T) {
	logger.InitLogger("")

	cases := []struct {
		state   int
		battery int
		want    model.LockStatus
	}{
		{state: 0, battery: 80, want: model.LockStatusLocked},
		{state: 1, battery: 80, want: model.LockStatusUnlocked},
		{state: 2, battery: 80, want: model.LockStatusUnknown},
		{state: 0, battery: 15, want: model.LockStatusLowBattery},
	}
	for _, tc := range cases {
		server := ttlockServer(t, map[string]http.HandlerFunc{
			"/v3/lock/detail": func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"errcode":0,"lockId":42,"lockAlias":"Front Door","electricQuantity":` +
					strconv.Itoa(tc.battery) + `,"hasGateway":1}`))
			},
			"/v3/lock/queryOpenState": func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"errcode":0,"state":` + strconv.Itoa(tc.state) + `}`))
			},
		})

		device, err := newTTLock(server).SyncStatus(context.Background(), "42")
		assert.NoError(t, err)
		assert.Equal(t, tc.want, device.Status)
	}
}
