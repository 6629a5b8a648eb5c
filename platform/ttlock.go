// api/platform/ttlock.go
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	keyway_errors "github.com/propsync/keyway/api/errors"
	logger "github.com/propsync/keyway/api/logging"
	"github.com/propsync/keyway/api/model"
)

const (
	ttlockPlatform = "ttlock"

	// Keyboard password add/delete via the gateway, not bluetooth.
	ttlockViaGateway = 2

	ttlockLowBatteryPct = 20

	ttlockErrTokenExpired = 10003
)

// TTLockClient talks to the TTLock open platform. The API is form-encoded
// and wraps errors in an errcode/errmsg envelope; errcode 0 means success.
// Access tokens expire; when the platform reports one expired the client
// trades the refresh token for a fresh pair and retries once.
type TTLockClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewTTLockClient(baseURL, clientID, clientSecret, accessToken, refreshToken string, timeout time.Duration) *TTLockClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TTLockClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (c *TTLockClient) Platform() string { return ttlockPlatform }

type ttlockEnvelope struct {
	Errcode int    `json:"errcode"`
	Errmsg  string `json:"errmsg"`
}

type ttlockLock struct {
	LockID           int    `json:"lockId"`
	LockAlias        string `json:"lockAlias"`
	LockName         string `json:"lockName"`
	ModelNum         string `json:"modelNum"`
	ElectricQuantity int    `json:"electricQuantity"`
	HasGateway       int    `json:"hasGateway"`
}

type ttlockLockList struct {
	ttlockEnvelope
	List []ttlockLock `json:"list"`
}

type ttlockOpenState struct {
	ttlockEnvelope
	State int `json:"state"`
}

type ttlockKeyboardPwd struct {
	KeyboardPwdID   int    `json:"keyboardPwdId"`
	KeyboardPwdName string `json:"keyboardPwdName"`
	StartDate       int64  `json:"startDate"`
	EndDate         int64  `json:"endDate"`
}

type ttlockKeyboardPwdList struct {
	ttlockEnvelope
	List []ttlockKeyboardPwd `json:"list"`
}

type ttlockKeyboardPwdAdd struct {
	ttlockEnvelope
	KeyboardPwdID int `json:"keyboardPwdId"`
}

// call posts a form-encoded request and decodes the JSON response into out.
// out must embed ttlockEnvelope so business rejections can be detected. An
// expired access token triggers one refresh-and-retry before the error is
// surfaced.
func (c *TTLockClient) call(ctx context.Context, path string, params url.Values, out interface{}) error {
	body, err := c.post(ctx, path, params)
	if err != nil {
		return err
	}

	var env ttlockEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: malformed ttlock response: %v", keyway_errors.ErrVendorRejected, err)
	}
	if env.Errcode == ttlockErrTokenExpired {
		if err := c.refreshAccessToken(ctx); err != nil {
			return err
		}
		if body, err = c.post(ctx, path, params); err != nil {
			return err
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: malformed ttlock response: %v", keyway_errors.ErrVendorRejected, err)
	}
	return nil
}

func (c *TTLockClient) post(ctx context.Context, path string, params url.Values) ([]byte, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("clientId", c.clientID)
	form.Set("accessToken", c.token())
	form.Set("date", strconv.FormatInt(time.Now().UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransportErr(err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: ttlock returned %d", keyway_errors.ErrVendorUnavailable, res.StatusCode)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: ttlock returned %d", keyway_errors.ErrVendorRejected, res.StatusCode)
	}

	return io.ReadAll(res.Body)
}

func (c *TTLockClient) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// refreshAccessToken trades the refresh token for a new access token pair.
// The oauth2 endpoint authenticates the application itself, so this is the
// one request that carries the client secret.
func (c *TTLockClient) refreshAccessToken(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return fmt.Errorf("%w: ttlock access token expired and no refresh token configured", keyway_errors.ErrVendorRejected)
	}

	form := url.Values{}
	form.Set("clientId", c.clientID)
	form.Set("clientSecret", c.clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refresh)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return wrapTransportErr(err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 500 {
		return fmt.Errorf("%w: ttlock oauth returned %d", keyway_errors.ErrVendorUnavailable, res.StatusCode)
	}

	var token struct {
		ttlockEnvelope
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&token); err != nil {
		return fmt.Errorf("%w: malformed ttlock oauth response: %v", keyway_errors.ErrVendorRejected, err)
	}
	if err := token.reject(); err != nil {
		return err
	}
	if token.AccessToken == "" {
		return fmt.Errorf("%w: ttlock oauth response missing access token", keyway_errors.ErrVendorRejected)
	}

	c.mu.Lock()
	c.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.refreshToken = token.RefreshToken
	}
	c.mu.Unlock()

	logger.Info("TTLock access token refreshed")
	return nil
}

func (e ttlockEnvelope) reject() error {
	if e.Errcode != 0 {
		return fmt.Errorf("%w: ttlock errcode %d (%s)", keyway_errors.ErrVendorRejected, e.Errcode, e.Errmsg)
	}
	return nil
}

func (c *TTLockClient) ListDevices(ctx context.Context) ([]Device, error) {
	params := url.Values{}
	params.Set("pageNo", "1")
	params.Set("pageSize", "200")

	var res ttlockLockList
	if err := c.call(ctx, "/v3/lock/list", params, &res); err != nil {
		return nil, err
	}
	if err := res.reject(); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(res.List))
	for _, l := range res.List {
		devices = append(devices, c.toDevice(l, model.LockStatusUnknown))
	}
	return devices, nil
}

func (c *TTLockClient) GetDevice(ctx context.Context, externalID string) (*Device, error) {
	params := url.Values{}
	params.Set("lockId", externalID)

	var res struct {
		ttlockEnvelope
		ttlockLock
	}
	if err := c.call(ctx, "/v3/lock/detail", params, &res); err != nil {
		return nil, err
	}
	if err := res.reject(); err != nil {
		return nil, err
	}

	device := c.toDevice(res.ttlockLock, model.LockStatusUnknown)
	return &device, nil
}

func (c *TTLockClient) Lock(ctx context.Context, externalID string) error {
	return c.operate(ctx, "/v3/lock/lock", externalID)
}

func (c *TTLockClient) Unlock(ctx context.Context, externalID string) error {
	return c.operate(ctx, "/v3/lock/unlock", externalID)
}

func (c *TTLockClient) operate(ctx context.Context, path, externalID string) error {
	params := url.Values{}
	params.Set("lockId", externalID)

	var res ttlockEnvelope
	if err := c.call(ctx, path, params, &res); err != nil {
		return err
	}
	return res.reject()
}

func (c *TTLockClient) ListAccessCodes(ctx context.Context, externalID string) ([]VendorCode, error) {
	params := url.Values{}
	params.Set("lockId", externalID)
	params.Set("pageNo", "1")
	params.Set("pageSize", "200")

	var res ttlockKeyboardPwdList
	if err := c.call(ctx, "/v3/lock/listKeyboardPwd", params, &res); err != nil {
		return nil, err
	}
	if err := res.reject(); err != nil {
		return nil, err
	}

	codes := make([]VendorCode, 0, len(res.List))
	for _, p := range res.List {
		codes = append(codes, VendorCode{
			VendorCodeID: strconv.Itoa(p.KeyboardPwdID),
			Name:         p.KeyboardPwdName,
			ValidFrom:    time.UnixMilli(p.StartDate),
			ValidUntil:   time.UnixMilli(p.EndDate),
		})
	}
	return codes, nil
}

func (c *TTLockClient) CreateAccessCode(ctx context.Context, externalID string, spec CodeSpec) (string, error) {
	params := url.Values{}
	params.Set("lockId", externalID)
	params.Set("keyboardPwd", spec.Code)
	params.Set("keyboardPwdName", spec.Name)
	params.Set("startDate", strconv.FormatInt(spec.ValidFrom.UnixMilli(), 10))
	params.Set("endDate", strconv.FormatInt(spec.ValidUntil.UnixMilli(), 10))
	params.Set("addType", strconv.Itoa(ttlockViaGateway))

	var res ttlockKeyboardPwdAdd
	if err := c.call(ctx, "/v3/keyboardPwd/add", params, &res); err != nil {
		return "", err
	}
	if err := res.reject(); err != nil {
		return "", err
	}

	logger.Debug("TTLock keyboard password created",
		zap.String("lockId", externalID),
		zap.Int("keyboardPwdId", res.KeyboardPwdID))
	return strconv.Itoa(res.KeyboardPwdID), nil
}

func (c *TTLockClient) DeleteAccessCode(ctx context.Context, externalID, vendorCodeID string) error {
	params := url.Values{}
	params.Set("lockId", externalID)
	params.Set("keyboardPwdId", vendorCodeID)
	params.Set("deleteType", strconv.Itoa(ttlockViaGateway))

	var res ttlockEnvelope
	if err := c.call(ctx, "/v3/keyboardPwd/delete", params, &res); err != nil {
		return err
	}
	return res.reject()
}

func (c *TTLockClient) SyncStatus(ctx context.Context, externalID string) (*Device, error) {
	device, err := c.GetDevice(ctx, externalID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("lockId", externalID)

	var state ttlockOpenState
	if err := c.call(ctx, "/v3/lock/queryOpenState", params, &state); err != nil {
		return nil, err
	}
	if err := state.reject(); err != nil {
		return nil, err
	}

	device.Status = ttlockStateToStatus(state.State)
	device.Online = device.Status != model.LockStatusUnknown
	if device.BatteryLevel > 0 && device.BatteryLevel <= ttlockLowBatteryPct {
		device.Status = model.LockStatusLowBattery
	}
	return device, nil
}

// ttlockStateToStatus maps the queryOpenState result into the canonical
// status. Unmapped states are UNKNOWN.
func ttlockStateToStatus(state int) model.LockStatus {
	switch state {
	case 0:
		return model.LockStatusLocked
	case 1:
		return model.LockStatusUnlocked
	default:
		return model.LockStatusUnknown
	}
}

func (c *TTLockClient) toDevice(l ttlockLock, status model.LockStatus) Device {
	name := l.LockAlias
	if name == "" {
		name = l.LockName
	}
	return Device{
		ExternalID:   strconv.Itoa(l.LockID),
		Name:         name,
		Model:        l.ModelNum,
		Status:       status,
		BatteryLevel: l.ElectricQuantity,
		Online:       l.HasGateway == 1,
	}
}
