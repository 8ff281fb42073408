package hubitatClient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

const (
	hubInfoPath  = "gethubinfo"
	catalogPath  = "getallthings"
	doActionPath = "doaction"
	maxErrorBody = 512
)

// IdentityStore receives the hub identity found during a catalog fetch.
type IdentityStore interface {
	SetHubIdentity(hub hubitatStructs.HubIdentity)
}

type Options struct {
	// Timeout bounds every request. Zero means no timeout.
	Timeout time.Duration
	// Insecure skips TLS verification, hubs ship self-signed certificates.
	Insecure bool
	Identity IdentityStore
}

type HubitatApiClient struct {
	Endpoint    string
	accessToken string
	client      *http.Client
	identity    IdentityStore
	logger      *zap.SugaredLogger

	mu  sync.RWMutex
	hub hubitatStructs.HubIdentity
}

func NewHubitatApiClient(endpoint string, accessToken string, opts Options, logger *zap.SugaredLogger) *HubitatApiClient {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: opts.Insecure,
			},
			TLSHandshakeTimeout: 10 * time.Second,
			DialContext: (&net.Dialer{
				Timeout: 5 * time.Second,
			}).DialContext,
		},
		Timeout: opts.Timeout,
	}

	return &HubitatApiClient{
		Endpoint:    strings.TrimRight(endpoint, "/"),
		accessToken: accessToken,
		client:      httpClient,
		identity:    opts.Identity,
		logger:      logger,
	}
}

// Hub returns the identity seen by the last successful fetch.
func (c *HubitatApiClient) Hub() hubitatStructs.HubIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hub
}

func (c *HubitatApiClient) post(ctx context.Context, path string, header http.Header) (int, []byte, error) {
	target, err := url.JoinPath(c.Endpoint, path)
	if err != nil {
		return 0, nil, err
	}
	form := url.Values{"access_token": {c.accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return res.StatusCode, body, &StatusError{Code: res.StatusCode, Body: msg}
	}
	return res.StatusCode, body, nil
}

// GetHubInfo reads the hub identity and hands it to the IdentityStore.
func (c *HubitatApiClient) GetHubInfo(ctx context.Context) (hubitatStructs.HubIdentity, error) {
	_, body, err := c.post(ctx, hubInfoPath, nil)
	if err != nil {
		return hubitatStructs.HubIdentity{}, &FetchError{Op: hubInfoPath, Cause: err}
	}
	var hub hubitatStructs.HubIdentity
	if err := json.Unmarshal(body, &hub); err != nil {
		return hubitatStructs.HubIdentity{}, &FetchError{Op: hubInfoPath, Cause: err}
	}

	c.mu.Lock()
	c.hub = hub
	c.mu.Unlock()
	if c.identity != nil {
		c.identity.SetHubIdentity(hub)
	}
	c.logger.Infof("Connected to hub %q (%s)", hub.SiteName, hub.HubId)
	return hub, nil
}

// FetchCatalog reads the hub identity and then the full device catalog.
// An empty or non-array catalog yields no devices rather than an error.
func (c *HubitatApiClient) FetchCatalog(ctx context.Context) ([]hubitatStructs.RawDeviceRecord, error) {
	hub, err := c.GetHubInfo(ctx)
	if err != nil {
		return nil, err
	}

	_, body, err := c.post(ctx, catalogPath, nil)
	if err != nil {
		return nil, &FetchError{Op: catalogPath, Cause: err}
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		c.logger.Warn("Hub returned an empty catalog")
		return []hubitatStructs.RawDeviceRecord{}, nil
	}

	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, &FetchError{Op: catalogPath, Cause: err}
	}
	if _, ok := root.([]any); !ok {
		c.logger.Warnf("Hub returned a catalog of type %T, treating it as empty", root)
		return []hubitatStructs.RawDeviceRecord{}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, &FetchError{Op: catalogPath, Cause: err}
	}
	records := make([]hubitatStructs.RawDeviceRecord, 0, len(elements))
	for i, el := range elements {
		if !bytes.HasPrefix(bytes.TrimSpace(el), []byte("{")) {
			c.logger.Warnf("Skipping catalog entry %d: not an object", i)
			continue
		}
		var rec hubitatStructs.RawDeviceRecord
		if err := json.Unmarshal(el, &rec); err != nil {
			c.logger.Warnf("Skipping catalog entry %d: %v", i, err)
			continue
		}
		rec.HubId = hub.HubId
		records = append(records, rec)
	}
	c.logger.Info("Get List of Devices: ", len(records))
	return records, nil
}

// SendAction asks the hub to change a device state. It is fire and forget:
// no retry, no ordering between calls.
func (c *HubitatApiClient) SendAction(ctx context.Context, device hubitatStructs.NormalizedDevice, channel string, value string) (hubitatStructs.Ack, error) {
	header := http.Header{}
	header.Set("swid", device.DeviceId)
	header.Set("swattr", fmt.Sprintf("%s p_1 %s", device.Kind, device.Attributes["switch"]))
	header.Set("swvalue", value)
	header.Set("swtype", device.Kind)
	header.Set("subid", channel)

	code, body, err := c.post(ctx, doActionPath, header)
	if err != nil {
		return hubitatStructs.Ack{StatusCode: code, Body: body}, &FetchError{Op: doActionPath, Cause: err}
	}
	c.logger.Infof("Action %s=%s sent to %s", channel, value, device.DeviceId)
	return hubitatStructs.Ack{StatusCode: code, Body: body}, nil
}
