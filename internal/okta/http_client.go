package okta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/oktamirror/oktamirror/pkg/logger"
	"github.com/oktamirror/oktamirror/pkg/metrics"
)

const (
	defaultPageSize    = 200
	defaultPageTimeout = 60 * time.Second
)

// sharedLimiter caps concurrent request throughput process-wide so overlapping
// sync runs for different tenants contend on one budget instead of multiplying it.
var sharedLimiter = rate.NewLimiter(rate.Limit(5), 10)

var errAuth = errors.New("okta: authentication failed")

// policyTypes lists the policy collections fetched during a policy sync; the
// Okta policies endpoint requires an explicit type parameter.
var policyTypes = []string{
	"OKTA_SIGN_ON",
	"PASSWORD",
	"MFA_ENROLL",
	"ACCESS_POLICY",
}

// Config holds connection options for the Okta API.
type Config struct {
	OrgURL      string
	Token       string
	PageSize    int
	PageTimeout time.Duration
	HTTPClient  *http.Client
	Limiter     *rate.Limiter
}

// HTTPClient implements Client against the Okta management API. Pagination
// follows the Link rel="next" header; every page fetch runs under its own
// timeout so a hung upstream call cannot stall a run indefinitely.
type HTTPClient struct {
	baseURL     *url.URL
	token       string
	pageSize    int
	pageTimeout time.Duration
	httpc       *http.Client
	limiter     *rate.Limiter
	log         *zap.Logger

	mu         sync.Mutex
	authErrors []string
}

// NewHTTPClient constructs an Okta API client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.OrgURL) == "" {
		return nil, errors.New("okta: org URL is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("okta: API token is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.OrgURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("okta: parse org URL: %w", err)
	}

	client := &HTTPClient{
		baseURL:     base,
		token:       cfg.Token,
		pageSize:    cfg.PageSize,
		pageTimeout: cfg.PageTimeout,
		httpc:       cfg.HTTPClient,
		limiter:     cfg.Limiter,
		log:         logger.WithModule("okta"),
	}
	if client.pageSize <= 0 {
		client.pageSize = defaultPageSize
	}
	if client.pageTimeout <= 0 {
		client.pageTimeout = defaultPageTimeout
	}
	if client.httpc == nil {
		client.httpc = &http.Client{}
	}
	if client.limiter == nil {
		client.limiter = sharedLimiter
	}

	return client, nil
}

// AuthErrors returns accumulated authentication failures in occurrence order.
func (c *HTTPClient) AuthErrors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.authErrors))
	copy(out, c.authErrors)
	return out
}

func (c *HTTPClient) recordAuthError(status int, path string) {
	metrics.APIAuthFailures.Inc()
	c.mu.Lock()
	c.authErrors = append(c.authErrors, fmt.Sprintf("HTTP %d from %s", status, path))
	c.mu.Unlock()
	c.log.Warn("authentication failure from okta api",
		zap.Int("status", status), zap.String("path", path))
}

// get fetches one URL, honouring the shared rate limiter, the per-page
// timeout, and Retry-After on 429 responses. Returns the body and the next
// page URL from the Link header.
func (c *HTTPClient) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}

		body, next, retryAfter, err := c.doOnce(ctx, rawURL)
		if err != nil || retryAfter == 0 {
			return body, next, err
		}

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *HTTPClient) doOnce(ctx context.Context, rawURL string) ([]byte, string, time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", 0, err
	}
	req.Header.Set("Authorization", "SSWS "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("okta: request %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.recordAuthError(resp.StatusCode, req.URL.Path)
		return nil, "", 0, errAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, "", retryDelay(resp.Header), nil
	case resp.StatusCode >= 400:
		return nil, "", 0, fmt.Errorf("okta: %s returned HTTP %d", req.URL.Path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", 0, err
	}

	return body, parseNextLink(resp.Header), 0, nil
}

func retryDelay(h http.Header) time.Duration {
	if raw := h.Get("Retry-After"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}

// parseNextLink extracts the rel="next" URL from Okta's Link headers.
func parseNextLink(h http.Header) string {
	for _, header := range h.Values("Link") {
		for _, part := range strings.Split(header, ",") {
			fields := strings.Split(part, ";")
			if len(fields) < 2 {
				continue
			}
			target := strings.Trim(strings.TrimSpace(fields[0]), "<>")
			for _, attr := range fields[1:] {
				if strings.TrimSpace(attr) == `rel="next"` {
					return target
				}
			}
		}
	}
	return ""
}

// listPages walks all pages of a collection endpoint. Authentication failures
// stop pagination without failing the call: they are accumulated for the
// post-run consolidated check.
func (c *HTTPClient) listPages(ctx context.Context, path string, params url.Values, each func(context.Context, []byte) error) error {
	if params == nil {
		params = url.Values{}
	}
	if params.Get("limit") == "" {
		params.Set("limit", strconv.Itoa(c.pageSize))
	}

	next := c.baseURL.String() + path + "?" + params.Encode()
	for next != "" {
		body, nextURL, err := c.get(ctx, next)
		if errors.Is(err, errAuth) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := each(ctx, body); err != nil {
			return err
		}
		next = nextURL
	}
	return nil
}

// collectIDs pages a sub-resource and gathers the id field of every element.
func (c *HTTPClient) collectIDs(ctx context.Context, path string) ([]string, error) {
	var ids []string
	err := c.listPages(ctx, path, nil, func(_ context.Context, body []byte) error {
		var rows []struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("okta: decode %s: %w", path, err)
		}
		for _, row := range rows {
			if row.ID != "" {
				ids = append(ids, row.ID)
			}
		}
		return nil
	})
	return ids, err
}

// ListUsers streams user pages, embedding factors, group memberships, and
// application links for each user.
func (c *HTTPClient) ListUsers(ctx context.Context, fn BatchFunc[UserRecord]) error {
	return c.listPages(ctx, "/api/v1/users", nil, func(ctx context.Context, body []byte) error {
		var raw []apiUser
		if err := json.Unmarshal(body, &raw); err != nil {
			return fmt.Errorf("okta: decode users: %w", err)
		}

		records := make([]UserRecord, 0, len(raw))
		for _, user := range raw {
			rec := user.toRecord()
			if err := c.attachUserRelations(ctx, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return fn(ctx, records)
	})
}

func (c *HTTPClient) attachUserRelations(ctx context.Context, rec *UserRecord) error {
	err := c.listPages(ctx, "/api/v1/users/"+rec.OktaID+"/factors", nil, func(_ context.Context, body []byte) error {
		var factors []apiFactor
		if err := json.Unmarshal(body, &factors); err != nil {
			return fmt.Errorf("okta: decode factors: %w", err)
		}
		for _, factor := range factors {
			rec.Factors = append(rec.Factors, FactorRecord{
				OktaID:     factor.ID,
				FactorType: factor.FactorType,
				Provider:   factor.Provider,
				Status:     factor.Status,
				Created:    factor.Created,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if rec.GroupMemberships, err = c.collectIDs(ctx, "/api/v1/users/"+rec.OktaID+"/groups"); err != nil {
		return err
	}

	return c.listPages(ctx, "/api/v1/users/"+rec.OktaID+"/appLinks", nil, func(_ context.Context, body []byte) error {
		var links []struct {
			AppInstanceID string `json:"appInstanceId"`
		}
		if err := json.Unmarshal(body, &links); err != nil {
			return fmt.Errorf("okta: decode app links: %w", err)
		}
		seen := make(map[string]struct{}, len(links))
		for _, link := range links {
			if link.AppInstanceID == "" {
				continue
			}
			if _, dup := seen[link.AppInstanceID]; dup {
				continue
			}
			seen[link.AppInstanceID] = struct{}{}
			rec.AppLinks = append(rec.AppLinks, link.AppInstanceID)
		}
		return nil
	})
}

// ListGroups streams group pages with each group's assigned application ids.
func (c *HTTPClient) ListGroups(ctx context.Context, fn BatchFunc[GroupRecord]) error {
	return c.listPages(ctx, "/api/v1/groups", nil, func(ctx context.Context, body []byte) error {
		var raw []apiGroup
		if err := json.Unmarshal(body, &raw); err != nil {
			return fmt.Errorf("okta: decode groups: %w", err)
		}

		records := make([]GroupRecord, 0, len(raw))
		for _, group := range raw {
			rec := GroupRecord{
				OktaID:            group.ID,
				Name:              group.Profile.Name,
				Description:       group.Profile.Description,
				GroupType:         group.Type,
				Created:           group.Created,
				MembershipUpdated: group.LastMembershipUpdated,
			}
			apps, err := c.collectIDs(ctx, "/api/v1/groups/"+group.ID+"/apps")
			if err != nil {
				return err
			}
			rec.Applications = apps
			records = append(records, rec)
		}
		return fn(ctx, records)
	})
}

// ListApplications streams application pages with group assignment ids.
func (c *HTTPClient) ListApplications(ctx context.Context, fn BatchFunc[ApplicationRecord]) error {
	return c.listPages(ctx, "/api/v1/apps", nil, func(ctx context.Context, body []byte) error {
		var raw []apiApp
		if err := json.Unmarshal(body, &raw); err != nil {
			return fmt.Errorf("okta: decode applications: %w", err)
		}

		records := make([]ApplicationRecord, 0, len(raw))
		for _, app := range raw {
			rec := ApplicationRecord{
				OktaID:     app.ID,
				Name:       app.Name,
				Label:      app.Label,
				Status:     app.Status,
				SignOnMode: app.SignOnMode,
				Created:    app.Created,
			}
			groups, err := c.collectIDs(ctx, "/api/v1/apps/"+app.ID+"/groups")
			if err != nil {
				return err
			}
			rec.GroupAssignments = groups
			records = append(records, rec)
		}
		return fn(ctx, records)
	})
}

// ListPolicies streams policies for every supported policy type.
func (c *HTTPClient) ListPolicies(ctx context.Context, fn BatchFunc[PolicyRecord]) error {
	for _, policyType := range policyTypes {
		params := url.Values{}
		params.Set("type", policyType)

		err := c.listPages(ctx, "/api/v1/policies", params, func(ctx context.Context, body []byte) error {
			var raw []apiPolicy
			if err := json.Unmarshal(body, &raw); err != nil {
				return fmt.Errorf("okta: decode policies: %w", err)
			}

			records := make([]PolicyRecord, 0, len(raw))
			for _, policy := range raw {
				records = append(records, PolicyRecord{
					OktaID:      policy.ID,
					Name:        policy.Name,
					Description: policy.Description,
					PolicyType:  policy.Type,
					Status:      policy.Status,
					Priority:    policy.Priority,
				})
			}
			if len(records) == 0 {
				return nil
			}
			return fn(ctx, records)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ListDevices streams device pages with embedded user links.
func (c *HTTPClient) ListDevices(ctx context.Context, fn BatchFunc[DeviceRecord]) error {
	params := url.Values{}
	params.Set("expand", "user")

	return c.listPages(ctx, "/api/v1/devices", params, func(ctx context.Context, body []byte) error {
		var raw []apiDevice
		if err := json.Unmarshal(body, &raw); err != nil {
			return fmt.Errorf("okta: decode devices: %w", err)
		}

		records := make([]DeviceRecord, 0, len(raw))
		for _, device := range raw {
			rec := DeviceRecord{
				OktaID:                device.ID,
				DisplayName:           device.Profile.DisplayName,
				Platform:              device.Profile.Platform,
				Manufacturer:          device.Profile.Manufacturer,
				Model:                 device.Profile.Model,
				OSVersion:             device.Profile.OSVersion,
				SerialNumber:          device.Profile.SerialNumber,
				UDID:                  device.Profile.UDID,
				Status:                device.Status,
				Registered:            device.Profile.Registered,
				SecureHardwarePresent: device.Profile.SecureHardwarePresent,
				Created:               device.Created,
			}
			for _, link := range device.Embedded.Users {
				if link.User.ID == "" {
					continue
				}
				rec.Users = append(rec.Users, DeviceUserRecord{
					UserOktaID:       link.User.ID,
					ManagementStatus: link.ManagementStatus,
					ScreenLockType:   link.ScreenLockType,
					Created:          link.Created,
				})
			}
			records = append(records, rec)
		}
		return fn(ctx, records)
	})
}
