// Package api wraps the remote plan compute service behind a typed client.
// All transport and HTTP outcomes are mapped to *types.PlanError kinds in
// exactly one place (classify.go) so the UI layer never inspects status
// codes or message text itself.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/kcalhq/plansync/internal/types"
)

// DefaultTimeout bounds a single generate round-trip.
const DefaultTimeout = 30 * time.Second

// MinAPIVersion is the oldest compute-service API this client understands.
const MinAPIVersion = "v1.0.0"

// Client calls the remote compute service. It holds no mutable state and
// is safe for concurrent use.
type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	minAPIVersion string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMinAPIVersion overrides the minimum accepted server API version.
func WithMinAPIVersion(v string) Option {
	return func(c *Client) { c.minAPIVersion = v }
}

// New creates a compute-service client. baseURL is the service root
// without a trailing slash; token is the bearer credential.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		token:         token,
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		minAPIVersion: MinAPIVersion,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	ForceRecompute bool `json:"forceRecompute"`
}

// generatePayload is the success envelope's data object. Unknown fields
// are ignored; optional fields may be absent.
type generatePayload struct {
	Plan            wirePlan        `json:"plan"`
	Targets         wireTargets     `json:"targets"`
	WhyItWorks      json.RawMessage `json:"whyItWorks,omitempty"`
	Recomputed      bool            `json:"recomputed"`
	PreviousTargets *wireTargets    `json:"previousTargets,omitempty"`
	APIVersion      string          `json:"apiVersion,omitempty"`
}

type envelope struct {
	Success bool             `json:"success"`
	Data    *generatePayload `json:"data,omitempty"`
	Message string           `json:"message,omitempty"`
	Error   *apiError        `json:"error,omitempty"`
}

// apiError is the failure body shape. Some deployments nest the message
// under "error", others put it at the top level; both are handled.
type apiError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type wirePlan struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Status    string     `json:"status"`
}

type wireTargets struct {
	BMR           float64         `json:"bmr"`
	TDEE          float64         `json:"tdee"`
	CalorieTarget float64         `json:"calorieTarget"`
	ProteinTarget float64         `json:"proteinTarget"`
	WaterTarget   float64         `json:"waterTarget"`
	WeeklyRate    float64         `json:"weeklyRate"`
	Projection    *wireProjection `json:"projection,omitempty"`
}

type wireProjection struct {
	EstimatedWeeks   int        `json:"estimatedWeeks"`
	ProjectedEndDate *time.Time `json:"projectedEndDate,omitempty"`
}

// Generate asks the service for the current plan. force instructs the
// service to ignore its own caches and recompute from scratch. The
// returned plan has passed validation; errors are always *types.PlanError.
func (c *Client) Generate(ctx context.Context, force bool) (*types.Plan, error) {
	body, err := json.Marshal(generateRequest{ForceRecompute: force})
	if err != nil {
		return nil, types.WrapPlanError(types.ErrKindInvalidInput, err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/plans/generate", bytes.NewReader(body))
	if err != nil {
		return nil, types.WrapPlanError(types.ErrKindInvalidInput, err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	// 1 MiB is generous for a plan payload; anything bigger is not ours.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.WrapPlanError(types.ErrKindNoConnection, err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, errorMessage(raw), resp.Header.Get("Retry-After"))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, types.WrapPlanError(types.ErrKindInvalidResponse, err, "failed to parse response")
	}
	if !env.Success || env.Data == nil {
		return nil, types.NewPlanError(types.ErrKindInvalidResponse, "response missing data payload")
	}

	if err := c.checkAPIVersion(env.Data.APIVersion); err != nil {
		return nil, err
	}

	plan := env.Data.toPlan()
	if err := plan.Validate(); err != nil {
		return nil, types.WrapPlanError(types.ErrKindInvalidResponse, err, "service returned invalid plan")
	}
	return plan, nil
}

// checkAPIVersion rejects servers older than minAPIVersion. An absent
// version is tolerated: early deployments did not send one.
func (c *Client) checkAPIVersion(v string) error {
	if v == "" {
		return nil
	}
	if !semver.IsValid(v) {
		return types.NewPlanError(types.ErrKindInvalidResponse, "unparseable server API version %q", v)
	}
	if semver.Compare(v, c.minAPIVersion) < 0 {
		return types.NewPlanError(types.ErrKindInvalidResponse,
			"server API version %s is older than minimum supported %s", v, c.minAPIVersion)
	}
	return nil
}

func (p *generatePayload) toPlan() *types.Plan {
	plan := &types.Plan{
		ID:         p.Plan.ID,
		UserID:     p.Plan.UserID,
		StartDate:  p.Plan.StartDate,
		EndDate:    p.Plan.EndDate,
		Status:     types.PlanStatus(p.Plan.Status),
		Targets:    p.Targets.toTargets(),
		WhyItWorks: p.WhyItWorks,
	}
	return plan
}

func (t *wireTargets) toTargets() types.Targets {
	out := types.Targets{
		BMR:           t.BMR,
		TDEE:          t.TDEE,
		CalorieTarget: t.CalorieTarget,
		ProteinTarget: t.ProteinTarget,
		WaterTarget:   t.WaterTarget,
		WeeklyRate:    t.WeeklyRate,
	}
	if t.Projection != nil {
		out.Projection = &types.Projection{
			EstimatedWeeks:   t.Projection.EstimatedWeeks,
			ProjectedEndDate: t.Projection.ProjectedEndDate,
		}
	}
	return out
}

// errorMessage digs the human-readable message out of a failure body.
// Bodies that are not JSON at all come back verbatim, truncated.
func errorMessage(raw []byte) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil {
		if env.Error != nil && env.Error.Message != "" {
			return env.Error.Message
		}
		if env.Message != "" {
			return env.Message
		}
	}
	const maxLen = 200
	s := string(raw)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
