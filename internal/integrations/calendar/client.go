package calendar

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL  = "https://www.googleapis.com/calendar/v3"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	tokenExpiry     = 55 * time.Minute // Refresh before 1 hour expiry
)

// Client is a read-only Google Calendar API client using service account
// authentication. One client serves every calendar shared with the account.
type Client struct {
	httpClient  *http.Client
	credentials *serviceAccountCredentials
	baseURL     string
	tokenURL    string

	// Token caching
	mu          sync.RWMutex
	accessToken string
	tokenExpiry time.Time
}

// serviceAccountCredentials holds the service account JSON key
type serviceAccountCredentials struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

// Config holds calendar client configuration
type Config struct {
	CredentialsFile string        // Path to service account JSON file
	Timeout         time.Duration // HTTP timeout (default 30s)
	BaseURL         string        // API root, overridable for tests
	TokenURL        string        // token endpoint, overridable for tests
}

// NewClient creates a client from a service account key file
func NewClient(cfg Config) (*Client, error) {
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("calendar credentials file not set")
	}

	// Read the service account credentials
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var creds serviceAccountCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	if creds.Type != "service_account" {
		return nil, fmt.Errorf("credentials file must be a service account key (got %s)", creds.Type)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		credentials: &creds,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		tokenURL:    cfg.TokenURL,
	}, nil
}

// getAccessToken returns a valid access token, refreshing if needed
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	// Create JWT assertion
	now := time.Now()
	claims := map[string]any{
		"iss":   c.credentials.ClientEmail,
		"scope": "https://www.googleapis.com/auth/calendar.readonly",
		"aud":   c.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	jwt, err := c.signJWT(claims)
	if err != nil {
		return "", fmt.Errorf("sign JWT: %w", err)
	}

	// Exchange JWT for access token
	data := url.Values{}
	data.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	data.Set("assertion", jwt)

	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("token request failed (%d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = now.Add(tokenExpiry)

	return c.accessToken, nil
}

// signJWT creates a signed JWT assertion
func (c *Client) signJWT(claims map[string]any) (string, error) {
	// Parse private key
	block, _ := pem.Decode([]byte(c.credentials.PrivateKey))
	if block == nil {
		return "", fmt.Errorf("failed to parse PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("private key is not RSA")
	}

	// Create header
	header := map[string]string{
		"alg": "RS256",
		"typ": "JWT",
	}

	headerJSON, _ := json.Marshal(header)
	claimsJSON, _ := json.Marshal(claims)

	headerB64 := base64.RawURLEncoding.EncodeToString(headerJSON)
	claimsB64 := base64.RawURLEncoding.EncodeToString(claimsJSON)

	signingInput := headerB64 + "." + claimsB64

	// Sign
	hash := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(nil, rsaKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	signatureB64 := base64.RawURLEncoding.EncodeToString(signature)

	return signingInput + "." + signatureB64, nil
}

// request makes an authenticated request to the Calendar API
func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("calendar API error (%d): %s", errResp.Error.Code, errResp.Error.Message)
		}
		return nil, fmt.Errorf("calendar API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// googleEvent represents the Google Calendar API event format
type googleEvent struct {
	ID        string           `json:"id"`
	Summary   string           `json:"summary"`
	Location  string           `json:"location,omitempty"`
	Status    string           `json:"status"`
	Start     *googleDateTime  `json:"start,omitempty"`
	End       *googleDateTime  `json:"end,omitempty"`
	Organizer *googlePerson    `json:"organizer,omitempty"`
	Attendees []googleAttendee `json:"attendees,omitempty"`
}

type googleDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googlePerson struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

type googleAttendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
	Self           bool   `json:"self,omitempty"`
}

type eventsResponse struct {
	Items         []googleEvent `json:"items"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// ListEventsParams for querying events
type ListEventsParams struct {
	TimeMin    time.Time // Start of time range (required)
	TimeMax    time.Time // End of time range (required)
	MaxResults int       // Max events per page (default 250)
	MaxPages   int       // Pages to follow (default 4)
}

// ListEvents retrieves the events of calendarID in the time range, as seen
// by that calendar's owner. Cancelled events are skipped.
func (c *Client) ListEvents(ctx context.Context, calendarID string, params ListEventsParams) ([]Event, error) {
	if params.MaxResults == 0 {
		params.MaxResults = 250
	}
	if params.MaxPages == 0 {
		params.MaxPages = 4
	}

	var events []Event
	pageToken := ""
	for page := 0; page < params.MaxPages; page++ {
		queryParams := url.Values{}
		queryParams.Set("timeMin", params.TimeMin.Format(time.RFC3339))
		queryParams.Set("timeMax", params.TimeMax.Format(time.RFC3339))
		queryParams.Set("maxResults", fmt.Sprintf("%d", params.MaxResults))
		queryParams.Set("singleEvents", "true")
		queryParams.Set("orderBy", "startTime")
		if pageToken != "" {
			queryParams.Set("pageToken", pageToken)
		}

		path := fmt.Sprintf("/calendars/%s/events?%s", url.PathEscape(calendarID), queryParams.Encode())
		data, err := c.request(ctx, "GET", path, nil)
		if err != nil {
			return nil, err
		}

		var resp eventsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parse events response: %w", err)
		}

		for _, item := range resp.Items {
			if item.Status == "cancelled" {
				continue
			}
			event, err := convertEvent(&item, calendarID)
			if err != nil {
				continue // Skip malformed events
			}
			events = append(events, event)
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return events, nil
}

// convertEvent converts a Google Calendar event to our Event type
func convertEvent(item *googleEvent, calendarID string) (Event, error) {
	event := Event{
		ID:       item.ID,
		Summary:  item.Summary,
		Location: item.Location,
		RSVP:     selfRSVP(item.Attendees, calendarID),
	}

	start, allDay, err := parseGoogleTime(item.Start)
	if err != nil {
		return Event{}, fmt.Errorf("parse start: %w", err)
	}
	end, _, err := parseGoogleTime(item.End)
	if err != nil {
		return Event{}, fmt.Errorf("parse end: %w", err)
	}
	event.Start, event.End, event.AllDay = start, end, allDay

	// Extract organizer
	if item.Organizer != nil {
		if item.Organizer.DisplayName != "" {
			event.Organizer = item.Organizer.DisplayName
		} else {
			event.Organizer = item.Organizer.Email
		}
	}

	return event, nil
}

// selfRSVP finds the calendar owner's response. An event without the owner
// among its attendees is the owner's own entry and counts as accepted.
func selfRSVP(attendees []googleAttendee, calendarID string) RSVP {
	for _, a := range attendees {
		if a.Self || strings.EqualFold(a.Email, calendarID) {
			return NormalizeRSVP(a.ResponseStatus)
		}
	}
	return RSVPAccepted
}

func parseGoogleTime(dt *googleDateTime) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, fmt.Errorf("missing time")
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, false, err
	}
	if dt.Date != "" {
		loc := time.UTC
		if dt.TimeZone != "" {
			if l, err := time.LoadLocation(dt.TimeZone); err == nil {
				loc = l
			}
		}
		t, err := time.ParseInLocation("2006-01-02", dt.Date, loc)
		return t, true, err
	}
	return time.Time{}, false, fmt.Errorf("missing time")
}

// GoogleSource serves each user's events from the calendar mapped to them
type GoogleSource struct {
	client *Client

	mu        sync.RWMutex
	calendars map[string]string // user id -> calendar id
}

// NewGoogleSource creates a source over client with an initial user mapping
func NewGoogleSource(client *Client, calendars map[string]string) *GoogleSource {
	g := &GoogleSource{
		client:    client,
		calendars: make(map[string]string),
	}
	for user, id := range calendars {
		g.calendars[user] = id
	}
	return g
}

// Connect maps user to calendarID
func (g *GoogleSource) Connect(user, calendarID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calendars[user] = calendarID
}

// CalendarID returns the calendar mapped to user
func (g *GoogleSource) CalendarID(user string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.calendars[user]
	return id, ok
}

// FetchEvents lists the user's events overlapping [start, end)
func (g *GoogleSource) FetchEvents(ctx context.Context, user string, start, end time.Time) ([]Event, error) {
	id, ok := g.CalendarID(user)
	if !ok {
		return nil, ErrNotConnected
	}
	events, err := g.client.ListEvents(ctx, id, ListEventsParams{TimeMin: start, TimeMax: end})
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", user, err)
	}
	return events, nil
}
