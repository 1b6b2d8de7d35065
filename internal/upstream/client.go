package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-report-api/internal/models"
	"github.com/noah-isme/attendance-report-api/pkg/config"
	"github.com/noah-isme/attendance-report-api/pkg/errors"
)

// envelope mirrors the wire format every endpoint responds with.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the attendance backend using a cookie session.
// Safe for concurrent use; login is serialized behind a mutex.
type Client struct {
	baseURL     string
	email       string
	password    string
	userAgent   string
	maxBodySize int64
	http        *http.Client
	logger      *zap.Logger

	loginMu sync.Mutex
}

// NewClient builds a client from config. The cookie jar holds the
// upstream session cookie across requests.
func NewClient(cfg config.UpstreamConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "failed to initialize cookie jar")
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = 16 << 20
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		email:       cfg.Email,
		password:    cfg.Password,
		userAgent:   cfg.UserAgent,
		maxBodySize: maxBody,
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}, nil
}

// Login authenticates against the backend and stores the session cookie.
func (c *Client) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "failed to encode login payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "failed to build login request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrUpstream.Code, errors.ErrUpstream.Status, "login request failed")
	}
	defer resp.Body.Close()

	env, err := c.decode(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		c.logger.Warn("upstream login rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("message", env.Message))
		return errors.ErrUpstreamAuth
	}
	c.logger.Debug("upstream session established")
	return nil
}

// get performs an authenticated GET, re-logging in once on 401.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.getOnce(ctx, path, query, out); err != nil {
		if fe := errors.FromError(err); fe != nil && fe.Code == errors.ErrUpstreamAuth.Code {
			if lerr := c.Login(ctx); lerr != nil {
				return lerr
			}
			return c.getOnce(ctx, path, query, out)
		}
		return err
	}
	return nil
}

func (c *Client) getOnce(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal.Code, errors.ErrInternal.Status, "failed to build upstream request")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrUpstream.Code, errors.ErrUpstream.Status, fmt.Sprintf("upstream request to %s failed", path))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errors.ErrUpstreamAuth
	}

	env, err := c.decode(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		c.logger.Warn("upstream request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", env.Message))
		if resp.StatusCode == http.StatusNotFound {
			return errors.ErrNotFound
		}
		return errors.ErrUpstream
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrap(err, errors.ErrBadPayload.Code, errors.ErrBadPayload.Status, fmt.Sprintf("unexpected payload shape from %s", path))
	}
	return nil
}

func (c *Client) decode(resp *http.Response) (*envelope, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUpstream.Code, errors.ErrUpstream.Status, "failed to read upstream response")
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrBadPayload.Code, errors.ErrBadPayload.Status, "upstream response is not a valid envelope")
	}
	return &env, nil
}

// AttendanceQuery scopes the attendance payload fetch.
type AttendanceQuery struct {
	CourseID string
	From     string
	To       string
}

// FacultyAttendance fetches the sparse attendance payload for the
// session faculty, optionally bounded by a date range.
func (c *Client) FacultyAttendance(ctx context.Context, q AttendanceQuery) (*models.AttendancePayload, error) {
	query := url.Values{}
	query.Set("courseId", q.CourseID)
	if q.From != "" {
		query.Set("from", q.From)
	}
	if q.To != "" {
		query.Set("to", q.To)
	}

	var payload models.AttendancePayload
	if err := c.get(ctx, "/faculty/me/attendance", query, &payload); err != nil {
		return nil, err
	}
	if payload.AttendanceByDate == nil {
		payload.AttendanceByDate = map[string]models.AttendanceDay{}
	}
	return &payload, nil
}

// Course fetches course metadata by id.
func (c *Client) Course(ctx context.Context, courseID string) (*models.Course, error) {
	var course models.Course
	if err := c.get(ctx, "/course/"+url.PathEscape(courseID), nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// SessionsQuery scopes the sessions listing.
type SessionsQuery struct {
	FacultyID string
	StartDate string
	EndDate   string
	Room      string
}

// Sessions lists recorded class sessions with processing status.
func (c *Client) Sessions(ctx context.Context, q SessionsQuery) ([]models.AttendanceSession, error) {
	query := url.Values{}
	if q.FacultyID != "" {
		query.Set("facultyId", q.FacultyID)
	}
	if q.StartDate != "" {
		query.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		query.Set("endDate", q.EndDate)
	}
	if q.Room != "" {
		query.Set("room", q.Room)
	}

	var sessions []models.AttendanceSession
	if err := c.get(ctx, "/faculty/attendance", query, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
