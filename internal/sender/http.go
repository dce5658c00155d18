package sender

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jjscheduler/sched/internal/domain"
	"github.com/jjscheduler/sched/internal/requestid"
)

const maxDetailLen = 500

// HTTPChannel dispatches jobs via plain HTTP(S) requests.
type HTTPChannel struct {
	client    *http.Client
	userAgent string
}

func NewHTTPChannel(userAgent string, verifyTLS bool) *HTTPChannel {
	return &HTTPChannel{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 5 * time.Minute, // per-job timeout is applied via context below
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS12,
					InsecureSkipVerify: !verifyTLS,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

func (c *HTTPChannel) Send(ctx context.Context, job *domain.Job) Result {
	if strings.TrimSpace(job.HTTPURL) == "" {
		return Result{Success: false, Detail: "http_url empty"}
	}

	timeout := job.TimeoutSec
	if timeout <= 0 {
		timeout = 10
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	method := string(domain.MethodPOST)
	if job.HTTPMethod == domain.MethodGET {
		method = string(domain.MethodGET)
	}

	body := requestBody(job)

	req, err := http.NewRequestWithContext(ctx, method, job.HTTPURL, body)
	if err != nil {
		return Result{Success: false, Detail: fmt.Sprintf("build request: %v", err)}
	}

	if job.HTTPHeaders != "" {
		var headers map[string]string
		if jsonErr := json.Unmarshal([]byte(job.HTTPHeaders), &headers); jsonErr == nil {
			for k, v := range headers {
				req.Header.Set(k, v)
			}
		}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	reqID := requestid.New()
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{Success: false, Detail: fmt.Sprintf("HTTP request error: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailLen))
	detail := string(data)
	if len(detail) > maxDetailLen {
		detail = detail[:maxDetailLen]
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	return Result{Success: ok, StatusCode: resp.StatusCode, Detail: detail}
}

// requestBody builds the request body for non-GET methods. When the job's
// content type is application/json and the payload parses as JSON it is
// re-marshalled as JSON; otherwise the raw payload string is sent as-is —
// matching the send-what-you-have fallback operators expect from free-form
// payload fields.
func requestBody(job *domain.Job) io.Reader {
	if job.HTTPMethod == domain.MethodGET {
		return nil
	}
	payload := job.Payload
	if strings.HasPrefix(strings.ToLower(job.ContentType), "application/json") && strings.TrimSpace(payload) != "" {
		var v any
		if err := json.Unmarshal([]byte(payload), &v); err == nil {
			if encoded, err := json.Marshal(v); err == nil {
				return bytes.NewReader(encoded)
			}
		}
	}
	return strings.NewReader(payload)
}
