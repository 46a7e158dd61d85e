package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pullhook/internal/deployment"
	"pullhook/internal/ghclient"
	"pullhook/internal/history"
	"pullhook/pkg/cmdutil"

	"github.com/google/go-github/v57/github"
	"github.com/google/uuid"
)

const (
	MaxPayloadBytes     = 1_000_000 // 1 MB
	RecentDeliveryLimit = 20
)

const (
	eventHeader     = "X-GitHub-Event"
	deliveryHeader  = "X-GitHub-Delivery"
	pushEvent       = "push"
	zeroSHA         = "0000000000000000000000000000000000000000"
	feedbackTimeout = 15 * time.Second
)

// Response messages.
const (
	MsgSimulated      = "Simulated file changes to trigger restart"
	MsgSuccess        = "Changes processed successfully"
	MsgIgnored        = "Ignored push to non-watched branch"
	MsgInvalidJSON    = "Invalid JSON payload"
	MsgInvalidSig     = "Invalid signature"
	MsgTooLarge       = "Payload too large"
	MsgReadFailed     = "Failed to read payload"
	MsgPullFailedText = "Error pulling changes: "
)

// delivery is the per-request view of one webhook call.
type delivery struct {
	id         string
	event      string
	signature  string
	signed     bool // header present, even if empty
	testMode   bool
	body       []byte
	ref        string
	branch     string
	repo       string
	after      string
	receivedAt time.Time
	logger     *slog.Logger
}

// HandleWebhook authenticates, filters and applies one delivery. The response
// is sent only after synchronisation has finished.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	d := &delivery{
		id:         r.Header.Get(deliveryHeader),
		event:      r.Header.Get(eventHeader),
		signature:  r.Header.Get(SignatureHeader),
		signed:     len(r.Header.Values(SignatureHeader)) > 0,
		testMode:   r.URL.Query().Get("test") == "true",
		receivedAt: s.now(),
	}
	if d.id == "" {
		d.id = uuid.NewString()
	}
	d.logger = s.Logger.With("delivery_id", d.id, "event", d.event)

	if r.ContentLength > MaxPayloadBytes {
		s.respond(w, d, http.StatusRequestEntityTooLarge, history.OutcomeInvalid, MsgTooLarge, nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respond(w, d, http.StatusRequestEntityTooLarge, history.OutcomeInvalid, MsgTooLarge, nil)
			return
		}
		d.logger.Warn("Failed to read request body", "error", err)
		s.respond(w, d, http.StatusBadRequest, history.OutcomeInvalid, MsgReadFailed, err)
		return
	}
	d.body = body

	if d.testMode {
		d.logger.Info("Test mode requested, simulating file changes")
		s.Metrics.observeTouches(s.Deployer.Signal())
		s.respond(w, d, http.StatusOK, history.OutcomeTest, MsgSimulated, nil)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		if err == nil {
			err = errors.New("payload is not a JSON object")
		}
		d.logger.Warn("Failed to parse JSON payload", "error", err)
		s.respond(w, d, http.StatusBadRequest, history.OutcomeInvalid, MsgInvalidJSON, err)
		return
	}

	if !s.authenticate(d) {
		s.respond(w, d, http.StatusForbidden, history.OutcomeRejected, MsgInvalidSig, nil)
		return
	}

	if d.event == pushEvent {
		if err := d.parsePush(); err != nil {
			d.logger.Warn("Failed to parse push payload", "error", err)
			s.respond(w, d, http.StatusBadRequest, history.OutcomeInvalid, MsgInvalidJSON, err)
			return
		}

		if !s.Deployer.Watches(d.ref) {
			d.logger.Info("Ignoring push to non-watched branch", "ref", d.ref, "branch", s.Deployer.Branch)
			s.respond(w, d, http.StatusOK, history.OutcomeIgnored, MsgIgnored, nil)
			return
		}
	}

	s.deploy(w, r, d)
}

// authenticate verifies the signature only when both a secret and a signature
// header are present; otherwise the delivery is let through. An empty header
// counts as present and fails verification.
func (s *Server) authenticate(d *delivery) bool {
	secret := s.Config.WebhookSecret

	switch {
	case secret == "":
		d.logger.Warn("No webhook secret configured, skipping signature verification")
		return true
	case !d.signed:
		d.logger.Warn("No signature header present, skipping signature verification")
		return true
	}

	if !VerifySignature(d.body, d.signature, secret) {
		d.logger.Warn("Invalid webhook signature")
		return false
	}

	d.logger.Debug("Signature verified")
	return true
}

func (d *delivery) parsePush() error {
	event, err := github.ParseWebHook(pushEvent, d.body)
	if err != nil {
		return err
	}
	push, ok := event.(*github.PushEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", event)
	}

	d.ref = push.GetRef()
	d.after = push.GetAfter()
	d.repo = push.GetRepo().GetFullName()
	return nil
}

func (s *Server) deploy(w http.ResponseWriter, r *http.Request, d *delivery) {
	// The sync runs to completion even if the caller hangs up.
	ctx := context.WithoutCancel(r.Context())

	report, err := s.Deployer.Deploy(ctx, d.ref)
	if report != nil {
		s.Metrics.observeSync(report.Sync)
		s.Metrics.observeTouches(report.Touched)
		if report.Sync != nil {
			d.branch = report.Sync.Branch
		}
	}

	if err != nil {
		detail := err.Error()
		var syncErr *deployment.SyncError
		if errors.As(err, &syncErr) && strings.TrimSpace(syncErr.Stderr) != "" {
			detail = strings.TrimSpace(syncErr.Stderr)
		}
		detail = s.sanitize(detail)

		s.postStatus(d, ghclient.StateFailure, "Sync failed: "+detail)
		s.respond(w, d, http.StatusInternalServerError, history.OutcomeFailed, MsgPullFailedText+detail, err)
		return
	}

	s.postStatus(d, ghclient.StateSuccess, "Checkout updated to "+shortSHA(d.after))
	s.respond(w, d, http.StatusOK, history.OutcomeSuccess, MsgSuccess, nil)
}

// postStatus reports the outcome to GitHub in the background; failures are
// only logged.
func (s *Server) postStatus(d *delivery, state ghclient.State, description string) {
	if s.Reporter == nil || d.repo == "" || d.after == "" || d.after == zeroSHA {
		return
	}

	if !s.trackFeedback() {
		d.logger.Warn("Server is shutting down, skipping commit status", "repo", d.repo, "sha", d.after)
		return
	}
	go func() {
		defer s.feedbackWg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
		defer cancel()

		if err := s.Reporter.ReportStatus(ctx, d.repo, d.after, state, description); err != nil {
			d.logger.Warn("Failed to report commit status", "repo", d.repo, "sha", d.after, "error", err)
		}
	}()
}

// respond writes a text/plain response and records the delivery.
func (s *Server) respond(w http.ResponseWriter, d *delivery, statusCode int, outcome, message string, cause error) {
	s.Metrics.observeRequest(outcome)
	s.record(d, statusCode, outcome, cause)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	if _, err := io.WriteString(w, message); err != nil {
		d.logger.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) record(d *delivery, statusCode int, outcome string, cause error) {
	if s.History == nil {
		return
	}

	duration := s.now().Sub(d.receivedAt).Seconds()
	rec := &history.DeliveryRecord{
		DeliveryID:      d.id,
		Event:           d.event,
		Ref:             d.ref,
		Branch:          d.branch,
		Outcome:         outcome,
		StatusCode:      statusCode,
		ReceivedAt:      d.receivedAt,
		DurationSeconds: &duration,
		CommitHash:      stringPtrOrNil(d.after),
	}
	if cause != nil {
		msg := s.sanitize(cause.Error())
		rec.ErrorMessage = &msg
	}

	if _, err := s.History.RecordDelivery(context.Background(), rec); err != nil {
		d.logger.Error("Failed to record delivery history", "error", err)
	}
}

// HandleHealth reports liveness and the non-secret parts of the configuration.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "ok",
		"message": "Webhook service is running",
		"config": map[string]any{
			"port":      s.Config.Port,
			"repoPath":  s.Config.RepoPath,
			"gitBranch": s.Config.Branch,
			"debug":     s.Config.Debug,
		},
		"timestamp": s.now().Format(time.RFC3339),
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleStatus returns recent deliveries from the history database.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Delivery history is disabled"})
		return
	}

	summary, err := s.History.Summarize(r.Context(), RecentDeliveryLimit)
	if err != nil {
		s.Logger.Error("Failed to read delivery history", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch delivery status"})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"repo":              s.Config.RepoPath,
		"branch":            s.Config.Branch,
		"latest_delivery":   summary.Latest,
		"recent_deliveries": summary.Recent,
		"outcomes":          summary.Outcomes,
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}

// sanitize hides the API token should git echo it back in a remote URL.
func (s *Server) sanitize(text string) string {
	return string(cmdutil.SanitizeOutput([]byte(text), []string{s.Config.GitHubToken}))
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
