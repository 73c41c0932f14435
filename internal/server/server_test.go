package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devblocker/devblocker/internal/auth"
	"github.com/devblocker/devblocker/internal/bus"
	"github.com/devblocker/devblocker/internal/client"
	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/model"
	"github.com/devblocker/devblocker/internal/publish"
	"github.com/devblocker/devblocker/internal/server"
	blockersvc "github.com/devblocker/devblocker/internal/service/blocker"
	commentsvc "github.com/devblocker/devblocker/internal/service/comment"
	notificationsvc "github.com/devblocker/devblocker/internal/service/notification"
	solutionsvc "github.com/devblocker/devblocker/internal/service/solution"
	usersvc "github.com/devblocker/devblocker/internal/service/user"
	"github.com/devblocker/devblocker/internal/storage"
	"github.com/devblocker/devblocker/internal/testutil"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tc := testutil.MustStartPostgres()

	var err error
	testDB, err = tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create test DB: %v\n", err)
		tc.Terminate()
		os.Exit(1)
	}

	code := m.Run()
	testDB.Close(ctx)
	tc.Terminate()
	os.Exit(code)
}

const serviceToken = "test-service-token"

// mesh is the full set of services wired together over httptest servers
// and an in-memory channel, the way the deployed processes talk over
// HTTP and the broker.
type mesh struct {
	channel *bus.Memory

	userURL     string
	blockerURL  string
	solutionURL string
	commentURL  string

	notificationSvc *notificationsvc.Service
}

func startMesh(t *testing.T, ctx context.Context) *mesh {
	t.Helper()
	logger := testutil.TestLogger()

	jwtMgr, err := auth.NewJWTManager("", "", time.Hour)
	require.NoError(t, err)

	channel := bus.NewMemory(event.DefaultTopology())
	gate := publish.NewGate(channel, logger)

	newServer := func(cfg server.ServerConfig) *httptest.Server {
		cfg.DB = testDB
		cfg.JWTMgr = jwtMgr
		cfg.Logger = logger
		cfg.ServiceToken = serviceToken
		cfg.MaxRequestBodyBytes = 1 << 20
		srv := httptest.NewServer(server.New(cfg).Handler())
		t.Cleanup(srv.Close)
		return srv
	}

	userSvc := usersvc.New(testDB, jwtMgr, gate, logger)
	userHTTP := newServer(server.ServerConfig{Service: "user", UserSvc: userSvc})
	userClient, err := client.NewUserClient(client.Config{
		BaseURL: userHTTP.URL, Token: serviceToken, Backoff: time.Millisecond,
	})
	require.NoError(t, err)

	blockerSvc := blockersvc.New(testDB, gate, userClient, logger)
	blockerHTTP := newServer(server.ServerConfig{Service: "blocker", BlockerSvc: blockerSvc})
	blockerClient, err := client.NewBlockerClient(client.Config{
		BaseURL: blockerHTTP.URL, Token: serviceToken, Backoff: time.Millisecond,
	})
	require.NoError(t, err)

	solutionSvc := solutionsvc.New(testDB, gate, blockerClient, logger)
	solutionHTTP := newServer(server.ServerConfig{Service: "solution", SolutionSvc: solutionSvc})

	commentSvc := commentsvc.New(testDB, gate, blockerClient, logger)
	commentHTTP := newServer(server.ServerConfig{Service: "comment", CommentSvc: commentSvc})

	notificationSvc := notificationsvc.New(testDB, userClient, blockerClient, logger)

	var consumers []bus.Consumer
	consumers = append(consumers, userSvc.Consumers()...)
	consumers = append(consumers, blockerSvc.Consumers()...)
	consumers = append(consumers, notificationSvc.Consumers()...)
	go func() { _ = bus.Run(ctx, channel, logger, consumers...) }()

	return &mesh{
		channel:         channel,
		userURL:         userHTTP.URL,
		blockerURL:      blockerHTTP.URL,
		solutionURL:     solutionHTTP.URL,
		commentURL:      commentHTTP.URL,
		notificationSvc: notificationSvc,
	}
}

// doJSON performs an HTTP request and decodes the { "data": ... }
// envelope into dest.
func doJSON(t *testing.T, method, url, token string, body, dest any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if dest != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &envelope), "body: %s", raw)
		require.NoError(t, json.Unmarshal(envelope.Data, dest), "body: %s", raw)
	}
	return resp.StatusCode
}

func registerAndLogin(t *testing.T, m *mesh, email string) (uuid.UUID, string) {
	t.Helper()

	var account model.Account
	status := doJSON(t, http.MethodPost, m.userURL+"/api/auth/register", "",
		map[string]string{"email": email, "password": "hunter2hunter2"}, &account)
	require.Equal(t, http.StatusCreated, status)

	var login struct {
		Token string `json:"token"`
	}
	status = doJSON(t, http.MethodPost, m.userURL+"/api/auth/login", "",
		map[string]string{"email": email, "password": "hunter2hunter2"}, &login)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, login.Token)

	return account.ID, login.Token
}

func TestEndToEnd_AcceptanceChoreography(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := startMesh(t, ctx)

	creatorID, creatorToken := registerAndLogin(t, m, uuid.NewString()[:8]+"-creator@example.com")
	authorID, authorToken := registerAndLogin(t, m, uuid.NewString()[:8]+"-author@example.com")

	// The user.registered listener bootstraps profiles asynchronously.
	require.Eventually(t, func() bool {
		_, err := testDB.GetProfile(ctx, creatorID)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "creator profile not bootstrapped")
	require.Eventually(t, func() bool {
		_, err := testDB.GetProfile(ctx, authorID)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "author profile not bootstrapped")

	// Creator opens a blocker.
	var blocker model.Blocker
	status := doJSON(t, http.MethodPost, m.blockerURL+"/api/blockers", creatorToken,
		map[string]any{"title": "prod deploy wedged", "description": "rollout stuck at 40%"},
		&blocker)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, model.BlockerOpen, blocker.Status)
	assert.Equal(t, creatorID, blocker.CreatedBy)

	// Author proposes a solution; the solution service verifies the
	// blocker over HTTP before writing.
	var solution model.Solution
	status = doJSON(t, http.MethodPost,
		m.solutionURL+"/api/blockers/"+blocker.ID.String()+"/solutions", authorToken,
		map[string]string{"content": "restart the rollout controller"}, &solution)
	require.Equal(t, http.StatusCreated, status)

	// The first solution becomes the best solution via the async listener,
	// and the creator is notified.
	require.Eventually(t, func() bool {
		b, err := testDB.GetBlocker(ctx, blocker.ID)
		return err == nil && b.BestSolutionID != nil && *b.BestSolutionID == solution.ID
	}, 5*time.Second, 20*time.Millisecond, "best solution not set by listener")

	require.Eventually(t, func() bool {
		n, err := testDB.CountNotificationsByTypeAndEntity(ctx, creatorID,
			model.NotifySolutionAdded, blocker.ID.String())
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond, "creator not notified of solution")

	// Upvoting twice counts once.
	var upvoted model.Solution
	status = doJSON(t, http.MethodPost,
		m.solutionURL+"/api/solutions/"+solution.ID.String()+"/upvote", creatorToken, nil, &upvoted)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, upvoted.Upvotes)

	status = doJSON(t, http.MethodPost,
		m.solutionURL+"/api/solutions/"+solution.ID.String()+"/upvote", creatorToken, nil, &upvoted)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, upvoted.Upvotes)

	// Creator accepts the solution.
	var accepted model.Solution
	status = doJSON(t, http.MethodPost,
		m.solutionURL+"/api/solutions/"+solution.ID.String()+"/accept", creatorToken, nil, &accepted)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, accepted.Accepted)

	// A second accept attempt conflicts.
	status = doJSON(t, http.MethodPost,
		m.solutionURL+"/api/solutions/"+solution.ID.String()+"/accept", creatorToken, nil, nil)
	assert.Equal(t, http.StatusConflict, status)

	// Downstream choreography: blocker closes, author earns points and a
	// notification.
	require.Eventually(t, func() bool {
		b, err := testDB.GetBlocker(ctx, blocker.ID)
		return err == nil && b.Status == model.BlockerClosed
	}, 5*time.Second, 20*time.Millisecond, "blocker not closed by listener")

	require.Eventually(t, func() bool {
		rep, err := testDB.GetReputation(ctx, authorID)
		return err == nil && rep.Points == blockersvc.AcceptedSolutionPoints
	}, 5*time.Second, 20*time.Millisecond, "author reputation not awarded")

	require.Eventually(t, func() bool {
		n, err := testDB.CountNotificationsByTypeAndEntity(ctx, authorID,
			model.NotifySolutionAccepted, blocker.ID.String())
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond, "author not notified of acceptance")

	// The reputation total always matches the transaction ledger.
	sum, err := testDB.SumReputationTransactions(ctx, authorID)
	require.NoError(t, err)
	rep, err := testDB.GetReputation(ctx, authorID)
	require.NoError(t, err)
	assert.Equal(t, sum, rep.Points)
}

func TestEndToEnd_CommentFanOutExcludesAuthor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := startMesh(t, ctx)

	creatorID, creatorToken := registerAndLogin(t, m, uuid.NewString()[:8]+"-creator@example.com")
	_, commenterToken := registerAndLogin(t, m, uuid.NewString()[:8]+"-commenter@example.com")

	var blocker model.Blocker
	status := doJSON(t, http.MethodPost, m.blockerURL+"/api/blockers", creatorToken,
		map[string]any{"title": "flaky integration suite"}, &blocker)
	require.Equal(t, http.StatusCreated, status)

	// Another user comments: the creator is notified.
	var comment model.Comment
	status = doJSON(t, http.MethodPost,
		m.commentURL+"/api/blockers/"+blocker.ID.String()+"/comments", commenterToken,
		map[string]string{"content": "seeing this too on main"}, &comment)
	require.Equal(t, http.StatusCreated, status)

	require.Eventually(t, func() bool {
		n, err := testDB.CountNotificationsByTypeAndEntity(ctx, creatorID,
			model.NotifyCommentAdded, blocker.ID.String())
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond, "creator not notified of comment")

	// The creator comments on their own blocker: nobody is notified.
	status = doJSON(t, http.MethodPost,
		m.commentURL+"/api/blockers/"+blocker.ID.String()+"/comments", creatorToken,
		map[string]string{"content": "repro steps attached"}, &comment)
	require.Equal(t, http.StatusCreated, status)

	// Give the fan-out a moment, then confirm no second notification.
	time.Sleep(300 * time.Millisecond)
	n, err := testDB.CountNotificationsByTypeAndEntity(ctx, creatorID,
		model.NotifyCommentAdded, blocker.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEndToEnd_TeamFanOutOnBlockerCreated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := startMesh(t, ctx)

	creatorID, creatorToken := registerAndLogin(t, m, uuid.NewString()[:8]+"-creator@example.com")
	mateID, mateToken := registerAndLogin(t, m, uuid.NewString()[:8]+"-mate@example.com")

	code := "team-" + uuid.NewString()[:8]
	var team model.Team
	status := doJSON(t, http.MethodPost, m.userURL+"/api/teams", creatorToken,
		map[string]string{"name": "platform", "code": code}, &team)
	require.Equal(t, http.StatusCreated, status)

	status = doJSON(t, http.MethodPost, m.userURL+"/api/teams/"+code+"/join", mateToken, nil, nil)
	require.Equal(t, http.StatusOK, status)

	var blocker model.Blocker
	status = doJSON(t, http.MethodPost, m.blockerURL+"/api/blockers", creatorToken,
		map[string]any{"title": "staging database down", "team_code": code}, &blocker)
	require.Equal(t, http.StatusCreated, status)

	// The teammate hears about the new blocker; the creator gets the
	// confirmation notification.
	require.Eventually(t, func() bool {
		n, err := testDB.CountNotificationsByTypeAndEntity(ctx, mateID,
			model.NotifyTeamBlockerCreated, blocker.ID.String())
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond, "teammate not notified")

	require.Eventually(t, func() bool {
		n, err := testDB.CountNotificationsByTypeAndEntity(ctx, creatorID,
			model.NotifyBlockerCreated, blocker.ID.String())
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond, "creator confirmation missing")

	// The creator never gets the team copy of their own blocker.
	n, err := testDB.CountNotificationsByTypeAndEntity(ctx, creatorID,
		model.NotifyTeamBlockerCreated, blocker.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEndToEnd_SolutionForMissingBlockerRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := startMesh(t, ctx)

	_, token := registerAndLogin(t, m, uuid.NewString()[:8]+"-author@example.com")

	status := doJSON(t, http.MethodPost,
		m.solutionURL+"/api/blockers/"+uuid.NewString()+"/solutions", token,
		map[string]string{"content": "orphaned fix"}, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestEndToEnd_RedeliveredAcceptanceIsIdempotentOnState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := startMesh(t, ctx)

	creatorID, creatorToken := registerAndLogin(t, m, uuid.NewString()[:8]+"-creator@example.com")
	_, authorToken := registerAndLogin(t, m, uuid.NewString()[:8]+"-author@example.com")

	var blocker model.Blocker
	status := doJSON(t, http.MethodPost, m.blockerURL+"/api/blockers", creatorToken,
		map[string]any{"title": "cache stampede on login"}, &blocker)
	require.Equal(t, http.StatusCreated, status)

	var solution model.Solution
	status = doJSON(t, http.MethodPost,
		m.solutionURL+"/api/blockers/"+blocker.ID.String()+"/solutions", authorToken,
		map[string]string{"content": "add request coalescing"}, &solution)
	require.Equal(t, http.StatusCreated, status)

	status = doJSON(t, http.MethodPost,
		m.solutionURL+"/api/solutions/"+solution.ID.String()+"/accept", creatorToken, nil, nil)
	require.Equal(t, http.StatusOK, status)

	require.Eventually(t, func() bool {
		b, err := testDB.GetBlocker(ctx, blocker.ID)
		return err == nil && b.Status == model.BlockerClosed
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		rep, err := testDB.GetReputation(ctx, solution.UserID)
		return err == nil && rep.Points == blockersvc.AcceptedSolutionPoints
	}, 5*time.Second, 20*time.Millisecond)

	closedAt := func() time.Time {
		b, err := testDB.GetBlocker(ctx, blocker.ID)
		require.NoError(t, err)
		return b.UpdatedAt
	}()

	// Redeliver the accepted event straight into the blocker queue; the
	// close guard must leave the already-closed blocker untouched.
	m.channel.Redeliver(event.SolutionAcceptedQueue, event.NewSolutionAccepted(event.SolutionAcceptedPayload{
		SolutionID: solution.ID.String(),
		BlockerID:  blocker.ID.String(),
		UserID:     solution.UserID.String(),
		AcceptedBy: creatorID.String(),
		AcceptedAt: time.Now().UTC(),
	}))

	time.Sleep(300 * time.Millisecond)
	b, err := testDB.GetBlocker(ctx, blocker.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BlockerClosed, b.Status)
	assert.Equal(t, closedAt, b.UpdatedAt)

	// The duplicate must not award a second time either.
	rep, err := testDB.GetReputation(ctx, solution.UserID)
	require.NoError(t, err)
	assert.Equal(t, blockersvc.AcceptedSolutionPoints, rep.Points)
}
