package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/tuic/dashboard-session/internal/api"
	"github.com/tuic/dashboard-session/internal/apperror"
	"github.com/tuic/dashboard-session/internal/model"
	"github.com/tuic/dashboard-session/internal/store"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeBackend is an in-memory implementation of Backend. A fake (not a
// mock framework) keeps the tests dependency-free and readable.
type fakeBackend struct {
	// canned responses
	meUser       model.User
	meErr        error
	loginResp    *api.LoginResponse
	loginErr     error
	callbackResp *api.LoginResponse
	callbackErr  error
	logoutErr    error
	updateErr    error

	// recorded inputs
	gotAccount string
	gotSecret  string
	gotCode    string
	gotIsso    string
	gotDraft   model.User

	// call sequence, e.g. ["me", "logout"]
	calls []string
}

func (f *fakeBackend) Me(context.Context) (model.User, error) {
	f.calls = append(f.calls, "me")
	return f.meUser, f.meErr
}

func (f *fakeBackend) Login(_ context.Context, account, secret string) (*api.LoginResponse, error) {
	f.calls = append(f.calls, "login")
	f.gotAccount, f.gotSecret = account, secret
	return f.loginResp, f.loginErr
}

func (f *fakeBackend) Callback(_ context.Context, code string) (*api.LoginResponse, error) {
	f.calls = append(f.calls, "callback")
	f.gotCode = code
	return f.callbackResp, f.callbackErr
}

func (f *fakeBackend) Logout(_ context.Context, issoToken string) error {
	f.calls = append(f.calls, "logout")
	f.gotIsso = issoToken
	return f.logoutErr
}

func (f *fakeBackend) UpdateMe(_ context.Context, draft model.User) error {
	f.calls = append(f.calls, "update")
	f.gotDraft = draft
	return f.updateErr
}

func (f *fakeBackend) called(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

// fakeNavigator records navigation intents in order.
type fakeNavigator struct {
	actions []string
}

func (n *fakeNavigator) Replace(path string) { n.actions = append(n.actions, "replace:"+path) }
func (n *fakeNavigator) Reload()             { n.actions = append(n.actions, "reload") }

// fakeNotifier records emitted notifications.
type fakeNotifier struct {
	notices []string
}

func (n *fakeNotifier) Notify(level, message string) {
	n.notices = append(n.notices, level+":"+message)
}

type testDeps struct {
	backend  *fakeBackend
	store    *store.Memory
	nav      *fakeNavigator
	notifier *fakeNotifier
	env      model.Environment
}

func newTestManager(t *testing.T, d *testDeps) *Manager {
	t.Helper()

	if d.backend == nil {
		d.backend = &fakeBackend{}
	}
	if d.store == nil {
		d.store = store.NewMemory()
	}
	d.nav = &fakeNavigator{}
	d.notifier = &fakeNotifier{}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	return New(Config{
		Backend:     d.backend,
		Store:       d.store,
		Navigator:   d.nav,
		Notifier:    d.notifier,
		Environment: func() model.Environment { return d.env },
		Logger:      logger,
	})
}

func testUser(id int) model.User {
	return model.User{
		UserID:   id,
		Account:  "a@b.com",
		Name:     "測試使用者",
		IsActive: true,
		LoginAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func storedValue(t *testing.T, s *store.Memory, key string) (string, bool) {
	t.Helper()
	v, ok, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("store.Get(%q) error = %v", key, err)
	}
	return v, ok
}

// =========================================================================
// BOOTSTRAP (InitialChecks)
// =========================================================================

func TestInitialChecks_RestoresStoredSession(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{meUser: testUser(42)},
		store:   store.NewMemory(),
	}
	d.store.Set(context.Background(), store.KeyAccessKey, "stored-token")

	m := newTestManager(t, d)

	var restored, completed bool
	m.Subscribe(EventSessionRestored, func(context.Context) { restored = true })
	m.Subscribe(EventBootstrapCompleted, func(context.Context) { completed = true })

	if err := m.InitialChecks(context.Background()); err != nil {
		t.Fatalf("InitialChecks() error = %v", err)
	}

	if m.AccessKey() != "stored-token" {
		t.Errorf("AccessKey() = %q, want %q", m.AccessKey(), "stored-token")
	}
	if m.User().UserID != 42 {
		t.Errorf("User().UserID = %d, want 42", m.User().UserID)
	}
	if !restored {
		t.Error("session-restored was not published")
	}
	if !completed {
		t.Error("bootstrap-completed was not published")
	}
}

func TestInitialChecks_EditDraftIsDistinctCopy(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{meUser: testUser(42)},
		store:   store.NewMemory(),
	}
	d.store.Set(context.Background(), store.KeyAccessKey, "stored-token")

	m := newTestManager(t, d)
	if err := m.InitialChecks(context.Background()); err != nil {
		t.Fatalf("InitialChecks() error = %v", err)
	}

	if m.EditDraft() != m.User() {
		t.Fatal("EditDraft should deep-equal User after bootstrap")
	}

	// Mutating the draft must not leak into the canonical user.
	draft := m.EditDraft()
	draft.Name = "edited"
	m.SetEditDraft(draft)

	if m.User().Name == "edited" {
		t.Error("mutating the edit draft leaked into User")
	}
	if m.EditDraft().Name != "edited" {
		t.Error("SetEditDraft did not stage the edit")
	}
}

func TestInitialChecks_NoStoredToken(t *testing.T) {
	d := &testDeps{}
	m := newTestManager(t, d)

	var completed bool
	m.Subscribe(EventBootstrapCompleted, func(context.Context) { completed = true })

	if err := m.InitialChecks(context.Background()); err != nil {
		t.Fatalf("InitialChecks() error = %v", err)
	}

	if got := d.backend.called("me"); got != 0 {
		t.Errorf("Me was called %d times with no stored token, want 0", got)
	}
	if !completed {
		t.Error("bootstrap-completed must fire even without a session")
	}
	if m.User().LoggedIn() {
		t.Error("no stored token should leave the session anonymous")
	}
}

func TestInitialChecks_LoadsSecondaryToken(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{meUser: testUser(1)},
		store:   store.NewMemory(),
	}
	d.store.Set(context.Background(), store.KeyAccessKey, "T")
	d.store.Set(context.Background(), store.KeyTaipeiPass, "ISSO")

	m := newTestManager(t, d)
	if err := m.InitialChecks(context.Background()); err != nil {
		t.Fatalf("InitialChecks() error = %v", err)
	}

	if m.TaipeiPass() != "ISSO" {
		t.Errorf("TaipeiPass() = %q, want %q", m.TaipeiPass(), "ISSO")
	}
}

func TestInitialChecks_StaleTokenPropagatesAndIsNotCleared(t *testing.T) {
	stale := apperror.StaleSession(errors.New("401"))
	d := &testDeps{
		backend: &fakeBackend{meErr: stale},
		store:   store.NewMemory(),
	}
	d.store.Set(context.Background(), store.KeyAccessKey, "expired-token")

	m := newTestManager(t, d)

	err := m.InitialChecks(context.Background())
	if !errors.Is(err, apperror.ErrStaleSession) {
		t.Fatalf("InitialChecks() error = %v, want stale-session", err)
	}

	// The known gap: the bootstrapper does not clear the stale token.
	if v, ok := storedValue(t, d.store, store.KeyAccessKey); !ok || v != "expired-token" {
		t.Errorf("stored token = %q, %v; the bootstrapper must not clear it", v, ok)
	}
}

func TestInitialChecks_ComputesDeviceProfile(t *testing.T) {
	d := &testDeps{env: model.Environment{MaxTouchPoints: 5, ScreenWidth: 400}}
	m := newTestManager(t, d)

	if err := m.InitialChecks(context.Background()); err != nil {
		t.Fatalf("InitialChecks() error = %v", err)
	}

	profile := m.DeviceProfile()
	if !profile.IsMobileDevice || !profile.IsNarrowDevice {
		t.Errorf("DeviceProfile() = %+v, want mobile and narrow", profile)
	}
}

// =========================================================================
// CREDENTIAL LOGIN
// =========================================================================

func TestLoginByEmail_Success(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{
			loginResp: &api.LoginResponse{Token: "T1", User: testUser(1)},
		},
	}
	m := newTestManager(t, d)

	var cacheCleared int
	m.Subscribe(EventSessionEstablished, func(context.Context) { cacheCleared++ })

	if err := m.LoginByEmail(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("LoginByEmail() error = %v", err)
	}

	if d.backend.gotAccount != "a@b.com" || d.backend.gotSecret != "pw" {
		t.Errorf("credentials forwarded = (%q, %q)", d.backend.gotAccount, d.backend.gotSecret)
	}
	if v, ok := storedValue(t, d.store, store.KeyAccessKey); !ok || v != "T1" {
		t.Errorf("stored accessKey = %q, %v, want %q", v, ok, "T1")
	}
	if m.User().UserID != 1 {
		t.Errorf("User().UserID = %d, want 1", m.User().UserID)
	}
	if cacheCleared != 1 {
		t.Errorf("session-established fired %d times, want 1", cacheCleared)
	}
	if len(d.notifier.notices) != 1 || d.notifier.notices[0] != "success:登入成功" {
		t.Errorf("notifications = %v, want exactly one success", d.notifier.notices)
	}
	if len(d.nav.actions) != 1 || d.nav.actions[0] != "reload" {
		t.Errorf("navigation = %v, want a single reload", d.nav.actions)
	}
}

func TestLoginByEmail_SecondaryTokenStoredWhenPresent(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{
			loginResp: &api.LoginResponse{Token: "T1", IssoToken: "ISSO1", User: testUser(1)},
		},
	}
	m := newTestManager(t, d)

	if err := m.LoginByEmail(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("LoginByEmail() error = %v", err)
	}

	if m.TaipeiPass() != "ISSO1" {
		t.Errorf("TaipeiPass() = %q, want %q", m.TaipeiPass(), "ISSO1")
	}
	if v, ok := storedValue(t, d.store, store.KeyTaipeiPass); !ok || v != "ISSO1" {
		t.Errorf("stored taipeiPass = %q, %v, want %q", v, ok, "ISSO1")
	}
}

func TestLoginByEmail_FailurePropagates(t *testing.T) {
	wantErr := apperror.Transport("logging in", errors.New("401"))
	d := &testDeps{backend: &fakeBackend{loginErr: wantErr}}
	m := newTestManager(t, d)

	err := m.LoginByEmail(context.Background(), "a@b.com", "bad")
	if !errors.Is(err, apperror.ErrTransport) {
		t.Fatalf("LoginByEmail() error = %v, want transport error", err)
	}

	if m.AccessKey() != "" {
		t.Error("failed login must not set the primary token")
	}
	if _, ok := storedValue(t, d.store, store.KeyAccessKey); ok {
		t.Error("failed login must not persist a token")
	}
	if len(d.notifier.notices) != 0 {
		t.Errorf("failed login emitted notifications: %v", d.notifier.notices)
	}
}

// =========================================================================
// FEDERATED LOGIN
// =========================================================================

func TestLoginByTaipeiPass_EmptyCodeStillNavigates(t *testing.T) {
	d := &testDeps{backend: &fakeBackend{}}
	m := newTestManager(t, d)

	m.LoginByTaipeiPass(context.Background(), "")

	if got := d.backend.called("callback"); got != 0 {
		t.Errorf("empty code reached the backend %d times, want 0", got)
	}
	if m.AccessKey() != "" {
		t.Error("empty code must not store a token")
	}
	if len(d.nav.actions) != 1 || d.nav.actions[0] != "replace:/dashboard" {
		t.Errorf("navigation = %v, want replace:/dashboard", d.nav.actions)
	}
	if !errors.Is(m.LastFederatedError(), apperror.ErrValidation) {
		t.Errorf("LastFederatedError() = %v, want validation error", m.LastFederatedError())
	}
}

func TestLoginByTaipeiPass_CodeIsTrimmedAndPercentEncoded(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{
			callbackResp: &api.LoginResponse{Token: "T2", IssoToken: "ISSO2", User: testUser(7)},
		},
	}
	m := newTestManager(t, d)

	m.LoginByTaipeiPass(context.Background(), "  abc def ")

	if d.backend.gotCode != "abc%20def" {
		t.Errorf("code sent = %q, want %q", d.backend.gotCode, "abc%20def")
	}
	if m.User().UserID != 7 {
		t.Errorf("User().UserID = %d, want 7", m.User().UserID)
	}
	if m.LastFederatedError() != nil {
		t.Errorf("LastFederatedError() = %v, want nil", m.LastFederatedError())
	}

	// Success path: reload from completion, then the fixed redirect.
	want := []string{"reload", "replace:/dashboard"}
	if len(d.nav.actions) != 2 || d.nav.actions[0] != want[0] || d.nav.actions[1] != want[1] {
		t.Errorf("navigation = %v, want %v", d.nav.actions, want)
	}
}

func TestLoginByTaipeiPass_TransportFailureSwallowedAndNavigates(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{
			callbackErr: apperror.Transport("exchanging authorization code", errors.New("boom")),
		},
	}
	m := newTestManager(t, d)

	m.LoginByTaipeiPass(context.Background(), "abc")

	if len(d.nav.actions) != 1 || d.nav.actions[0] != "replace:/dashboard" {
		t.Errorf("navigation = %v, want replace:/dashboard", d.nav.actions)
	}
	if m.AccessKey() != "" {
		t.Error("failed exchange must not store a token")
	}
	if len(d.notifier.notices) != 0 {
		t.Errorf("failed exchange emitted notifications: %v", d.notifier.notices)
	}
	if !errors.Is(m.LastFederatedError(), apperror.ErrTransport) {
		t.Errorf("LastFederatedError() = %v, want transport error", m.LastFederatedError())
	}
}

// =========================================================================
// LOGOUT
// =========================================================================

func TestHandleLogout_WithFederatedToken(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{
			loginResp: &api.LoginResponse{Token: "T1", IssoToken: "ISSO1", User: testUser(1)},
		},
	}
	m := newTestManager(t, d)
	if err := m.LoginByEmail(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	d.nav.actions = nil
	d.notifier.notices = nil

	var ended bool
	m.Subscribe(EventSessionEnded, func(context.Context) { ended = true })

	if err := m.HandleLogout(context.Background()); err != nil {
		t.Fatalf("HandleLogout() error = %v", err)
	}

	if d.backend.gotIsso != "ISSO1" {
		t.Errorf("remote logout token = %q, want %q", d.backend.gotIsso, "ISSO1")
	}
	if _, ok := storedValue(t, d.store, store.KeyAccessKey); ok {
		t.Error("accessKey must be removed from storage")
	}
	if _, ok := storedValue(t, d.store, store.KeyTaipeiPass); ok {
		t.Error("taipeiPass must be removed from storage")
	}
	if m.User().LoggedIn() || m.EditDraft().LoggedIn() {
		t.Error("user and edit draft must be cleared")
	}
	if m.AccessKey() != "" || m.TaipeiPass() != "" {
		t.Error("in-memory tokens must be cleared")
	}
	if !ended {
		t.Error("session-ended was not published")
	}
	if len(d.nav.actions) != 1 || d.nav.actions[0] != "reload" {
		t.Errorf("navigation = %v, want a single reload", d.nav.actions)
	}
	if len(d.notifier.notices) != 1 || d.notifier.notices[0] != "success:登出成功" {
		t.Errorf("notifications = %v, want one logout success", d.notifier.notices)
	}
}

func TestHandleLogout_WithoutFederatedTokenSkipsRemoteCall(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{
			loginResp: &api.LoginResponse{Token: "T1", User: testUser(1)},
		},
	}
	m := newTestManager(t, d)
	if err := m.LoginByEmail(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := m.HandleLogout(context.Background()); err != nil {
		t.Fatalf("HandleLogout() error = %v", err)
	}

	if got := d.backend.called("logout"); got != 0 {
		t.Errorf("remote logout called %d times without a federated token, want 0", got)
	}
}

func TestHandleLogout_RemoteFailureAfterLocalCleanup(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{
			loginResp: &api.LoginResponse{Token: "T1", IssoToken: "ISSO1", User: testUser(1)},
		},
	}
	m := newTestManager(t, d)
	if err := m.LoginByEmail(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	d.nav.actions = nil
	d.notifier.notices = nil
	d.backend.logoutErr = apperror.Transport("remote logout", errors.New("boom"))

	err := m.HandleLogout(context.Background())
	if !errors.Is(err, apperror.ErrTransport) {
		t.Fatalf("HandleLogout() error = %v, want transport error", err)
	}

	// Local cleanup happened before the remote call...
	if _, ok := storedValue(t, d.store, store.KeyAccessKey); ok {
		t.Error("accessKey must be removed even when remote logout fails")
	}
	if m.User().LoggedIn() {
		t.Error("user must be cleared even when remote logout fails")
	}
	// ...but the federated token survives for a retry, and neither the
	// reload nor the notification runs.
	if m.TaipeiPass() != "ISSO1" {
		t.Errorf("TaipeiPass() = %q, want it kept for retry", m.TaipeiPass())
	}
	if len(d.nav.actions) != 0 || len(d.notifier.notices) != 0 {
		t.Errorf("failed remote logout must skip reload/notification, got %v %v",
			d.nav.actions, d.notifier.notices)
	}
}

// =========================================================================
// PROFILE UPDATE, REFRESH, PATH
// =========================================================================

func TestUpdateUserInfo_ReplacesUserAndDraftFromServer(t *testing.T) {
	confirmed := testUser(1)
	confirmed.Name = "server-confirmed"

	d := &testDeps{backend: &fakeBackend{meUser: confirmed}}
	m := newTestManager(t, d)

	draft := testUser(1)
	draft.Name = "my-optimistic-edit"
	m.SetEditDraft(draft)

	if err := m.UpdateUserInfo(context.Background()); err != nil {
		t.Fatalf("UpdateUserInfo() error = %v", err)
	}

	if d.backend.gotDraft.Name != "my-optimistic-edit" {
		t.Errorf("draft sent = %q, want the staged edit", d.backend.gotDraft.Name)
	}
	if m.User().Name != "server-confirmed" {
		t.Errorf("User().Name = %q, want the server-confirmed record", m.User().Name)
	}
	if m.EditDraft().Name != "server-confirmed" {
		t.Error("edit draft must be replaced by the refreshed record")
	}
}

func TestUpdateUserInfo_PatchFailureKeepsDraft(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{updateErr: apperror.Transport("updating user info", errors.New("500"))},
	}
	m := newTestManager(t, d)

	draft := testUser(1)
	draft.Name = "pending"
	m.SetEditDraft(draft)

	if err := m.UpdateUserInfo(context.Background()); !errors.Is(err, apperror.ErrTransport) {
		t.Fatalf("UpdateUserInfo() error = %v, want transport error", err)
	}
	if m.EditDraft().Name != "pending" {
		t.Error("failed update must leave the draft untouched")
	}
	if got := d.backend.called("me"); got != 0 {
		t.Errorf("Me called %d times after a failed PATCH, want 0", got)
	}
}

func TestExecuteRefreshTokens_DefaultIsNoop(t *testing.T) {
	m := newTestManager(t, &testDeps{})
	if err := m.ExecuteRefreshTokens(context.Background()); err != nil {
		t.Errorf("ExecuteRefreshTokens() error = %v, want nil", err)
	}
}

type countingRefresher struct{ calls int }

func (r *countingRefresher) Refresh(context.Context, *Manager) error {
	r.calls++
	return nil
}

func TestExecuteRefreshTokens_DelegatesToConfiguredRefresher(t *testing.T) {
	refresher := &countingRefresher{}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	m := New(Config{
		Backend:     &fakeBackend{},
		Store:       store.NewMemory(),
		Navigator:   &fakeNavigator{},
		Notifier:    &fakeNotifier{},
		Environment: func() model.Environment { return model.Environment{} },
		Refresher:   refresher,
		Logger:      logger,
	})

	if err := m.ExecuteRefreshTokens(context.Background()); err != nil {
		t.Fatalf("ExecuteRefreshTokens() error = %v", err)
	}
	if refresher.calls != 1 {
		t.Errorf("refresher called %d times, want 1", refresher.calls)
	}
}

func TestSetCurrentPath(t *testing.T) {
	m := newTestManager(t, &testDeps{})

	m.SetCurrentPath("/dashboard/map")
	if m.CurrentPath() != "/dashboard/map" {
		t.Errorf("CurrentPath() = %q, want %q", m.CurrentPath(), "/dashboard/map")
	}
}

// =========================================================================
// EVENT ORDERING
// =========================================================================

// Collaborators rely on events firing after the state mutation and
// before the reload — this pins that ordering down for login.
func TestSessionEstablished_FiresAfterMutationBeforeReload(t *testing.T) {
	d := &testDeps{
		backend: &fakeBackend{
			loginResp: &api.LoginResponse{Token: "T1", User: testUser(1)},
		},
	}
	m := newTestManager(t, d)

	m.Subscribe(EventSessionEstablished, func(context.Context) {
		if m.AccessKey() != "T1" || m.User().UserID != 1 {
			t.Error("session-established fired before the state mutation")
		}
		if len(d.nav.actions) != 0 {
			t.Error("session-established fired after the reload")
		}
	})

	if err := m.LoginByEmail(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("LoginByEmail() error = %v", err)
	}
}
