package rest

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	web5 "github.com/totegamma/web5-playground"
	"github.com/totegamma/web5-playground/internal/domain"
	"github.com/totegamma/web5-playground/internal/present/rest/middleware"
	"github.com/totegamma/web5-playground/internal/service"
	"github.com/totegamma/web5-playground/internal/usecase"
	"github.com/totegamma/web5-playground/jwt"
	"github.com/totegamma/web5-playground/schemas"
)

const (
	testDID     = "did:web5:alice"
	testHandle  = "alice.example"
	testAddress = "ckt1qtestaddress"
)

// --- mocks ---

type mockActorStore struct {
	unsigned domain.UnsignedCommit
	commit   domain.Commit
	applyErr error
}

func (m *mockActorStore) PreCreateRepo(ctx context.Context, did string) (domain.UnsignedCommit, error) {
	return m.unsigned, nil
}

func (m *mockActorStore) CreateRepo(ctx context.Context, did string, root web5.SignedRoot, signingKey string) (domain.Commit, error) {
	return m.commit, nil
}

func (m *mockActorStore) GenerateUnsigned(ctx context.Context, did string, writes []domain.PreparedWrite, swap *string) (domain.UnsignedCommit, error) {
	return m.unsigned, nil
}

func (m *mockActorStore) ApplyWrites(ctx context.Context, did string, writes []domain.PreparedWrite, swap *string, root web5.SignedRoot, signingKey string) (domain.Commit, error) {
	if m.applyErr != nil {
		return domain.Commit{}, m.applyErr
	}
	return m.commit, nil
}

func (m *mockActorStore) Destroy(ctx context.Context, did string) error { return nil }

type mockAccountStore struct {
	accounts map[string]*domain.Account
}

func (m *mockAccountStore) Get(ctx context.Context, identifier string, flags domain.AvailabilityFlags) (*domain.Account, error) {
	return m.accounts[identifier], nil
}

func (m *mockAccountStore) Create(ctx context.Context, opts domain.CreateAccountOpts) (domain.Session, error) {
	return domain.Session{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAccountStore) UpdateRepoRoot(ctx context.Context, did, cid, rev string) error {
	return nil
}

func (m *mockAccountStore) Delete(ctx context.Context, did string) error { return nil }

func (m *mockAccountStore) CreateSession(ctx context.Context, did string) (domain.Session, error) {
	return domain.Session{AccessToken: "access", RefreshToken: "refresh"}, nil
}

type mockResolver struct {
	doc web5.IdentityDocument
	err error
}

func (m *mockResolver) ResolveDocument(ctx context.Context, address string) (web5.IdentityDocument, error) {
	if m.err != nil {
		return web5.IdentityDocument{}, m.err
	}
	return m.doc, nil
}

type mockSequencer struct{}

func (m *mockSequencer) WithExclusive(ctx context.Context, fn func(usecase.Emitter) error) error {
	return fn(m)
}

func (m *mockSequencer) SequenceIdentityEvt(ctx context.Context, did string, handle *string) (int64, error) {
	return 1, nil
}

func (m *mockSequencer) SequenceAccountEvt(ctx context.Context, did string, status domain.AccountStatus) (int64, error) {
	return 2, nil
}

func (m *mockSequencer) SequenceCommit(ctx context.Context, did string, commit domain.Commit, ops []domain.WriteResult) (int64, error) {
	return 3, nil
}

func (m *mockSequencer) SequenceSyncEvt(ctx context.Context, did string, commit domain.Commit) (int64, error) {
	return 4, nil
}

func (m *mockSequencer) Compact(ctx context.Context, did string, except []int64) error {
	return nil
}

// --- helpers ---

type fixture struct {
	e        *echo.Echo
	actor    *mockActorStore
	accounts *mockAccountStore
	resolver *mockResolver
	config   domain.Config
	privHex  string
	pubHex   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen failed: %v", err)
	}
	privHex := hex.EncodeToString(crypto.FromECDSA(key))
	pubHex := hex.EncodeToString(crypto.CompressPubkey(&key.PublicKey))

	conf := domain.Config{
		FQDN:       "web5.example",
		PrivateKey: privHex,
		ServerKey:  pubHex,
	}

	addr := testAddress
	actor := &mockActorStore{
		unsigned: domain.UnsignedCommit{DID: testDID, Rev: "r1", UnsignedBytes: "abcd"},
		commit:   domain.Commit{DID: testDID, Rev: "r1", CID: "zNew"},
	}
	accounts := &mockAccountStore{accounts: map[string]*domain.Account{
		testDID: {DID: testDID, Handle: testHandle, Address: &addr},
	}}
	resolver := &mockResolver{doc: web5.IdentityDocument{
		VerificationMethods: map[string]string{"atproto": pubHex},
		AlsoKnownAs:         []string{"at://" + testHandle},
	}}
	seq := &mockSequencer{}

	repoUC := usecase.NewRepoUsecase(actor, accounts, resolver, seq)
	accountUC := usecase.NewAccountUsecase(actor, accounts, resolver, seq)
	actionUC := usecase.NewActionUsecase(actor, accounts, resolver, seq, conf)

	h := NewHandler(conf, repoUC, accountUC, actionUC, nil, nil)
	auth := middleware.NewAuthMiddleware(service.NewAuthService(conf), conf)

	e := echo.New()
	e.Use(auth.IdentifyIdentity)
	h.RegisterRoutes(e)

	return &fixture{
		e:        e,
		actor:    actor,
		accounts: accounts,
		resolver: resolver,
		config:   conf,
		privHex:  privHex,
		pubHex:   pubHex,
	}
}

func (f *fixture) accessToken(t *testing.T, did string) string {
	t.Helper()
	token, err := jwt.Create(jwt.Claims{
		Issuer:         f.config.ServerKey,
		Subject:        did,
		Audience:       f.config.FQDN,
		Scope:          jwt.ScopeAccess,
		ExpirationTime: strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
	}, f.config.PrivateKey)
	if err != nil {
		t.Fatalf("token mint failed: %v", err)
	}
	return token
}

func (f *fixture) post(t *testing.T, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("request marshal failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	f.e.ServeHTTP(res, req)
	return res
}

// --- tests ---

func TestHandleWellKnown(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/web5", nil)
	res := httptest.NewRecorder()
	f.e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", res.Code)
	}

	var wk web5.WellKnownWeb5
	if err := json.Unmarshal(res.Body.Bytes(), &wk); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if wk.Domain != "web5.example" {
		t.Fatalf("unexpected domain %s", wk.Domain)
	}
	if _, ok := wk.Endpoints["web5.directWrites"]; !ok {
		t.Fatalf("directWrites endpoint not advertised")
	}
}

func TestHandlePreCreateAccount(t *testing.T) {
	f := newFixture(t)

	res := f.post(t, "/xrpc/web5.preCreateAccount", "", map[string]string{
		"handle": "bob.example",
		"did":    "did:web5:bob",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var unsigned domain.UnsignedCommit
	if err := json.Unmarshal(res.Body.Bytes(), &unsigned); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if unsigned.UnsignedBytes == "" {
		t.Fatalf("expected unsigned bytes in response")
	}
}

func TestHandlePreCreateAccountInvalidHandle(t *testing.T) {
	f := newFixture(t)

	res := f.post(t, "/xrpc/web5.preCreateAccount", "", map[string]string{
		"handle": "nodots",
		"did":    "did:web5:bob",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestHandlePreDirectWritesRequiresAuth(t *testing.T) {
	f := newFixture(t)

	res := f.post(t, "/xrpc/web5.preDirectWrites", "", map[string]any{
		"repo": testDID,
	})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", res.Code)
	}
}

func TestHandlePreDirectWrites(t *testing.T) {
	f := newFixture(t)

	res := f.post(t, "/xrpc/web5.preDirectWrites", f.accessToken(t, testDID), map[string]any{
		"repo": testDID,
		"writes": []map[string]any{
			{
				"action":     "create",
				"collection": schemas.PostNSID,
				"value":      map[string]string{"$type": schemas.PostNSID, "text": "hi"},
			},
		},
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var unsigned domain.UnsignedCommit
	if err := json.Unmarshal(res.Body.Bytes(), &unsigned); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if unsigned.Rev != "r1" {
		t.Fatalf("unexpected rev %s", unsigned.Rev)
	}
}

func TestHandlePreDirectWritesForeignToken(t *testing.T) {
	f := newFixture(t)

	res := f.post(t, "/xrpc/web5.preDirectWrites", f.accessToken(t, "did:web5:mallory"), map[string]any{
		"repo": testDID,
	})
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", res.Code, res.Body.String())
	}
}

func TestHandleDirectWritesSwapMismatch(t *testing.T) {
	f := newFixture(t)
	f.actor.applyErr = domain.SwapMismatchError{Expected: "zOld", Actual: "zNew"}

	res := f.post(t, "/xrpc/web5.directWrites", f.accessToken(t, testDID), map[string]any{
		"repo":       testDID,
		"address":    testAddress,
		"signingKey": f.pubHex,
		"writes": []map[string]any{
			{
				"action":     "create",
				"collection": schemas.PostNSID,
				"value":      map[string]string{"$type": schemas.PostNSID, "text": "hi"},
			},
		},
		"root": map[string]any{"did": testDID, "rev": "r1", "signedBytes": "00"},
	})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", res.Code, res.Body.String())
	}
}

func TestHandleIndexActionUnknownAction(t *testing.T) {
	f := newFixture(t)

	res := f.post(t, "/xrpc/web5.indexAction", "", map[string]string{
		"did":     testDID,
		"address": testAddress,
		"action":  "fly",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestHandlePreIndexAction(t *testing.T) {
	f := newFixture(t)

	res := f.post(t, "/xrpc/web5.preIndexAction", "", map[string]string{
		"did":     testDID,
		"address": testAddress,
		"action":  "createSession",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var out usecase.PreIndexActionOutput
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.Message == "" {
		t.Fatalf("expected a challenge message")
	}
}

// stubFirehose hands a controllable event feed to the websocket handler.
type stubFirehose struct {
	events chan domain.Event
}

func (s *stubFirehose) Tail(ctx context.Context, output chan<- domain.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			select {
			case output <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func TestHandleFirehoseDeliversAndShutsDown(t *testing.T) {
	source := &stubFirehose{events: make(chan domain.Event, 1)}
	h := NewHandler(domain.Config{FQDN: "web5.example"}, nil, nil, nil, source, nil)

	done := make(chan struct{})
	e := echo.New()
	e.GET("/firehose", func(c echo.Context) error {
		defer close(done)
		return h.handleFirehose(c)
	})

	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/firehose", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	if err := conn.WriteJSON(map[string]string{"type": "h"}); err != nil {
		t.Fatalf("heartbeat failed: %v", err)
	}

	source.events <- domain.Event{Seq: 1, Kind: domain.EventKindCommit, DID: testDID}
	var got domain.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Seq != 1 || got.Kind != domain.EventKindCommit || got.DID != testDID {
		t.Fatalf("unexpected event: %+v", got)
	}

	conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not finish after the client disconnected")
	}
}
