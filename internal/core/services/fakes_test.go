package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shiporbit/shiporbit/internal/adapters/sqlstore"
	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
)

var fixedNow = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func openStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(context.Background(), sqlstore.Config{
		Driver: sqlstore.SQLite,
		DSN:    filepath.Join(t.TempDir(), "services.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []ports.Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg ports.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeGeo struct {
	country string
	prefix  string
	err     error
}

func (g *fakeGeo) Cities(_ context.Context, prefix string) ([]json.RawMessage, error) {
	g.prefix = prefix
	if g.err != nil {
		return nil, g.err
	}
	return []json.RawMessage{json.RawMessage(`{"id":1,"name":"Chicago"}`)}, nil
}

func (g *fakeGeo) Regions(_ context.Context, country, prefix string) ([]json.RawMessage, error) {
	g.country, g.prefix = country, prefix
	if g.err != nil {
		return nil, g.err
	}
	return []json.RawMessage{json.RawMessage(`{"isoCode":"IL","name":"Illinois"}`)}, nil
}

type fakeGateway struct {
	customers  int
	intents    int
	lastIntent ports.IntentRequest
	status     string
	createErr  error
	getStatus  string
	event      *domain.PaymentEvent
	eventErr   error
}

func (g *fakeGateway) CreateCustomer(_ context.Context, email, name string) (string, error) {
	g.customers++
	return "cus_" + strings.Split(email, "@")[0], nil
}

func (g *fakeGateway) CreateIntent(_ context.Context, req ports.IntentRequest) (*domain.PaymentIntent, error) {
	g.lastIntent = req
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.intents++
	id := fmt.Sprintf("pi_%d", g.intents)
	return &domain.PaymentIntent{ID: id, Status: g.status, ClientSecret: id + "_secret"}, nil
}

func (g *fakeGateway) ConfirmIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	return &domain.PaymentIntent{ID: id, Status: "succeeded", ClientSecret: id + "_secret"}, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*domain.PaymentIntent, error) {
	if g.getStatus == "" {
		return nil, errors.New("no such payment_intent")
	}
	return &domain.PaymentIntent{ID: id, Status: g.getStatus}, nil
}

func (g *fakeGateway) ParseEvent(_ []byte, _ string) (*domain.PaymentEvent, error) {
	return g.event, g.eventErr
}

type fakeSource struct {
	checkout domain.Checkout
	cloned   string
	err      error
}

func (f *fakeSource) Open(_ context.Context, dir string) (domain.Checkout, error) {
	co := f.checkout
	co.Dir = dir
	return co, f.err
}

func (f *fakeSource) Clone(_ context.Context, repoURL, branch, dir string) (domain.Checkout, error) {
	f.cloned = repoURL
	co := f.checkout
	co.Dir = dir
	return co, f.err
}

// fakeBuilder records every call in order.
type fakeBuilder struct {
	calls    []string
	built    domain.BuildRequest
	pushed   []string
	buildErr error
	pushErr  error
}

func (b *fakeBuilder) Login(_ context.Context, creds domain.RegistryCredentials) error {
	b.calls = append(b.calls, "login "+creds.Username)
	return nil
}

func (b *fakeBuilder) Build(_ context.Context, req domain.BuildRequest) (string, error) {
	b.calls = append(b.calls, "build")
	b.built = req
	if b.buildErr != nil {
		return "", b.buildErr
	}
	return "sha256:abc", nil
}

func (b *fakeBuilder) Push(_ context.Context, ref string) error {
	b.calls = append(b.calls, "push "+ref)
	if b.pushErr != nil {
		return b.pushErr
	}
	b.pushed = append(b.pushed, ref)
	return nil
}

type fakeContainers struct {
	ran     string
	env     []string
	stopped string
	err     error
}

func (c *fakeContainers) RunImage(_ context.Context, image, containerPort, hostPort string, env []string) (domain.Container, error) {
	c.ran = image
	c.env = env
	if c.err != nil {
		return domain.Container{}, c.err
	}
	return domain.Container{ID: "c1", Image: image, HostPort: hostPort, State: "running"}, nil
}

func (c *fakeContainers) StopContainer(_ context.Context, id string) error {
	c.stopped = id
	return nil
}

func (c *fakeContainers) GetContainerLogs(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("listening on 0.0.0.0:8000\n")), nil
}

type fakeHook struct {
	calls  int
	status int
	err    error
}

func (h *fakeHook) Trigger(_ context.Context) (int, error) {
	h.calls++
	return h.status, h.err
}
