package web

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/client"
	"github.com/relabs-tech/promptlib/core/directory"
)

const (
	memberToken = "member-token"
	adminToken  = "admin-token"
)

type testEnv struct {
	web     *Web
	store   *directory.MemoryStore
	service *directory.Service
	anon    client.Client
	member  client.Client
	admin   client.Client
}

func newTestEnv(t *testing.T, configure ...func(*Builder)) *testEnv {
	ctx := context.Background()
	store := directory.NewMemoryStore()
	require.NoError(t, store.EnsureCategories(ctx, directory.DefaultCategories))
	now := time.Now().UTC()
	require.NoError(t, store.UpsertUser(ctx, &directory.User{
		ID: uuid.New(), Identity: "admin-1", Email: "admin@example.com", Role: access.RoleAdmin, CreatedAt: now, UpdatedAt: now,
	}))
	service := directory.NewService(store, nil)

	backdoor := access.NewBackdoorMiddelware(&access.BackdoorMiddlewareBuilder{
		Backdoors: map[string]access.Authorization{
			memberToken: {
				Identity:   "member-1",
				Roles:      []string{access.RoleUser},
				Properties: map[string]string{"name": "Ruth", "email": "ruth@example.com"},
			},
			adminToken: {Identity: "admin-1", Roles: []string{access.RoleAdmin}},
		},
	})
	builder := &Builder{
		Service:        service,
		Router:         mux.NewRouter(),
		SiteURL:        "https://promptlib.example.org/",
		Authentication: []mux.MiddlewareFunc{backdoor},
	}
	for _, c := range configure {
		c(builder)
	}
	web := New(builder)
	anon := client.NewWithHandler(web.Handler())
	return &testEnv{
		web:     web,
		store:   store,
		service: service,
		anon:    anon,
		member:  anon.WithToken(memberToken),
		admin:   anon.WithToken(adminToken),
	}
}

func (e *testEnv) addPrompt(t *testing.T, p directory.Prompt) directory.Prompt {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = directory.StatusApproved
	}
	if p.Category == "" {
		p.Category = "worship"
	}
	if p.Title == "" {
		p.Title = "Prompt " + p.ID.String()[:8]
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Add(-time.Hour)
	}
	if p.AuthorID == "" {
		p.AuthorID = "member-1"
		p.AuthorName = "Ruth"
	}
	p.UpdatedAt = p.CreatedAt
	require.NoError(t, e.store.CreatePrompt(context.Background(), &p))
	return p
}
