// Package test holds the integration suite. It starts Postgres in a container
// and runs the prompt library against it.
package test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/browse"
	"github.com/relabs-tech/promptlib/core/client"
	"github.com/relabs-tech/promptlib/core/csql"
	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/registry"
	"github.com/relabs-tech/promptlib/core/web"
)

// the backdoor tokens of the suite
const (
	MemberToken = "member-token"
	AdminToken  = "admin-token"
)

// IntegrationTestSuite runs against a Postgres container. It is skipped unless
// INTEGRATION is set.
type IntegrationTestSuite struct {
	suite.Suite

	postgresContainer testcontainers.Container
	db                *csql.DB
	store             *directory.PostgresStore
	service           *directory.Service
	server            *httptest.Server

	clientNoAuth client.Client
	member       client.Client
	admin        client.Client
}

func (s *IntegrationTestSuite) SetupSuite() {
	if len(os.Getenv("INTEGRATION")) == 0 {
		s.T().Skip("set INTEGRATION to run the integration suite")
	}
	ctx := context.Background()

	postgresUser := "testuser"
	postgresPassword := "testpass"
	postgresDB := "testdb"
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     postgresUser,
				"POSTGRES_PASSWORD": postgresPassword,
				"POSTGRES_DB":       postgresDB,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.postgresContainer = pgC

	host, err := pgC.Host(ctx)
	s.Require().NoError(err)
	port, err := pgC.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	s.db, err = csql.Open(fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port.Port(), postgresUser, postgresDB), postgresPassword, "integration")
	s.Require().NoError(err)
	s.store, err = directory.NewPostgresStore(ctx, s.db)
	s.Require().NoError(err)
	s.Require().NoError(s.store.EnsureCategories(ctx, directory.DefaultCategories))
	reg, err := registry.New(s.db)
	s.Require().NoError(err)

	s.service = directory.NewService(s.store, nil)
	now := time.Now().UTC()
	s.Require().NoError(s.store.UpsertUser(ctx, &directory.User{
		ID: uuid.New(), Identity: "admin-1", Email: "admin@example.com", Role: access.RoleAdmin, CreatedAt: now, UpdatedAt: now,
	}))

	backdoor := access.NewBackdoorMiddelware(&access.BackdoorMiddlewareBuilder{
		Backdoors: map[string]access.Authorization{
			MemberToken: {Identity: "member-1", Roles: []string{access.RoleUser}, Properties: map[string]string{"name": "Ruth"}},
			AdminToken:  {Identity: "admin-1", Roles: []string{access.RoleAdmin}},
		},
	})
	w := web.New(&web.Builder{
		Service:             s.service,
		Router:              mux.NewRouter(),
		Hydrator:            browse.NewHydrator(s.service, browse.NewRegistryCache(reg)),
		SubmitRatePerMinute: 100,
		Authentication:      []mux.MiddlewareFunc{backdoor},
	})
	s.server = httptest.NewServer(w.Handler())

	s.clientNoAuth = client.NewWithURL(s.server.URL)
	s.member = s.clientNoAuth.WithToken(MemberToken)
	s.admin = s.clientNoAuth.WithToken(AdminToken)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	ctx := context.Background()
	if s.server != nil {
		s.server.Close()
	}
	if s.db != nil {
		s.db.ClearSchema()
		s.db.Close()
	}
	if s.postgresContainer != nil {
		s.Require().NoError(s.postgresContainer.Terminate(ctx))
	}
}
