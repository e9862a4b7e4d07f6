// Package app assembles the prompt library from its environment configuration.
// It is shared by the http server and the lambda entrypoint.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/relabs-tech/promptlib/core/access"
	"github.com/relabs-tech/promptlib/core/browse"
	"github.com/relabs-tech/promptlib/core/csql"
	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/logger"
	"github.com/relabs-tech/promptlib/core/notify"
	"github.com/relabs-tech/promptlib/core/registry"
	"github.com/relabs-tech/promptlib/core/web"

	_ "github.com/lib/pq"
)

// Service holds the configuration for the prompt library
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Postgres            string `env:"POSTGRES" description:"the connection string for the Postgres DB without password, empty for an in-memory store"`
	PostgresPassword    string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	Schema              string `env:"SCHEMA,default=promptlib" description:"the database schema"`
	Port                int    `env:"PORT,default=3000" description:"the port the http server listens on"`
	PublicSiteURL       string `env:"PUBLIC_SITE_URL,optional" description:"the public url of the site, used for canonical links and the sitemap"`
	LogLevel            string `env:"LOG_LEVEL,optional" description:"the log level: debug, info, warning or error"`
	JwtIssuer           string `env:"JWT_ISSUER,optional" description:"the accepted issuer of identity tokens"`
	JwtCertsURL         string `env:"JWT_CERTS_URL,optional" description:"the download url of the identity provider's certificates"`
	SignInURL           string `env:"SIGN_IN_URL,default=/sign-in" description:"the sign in page of the identity provider"`
	SessionCookie       string `env:"SESSION_COOKIE,default=__session" description:"the cookie carrying the identity token"`
	BackdoorToken       string `env:"BACKDOOR_TOKEN,optional" description:"a bearer token granting the admin role, for development only"`
	SubmitRatePerMinute int    `env:"SUBMIT_RATE_PER_MINUTE,default=5" description:"the number of submissions per minute per visitor"`
	KafkaBrokers        string `env:"KAFKA_BROKERS,optional" description:"comma separated kafka brokers for moderation events"`
	KafkaTopic          string `env:"KAFKA_TOPIC,default=prompt-moderation" description:"the kafka topic for moderation events"`
	SQSQueueURL         string `env:"SQS_QUEUE_URL,optional" description:"the SQS queue for moderation events"`
	AWSRegion           string `env:"AWS_REGION,optional" description:"the AWS region"`
	RedisAddr           string `env:"REDIS_ADDR,optional" description:"the redis server sharing the boot data cache, empty to cache in the database"`
}

// Decode reads the configuration from the environment
func Decode() (*Service, error) {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		return nil, err
	}
	return service, nil
}

// App is the assembled prompt library
type App struct {
	Web     *web.Web
	Service *directory.Service
	handler http.Handler
	closers []func() error
}

// Close releases connections held by the app
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Default().WithError(err).Warningln("close failed")
		}
	}
}

// New assembles the app: store, notifiers, boot cache, authentication and router
func New(ctx context.Context, service *Service) (*App, error) {
	logger.InitLogger(logger.ParseLevel(service.LogLevel))
	rlog := logger.Default()
	a := &App{}

	var (
		store directory.Store
		reg   *registry.Registry
	)
	if len(service.Postgres) == 0 {
		rlog.Warningln("no POSTGRES configured, using the in-memory store")
		store = directory.NewMemoryStore()
	} else {
		db, err := csql.Open(service.Postgres, service.PostgresPassword, service.Schema)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		pg, err := directory.NewPostgresStore(ctx, db)
		if err != nil {
			a.Close()
			return nil, err
		}
		store = pg
		r, err := registry.New(db)
		if err != nil {
			a.Close()
			return nil, err
		}
		reg = &r
	}
	if err := store.EnsureCategories(ctx, directory.DefaultCategories); err != nil {
		a.Close()
		return nil, fmt.Errorf("cannot seed categories: %w", err)
	}

	notifier, err := a.notifier(ctx, service)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = directory.NewService(store, notifier)

	var cache browse.BootCache
	switch {
	case len(service.RedisAddr) > 0:
		rlog.Infoln("boot data cached in redis at", service.RedisAddr)
		client := redis.NewClient(&redis.Options{Addr: service.RedisAddr})
		a.closers = append(a.closers, client.Close)
		cache = browse.NewRedisCache(client, service.Schema+":")
	case reg != nil:
		cache = browse.NewRegistryCache(*reg)
	}
	hydrator := browse.NewHydrator(a.Service, cache)
	a.hydrate(ctx, hydrator)

	authentication := []mux.MiddlewareFunc{}
	if len(service.BackdoorToken) > 0 {
		rlog.Warningln("backdoor token enabled")
		authentication = append(authentication, access.NewBackdoorMiddelware(&access.BackdoorMiddlewareBuilder{
			Backdoors: map[string]access.Authorization{
				service.BackdoorToken: {Identity: "backdoor", Roles: []string{access.RoleAdmin}},
			},
			CookieName: service.SessionCookie,
		}))
	}
	if len(service.JwtCertsURL) > 0 {
		authentication = append(authentication, access.NewJwtMiddelware(&access.JwtMiddlewareBuilder{
			PublicKeyDownloadURL: service.JwtCertsURL,
			Issuer:               service.JwtIssuer,
			Registry:             reg,
			CookieName:           service.SessionCookie,
			Roles:                a.Service,
			OnAuthenticated:      a.Service.SyncUser,
		}))
	}

	a.Web = web.New(&web.Builder{
		Service:             a.Service,
		Router:              mux.NewRouter(),
		Hydrator:            hydrator,
		SiteURL:             service.PublicSiteURL,
		SignInURL:           service.SignInURL,
		SubmitRatePerMinute: service.SubmitRatePerMinute,
		Authentication:      authentication,
	})
	accessLog := logger.Default().Writer()
	a.closers = append(a.closers, accessLog.Close)
	a.handler = handlers.CombinedLoggingHandler(accessLog, a.Web.Handler())
	return a, nil
}

// notifier returns the configured moderation event notifiers. Events are always logged.
func (a *App) notifier(ctx context.Context, service *Service) (notify.Notifier, error) {
	notifiers := notify.Multi{notify.LogNotifier{}}
	if len(service.KafkaBrokers) > 0 {
		k := notify.NewKafkaNotifier(strings.Split(service.KafkaBrokers, ","), service.KafkaTopic)
		a.closers = append(a.closers, k.Close)
		notifiers = append(notifiers, k)
	}
	if len(service.SQSQueueURL) > 0 {
		var opts []func(*config.LoadOptions) error
		if len(service.AWSRegion) > 0 {
			opts = append(opts, config.WithRegion(service.AWSRegion))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("cannot load aws configuration: %w", err)
		}
		notifiers = append(notifiers, notify.NewSQSNotifier(cfg, service.SQSQueueURL))
	}
	return notifiers, nil
}

// hydrate computes the initial boot payload and first directory page. A failure
// leaves the default categories as initial payload.
func (a *App) hydrate(ctx context.Context, hydrator *browse.Hydrator) {
	rlog := logger.Default()
	boot, err := a.Service.BootData(ctx)
	if err != nil {
		rlog.WithError(err).Warningln("no initial boot data, using default categories")
		hydrator.SetInitial(&directory.BootData{Categories: directory.DefaultCategories}, nil)
		return
	}
	page, err := a.Service.ListApproved(ctx, browse.ViewState{Page: 1}.Query())
	if err != nil {
		rlog.WithError(err).Warningln("no initial prompt listing")
		hydrator.SetInitial(boot, nil)
		return
	}
	hydrator.SetInitial(boot, page.Prompts)
}

// Handler returns the http handler with an access log
func (a *App) Handler() http.Handler {
	return a.handler
}
