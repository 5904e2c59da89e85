// Command tierdash is a terminal client for the tier-gated dashboard
// backend: login/signup, profile and dashboard display, tailored content
// probing, and plan management.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/kavia-common/tierdash-client/internal/api"
	"github.com/kavia-common/tierdash-client/internal/config"
	"github.com/kavia-common/tierdash-client/internal/gateway"
	"github.com/kavia-common/tierdash-client/internal/session"
)

const usage = `usage: tierdash [flags] <command> [args]

commands:
  login <email> <password>          authenticate and store the session
  signup <email> <password> [tier]  create an account (tier: free|pro|enterprise)
  logout                            clear the stored session
  whoami                            show the authenticated profile
  dashboard                         show the profile as served by /dashboard/me
  content                           probe the protected tailored-content endpoint
  plan get                          show the current subscription plan
  plan set <tier>                   change the subscription plan
  health                            probe the backend root endpoint

flags:
`

func main() {
	var (
		configFile = flag.String("config", "", "Path to YAML config file")
		envFile    = flag.String("env", "", "Path to .env file to load")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fatalf("load env (%s): %v", *envFile, err)
		}
	} else {
		_ = godotenv.Load() // allow .env for local runs
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fatalf("load config: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	store, gw, cleanup, err := buildSession(cfg, logger)
	if err != nil {
		fatalf("%v", err)
	}
	defer cleanup()

	ctx := context.Background()

	// health needs no session; everything else restores the persisted
	// one first so a stored token is verified before use.
	if args[0] != "health" {
		if err := store.Restore(ctx); err != nil {
			logger.Debug().Err(err).Msg("stored session not restored")
		}
	}

	if err := run(ctx, args, store, gw); err != nil {
		reportFailure(store, err)
		os.Exit(1)
	}
}

func buildSession(cfg *config.Config, logger zerolog.Logger) (*session.Store, *gateway.Client, func(), error) {
	retry := api.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	var breaker *api.CircuitBreakerConfig
	if cfg.BreakerThreshold > 0 {
		cb := api.DefaultCircuitBreakerConfig()
		cb.FailureThreshold = cfg.BreakerThreshold
		breaker = &cb
	}

	apiClient, err := api.New(api.Config{
		BaseURL:           cfg.APIURL,
		Timeout:           cfg.Timeout,
		Logger:            &logger,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Retry:             retry,
		CircuitBreaker:    breaker,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create api client: %w", err)
	}

	storage, cleanup, err := buildStorage(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	gw := gateway.New(apiClient)
	store, err := session.New(session.Config{
		Backend: gw,
		Storage: storage,
		Logger:  &logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("create session store: %w", err)
	}
	return store, gw, cleanup, nil
}

func buildStorage(cfg *config.Config) (session.Storage, func(), error) {
	if cfg.RedisAddr != "" {
		rs, err := session.NewRedisStorage(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect session store (%s): %w", cfg.RedisAddr, err)
		}
		return rs, func() { _ = rs.Close() }, nil
	}

	path, err := cfg.CredentialsPath()
	if err != nil {
		return nil, nil, err
	}
	fs, err := session.NewFileStorage(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open credentials file: %w", err)
	}
	return fs, func() {}, nil
}

func run(ctx context.Context, args []string, store *session.Store, gw *gateway.Client) error {
	switch args[0] {
	case "login":
		if len(args) != 3 {
			return fmt.Errorf("usage: tierdash login <email> <password>")
		}
		if err := store.Login(ctx, args[1], args[2]); err != nil {
			return err
		}
		printUser(store.User())
		return nil

	case "signup":
		if len(args) != 3 && len(args) != 4 {
			return fmt.Errorf("usage: tierdash signup <email> <password> [tier]")
		}
		var tier gateway.Tier
		if len(args) == 4 {
			tier = gateway.Tier(args[3])
			if !tier.Valid() {
				return fmt.Errorf("unknown tier %q (want free, pro or enterprise)", args[3])
			}
		}
		if err := store.Signup(ctx, args[1], args[2], tier); err != nil {
			return err
		}
		printUser(store.User())
		return nil

	case "logout":
		store.Logout()
		fmt.Println("logged out")
		return nil

	case "whoami", "dashboard":
		user, err := store.RefreshProfile(ctx)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("not logged in")
		}
		printUser(user)
		return nil

	case "content":
		content, err := gw.Content(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("tier:    %s\n", content.PackageTier)
		if content.Message != "" {
			fmt.Printf("message: %s\n", content.Message)
		}
		for _, item := range content.Items {
			fmt.Printf("  - %s\n", item)
		}
		return nil

	case "plan":
		return runPlan(ctx, args[1:], store, gw)

	case "health":
		if err := gw.Health(ctx); err != nil {
			return err
		}
		fmt.Println("backend is healthy")
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runPlan(ctx context.Context, args []string, store *session.Store, gw *gateway.Client) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tierdash plan get | plan set <tier>")
	}
	switch args[0] {
	case "get":
		plan, err := gw.GetPlan(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("plan: %s\n", plan.PackageTier)
		return nil
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: tierdash plan set <tier>")
		}
		tier := gateway.Tier(args[1])
		if !tier.Valid() {
			return fmt.Errorf("unknown tier %q (want free, pro or enterprise)", args[1])
		}
		if err := store.UpdatePlan(ctx, tier); err != nil {
			return err
		}
		fmt.Printf("plan updated to %s\n", tier)
		return nil
	default:
		return fmt.Errorf("unknown plan subcommand %q", args[0])
	}
}

func printUser(user *gateway.User) {
	if user == nil {
		return
	}
	fmt.Printf("id:    %d\nemail: %s\ntier:  %s\n", user.ID, user.Email, user.PackageTier)
}

// reportFailure prints the session's normalized view of the failure:
// field errors first, then the top-level message.
func reportFailure(store *session.Store, err error) {
	snap := store.Snapshot()
	for field, msgs := range snap.ValidationErrors {
		for _, msg := range msgs {
			if msg == "" {
				continue
			}
			fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
		}
	}
	msg := snap.Error
	if msg == "" && err != nil {
		msg = err.Error()
	}
	if msg != "" {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "tierdash: "+format+"\n", args...)
	os.Exit(1)
}
