package main

import (
    "context"
    "errors"
    "fmt"
    "log"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "strings"
    "syscall"
    "time"

    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/joho/godotenv"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "spendlimit/internal/api"
    "spendlimit/internal/limits"
    "spendlimit/internal/lock"
    "spendlimit/internal/store"
)

type config struct {
    DatabaseURL   string
    RedisAddr     string
    RedisPassword string
    RedisDB       int
    AuthToken     string
    Port          string
    LogMode       string
    Providers     []string
    Lock          lock.Options
}

func loadConfig() (config, error) {
    dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
    if dbURL == "" {
        host := getEnv("DB_HOST", "localhost")
        port := getEnv("DB_PORT", "5432")
        user := strings.TrimSpace(os.Getenv("DB_USER"))
        password := strings.TrimSpace(os.Getenv("DB_PASSWORD"))
        name := strings.TrimSpace(os.Getenv("DB_NAME"))
        sslmode := getEnv("DB_SSLMODE", "disable")
        if user == "" || password == "" || name == "" {
            return config{}, errors.New("DATABASE_URL or DB_USER/DB_PASSWORD/DB_NAME are required")
        }
        dbURL = fmt.Sprintf(
            "host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
            host,
            port,
            user,
            password,
            name,
            sslmode,
        )
    }

    authToken := strings.TrimSpace(os.Getenv("AUTH_TOKEN"))
    if authToken == "" {
        return config{}, errors.New("AUTH_TOKEN is required")
    }

    redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
    if err != nil {
        return config{}, fmt.Errorf("REDIS_DB: %w", err)
    }

    lockOpts, err := loadLockOptions()
    if err != nil {
        return config{}, err
    }

    return config{
        DatabaseURL:   dbURL,
        RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
        RedisPassword: os.Getenv("REDIS_PASSWORD"),
        RedisDB:       redisDB,
        AuthToken:     authToken,
        Port:          getEnv("PORT", "8080"),
        LogMode:       getEnv("LOG_MODE", "prod"),
        Providers:     parseCSVEnv("KNOWN_PROVIDERS"),
        Lock:          lockOpts,
    }, nil
}

func loadLockOptions() (lock.Options, error) {
    var opts lock.Options
    var err error
    if v := getEnv("LOCK_TTL", ""); v != "" {
        if opts.TTL, err = time.ParseDuration(v); err != nil {
            return opts, fmt.Errorf("LOCK_TTL: %w", err)
        }
    }
    if v := getEnv("LOCK_RETRY_COUNT", ""); v != "" {
        if opts.RetryCount, err = strconv.Atoi(v); err != nil {
            return opts, fmt.Errorf("LOCK_RETRY_COUNT: %w", err)
        }
    }
    if v := getEnv("LOCK_RETRY_DELAY", ""); v != "" {
        if opts.RetryDelay, err = time.ParseDuration(v); err != nil {
            return opts, fmt.Errorf("LOCK_RETRY_DELAY: %w", err)
        }
    }
    return opts, nil
}

func getEnv(key, fallback string) string {
    if v := strings.TrimSpace(os.Getenv(key)); v != "" {
        return v
    }
    return fallback
}

func parseCSVEnv(key string) []string {
    var out []string
    for _, part := range strings.Split(os.Getenv(key), ",") {
        if p := strings.TrimSpace(part); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func newLogger(mode string) (*zap.Logger, error) {
    if strings.EqualFold(mode, "dev") {
        return zap.NewDevelopment()
    }
    return zap.NewProduction()
}

func main() {
    if err := godotenv.Load(); err != nil {
        log.Println("no .env file found, relying on environment")
    }

    cfg, err := loadConfig()
    if err != nil {
        log.Fatalf("config error: %v", err)
    }

    logger, err := newLogger(cfg.LogMode)
    if err != nil {
        log.Fatalf("logger error: %v", err)
    }
    defer func() {
        _ = logger.Sync()
    }()

    ctx := context.Background()
    pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
    if err != nil {
        logger.Fatal("db error", zap.Error(err))
    }
    defer pool.Close()

    rdb := redis.NewClient(&redis.Options{
        Addr:     cfg.RedisAddr,
        Password: cfg.RedisPassword,
        DB:       cfg.RedisDB,
    })
    defer rdb.Close()

    pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
    err = rdb.Ping(pingCtx).Err()
    cancel()
    if err != nil {
        logger.Fatal("redis error", zap.String("addr", cfg.RedisAddr), zap.Error(err))
    }

    st := store.New(pool)
    locker := lock.New(lock.NewRedisStore(rdb), logger.Named("lock"), cfg.Lock)
    svc := limits.NewService(st, st, locker, logger.Named("limits"), limits.Config{})
    srv := api.NewServer(svc, st, cfg.AuthToken, cfg.Providers, logger.Named("api"))

    httpServer := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           srv.Routes(),
        ReadHeaderTimeout: 5 * time.Second,
    }

    go func() {
        logger.Info("listening", zap.String("addr", httpServer.Addr))
        if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            logger.Fatal("server error", zap.Error(err))
        }
    }()

    quit := make(chan os.Signal, 1)
    signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
    <-quit

    ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = httpServer.Shutdown(ctxShutdown)
}
