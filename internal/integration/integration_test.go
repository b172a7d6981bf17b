package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"hourly-quiz-service/internal/app"
	"hourly-quiz-service/internal/catalog"
	"hourly-quiz-service/internal/domain"
	"hourly-quiz-service/internal/epoch"
	pgstore "hourly-quiz-service/internal/infra/postgres"
	pgmigrations "hourly-quiz-service/internal/infra/postgres/migrations"
	infraredis "hourly-quiz-service/internal/infra/redis"
)

var hourOne = time.Date(2026, 10, 18, 13, 5, 0, 0, time.UTC)

func TestEpochFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	questions := catalog.Default()
	inserted, err := pgstore.SeedIfEmpty(ctx, pool, questions)
	if err != nil || inserted != len(questions) {
		t.Fatalf("seed: inserted=%d err=%v", inserted, err)
	}
	// second seed is a no-op
	if inserted, err := pgstore.SeedIfEmpty(ctx, pool, questions); err != nil || inserted != 0 {
		t.Fatalf("reseed: inserted=%d err=%v", inserted, err)
	}
	key := make(map[int64]int, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectOption
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	bank := infraredis.NewQuestionBank(redisClient, pgstore.NewQuestionLoader(pool), 5*time.Minute)
	store := pgstore.NewSessionStore(pool)
	service := app.NewQuizService(store, bank, app.WithClock(epoch.NewClock(time.Hour)))

	// a rejected first request leaves no row behind
	_, err = service.Submit(ctx, "ghost", hourOne, []domain.Answer{{QuestionID: 1, SelectedOption: 0}})
	if !errors.Is(err, domain.ErrNoActiveAssignment) {
		t.Fatalf("expected ErrNoActiveAssignment, got %v", err)
	}
	if n := countSessions(t, ctx, pool, "ghost"); n != 0 {
		t.Fatalf("expected no session row for ghost, got %d", n)
	}

	first, err := service.GetAssignment(ctx, "alice", hourOne)
	if err != nil {
		t.Fatalf("assignment: %v", err)
	}
	if len(first.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(first.Questions))
	}
	again, err := service.GetAssignment(ctx, "alice", hourOne.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("re-serve: %v", err)
	}
	for i := range first.Questions {
		if first.Questions[i].ID != again.Questions[i].ID {
			t.Fatalf("assignment changed within the epoch: %v vs %v", first.Questions, again.Questions)
		}
	}

	answers := make([]domain.Answer, len(first.Questions))
	for i, q := range first.Questions {
		selected := key[q.ID]
		if i >= 3 {
			selected = (selected + 1) % len(q.Options)
		}
		answers[i] = domain.Answer{QuestionID: q.ID, SelectedOption: selected}
	}

	// concurrent replays of the same submission score once
	var wg sync.WaitGroup
	deltas := make(chan int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := service.Submit(ctx, "alice", hourOne.Add(time.Minute), answers)
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			deltas <- res.ScoreDelta
		}()
	}
	wg.Wait()
	close(deltas)
	total := 0
	for d := range deltas {
		total += d
	}
	if total != 3 {
		t.Fatalf("expected 3 points across replays, got %d", total)
	}

	// an unassigned id rolls back the whole submission
	assigned := make(map[int64]bool, len(first.Questions))
	for _, q := range first.Questions {
		assigned[q.ID] = true
	}
	var outside int64
	for _, q := range questions {
		if !assigned[q.ID] {
			outside = q.ID
			break
		}
	}
	_, err = service.Submit(ctx, "alice", hourOne.Add(2*time.Minute), []domain.Answer{
		{QuestionID: first.Questions[0].ID, SelectedOption: key[first.Questions[0].ID]},
		{QuestionID: outside, SelectedOption: key[outside]},
	})
	if !errors.Is(err, domain.ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
	stored, ok, err := store.Get(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("get alice: ok=%v err=%v", ok, err)
	}
	if stored.CumulativeScore != 3 || len(stored.AnsweredQuestionIDs) != 5 {
		t.Fatalf("rejected submission changed the session: %+v", stored)
	}

	next, err := service.GetAssignment(ctx, "alice", hourOne.Add(time.Hour))
	if err != nil {
		t.Fatalf("next epoch: %v", err)
	}
	if next.Epoch <= first.Epoch || len(next.Answered) != 0 {
		t.Fatalf("expected fresh assignment, got %+v", next)
	}

	if _, err := service.SetDisplayName(ctx, "alice", "Alice"); err != nil {
		t.Fatalf("display name: %v", err)
	}
	if _, err := service.SetDisplayName(ctx, "bob", "Bob"); err != nil {
		t.Fatalf("display name: %v", err)
	}
	lb, err := service.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].DisplayName != "Alice" || lb.Entries[0].Score != 3 || lb.Entries[1].Score != 0 {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func countSessions(t *testing.T, ctx context.Context, pool *pgxpool.Pool, sessionID string) int {
	t.Helper()
	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM quiz_sessions WHERE session_id = $1`, sessionID).Scan(&n); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	return n
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
