package seed

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"liaison/internal/database"
	"liaison/internal/models"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	sqlitedrv "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

type pgEnv struct {
	host string
	port string
	user string
	pass string
}

func readPGEnv() pgEnv {
	return pgEnv{
		host: getEnvOrDefault("DB_HOST", "localhost"),
		port: getEnvOrDefault("DB_PORT", "5432"),
		user: getEnvOrDefault("DB_USER", "user"),
		pass: getEnvOrDefault("DB_PASSWORD", "password"),
	}
}

func maintenanceDSN(cfg pgEnv, dbName string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", cfg.user, cfg.pass, cfg.host, cfg.port, dbName)
}

// createEphemeralDB provisions a throwaway database for one test run, or skips
// when no Postgres is reachable so the suite stays runnable standalone.
func createEphemeralDB(t *testing.T) (pgEnv, string) {
	t.Helper()
	cfg := readPGEnv()
	dbName := fmt.Sprintf("liaison_seed_%d", time.Now().UnixNano())

	sqlDB, err := sql.Open("pgx", maintenanceDSN(cfg, "postgres"))
	if err != nil {
		t.Skipf("maintenance db unavailable: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		t.Skipf("postgres unreachable, skipping seed integration test: %v", err)
	}

	if _, err := sqlDB.ExecContext(context.Background(), `CREATE DATABASE `+dbName); err != nil {
		t.Fatalf("create ephemeral db: %v", err)
	}
	t.Cleanup(func() {
		_, _ = sqlDB.ExecContext(context.Background(), `SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1`, dbName)
		_, _ = sqlDB.ExecContext(context.Background(), `DROP DATABASE IF EXISTS `+dbName)
	})

	return cfg, dbName
}

func TestSeed_AgainstPostgres(t *testing.T) {
	cfg, dbName := createEphemeralDB(t)

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.host, cfg.port, cfg.user, cfg.pass, dbName)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models()...))

	err = Seed(db, SeedOptions{
		NumCoordinators: 2,
		NumClients:      4,
		NumProjects:     3,
		NumMessages:     50,
		MaxDays:         7,
		SkipBcrypt:      true,
	})
	require.NoError(t, err)

	var userCount, projectCount, messageCount int64
	db.Model(&models.User{}).Count(&userCount)
	db.Model(&models.Project{}).Count(&projectCount)
	db.Model(&models.Message{}).Count(&messageCount)

	assert.Equal(t, int64(7), userCount, "admin + coordinators + clients")
	assert.Equal(t, int64(3), projectCount)
	assert.Greater(t, messageCount, int64(0))

	t.Run("Clean rerun truncates first", func(t *testing.T) {
		err := Seed(db, SeedOptions{
			NumCoordinators: 1,
			NumClients:      1,
			NumProjects:     1,
			NumMessages:     5,
			ShouldClean:     true,
			SkipBcrypt:      true,
		})
		require.NoError(t, err)

		db.Model(&models.User{}).Count(&userCount)
		assert.Equal(t, int64(3), userCount)
	})
}

func TestFactory_DryRun(t *testing.T) {
	// DryRun never touches storage, so a nil-backed sqlite handle is enough
	db, err := gorm.Open(sqlitedrv.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	factory := NewFactory(db, SeedOptions{DryRun: true, SkipBcrypt: true})

	user, err := factory.CreateUser(models.RoleClient)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	project, err := factory.CreateProject(user, nil)
	require.NoError(t, err)
	assert.NotZero(t, project.ID)

	msg, err := factory.CreateMessage(user, user, nil)
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
}
