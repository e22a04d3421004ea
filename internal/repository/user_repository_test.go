package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(testDB, zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		// container suites skip themselves; the in-memory store tests still run
		log.Printf("postgres container unavailable, skipping postgres tests: %v", err)
		testDB = nil
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Printf("could not teardown postgres container: %v", err)
		}
	}
	os.Exit(code)
}

// requirePostgres skips the test when no postgres container could be started
func requirePostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres container unavailable")
	}
	return testDB
}

func newTestUser(externalID, email string) *domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.User{
		ID:         uuid.New(),
		ExternalID: externalID,
		Name:       "Test User",
		Email:      email,
		Role:       domain.RoleUser,
		CartItems:  map[string]int{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestProperty_UserRoundTripPreservesProfile(t *testing.T) {
	repo := NewUserRepository(requirePostgres(t))
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("a created user is found by external id with the same profile", prop.ForAll(
		func(name string, avatar string, qty int) bool {
			user := newTestUser("ext_"+uuid.NewString(), uuid.NewString()+"@example.com")
			user.Name = name
			user.AvatarURI = avatar
			user.CartItems = map[string]int{"p1": qty}

			if err := repo.Create(ctx, user); err != nil {
				t.Logf("Failed to create user: %v", err)
				return false
			}

			found, err := repo.FindByExternalID(ctx, user.ExternalID)
			if err != nil {
				t.Logf("Failed to find user: %v", err)
				return false
			}

			return found.ID == user.ID &&
				found.Name == name &&
				found.AvatarURI == avatar &&
				found.Role == domain.RoleUser &&
				!found.IsSeller &&
				found.CartItems["p1"] == qty
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, 99),
	))

	properties.TestingRun(t)
}

func TestUserRepository_DuplicateExternalIDRejected(t *testing.T) {
	repo := NewUserRepository(requirePostgres(t))
	ctx := context.Background()

	externalID := "ext_" + uuid.NewString()
	if err := repo.Create(ctx, newTestUser(externalID, uuid.NewString()+"@example.com")); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	err := repo.Create(ctx, newTestUser(externalID, uuid.NewString()+"@example.com"))
	if !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestUserRepository_EmptyEmailsDoNotCollide(t *testing.T) {
	repo := NewUserRepository(requirePostgres(t))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.Create(ctx, newTestUser("ext_"+uuid.NewString(), "")); err != nil {
			t.Fatalf("Failed to create user without email: %v", err)
		}
	}
}

func TestUserRepository_UpdateAndDelete(t *testing.T) {
	repo := NewUserRepository(requirePostgres(t))
	ctx := context.Background()

	user := newTestUser("ext_"+uuid.NewString(), uuid.NewString()+"@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	user.Name = "Renamed"
	user.CartItems = nil
	if err := repo.Update(ctx, user); err != nil {
		t.Fatalf("Failed to update user: %v", err)
	}

	found, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("Failed to find user: %v", err)
	}
	if found.Name != "Renamed" {
		t.Errorf("expected name Renamed, got %q", found.Name)
	}
	if found.CartItems == nil {
		t.Error("cart items must never be nil")
	}

	if err := repo.DeleteByExternalID(ctx, user.ExternalID); err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}
	if _, err := repo.FindByExternalID(ctx, user.ExternalID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound after delete, got %v", err)
	}
	if err := repo.DeleteByExternalID(ctx, user.ExternalID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func TestUserRepository_SetSellerRole(t *testing.T) {
	repo := NewUserRepository(requirePostgres(t))
	ctx := context.Background()

	user := newTestUser("ext_"+uuid.NewString(), uuid.NewString()+"@example.com")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	if err := repo.SetSellerRole(ctx, user.ExternalID, true); err != nil {
		t.Fatalf("Failed to grant seller: %v", err)
	}
	found, _ := repo.FindByExternalID(ctx, user.ExternalID)
	if !domain.IsSeller(found) || found.Role != domain.RoleSeller {
		t.Errorf("expected seller after grant, got role=%q isSeller=%v", found.Role, found.IsSeller)
	}

	if err := repo.SetSellerRole(ctx, user.ExternalID, false); err != nil {
		t.Fatalf("Failed to revoke seller: %v", err)
	}
	found, _ = repo.FindByExternalID(ctx, user.ExternalID)
	if domain.IsSeller(found) {
		t.Error("expected non-seller after revoke")
	}

	if err := repo.SetSellerRole(ctx, "ext_missing", true); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	checkProfileUpdate(t, NewUserRepository(requirePostgres(t)))
}
