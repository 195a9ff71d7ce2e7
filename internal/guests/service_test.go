package guests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/commercecore/storefront-backend/internal/cart"
	"github.com/commercecore/storefront-backend/internal/users"
	"github.com/commercecore/storefront-backend/pkg/config"
	"github.com/commercecore/storefront-backend/pkg/db/models"
	"github.com/commercecore/storefront-backend/pkg/enums"
	pkgerrors "github.com/commercecore/storefront-backend/pkg/errors"
	"github.com/commercecore/storefront-backend/pkg/logger"
	"github.com/commercecore/storefront-backend/pkg/outbox"
)

var testPasswordCfg = config.PasswordConfig{
	ArgonMemoryKB:    1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

type guestFixture struct {
	svc   Service
	repo  *fakeGuestRepo
	users *fakeUserRepo
	carts *fakeCartService
	db    *gorm.DB
}

func newGuestFixture(t *testing.T) *guestFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	if err := db.Exec(schema).Error; err != nil {
		t.Fatalf("create outbox table: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test"})
	fixture := &guestFixture{
		repo:  newFakeGuestRepo(),
		users: newFakeUserRepo(),
		carts: &fakeCartService{},
		db:    db,
	}

	svc, err := NewService(ServiceParams{
		Repo:     fixture.repo,
		Users:    fixture.users,
		Carts:    fixture.carts,
		Tx:       sqliteTxRunner{db: db},
		Outbox:   outbox.NewService(outbox.NewRepository(db), logg),
		Logger:   logg,
		Password: testPasswordCfg,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func validConvertInput() ConvertGuestInput {
	return ConvertGuestInput{
		Username:  "shopper",
		Email:     "shopper@example.com",
		Password:  "correct horse battery",
		FirstName: "Sam",
		LastName:  "Shopper",
	}
}

func TestCreateGuestRequiresSession(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	_, err := f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "   "})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestCreateGuestRejectsDuplicateSession(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	email := "First@Example.COM"
	first, err := f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "sess-1", Email: &email})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Email == nil || *first.Email != "first@example.com" {
		t.Fatalf("email should be normalized, got %+v", first.Email)
	}

	_, err = f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "sess-1"})
	if err == nil {
		t.Fatal("expected conflict for a second registration of the same session")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
	if len(f.repo.guests) != 1 {
		t.Fatalf("expected a single guest row, got %d", len(f.repo.guests))
	}
}

func TestCreateGuestRejectsRegisteredEmail(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	f.users.emails["used@example.com"] = true
	email := "used@example.com"
	_, err := f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "s1", Email: &email})
	if err == nil {
		t.Fatal("expected conflict for a registered email")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
	if len(f.repo.guests) != 0 {
		t.Fatal("no guest row may be created on conflict")
	}
}

func TestCreateGuestValidatesCartBinding(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	sessionCart := &models.Cart{ID: uuid.New(), Status: enums.CartStatusActive}
	f.carts.active = sessionCart

	bound, err := f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "sess-cart", CartID: &sessionCart.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bound.CartID == nil || *bound.CartID != sessionCart.ID {
		t.Fatalf("guest should carry the bound cart, got %+v", bound.CartID)
	}

	foreign := uuid.New()
	_, err = f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "sess-other", CartID: &foreign})
	if err == nil {
		t.Fatal("expected ownership error for a foreign cart")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeOwnership {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestGetBySessionNotFound(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	_, err := f.svc.GetBySession(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestConvertToUserSuccess(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	guest, err := f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "sess-convert"})
	if err != nil {
		t.Fatalf("create guest failed: %v", err)
	}
	f.carts.migrated = &models.Cart{ID: uuid.New(), Status: enums.CartStatusActive}

	result, err := f.svc.ConvertToUser(context.Background(), "sess-convert", validConvertInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.User == nil || result.User.Email != "shopper@example.com" {
		t.Fatalf("unexpected user: %+v", result.User)
	}
	if result.User.PasswordHash == "" || result.User.PasswordHash == "correct horse battery" {
		t.Fatal("password must be stored hashed")
	}
	if result.Guest.Status != enums.GuestStatusConverted {
		t.Fatalf("guest should be converted, got %s", result.Guest.Status)
	}
	if result.Guest.ConvertedToUserID == nil || *result.Guest.ConvertedToUserID != result.User.ID {
		t.Fatalf("guest should point at the new user, got %+v", result.Guest.ConvertedToUserID)
	}
	if result.Cart == nil || result.Cart.ID != f.carts.migrated.ID {
		t.Fatalf("migrated cart should be returned, got %+v", result.Cart)
	}
	if f.carts.migrateCalls != 1 {
		t.Fatalf("cart migration should run exactly once, ran %d times", f.carts.migrateCalls)
	}
	if f.carts.lastSession != guest.SessionID || f.carts.lastUserID != result.User.ID {
		t.Fatal("cart migration received wrong identity pair")
	}

	var count int64
	if err := f.db.Table("outbox_events").Where("event_type = ?", enums.EventGuestConverted).Count(&count).Error; err != nil {
		t.Fatalf("count outbox rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one guest_converted event, got %d", count)
	}
}

func TestConvertToUserEmailConflict(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	if _, err := f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "sess-2"}); err != nil {
		t.Fatalf("create guest failed: %v", err)
	}
	f.users.emails["shopper@example.com"] = true

	_, err := f.svc.ConvertToUser(context.Background(), "sess-2", validConvertInput())
	if err == nil {
		t.Fatal("expected conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestConvertToUserUsernameConflict(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	if _, err := f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "sess-3"}); err != nil {
		t.Fatalf("create guest failed: %v", err)
	}
	f.users.usernames["shopper"] = true

	_, err := f.svc.ConvertToUser(context.Background(), "sess-3", validConvertInput())
	if err == nil {
		t.Fatal("expected conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestConvertToUserAlreadyConverted(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	if _, err := f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "sess-4"}); err != nil {
		t.Fatalf("create guest failed: %v", err)
	}
	if _, err := f.svc.ConvertToUser(context.Background(), "sess-4", validConvertInput()); err != nil {
		t.Fatalf("first conversion failed: %v", err)
	}

	input := validConvertInput()
	input.Username = "shopper2"
	input.Email = "shopper2@example.com"
	_, err := f.svc.ConvertToUser(context.Background(), "sess-4", input)
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestConvertToUserConcurrentFlipConflicts(t *testing.T) {
	t.Parallel()
	f := newGuestFixture(t)

	if _, err := f.svc.CreateGuest(context.Background(), CreateGuestInput{SessionID: "sess-5"}); err != nil {
		t.Fatalf("create guest failed: %v", err)
	}
	// Simulate another request winning the conditional flip.
	f.repo.failNextFlip = true

	_, err := f.svc.ConvertToUser(context.Background(), "sess-5", validConvertInput())
	if err == nil {
		t.Fatal("expected state conflict")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error code: %v", err)
	}
	if f.carts.migrateCalls != 0 {
		t.Fatal("cart migration must not run after a failed conversion")
	}
}

type sqliteTxRunner struct {
	db *gorm.DB
}

func (r sqliteTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fakeGuestRepo struct {
	guests       map[uuid.UUID]*models.Guest
	failNextFlip bool
}

func newFakeGuestRepo() *fakeGuestRepo {
	return &fakeGuestRepo{guests: map[uuid.UUID]*models.Guest{}}
}

func (f *fakeGuestRepo) WithTx(tx *gorm.DB) GuestRepository { return f }

func (f *fakeGuestRepo) Create(ctx context.Context, guest *models.Guest) (*models.Guest, error) {
	clone := *guest
	clone.ID = uuid.New()
	if clone.Status == "" {
		clone.Status = enums.GuestStatusActive
	}
	f.guests[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeGuestRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.Guest, error) {
	for _, guest := range f.guests {
		if guest.SessionID == sessionID {
			clone := *guest
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeGuestRepo) MarkConverted(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	if f.failNextFlip {
		f.failNextFlip = false
		return false, nil
	}
	guest, ok := f.guests[id]
	if !ok || guest.Status != enums.GuestStatusActive {
		return false, nil
	}
	guest.Status = enums.GuestStatusConverted
	guest.ConvertedToUserID = &userID
	guest.ConvertedAt = &at
	return true, nil
}

type fakeUserRepo struct {
	users     map[uuid.UUID]*models.User
	emails    map[string]bool
	usernames map[string]bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:     map[uuid.UUID]*models.User{},
		emails:    map[string]bool{},
		usernames: map[string]bool{},
	}
}

func (f *fakeUserRepo) WithTx(tx *gorm.DB) users.UserRepository { return f }

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	clone := *user
	clone.ID = uuid.New()
	f.users[clone.ID] = &clone
	f.emails[clone.Email] = true
	f.usernames[clone.Username] = true
	out := clone
	return &out, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return f.emails[email], nil
}

func (f *fakeUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return f.usernames[username], nil
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

type fakeCartService struct {
	active       *models.Cart
	migrated     *models.Cart
	migrateCalls int
	lastSession  string
	lastUserID   uuid.UUID
}

func (f *fakeCartService) CreateCart(ctx context.Context, owner cart.Owner) (*models.Cart, error) {
	return nil, nil
}

func (f *fakeCartService) GetCart(ctx context.Context, owner cart.Owner) (*models.Cart, error) {
	if f.active == nil {
		return nil, nil
	}
	clone := *f.active
	return &clone, nil
}

func (f *fakeCartService) AddItem(ctx context.Context, owner cart.Owner, input cart.AddItemInput) (*models.Cart, error) {
	return nil, nil
}

func (f *fakeCartService) UpdateItemQuantity(ctx context.Context, owner cart.Owner, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	return nil, nil
}

func (f *fakeCartService) RemoveItem(ctx context.Context, owner cart.Owner, itemID uuid.UUID) (*models.Cart, error) {
	return nil, nil
}

func (f *fakeCartService) MigrateGuestToUserCart(ctx context.Context, sessionID string, userID uuid.UUID) (*models.Cart, error) {
	f.migrateCalls++
	f.lastSession = sessionID
	f.lastUserID = userID
	return f.migrated, nil
}

func (f *fakeCartService) CleanupExpiredCarts(ctx context.Context) (int, error) {
	return 0, nil
}

func (f *fakeCartService) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	return nil
}
