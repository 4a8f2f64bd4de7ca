//go:build integration

package main_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/AzizTN01/autorent-back/internal/application"
	"github.com/AzizTN01/autorent-back/internal/carlock"
	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	rentalEvents "github.com/AzizTN01/autorent-back/internal/events"
	"github.com/AzizTN01/autorent-back/internal/repository"
	mongorepo "github.com/AzizTN01/autorent-back/internal/repository/mongo"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// raceBookings fires n identical bookings, alternating between stacks, and
// counts the outcomes.
func raceBookings(t *testing.T, stacks []*rentalStack, req application.CreateRentalRequest, n int) (successes, conflicts int) {
	t.Helper()
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		others []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		svc := stacks[i%len(stacks)].Service
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.CreateRental(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrBookingConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()
	require.Empty(t, others)
	return successes, conflicts
}

// TestPostgres_ExclusionConstraintBacksUpLedger writes straight to the
// repository, past any lock, and expects the database to refuse overlaps.
func TestPostgres_ExclusionConstraintBacksUpLedger(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	rentals := repository.NewGormRentalRepository(db)
	users := repository.NewGormUserRepository(db)
	cars := repository.NewGormCarRepository(db)
	userID, carID := seedUserAndCar(t, users, cars)

	period := func(from, to int) rental.Period {
		p, err := rental.NewPeriod(
			time.Date(2025, 7, from, 10, 0, 0, 0, time.UTC),
			time.Date(2025, 7, to, 10, 0, 0, 0, time.UTC),
		)
		require.NoError(t, err)
		return p
	}
	newRental := func(p rental.Period) *rental.Rental {
		r, err := rental.NewRental(userID, carID, p, 100, "A", "B")
		require.NoError(t, err)
		return r
	}

	first := newRental(period(1, 5))
	require.NoError(t, rentals.Save(ctx, first))

	err := rentals.Save(ctx, newRental(period(4, 8)))
	require.ErrorIs(t, err, domain.ErrBookingConflict)
	assert.Equal(t, []uuid.UUID{first.ID()}, rental.ConflictingIDs(err))

	require.NoError(t, rentals.Save(ctx, newRental(period(5, 8))), "adjacent periods must not conflict")

	require.NoError(t, first.Cancel("test"))
	first.IncrementVersion()
	require.NoError(t, rentals.Update(ctx, first))
	require.NoError(t, rentals.Save(ctx, newRental(period(1, 5))), "cancelled rental must release its period")

	stale, err := rentals.FindByID(ctx, first.ID())
	require.NoError(t, err)
	stale.IncrementVersion()
	stale.IncrementVersion()
	assert.ErrorIs(t, rentals.Update(ctx, stale), domain.ErrConflict)
}

// TestPostgres_TotalCostRoundTrip stores amounts with more than two decimals
// and beyond twelve digits and reads them back unchanged.
func TestPostgres_TotalCostRoundTrip(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	rentals := repository.NewGormRentalRepository(db)
	users := repository.NewGormUserRepository(db)
	cars := repository.NewGormCarRepository(db)
	userID, carID := seedUserAndCar(t, users, cars)

	for i, cost := range []float64{0, 10.005, 0.1 + 0.2, 1e12, 123456789012.345} {
		p, err := rental.NewPeriod(
			time.Date(2025, 12, i+1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 12, i+2, 0, 0, 0, 0, time.UTC),
		)
		require.NoError(t, err)
		r, err := rental.NewRental(userID, carID, p, cost, "A", "B")
		require.NoError(t, err)
		require.NoError(t, rentals.Save(ctx, r))

		got, err := rentals.FindByID(ctx, r.ID())
		require.NoError(t, err)
		assert.Equal(t, cost, got.TotalCost())
		assert.True(t, r.CreatedAt().Equal(got.CreatedAt()), "created at must round-trip")
	}
}

// TestPostgres_ConcurrentProcesses simulates two service instances with
// independent in-process locks. Only the database serialises them.
func TestPostgres_ConcurrentProcesses(t *testing.T) {
	db := startPostgres(t)

	rentals := repository.NewGormRentalRepository(db)
	users := repository.NewGormUserRepository(db)
	cars := repository.NewGormCarRepository(db)
	userID, carID := seedUserAndCar(t, users, cars)

	stacks := []*rentalStack{
		newRentalStack(rentals, users, cars, carlock.NewLocal(), nil),
		newRentalStack(rentals, users, cars, carlock.NewLocal(), nil),
	}
	successes, conflicts := raceBookings(t, stacks, createRequest(userID, carID, "2025-08-01", "2025-08-05"), 20)
	assert.Equal(t, 1, successes)
	assert.Equal(t, 19, conflicts)

	u, err := users.FindByID(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, u.Rentals(), 1)
}

// TestMongo_RedisLockAcrossProcesses runs two instances over Mongo, which
// has no overlap constraint, so the shared Redis lock is the only guard.
func TestMongo_RedisLockAcrossProcesses(t *testing.T) {
	db := startMongo(t)
	addr := startRedis(t)
	ctx := context.Background()

	rentals := mongorepo.NewRentalRepository(db)
	require.NoError(t, rentals.EnsureIndexes(ctx))
	users := mongorepo.NewUserRepository(db)
	cars := mongorepo.NewCarRepository(db)
	userID, carID := seedUserAndCar(t, users, cars)

	stacks := []*rentalStack{
		newRentalStack(rentals, users, cars, carlock.NewRedis(newRedisClient(t, addr), "test:lock:", 30*time.Second), nil),
		newRentalStack(rentals, users, cars, carlock.NewRedis(newRedisClient(t, addr), "test:lock:", 30*time.Second), nil),
	}
	successes, conflicts := raceBookings(t, stacks, createRequest(userID, carID, "2025-09-01", "2025-09-03"), 16)
	assert.Equal(t, 1, successes)
	assert.Equal(t, 15, conflicts)

	res, err := stacks[0].Service.CreateRental(ctx, createRequest(userID, carID, "2025-09-03", "2025-09-04"))
	require.NoError(t, err)
	assert.Nil(t, res.Warning)

	// Linking twice keeps one entry.
	_, err = stacks[1].Service.LinkRental(ctx, res.Rental.ID)
	require.NoError(t, err)
	u, err := users.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, u.Rentals(), 2)
}

// TestMongo_DocumentLayout checks the stored field names the indexes use.
func TestMongo_DocumentLayout(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()

	rentals := mongorepo.NewRentalRepository(db)
	require.NoError(t, rentals.EnsureIndexes(ctx))
	users := mongorepo.NewUserRepository(db)
	cars := mongorepo.NewCarRepository(db)
	userID, carID := seedUserAndCar(t, users, cars)

	stack := newRentalStack(rentals, users, cars, carlock.NewLocal(), nil)
	res, err := stack.Service.CreateRental(ctx, createRequest(userID, carID, "2025-09-10", "2025-09-12"))
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, db.Collection(mongorepo.RentalsCollection).
		FindOne(ctx, bson.M{"_id": res.Rental.ID.String()}).Decode(&doc))
	for _, key := range []string{"userRef", "carRef", "startDate", "endDate", "totalCost", "status", "paymentStatus"} {
		assert.Contains(t, doc, key)
	}
	assert.NotContains(t, doc, "rentalStartDate")
	assert.NotContains(t, doc, "rentalEndDate")

	got, err := stack.Service.GetRental(ctx, res.Rental.ID)
	require.NoError(t, err)
	assert.True(t, res.Rental.CreatedAt.Equal(got.CreatedAt), "created at must round-trip")
	assert.True(t, res.Rental.RentalStartDate.Equal(got.RentalStartDate))

	cur, err := db.Collection(mongorepo.RentalsCollection).Indexes().List(ctx)
	require.NoError(t, err)
	var indexes []bson.M
	require.NoError(t, cur.All(ctx, &indexes))
	keys := map[string]bson.M{}
	for _, idx := range indexes {
		name, _ := idx["name"].(string)
		key, _ := idx["key"].(bson.M)
		keys[name] = key
	}
	assert.Contains(t, keys["car_start"], "startDate")
	assert.Contains(t, keys["status_start"], "startDate")
}

// TestMongo_LockDocuments uses the Mongo lock collection instead of Redis.
func TestMongo_LockDocuments(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()

	rentals := mongorepo.NewRentalRepository(db)
	users := mongorepo.NewUserRepository(db)
	cars := mongorepo.NewCarRepository(db)
	userID, carID := seedUserAndCar(t, users, cars)

	lockA := carlock.NewMongo(db.Collection(mongorepo.LocksCollection), 30*time.Second)
	require.NoError(t, lockA.EnsureIndexes(ctx))
	lockB := carlock.NewMongo(db.Collection(mongorepo.LocksCollection), 30*time.Second)

	stacks := []*rentalStack{
		newRentalStack(rentals, users, cars, lockA, nil),
		newRentalStack(rentals, users, cars, lockB, nil),
	}
	successes, conflicts := raceBookings(t, stacks, createRequest(userID, carID, "2025-10-01", "2025-10-02"), 10)
	assert.Equal(t, 1, successes)
	assert.Equal(t, 9, conflicts)

	count, err := db.Collection(mongorepo.LocksCollection).CountDocuments(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Zero(t, count, "all locks must be released")
}

// TestPaymentCaptured_MarksRentalPaid verifies that a payment.captured event
// on payment.events moves the rental to Paid, and that rental events are
// published on rental.events.
func TestPaymentCaptured_MarksRentalPaid(t *testing.T) {
	db := startPostgres(t)
	brokers := startKafka(t, application.TopicRentalEvents, rentalEvents.TopicPaymentEvents)
	ctx := context.Background()
	log := zap.NewNop()

	rentals := repository.NewGormRentalRepository(db)
	users := repository.NewGormUserRepository(db)
	cars := repository.NewGormCarRepository(db)
	userID, carID := seedUserAndCar(t, users, cars)

	producer := newProducer(brokers)
	defer func() { _ = producer.Close() }()
	stack := newRentalStack(rentals, users, cars, carlock.NewLocal(), producer)

	res, err := stack.Service.CreateRental(ctx, createRequest(userID, carID, "2025-11-01", "2025-11-04"))
	require.NoError(t, err)

	created := consumeOneEvent(t, brokers, application.TopicRentalEvents, application.RentalCreated, 15*time.Second)
	var createdEvt application.RentalCreatedEvent
	require.NoError(t, created.ParseData(&createdEvt))
	assert.Equal(t, res.Rental.ID, createdEvt.RentalID)
	assert.True(t, createdEvt.Linked)

	consumer := rentalEvents.NewPaymentEventConsumer(brokers, "test-rental-"+uuid.NewString()[:8], stack.Service, log)
	defer func() { _ = consumer.Close() }()
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = consumer.Start(cctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	publishTestEvent(t, brokers, rentalEvents.TopicPaymentEvents, res.Rental.ID.String(),
		"service-payment", rentalEvents.PaymentCaptured,
		rentalEvents.PaymentEvent{PaymentID: uuid.New(), RentalID: res.Rental.ID, Amount: 300})

	require.Eventually(t, func() bool {
		got, err := stack.Service.GetRental(ctx, res.Rental.ID)
		return err == nil && got.PaymentStatus == string(rental.PaymentPaid)
	}, 15*time.Second, 200*time.Millisecond, "rental was not marked paid")

	changed := consumeOneEvent(t, brokers, application.TopicRentalEvents, application.RentalPaymentChanged, 15*time.Second)
	var changedEvt application.RentalPaymentChangedEvent
	require.NoError(t, changed.ParseData(&changedEvt))
	assert.Equal(t, "Paid", changedEvt.PaymentStatus)
}
