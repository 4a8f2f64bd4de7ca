// Package mongo stores rentals, users and cars in MongoDB. Ids are kept as
// canonical UUID strings.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/AzizTN01/autorent-back/internal/domain/rental"
	"github.com/AzizTN01/autorent-back/pkg/domain"
)

// Collection names.
const (
	RentalsCollection = "rentals"
	UsersCollection   = "users"
	CarsCollection    = "cars"
	LocksCollection   = "car_locks"
)

type rentalDocument struct {
	ID              string     `bson:"_id"`
	UserRef         string     `bson:"userRef"`
	CarRef          string     `bson:"carRef"`
	StartDate       time.Time  `bson:"startDate"`
	EndDate         time.Time  `bson:"endDate"`
	TotalCost       float64    `bson:"totalCost"`
	PickupLocation  string     `bson:"pickupLocation"`
	DropOffLocation string     `bson:"dropOffLocation"`
	Status          string     `bson:"status"`
	PaymentStatus   string     `bson:"paymentStatus"`
	CancelledAt     *time.Time `bson:"cancelledAt,omitempty"`
	CancelReason    string     `bson:"cancelReason,omitempty"`
	Version         int64      `bson:"version"`
	CreatedAt       time.Time  `bson:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt"`
}

// RentalRepository is the MongoDB implementation of rental.RentalRepository.
// Overlap safety relies on the per-car lock held by every writer.
type RentalRepository struct {
	coll *mongo.Collection
}

// NewRentalRepository creates a RentalRepository on db.
func NewRentalRepository(db *mongo.Database) *RentalRepository {
	return &RentalRepository{coll: db.Collection(RentalsCollection)}
}

// EnsureIndexes creates the indexes the queries rely on.
func (r *RentalRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "carRef", Value: 1}, {Key: "startDate", Value: 1}}, Options: options.Index().SetName("car_start")},
		{Keys: bson.D{{Key: "userRef", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_created")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "startDate", Value: 1}}, Options: options.Index().SetName("status_start")},
	})
	if err != nil {
		return fmt.Errorf("failed to create rental indexes: %w", err)
	}
	return nil
}

func (r *RentalRepository) Save(ctx context.Context, rt *rental.Rental) error {
	if _, err := r.coll.InsertOne(ctx, toRentalDocument(rt)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.NewConflictError(fmt.Sprintf("rental %s already exists", rt.ID()))
		}
		return fmt.Errorf("failed to save rental: %w", err)
	}
	return nil
}

func (r *RentalRepository) FindByID(ctx context.Context, id uuid.UUID) (*rental.Rental, error) {
	var doc rentalDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.NewNotFoundError("Rental", id.String())
		}
		return nil, fmt.Errorf("failed to find rental by ID: %w", err)
	}
	return toDomainRental(&doc)
}

func (r *RentalRepository) FindByCarAndRange(ctx context.Context, carID uuid.UUID, p rental.Period, statuses ...rental.RentalStatus) ([]*rental.Rental, error) {
	filter := bson.M{
		"carRef":    carID.String(),
		"startDate": bson.M{"$lt": p.End},
		"endDate":   bson.M{"$gt": p.Start},
	}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statusStrings(statuses)}
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}}))
}

func (r *RentalRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*rental.Rental, int64, error) {
	return r.page(ctx, bson.M{"userRef": userID.String()}, page, limit)
}

func (r *RentalRepository) FindDue(ctx context.Context, f rental.DueFilter) ([]*rental.Rental, error) {
	filter := bson.M{"status": string(f.Status)}
	if f.StartsBefore != nil {
		filter["startDate"] = bson.M{"$lt": *f.StartsBefore}
	}
	if f.EndsBefore != nil {
		filter["endDate"] = bson.M{"$lt": *f.EndsBefore}
	}
	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return r.find(ctx, filter, opts)
}

func (r *RentalRepository) ListAll(ctx context.Context, page, limit int) ([]*rental.Rental, int64, error) {
	return r.page(ctx, bson.M{}, page, limit)
}

func (r *RentalRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode status counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Update replaces the mutable fields when the stored version is the one
// the caller read.
func (r *RentalRepository) Update(ctx context.Context, rt *rental.Rental) error {
	doc := toRentalDocument(rt)
	set := bson.M{
		"startDate":     doc.StartDate,
		"endDate":       doc.EndDate,
		"status":        doc.Status,
		"paymentStatus": doc.PaymentStatus,
		"cancelReason":  doc.CancelReason,
		"version":       doc.Version,
		"updatedAt":     doc.UpdatedAt,
	}
	if doc.CancelledAt != nil {
		set["cancelledAt"] = *doc.CancelledAt
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": doc.ID, "version": rt.Version() - 1},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to update rental: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, rt.ID()); err != nil {
			return err
		}
		return domain.NewConflictError("rental was modified by another transaction")
	}
	return nil
}

func (r *RentalRepository) page(ctx context.Context, filter bson.M, page, limit int) ([]*rental.Rental, int64, error) {
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rentals: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(domain.Offset(page, limit))).
		SetLimit(int64(limit))
	rentals, err := r.find(ctx, filter, opts)
	return rentals, total, err
}

func (r *RentalRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*rental.Rental, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	defer cur.Close(ctx)

	var docs []rentalDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode rentals: %w", err)
	}

	rentals := make([]*rental.Rental, len(docs))
	for i := range docs {
		rt, err := toDomainRental(&docs[i])
		if err != nil {
			return nil, err
		}
		rentals[i] = rt
	}
	return rentals, nil
}

func statusStrings(statuses []rental.RentalStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func toRentalDocument(rt *rental.Rental) rentalDocument {
	return rentalDocument{
		ID:              rt.ID().String(),
		UserRef:         rt.UserID().String(),
		CarRef:          rt.CarID().String(),
		StartDate:       rt.StartDate(),
		EndDate:         rt.EndDate(),
		TotalCost:       rt.TotalCost(),
		PickupLocation:  rt.PickupLocation(),
		DropOffLocation: rt.DropOffLocation(),
		Status:          string(rt.Status()),
		PaymentStatus:   string(rt.PaymentStatus()),
		CancelledAt:     rt.CancelledAt(),
		CancelReason:    rt.CancelReason(),
		Version:         rt.Version(),
		CreatedAt:       rt.CreatedAt(),
		UpdatedAt:       rt.UpdatedAt(),
	}
}

func toDomainRental(d *rentalDocument) (*rental.Rental, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt rental id %q: %w", d.ID, err)
	}
	userID, err := uuid.Parse(d.UserRef)
	if err != nil {
		return nil, fmt.Errorf("corrupt user ref on rental %s: %w", d.ID, err)
	}
	carID, err := uuid.Parse(d.CarRef)
	if err != nil {
		return nil, fmt.Errorf("corrupt car ref on rental %s: %w", d.ID, err)
	}
	status, err := rental.ParseRentalStatus(d.Status)
	if err != nil {
		return nil, err
	}
	paymentStatus, err := rental.ParsePaymentStatus(d.PaymentStatus)
	if err != nil {
		return nil, err
	}

	var cancelledAt *time.Time
	if d.CancelledAt != nil {
		t := d.CancelledAt.UTC()
		cancelledAt = &t
	}

	return rental.ReconstructRental(
		id,
		userID,
		carID,
		rental.Period{Start: d.StartDate.UTC(), End: d.EndDate.UTC()},
		d.TotalCost,
		d.PickupLocation,
		d.DropOffLocation,
		status,
		paymentStatus,
		cancelledAt,
		d.CancelReason,
		d.Version,
		d.CreatedAt.UTC(),
		d.UpdatedAt.UTC(),
	), nil
}
