package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mr1hm/fixr/internal/geo"
	"github.com/mr1hm/fixr/internal/models"
)

const connectTimeout = 15 * time.Second

type reportDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	IssueType        string             `bson:"issueType"`
	Severity         string             `bson:"severity"`
	DescriptionUser  string             `bson:"descriptionUser,omitempty"`
	DescriptionFinal string             `bson:"descriptionFinal,omitempty"`
	Location         models.GeoPoint    `bson:"location"`
	ApproxLocation   bool               `bson:"approxLocation"`
	Photo            models.Photo       `bson:"photo"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

func toDocument(r *models.Report) reportDocument {
	return reportDocument{
		IssueType:        string(r.IssueType),
		Severity:         string(r.Severity),
		DescriptionUser:  r.DescriptionUser,
		DescriptionFinal: r.DescriptionFinal,
		Location:         r.Location,
		ApproxLocation:   r.ApproxLocation,
		Photo:            r.Photo,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (d reportDocument) toModel() models.Report {
	return models.Report{
		ID:               d.ID.Hex(),
		IssueType:        models.IssueType(d.IssueType),
		Severity:         models.Severity(d.Severity),
		DescriptionUser:  d.DescriptionUser,
		DescriptionFinal: d.DescriptionFinal,
		Location:         geo.ToGeoPoint(d.Location.Lng(), d.Location.Lat()),
		ApproxLocation:   d.ApproxLocation,
		Photo:            d.Photo,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

// MongoStore keeps reports in a single collection with a 2dsphere index on location.
type MongoStore struct {
	client *mongo.Client
	col    *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, dbName, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI is not set")
	}

	dctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(dctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(dctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &MongoStore{
		client: client,
		col:    client.Database(dbName).Collection(collection),
	}
	if err := s.ensureIndexes(dctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

func (s *MongoStore) Add(ctx context.Context, r *models.Report) (string, error) {
	doc := toDocument(r)
	doc.ID = primitive.NewObjectID()

	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("error inserting report: %w", err)
	}

	r.ID = doc.ID.Hex()
	return r.ID, nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc reportDocument
	err = s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting report %s: %w", id, err)
	}

	r := doc.toModel()
	return &r, nil
}

func (s *MongoStore) ListReports(ctx context.Context, opts Filter) ([]models.Report, error) {
	cur, err := s.col.Find(ctx, buildMongoFilter(opts), buildFindOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("error listing reports: %w", err)
	}
	defer cur.Close(ctx)

	reports := make([]models.Report, 0)
	for cur.Next(ctx) {
		var doc reportDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding report: %w", err)
		}
		reports = append(reports, doc.toModel())
	}
	return reports, cur.Err()
}

func (s *MongoStore) DeleteSeeded(ctx context.Context, marker string) (int64, error) {
	if marker == "" {
		return 0, errors.New("seed marker is empty")
	}

	res, err := s.col.DeleteMany(ctx, bson.M{
		"descriptionUser": primitive.Regex{Pattern: regexp.QuoteMeta(marker)},
	})
	if err != nil {
		return 0, fmt.Errorf("error deleting seeded reports: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func buildMongoFilter(opts Filter) bson.M {
	filter := bson.M{}

	if opts.Bounds != nil {
		filter["location"] = bson.M{
			"$geoWithin": bson.M{"$box": geo.BoxCorners(*opts.Bounds)},
		}
	}
	if opts.Type != nil {
		filter["issueType"] = string(*opts.Type)
	}
	if opts.Since != nil {
		filter["createdAt"] = bson.M{"$gte": *opts.Since}
	}
	return filter
}

func buildFindOptions(opts Filter) *options.FindOptions {
	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.OmitDescriptions {
		findOpts.SetProjection(bson.M{"descriptionFinal": 0, "descriptionUser": 0})
	}
	return findOpts
}
