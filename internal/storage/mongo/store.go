// Package mongo implements domain.DocumentStore on MongoDB. Identifiers are
// normalized here: an ID that parses as an ObjectID matches both the typed
// _id and its plain string form, so accessors never do dual lookups.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realty_content/internal/domain"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect builds the process-wide client. The driver dials lazily, so an
// unreachable server surfaces on first use rather than here.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(5 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	return New(client, database), nil
}

func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) coll(k domain.Kind) *mongo.Collection { return s.db.Collection(string(k)) }

func (s *Store) Ping(ctx context.Context) error {
	return wrap(s.client.Ping(ctx, nil), "mongo: ping")
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Migrate creates the lookup indexes. Unique constraints stay in the service
// layer because legacy data may already violate them.
func (s *Store) Migrate(ctx context.Context) error {
	for _, k := range domain.ContentKinds {
		if k.Singleton() {
			continue
		}
		_, err := s.coll(k).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: k.LocaleField(), Value: 1}, {Key: "slug", Value: 1}}},
		})
		if err != nil {
			return wrap(err, "mongo: create indexes "+string(k))
		}
	}
	_, err := s.coll(domain.KindBlogs).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "group_id", Value: 1}}})
	if err != nil {
		return wrap(err, "mongo: create group index")
	}
	_, err = s.coll(domain.KindUsers).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}})
	return wrap(err, "mongo: create email index")
}

// ---- reads ----

func (s *Store) FindByID(ctx context.Context, k domain.Kind, id domain.ID) (domain.Document, error) {
	var raw bson.Raw
	err := s.coll(k).FindOne(ctx, idFilter(id)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Document{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Document{}, wrap(err, "mongo: find by id")
	}
	return fromRaw(raw)
}

func (s *Store) Find(ctx context.Context, k domain.Kind, q domain.Query) ([]domain.Document, error) {
	cur, err := s.coll(k).Find(ctx, queryFilter(k, q), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, wrap(err, "mongo: find")
	}
	defer cur.Close(ctx)

	out := []domain.Document{}
	for cur.Next(ctx) {
		d, err := fromRaw(cur.Current)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := cur.Err(); err != nil {
		return nil, wrap(err, "mongo: cursor")
	}
	return preferTagged(k, out), nil
}

// ---- writes ----

func (s *Store) Insert(ctx context.Context, k domain.Kind, fields map[string]any) (domain.ID, error) {
	doc, err := toBSON(fields)
	if err != nil {
		return "", err
	}
	oid := primitive.NewObjectID()
	doc = append(bson.D{{Key: "_id", Value: oid}}, doc...)
	if _, err := s.coll(k).InsertOne(ctx, doc); err != nil {
		return "", wrap(err, "mongo: insert")
	}
	return domain.ID(oid.Hex()), nil
}

func (s *Store) Update(ctx context.Context, k domain.Kind, id domain.ID, fields map[string]any) error {
	set, err := toBSON(fields)
	if err != nil {
		return err
	}
	res, err := s.coll(k).UpdateOne(ctx, idFilter(id), bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return wrap(err, "mongo: update")
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, k domain.Kind, q domain.Query, fields map[string]any) (domain.ID, error) {
	set, err := toBSON(fields)
	if err != nil {
		return "", err
	}
	filter := queryFilter(k, q)
	res, err := s.coll(k).UpdateOne(ctx, filter,
		bson.D{{Key: "$set", Value: set}},
		options.Update().SetUpsert(true))
	if err != nil {
		return "", wrap(err, "mongo: upsert")
	}
	if res.UpsertedID != nil {
		return idFromBSON(res.UpsertedID), nil
	}
	var raw bson.Raw
	if err := s.coll(k).FindOne(ctx, filter).Decode(&raw); err != nil {
		return "", wrap(err, "mongo: upsert reload")
	}
	d, err := fromRaw(raw)
	return d.ID, err
}

func (s *Store) Increment(ctx context.Context, k domain.Kind, id domain.ID, field string, delta int64) error {
	res, err := s.coll(k).UpdateOne(ctx, idFilter(id), bson.D{{Key: "$inc", Value: bson.D{{Key: field, Value: delta}}}})
	if err != nil {
		return wrap(err, "mongo: increment")
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, k domain.Kind, id domain.ID) error {
	res, err := s.coll(k).DeleteOne(ctx, idFilter(id))
	if err != nil {
		return wrap(err, "mongo: delete")
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- conversions ----

// idFilter matches the ObjectID form of id when it has one, and always the
// raw string form.
func idFilter(id domain.ID) bson.M {
	s := string(id)
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, s}}}
	}
	return bson.M{"_id": s}
}

func queryFilter(k domain.Kind, q domain.Query) bson.M {
	f := bson.M{}
	if q.Locale != "" && k.LocaleField() != "" {
		field := k.LocaleField()
		if q.IncludeUntagged {
			f["$or"] = bson.A{
				bson.M{field: q.Locale},
				bson.M{field: bson.M{"$in": bson.A{nil, ""}}},
			}
		} else {
			f[field] = q.Locale
		}
	}
	if q.Slug != "" {
		f["slug"] = q.Slug
	}
	if q.Status != "" {
		f["status"] = q.Status
	}
	if q.GroupID != "" {
		f["group_id"] = q.GroupID
	}
	if q.Email != "" {
		f["email"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(q.Email) + "$", Options: "i"}
	}
	return f
}

// preferTagged moves legacy untagged documents behind tagged ones, keeping
// insertion order otherwise.
func preferTagged(k domain.Kind, docs []domain.Document) []domain.Document {
	if k.LocaleField() == "" {
		return docs
	}
	out := make([]domain.Document, 0, len(docs))
	var legacy []domain.Document
	for _, d := range docs {
		if d.Locale(k) == "" {
			legacy = append(legacy, d)
			continue
		}
		out = append(out, d)
	}
	return append(out, legacy...)
}

// toBSON converts plain JSON-shaped fields into an ordered BSON document.
func toBSON(fields map[string]any) (bson.D, error) {
	clean := domain.NewDocument("", fields).Fields
	b, err := json.Marshal(clean)
	if err != nil {
		return nil, eris.Wrap(err, "mongo: marshal fields")
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(b, false, &d); err != nil {
		return nil, eris.Wrap(err, "mongo: convert fields")
	}
	return d, nil
}

// fromRaw converts a stored BSON document to a domain.Document using
// relaxed extended JSON, which renders plain values as ordinary JSON.
func fromRaw(raw bson.Raw) (domain.Document, error) {
	b, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return domain.Document{}, eris.Wrap(err, "mongo: encode document")
	}
	var d domain.Document
	if err := json.Unmarshal(b, &d); err != nil {
		return domain.Document{}, eris.Wrap(err, "mongo: decode document")
	}
	return d, nil
}

func idFromBSON(v any) domain.ID {
	switch t := v.(type) {
	case primitive.ObjectID:
		return domain.ID(t.Hex())
	case string:
		return domain.ID(t)
	}
	return domain.ID(fmt.Sprint(v))
}

// wrap marks network and server-selection failures as unavailability.
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return eris.Wrap(err, msg)
}
