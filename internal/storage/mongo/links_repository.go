package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/tinylink-io/tinylink/internal/infrastructure/db"
	"github.com/tinylink-io/tinylink/internal/processing/links"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LinksRepository is the MongoDB backend. The unique index on code plays
// the role of the relational unique constraint; FindOneAndUpdate gives
// the atomic increment-and-fetch. Links loaded from Mongo carry a zero
// ID since documents are addressed by code alone.
type LinksRepository struct {
	coll *mongo.Collection
}

type linkDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Code          string             `bson:"code"`
	URL           string             `bson:"url"`
	Clicks        int64              `bson:"clicks"`
	LastClickedAt *time.Time         `bson:"lastClickedAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt"`
}

func NewLinksRepository(m *db.Mongo) (*LinksRepository, error) {
	repo := &LinksRepository{coll: m.Collection("links")}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := repo.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_code"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *LinksRepository) FindByCode(ctx context.Context, code string) (*links.Link, error) {
	var doc linkDoc
	err := r.coll.FindOne(ctx, bson.M{"code": code}).Decode(&doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}

	return nil, err
}

func (r *LinksRepository) Insert(ctx context.Context, code, url string) (*links.Link, error) {
	doc := linkDoc{
		Code:      code,
		URL:       url,
		Clicks:    0,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.coll.InsertOne(ctx, doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if mongo.IsDuplicateKeyError(err) {
		return nil, links.ErrCodeExists
	}

	return nil, err
}

func (r *LinksRepository) DeleteByCode(ctx context.Context, code string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"code": code})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *LinksRepository) IncrementClick(ctx context.Context, code string) (*links.Link, error) {
	now := time.Now().UTC()

	update := bson.M{
		"$inc": bson.M{"clicks": 1},
		"$set": bson.M{"lastClickedAt": now},
	}

	var doc linkDoc
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.M{"code": code},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return mapLinkDoc(doc), nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, links.ErrNotFound
	}

	return nil, err
}

func (r *LinksRepository) ListAll(ctx context.Context) ([]*links.Link, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*links.Link
	for cursor.Next(ctx) {
		var doc linkDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, mapLinkDoc(doc))
	}
	return out, cursor.Err()
}

func mapLinkDoc(doc linkDoc) *links.Link {
	out := &links.Link{
		Code:      doc.Code,
		URL:       doc.URL,
		Clicks:    doc.Clicks,
		CreatedAt: doc.CreatedAt,
	}
	if doc.LastClickedAt != nil {
		t := doc.LastClickedAt.UTC()
		out.LastClickedAt = &t
	}
	return out
}
