package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/database"
	"storefront/internal/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDocument struct {
	ID             string    `bson:"_id"`
	OwnerID        string    `bson:"ownerId"`
	Title          string    `bson:"title"`
	Description    string    `bson:"description"`
	Category       string    `bson:"category"`
	Price          float64   `bson:"price"`
	OfferPrice     float64   `bson:"offerPrice"`
	Images         []string  `bson:"images"`
	CreatedAtEpoch int64     `bson:"createdAtEpoch"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

func newProductDocument(p *domain.Product) productDocument {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productDocument{
		ID:             p.ID.String(),
		OwnerID:        p.OwnerID.String(),
		Title:          p.Title,
		Description:    p.Description,
		Category:       p.Category,
		Price:          p.Price,
		OfferPrice:     p.OfferPrice,
		Images:         images,
		CreatedAtEpoch: p.CreatedAtEpoch,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (d productDocument) toDomain() (*domain.Product, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid product id %q: %w", d.ID, err)
	}
	ownerID, err := uuid.Parse(d.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", d.OwnerID, err)
	}
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return &domain.Product{
		ID:             id,
		OwnerID:        ownerID,
		Title:          d.Title,
		Description:    d.Description,
		Category:       d.Category,
		Price:          d.Price,
		OfferPrice:     d.OfferPrice,
		Images:         images,
		CreatedAtEpoch: d.CreatedAtEpoch,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

type mongoProductRepository struct {
	col *mongo.Collection
}

// NewMongoProductRepository creates a ProductRepository over the products collection
func NewMongoProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepository{col: db.Collection(database.ProductsCollection)}
}

func (r *mongoProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if _, err := r.col.InsertOne(ctx, newProductDocument(product)); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *mongoProductRepository) Update(ctx context.Context, product *domain.Product) error {
	doc := newProductDocument(product)
	update := bson.M{"$set": bson.M{
		"title":       doc.Title,
		"description": doc.Description,
		"category":    doc.Category,
		"price":       doc.Price,
		"offerPrice":  doc.OfferPrice,
		"images":      doc.Images,
		"updatedAt":   doc.UpdatedAt,
	}}

	result, err := r.col.UpdateByID(ctx, doc.ID, update)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *mongoProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var doc productDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return doc.toDomain()
}

func (r *mongoProductRepository) List(ctx context.Context, ownerID *uuid.UUID) ([]*domain.Product, error) {
	filter := bson.M{}
	if ownerID != nil {
		filter["ownerId"] = ownerID.String()
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAtEpoch", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []*domain.Product{}
	for cursor.Next(ctx) {
		var doc productDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		product, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
