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
)

// userDocument is the layout of the users collection
type userDocument struct {
	ID         string         `bson:"_id"`
	ExternalID string         `bson:"externalId"`
	Name       string         `bson:"name"`
	Email      string         `bson:"email"`
	AvatarURI  string         `bson:"avatarUri"`
	Role       string         `bson:"role"`
	IsSeller   bool           `bson:"isSeller"`
	CartItems  map[string]int `bson:"cartItems"`
	CreatedAt  time.Time      `bson:"createdAt"`
	UpdatedAt  time.Time      `bson:"updatedAt"`
}

func newUserDocument(user *domain.User) userDocument {
	user.EnsureCart()
	return userDocument{
		ID:         user.ID.String(),
		ExternalID: user.ExternalID,
		Name:       user.Name,
		Email:      user.Email,
		AvatarURI:  user.AvatarURI,
		Role:       user.Role,
		IsSeller:   user.IsSeller,
		CartItems:  user.CartItems,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
}

func (d userDocument) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", d.ID, err)
	}
	user := &domain.User{
		ID:         id,
		ExternalID: d.ExternalID,
		Name:       d.Name,
		Email:      d.Email,
		AvatarURI:  d.AvatarURI,
		Role:       d.Role,
		IsSeller:   d.IsSeller,
		CartItems:  d.CartItems,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	user.EnsureCart()
	return user, nil
}

type mongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a UserRepository over the users collection
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{col: db.Collection(database.UsersCollection)}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, err := r.col.InsertOne(ctx, newUserDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *domain.User) error {
	doc := newUserDocument(user)
	update := bson.M{"$set": bson.M{
		"name":      doc.Name,
		"email":     doc.Email,
		"avatarUri": doc.AvatarURI,
		"role":      doc.Role,
		"isSeller":  doc.IsSeller,
		"cartItems": doc.CartItems,
		"updatedAt": doc.UpdatedAt,
	}}

	result, err := r.col.UpdateByID(ctx, doc.ID, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	update := bson.M{"$set": bson.M{
		"name":      user.Name,
		"email":     user.Email,
		"avatarUri": user.AvatarURI,
		"updatedAt": user.UpdatedAt,
	}}

	result, err := r.col.UpdateOne(ctx, bson.M{"externalId": user.ExternalID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	result, err := r.col.DeleteOne(ctx, bson.M{"externalId": externalID})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"externalId": externalID})
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

func (r *mongoUserRepository) SetSellerRole(ctx context.Context, externalID string, seller bool) error {
	update := bson.M{"$set": bson.M{
		"role":      roleFor(seller),
		"isSeller":  seller,
		"updatedAt": time.Now().UTC(),
	}}

	result, err := r.col.UpdateOne(ctx, bson.M{"externalId": externalID}, update)
	if err != nil {
		return fmt.Errorf("failed to set seller role: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return doc.toDomain()
}
