package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fjod/bakery-storefront/internal/domain"
)

const cartTTL = 90 * 24 * time.Hour

type cartDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	OwnerKey  string             `bson:"owner_key"`
	Items     []itemDocument     `bson:"items"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

type itemDocument struct {
	ID        string               `bson:"id"`
	ProductID string               `bson:"product_id"`
	Price     primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"quantity"`
	Name      string               `bson:"name"`
	NameZh    string               `bson:"name_zh,omitempty"`
	Image     string               `bson:"image,omitempty"`
	UnitType  string               `bson:"unit_type,omitempty"`
	AddedAt   time.Time            `bson:"added_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *mongoRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"owner_key": ownerKey}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return fromDocument(doc)
}

func (m *mongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	doc, err := toDocument(cart)
	if err != nil {
		return err
	}

	filter := bson.M{"owner_key": cart.OwnerKey}
	update := bson.M{
		"$set": bson.M{
			"items":      doc.Items,
			"updated_at": doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"created_at": doc.CreatedAt,
		},
	}

	_, err = m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

// CreateIndexes makes owner_key unique and expires carts untouched for 90 days.
func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func toDocument(cart *domain.Cart) (cartDocument, error) {
	doc := cartDocument{
		OwnerKey:  cart.OwnerKey,
		Items:     make([]itemDocument, 0, len(cart.Items)),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		price, err := primitive.ParseDecimal128(item.Price.String())
		if err != nil {
			return cartDocument{}, fmt.Errorf("invalid price %s for item %s: %w", item.Price, item.ID, err)
		}
		doc.Items = append(doc.Items, itemDocument{
			ID:        item.ID,
			ProductID: item.ProductID,
			Price:     price,
			Quantity:  item.Quantity,
			Name:      item.Name,
			NameZh:    item.NameZh,
			Image:     item.Image,
			UnitType:  item.UnitType,
			AddedAt:   item.AddedAt,
		})
	}
	return doc, nil
}

func fromDocument(doc cartDocument) (*domain.Cart, error) {
	cart := &domain.Cart{
		OwnerKey:  doc.OwnerKey,
		Items:     make([]domain.CartLineItem, 0, len(doc.Items)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		price, err := decimal.NewFromString(item.Price.String())
		if err != nil {
			return nil, fmt.Errorf("invalid stored price for item %s: %w", item.ID, err)
		}
		cart.Items = append(cart.Items, domain.CartLineItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Price:     price,
			Quantity:  item.Quantity,
			Name:      item.Name,
			NameZh:    item.NameZh,
			Image:     item.Image,
			UnitType:  item.UnitType,
			AddedAt:   item.AddedAt,
		})
	}
	return cart, nil
}
