package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/skill-swap/internal/models"
)

// MongoStore handles users and swaps in MongoDB.
type MongoStore struct {
	users *mongo.Collection
	swaps *mongo.Collection
	now   func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users: db.Collection("users"),
		swaps: db.Collection("swaps"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique email index and the swap lookup indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	_, err = s.swaps.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "requester", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "responder", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("swaps index: %w", err)
	}
	return nil
}

type ratingDoc struct {
	Rater    primitive.ObjectID `bson:"rater"`
	Value    int                `bson:"value"`
	Feedback string             `bson:"feedback"`
}

type userDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Email         string             `bson:"email"`
	Password      string             `bson:"password"`
	Location      string             `bson:"location"`
	ProfilePhoto  string             `bson:"profilePhoto"`
	SkillsOffered []string           `bson:"skillsOffered"`
	SkillsWanted  []string           `bson:"skillsWanted"`
	Availability  string             `bson:"availability"`
	IsPublic      bool               `bson:"isPublic"`
	IsBanned      bool               `bson:"isBanned"`
	Role          string             `bson:"role"`
	Ratings       []ratingDoc        `bson:"ratings"`
	AvgRating     float64            `bson:"avgRating"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (d *userDoc) toModel() *models.User {
	ratings := make([]models.Rating, 0, len(d.Ratings))
	for _, r := range d.Ratings {
		ratings = append(ratings, models.Rating{RaterID: r.Rater.Hex(), Value: r.Value, Feedback: r.Feedback})
	}
	return &models.User{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Email:         d.Email,
		PasswordHash:  d.Password,
		Location:      d.Location,
		ProfilePhoto:  d.ProfilePhoto,
		SkillsOffered: nonNil(d.SkillsOffered),
		SkillsWanted:  nonNil(d.SkillsWanted),
		Availability:  models.Availability(d.Availability),
		IsPublic:      d.IsPublic,
		IsBanned:      d.IsBanned,
		Role:          models.Role(d.Role),
		Ratings:       ratings,
		AvgRating:     d.AvgRating,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func toRatingDocs(ratings []models.Rating) ([]ratingDoc, error) {
	out := make([]ratingDoc, 0, len(ratings))
	for _, r := range ratings {
		oid, err := primitive.ObjectIDFromHex(r.RaterID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid rater id", models.ErrValidation)
		}
		out = append(out, ratingDoc{Rater: oid, Value: r.Value, Feedback: r.Feedback})
	}
	return out, nil
}

type swapDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Requester       primitive.ObjectID `bson:"requester"`
	Responder       primitive.ObjectID `bson:"responder"`
	RequesterSkills []string           `bson:"requesterSkills"`
	ResponderSkills []string           `bson:"responderSkills"`
	Message         string             `bson:"message"`
	Status          string             `bson:"status"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d *swapDoc) toModel() *models.Swap {
	return &models.Swap{
		ID:              d.ID.Hex(),
		RequesterID:     d.Requester.Hex(),
		ResponderID:     d.Responder.Hex(),
		RequesterSkills: nonNil(d.RequesterSkills),
		ResponderSkills: nonNil(d.ResponderSkills),
		Message:         d.Message,
		Status:          models.SwapStatus(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// objectID parses a hex id. Malformed ids cannot name a stored document, so
// they are reported as not found.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.ErrNotFound
	}
	return oid, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	now := s.now()
	doc := userDoc{
		Name:          u.Name,
		Email:         u.Email,
		Password:      u.PasswordHash,
		Location:      u.Location,
		ProfilePhoto:  u.ProfilePhoto,
		SkillsOffered: nonNil(u.SkillsOffered),
		SkillsWanted:  nonNil(u.SkillsWanted),
		Availability:  string(u.Availability),
		IsPublic:      u.IsPublic,
		IsBanned:      u.IsBanned,
		Role:          string(u.Role),
		Ratings:       []ratingDoc{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrDuplicateEmail
		}
		return fmt.Errorf("mongo insert user: %w", err)
	}
	u.ID = res.InsertedID.(primitive.ObjectID).Hex()
	u.Ratings = []models.Rating{}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find user: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.listUsers(ctx, bson.M{})
}

func (s *MongoStore) ListPublicUsers(ctx context.Context) ([]models.User, error) {
	return s.listUsers(ctx, bson.M{"isPublic": true})
}

func (s *MongoStore) listUsers(ctx context.Context, filter bson.M) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode users: %w", err)
	}
	out := make([]models.User, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out, nil
}

func (s *MongoStore) UpdateProfile(ctx context.Context, u *models.User) error {
	oid, err := objectID(u.ID)
	if err != nil {
		return err
	}
	now := s.now()
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":          u.Name,
		"location":      u.Location,
		"profilePhoto":  u.ProfilePhoto,
		"skillsOffered": nonNil(u.SkillsOffered),
		"skillsWanted":  nonNil(u.SkillsWanted),
		"availability":  string(u.Availability),
		"isPublic":      u.IsPublic,
		"updatedAt":     now,
	}})
	if err != nil {
		return fmt.Errorf("mongo update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	u.UpdatedAt = now
	return nil
}

// SetBanned moves isBanned to banned only from the opposite value, so two
// racing toggles cannot both apply.
func (s *MongoStore) SetBanned(ctx context.Context, id string, banned bool) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": oid, "isBanned": !banned}
	if banned {
		filter = bson.M{"_id": oid, "isBanned": bson.M{"$ne": true}}
	}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"isBanned":  banned,
		"updatedAt": s.now(),
	}})
	if err != nil {
		return fmt.Errorf("mongo ban user: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.missOrConflict(ctx, s.users, oid)
	}
	return nil
}

func (s *MongoStore) SetProfilePhoto(ctx context.Context, id, url string) error {
	return s.setUserField(ctx, id, "profilePhoto", url)
}

func (s *MongoStore) SetRole(ctx context.Context, id string, role models.Role) error {
	return s.setUserField(ctx, id, "role", string(role))
}

func (s *MongoStore) setUserField(ctx context.Context, id, field string, value any) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		field:       value,
		"updatedAt": s.now(),
	}})
	if err != nil {
		return fmt.Errorf("mongo update user %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ReplaceRatings writes the rating list only while the stored list still has
// expectedCount entries.
func (s *MongoStore) ReplaceRatings(ctx context.Context, id string, ratings []models.Rating, avg float64, expectedCount int) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	docs, err := toRatingDocs(ratings)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "ratings": bson.M{"$size": expectedCount}}
	if expectedCount == 0 {
		filter = bson.M{"_id": oid, "$or": bson.A{
			bson.M{"ratings": bson.M{"$size": 0}},
			bson.M{"ratings": bson.M{"$exists": false}},
			bson.M{"ratings": nil},
		}}
	}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"ratings":   docs,
		"avgRating": avg,
		"updatedAt": s.now(),
	}})
	if err != nil {
		return fmt.Errorf("mongo replace ratings: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.missOrConflict(ctx, s.users, oid)
	}
	return nil
}

func (s *MongoStore) DeleteUser(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *MongoStore) InsertSwap(ctx context.Context, sw *models.Swap) error {
	requester, err := objectID(sw.RequesterID)
	if err != nil {
		return fmt.Errorf("requester: %w", err)
	}
	responder, err := objectID(sw.ResponderID)
	if err != nil {
		return fmt.Errorf("responder: %w", err)
	}
	now := s.now()
	doc := swapDoc{
		Requester:       requester,
		Responder:       responder,
		RequesterSkills: nonNil(sw.RequesterSkills),
		ResponderSkills: nonNil(sw.ResponderSkills),
		Message:         sw.Message,
		Status:          string(sw.Status),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	res, err := s.swaps.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("mongo insert swap: %w", err)
	}
	sw.ID = res.InsertedID.(primitive.ObjectID).Hex()
	sw.CreatedAt, sw.UpdatedAt = now, now
	return nil
}

func (s *MongoStore) GetSwap(ctx context.Context, id string) (*models.Swap, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc swapDoc
	if err := s.swaps.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("mongo find swap: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) ListSwapsByParticipant(ctx context.Context, userID string) ([]models.Swap, error) {
	oid, err := objectID(userID)
	if err != nil {
		return []models.Swap{}, nil
	}
	return s.listSwaps(ctx, bson.M{"$or": bson.A{
		bson.M{"requester": oid},
		bson.M{"responder": oid},
	}})
}

func (s *MongoStore) ListSwaps(ctx context.Context) ([]models.Swap, error) {
	return s.listSwaps(ctx, bson.M{})
}

func (s *MongoStore) listSwaps(ctx context.Context, filter bson.M) ([]models.Swap, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.swaps.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo list swaps: %w", err)
	}
	defer cur.Close(ctx)

	var docs []swapDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode swaps: %w", err)
	}
	out := make([]models.Swap, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].toModel())
	}
	return out, nil
}

// TransitionSwap is a compare-and-swap on the status field.
func (s *MongoStore) TransitionSwap(ctx context.Context, id string, from, to models.SwapStatus) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.swaps.UpdateOne(ctx,
		bson.M{"_id": oid, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updatedAt": s.now()}},
	)
	if err != nil {
		return fmt.Errorf("mongo transition swap: %w", err)
	}
	if res.MatchedCount == 0 {
		return s.missOrConflict(ctx, s.swaps, oid)
	}
	return nil
}

func (s *MongoStore) DeleteSwapIf(ctx context.Context, id string, status models.SwapStatus) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.swaps.DeleteOne(ctx, bson.M{"_id": oid, "status": string(status)})
	if err != nil {
		return fmt.Errorf("mongo delete swap: %w", err)
	}
	if res.DeletedCount == 0 {
		return s.missOrConflict(ctx, s.swaps, oid)
	}
	return nil
}

func (s *MongoStore) DeleteSwapsByParticipant(ctx context.Context, userID string) (int64, error) {
	oid, err := objectID(userID)
	if err != nil {
		return 0, nil
	}
	res, err := s.swaps.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"requester": oid},
		bson.M{"responder": oid},
	}})
	if err != nil {
		return 0, fmt.Errorf("mongo delete swaps: %w", err)
	}
	return res.DeletedCount, nil
}

// missOrConflict explains a conditional write that matched nothing.
func (s *MongoStore) missOrConflict(ctx context.Context, col *mongo.Collection, oid primitive.ObjectID) error {
	n, err := col.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo count: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return models.ErrPreconditionFailed
}
