package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/softkave/fimidx-sub001/internal/merge"
	"github.com/softkave/fimidx-sub001/internal/objstore"
	"github.com/softkave/fimidx-sub001/internal/querymongo"
)

// Name is the backend name reported in logs and metrics.
const Name = "mongo"

// Collection names.
const (
	ObjsCollection   = "objs"
	FieldsCollection = "obj_fields"
)

// Option configures a Store.
type Option func(*settings)

type settings struct {
	objs, fields string
}

// WithCollections overrides the record and field-metadata collection
// names. Empty names keep the defaults.
func WithCollections(objs, fields string) Option {
	return func(s *settings) {
		if objs != "" {
			s.objs = objs
		}
		if fields != "" {
			s.fields = fields
		}
	}
}

// Store is the MongoDB Backend. The Store handed to an InTx callback is
// bound to that transaction's session.
type Store struct {
	db       *mongo.Database
	objs     *mongo.Collection
	fields   *mongo.Collection
	sess     mongo.Session
	compiler *querymongo.Compiler
	owned    bool // Close disconnects the client
}

var _ objstore.Backend = (*Store)(nil)

// Open connects to uri and returns a Store over database dbName.
// Indexes are created if missing.
func Open(ctx context.Context, uri, dbName string, opts ...Option) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo connection URI is empty")
	}

	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(50).
		SetConnectTimeout(5 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s, err := New(ctx, client.Database(dbName), opts...)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New returns a Store over an existing database handle. The caller keeps
// ownership of the client.
func New(ctx context.Context, db *mongo.Database, opts ...Option) (*Store, error) {
	cfg := settings{objs: ObjsCollection, fields: FieldsCollection}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Store{
		db:       db,
		objs:     db.Collection(cfg.objs),
		fields:   db.Collection(cfg.fields),
		compiler: querymongo.NewCompiler(),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

// Close disconnects a client opened by Open. Stores built with New, and
// transaction-bound Stores, leave the client alone.
func (s *Store) Close(ctx context.Context) error {
	if !s.owned || s.sess != nil {
		return nil
	}
	return s.db.Client().Disconnect(ctx)
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database { return s.db }

// Name implements objstore.Backend.
func (s *Store) Name() string { return Name }

// DefaultMergeStrategy implements objstore.Backend. Updates that name no
// strategy merge objects deeply and replace arrays.
func (s *Store) DefaultMergeStrategy() merge.Strategy { return merge.MergeButReplaceArrays }

// InTx runs fn in a session transaction. A Store already bound to a
// session runs fn in that same transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx objstore.Backend) error) error {
	if s.sess != nil {
		return fn(ctx, s)
	}

	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	bound := *s
	bound.sess = sess
	bound.owned = false

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, &bound)
	})
	return err
}

// opCtx attaches the bound session, if any, to ctx.
func (s *Store) opCtx(ctx context.Context) context.Context {
	if s.sess == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, s.sess)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	objIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "appId", Value: 1}, {Key: "tag", Value: 1}, {Key: "deletedAt", Value: 1}},
			Options: options.Index().SetName("objs_app_tag"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("objs_created"),
		},
		{
			Keys: bson.D{{Key: "deletedAt", Value: 1}},
			Options: options.Index().SetName("objs_deleted").
				SetPartialFilterExpression(bson.D{{Key: "deletedAt", Value: bson.D{{Key: "$type", Value: "date"}}}}),
		},
	}
	if _, err := s.objs.Indexes().CreateMany(ctx, objIndexes); err != nil && !isIndexExistsError(err) {
		return err
	}

	_, err := s.fields.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "appId", Value: 1}, {Key: "tag", Value: 1}, {Key: "path", Value: 1}},
		Options: options.Index().SetName("obj_fields_app_tag_path").SetUnique(true),
	})
	if err != nil && !isIndexExistsError(err) {
		return err
	}
	return nil
}

// isIndexExistsError reports whether err says an equivalent index exists
// under different options.
func isIndexExistsError(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		// IndexOptionsConflict, IndexKeySpecsConflict
		return cmdErr.Code == 85 || cmdErr.Code == 86
	}
	return false
}
