package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDoc 集合内文档结构：_id 即文档键，业务内容放在 data 子文档
type mongoDoc struct {
	Key       string    `bson:"_id"`
	Data      bson.D    `bson:"data"`
	Version   int64     `bson:"version"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (m *mongoDoc) toDocument(collection string) (*Document, error) {
	raw, err := bson.Marshal(m.Data)
	if err != nil {
		return nil, err
	}
	data, err := bson.MarshalExtJSON(bson.Raw(raw), false, false)
	if err != nil {
		return nil, fmt.Errorf("文档转换 JSON 失败: %w", err)
	}
	return &Document{
		Collection: collection,
		Key:        m.Key,
		Data:       data,
		Version:    m.Version,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

// toBSON 业务对象 → JSON → bson.D，保持与 SQL 存储相同的字段命名
func toBSON(data interface{}) (bson.D, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("序列化文档失败: %w", err)
	}
	var d bson.D
	if err := bson.UnmarshalExtJSON(payload, false, &d); err != nil {
		return nil, fmt.Errorf("文档转换 BSON 失败: %w", err)
	}
	return d, nil
}

// MongoStore 基于 MongoDB 的文档存储，事务需要副本集
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore 连接 MongoDB 并执行 Ping
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("MongoDB 连接失败: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDB ping 失败: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

func (s *MongoStore) Get(ctx context.Context, collection, key string) (*Document, error) {
	return findOne(ctx, s.db.Collection(collection), collection, key)
}

func (s *MongoStore) Add(ctx context.Context, collection string, data interface{}) (string, error) {
	d, err := toBSON(data)
	if err != nil {
		return "", err
	}
	now := time.Now()
	doc := mongoDoc{Key: uuid.New().String(), Data: d, Version: 1, CreatedAt: now, UpdatedAt: now}
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.Key, nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	filter := bson.M{}
	if q.KeyPrefix != "" {
		filter["_id"] = bson.M{"$regex": "^" + regexp.QuoteMeta(q.KeyPrefix)}
	}

	field := "_id"
	if q.OrderBy == OrderByCreatedAt {
		field = "created_at"
	}
	dir := 1
	if q.Desc {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: field, Value: dir}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []Document
	for cur.Next(ctx) {
		var m mongoDoc
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		doc, err := m.toDocument(collection)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, cur.Err()
}

func (s *MongoStore) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&mongoTx{ctx: sc, db: s.db})
	})
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoTx struct {
	ctx mongo.SessionContext
	db  *mongo.Database
}

func (t *mongoTx) Get(ref Ref) (*Document, error) {
	return findOne(t.ctx, t.db.Collection(ref.Collection), ref.Collection, ref.Key)
}

func (t *mongoTx) Set(ref Ref, data interface{}, opts ...SetOption) error {
	o := applySetOptions(opts)
	d, err := toBSON(data)
	if err != nil {
		return err
	}

	now := time.Now()
	set := bson.M{"updated_at": now}
	if o.merge {
		for _, e := range d {
			set["data."+e.Key] = e.Value
		}
	} else {
		set["data"] = d
	}
	update := bson.M{
		"$set":         set,
		"$inc":         bson.M{"version": 1},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err = t.db.Collection(ref.Collection).UpdateOne(t.ctx,
		bson.M{"_id": ref.Key}, update, options.Update().SetUpsert(true))
	return err
}

func findOne(ctx context.Context, coll *mongo.Collection, collection, key string) (*Document, error) {
	var m mongoDoc
	err := coll.FindOne(ctx, bson.M{"_id": key}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.toDocument(collection)
}
