package store

import (
	"context"
	"time"

	"go-match/internal/errs"
	"go-match/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoThreadStore 基于 MongoDB 的会话/消息存储实现。
// - threads 集合以规范对键为 _id，$setOnInsert 实现并发安全的懒创建
// - messages 集合按 (created_at, _id) 复合索引支撑有序拉取
// - AppendMessage 先写消息再刷新会话摘要；消息 _id 唯一，重复写入天然拒绝
type MongoThreadStore struct {
	DB *mongo.Database
}

func NewMongoThreadStore(db *mongo.Database) *MongoThreadStore {
	ms := &MongoThreadStore{DB: db}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = ms.messages().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "thread_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("idx_thread_created"),
	})
	_, _ = ms.threads().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "members", Value: 1}, {Key: "last_msg_at", Value: -1}},
		Options: options.Index().SetName("idx_member_lastmsg"),
	})
	return ms
}

func (s *MongoThreadStore) threads() *mongo.Collection  { return s.DB.Collection("threads") }
func (s *MongoThreadStore) messages() *mongo.Collection { return s.DB.Collection("messages") }

type mongoThread struct {
	ID        string    `bson:"_id"`
	Members   []string  `bson:"members"` // 规范顺序 [a,b]
	CreatedAt time.Time `bson:"created_at"`

	LastMsgID   string    `bson:"last_msg_id,omitempty"`
	LastMsgText string    `bson:"last_msg_text,omitempty"`
	LastMsgFrom string    `bson:"last_msg_from,omitempty"`
	LastMsgAt   time.Time `bson:"last_msg_at,omitempty"`
	ReadBy      []string  `bson:"read_by,omitempty"`
}

type mongoMessage struct {
	ID        string    `bson:"_id"`
	ThreadID  string    `bson:"thread_id"`
	FromID    string    `bson:"from_id"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"created_at"`
}

func (mt *mongoThread) toModel() *models.Thread {
	t := &models.Thread{ID: mt.ID, CreatedAt: mt.CreatedAt}
	if len(mt.Members) == 2 {
		t.MemberA, t.MemberB = mt.Members[0], mt.Members[1]
	}
	if mt.LastMsgID != "" {
		lm := &models.LastMessage{ID: mt.LastMsgID, Text: mt.LastMsgText, FromID: mt.LastMsgFrom, At: mt.LastMsgAt, ReadBy: map[string]bool{}}
		for _, uid := range mt.ReadBy {
			lm.ReadBy[uid] = true
		}
		t.LastMessage = lm
	}
	return t
}

// EnsureThread upsert + $setOnInsert：并发调用只产生一个文档。
func (s *MongoThreadStore) EnsureThread(ctx context.Context, a, b string, at time.Time) (*models.Thread, error) {
	ma, mb := models.SortPair(a, b)
	id := models.PairKey(a, b)
	_, err := s.threads().UpdateByID(ctx, id, bson.M{
		"$setOnInsert": bson.M{"members": []string{ma, mb}, "created_at": at},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return nil, errs.Transient("thread.ensure", err)
	}
	return s.GetThread(ctx, id)
}

func (s *MongoThreadStore) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	var mt mongoThread
	err := s.threads().FindOne(ctx, bson.M{"_id": id}).Decode(&mt)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Transient("thread.get", err)
	}
	return mt.toModel(), nil
}

// AppendMessage 写入消息并刷新会话摘要；read_by 重置为 {fromId}。
func (s *MongoThreadStore) AppendMessage(ctx context.Context, m *models.Message) error {
	doc := mongoMessage{ID: m.ID, ThreadID: m.ThreadID, FromID: m.FromID, Text: m.Text, CreatedAt: m.CreatedAt}
	if _, err := s.messages().InsertOne(ctx, doc); err != nil {
		return errs.Transient("message.append", err)
	}
	_, err := s.threads().UpdateByID(ctx, m.ThreadID, bson.M{"$set": bson.M{
		"last_msg_id":   m.ID,
		"last_msg_text": m.Text,
		"last_msg_from": m.FromID,
		"last_msg_at":   m.CreatedAt,
		"read_by":       []string{m.FromID},
	}})
	return errs.Transient("message.append", err)
}

// MarkRead 把 uid 并入 read_by（$addToSet 幂等）。
func (s *MongoThreadStore) MarkRead(ctx context.Context, threadID, uid string) error {
	_, err := s.threads().UpdateOne(ctx,
		bson.M{"_id": threadID, "members": uid},
		bson.M{"$addToSet": bson.M{"read_by": uid}})
	return errs.Transient("thread.markread", err)
}

func (s *MongoThreadStore) ListThreadsForUser(ctx context.Context, uid string, limit int) ([]*models.Thread, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	cur, err := s.threads().Find(ctx, bson.M{"members": uid},
		options.Find().SetSort(bson.D{{Key: "last_msg_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, errs.Transient("thread.list", err)
	}
	defer cur.Close(ctx)
	var out []*models.Thread
	for cur.Next(ctx) {
		var mt mongoThread
		if err := cur.Decode(&mt); err != nil {
			return nil, errs.Transient("thread.list", err)
		}
		out = append(out, mt.toModel())
	}
	return out, cur.Err()
}

func (s *MongoThreadStore) ListMessages(ctx context.Context, threadID, afterID string, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := bson.M{"thread_id": threadID}
	if afterID != "" {
		filter["_id"] = bson.M{"$gt": afterID}
	}
	cur, err := s.messages().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, errs.Transient("message.list", err)
	}
	defer cur.Close(ctx)
	var out []*models.Message
	for cur.Next(ctx) {
		var mm mongoMessage
		if err := cur.Decode(&mm); err != nil {
			return nil, errs.Transient("message.list", err)
		}
		out = append(out, &models.Message{ID: mm.ID, ThreadID: mm.ThreadID, FromID: mm.FromID, Text: mm.Text, CreatedAt: mm.CreatedAt})
	}
	return out, cur.Err()
}
